package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
)

func newEvent(t *testing.T, buildTypeID, branch, result string) *entity.BuildEvent {
	t.Helper()

	event, err := entity.NewBuildEvent(
		"build-name", "bitcoin-abc", 123456, buildTypeID, result,
		"deadbeef", branch, "https://ci.example.org/viewLog.html?buildId=123456", "PHID-HMBT-target",
	)
	if err != nil {
		t.Fatalf("NewBuildEvent() error = %v", err)
	}
	return event
}

// Общие моки портов для тестов use case'ов

type mockCIServer struct {
	buildInfo       *port.BuildInfo
	buildInfoErr    error
	problems        []port.ProblemOccurrence
	problemsErr     error
	failedTests     []port.TestOccurrence
	failedTestsErr  error
	buildLog        string
	buildLogErr     error
	logArtifact     []byte
	logArtifactErr  error
	latest          *port.BuildSummary
	latestErr       error
	failureCount    int
	failureCountErr error
	associated      map[string]port.AssociatedBuild
	associatedErr   error
	coverage        string
	coverageErr     error

	countSinceArg  time.Time
	buildInfoCalls int
}

func (m *mockCIServer) GetBuildInfo(_ context.Context, buildID int) (*port.BuildInfo, error) {
	m.buildInfoCalls++
	if m.buildInfoErr != nil {
		return nil, m.buildInfoErr
	}
	if m.buildInfo != nil {
		return m.buildInfo, nil
	}
	return &port.BuildInfo{ID: buildID, Status: "failure", TriggerType: "vcs"}, nil
}

func (m *mockCIServer) GetBuildProblems(_ context.Context, _ int) ([]port.ProblemOccurrence, error) {
	return m.problems, m.problemsErr
}

func (m *mockCIServer) GetFailedTests(_ context.Context, _ int) ([]port.TestOccurrence, error) {
	return m.failedTests, m.failedTestsErr
}

func (m *mockCIServer) GetBuildLog(_ context.Context, _ int) (string, error) {
	return m.buildLog, m.buildLogErr
}

func (m *mockCIServer) GetLogArtifact(_ context.Context, _ int, _ string) ([]byte, error) {
	return m.logArtifact, m.logArtifactErr
}

func (m *mockCIServer) GetLatestCompletedBuild(_ context.Context, _, _ string) (*port.BuildSummary, error) {
	return m.latest, m.latestErr
}

func (m *mockCIServer) CountFailuresSince(_ context.Context, _, _ string, since time.Time) (int, error) {
	m.countSinceArg = since
	return m.failureCount, m.failureCountErr
}

func (m *mockCIServer) AssociateConfigurationNames(_ context.Context) (map[string]port.AssociatedBuild, error) {
	return m.associated, m.associatedErr
}

func (m *mockCIServer) GetCoverageSummary(_ context.Context, _ int) (string, error) {
	return m.coverage, m.coverageErr
}

func (m *mockCIServer) BuildURL(buildID int) string {
	return fmt.Sprintf("https://ci.example.org/viewLog.html?buildId=%d", buildID)
}

func (m *mockCIServer) TypeBuildURL(buildTypeID string) string {
	return "https://ci.example.org/viewLog.html?buildTypeId=" + buildTypeID + "&buildId=lastFinished"
}

func (m *mockCIServer) TestLogURL(buildID int, testID string) string {
	return fmt.Sprintf("https://ci.example.org/viewLog.html?buildId=%d&tab=buildLog#testOccurrence/%s", buildID, testID)
}

func (m *mockCIServer) ConvertToGuestURL(rawURL string) string {
	return rawURL + "&guest=1"
}

type createdTask struct {
	title       string
	description string
	priority    string
	buildTypeID string
}

type createdArtifact struct {
	targetPHID string
	key        string
	name       string
	uri        string
}

type mockReviewTracker struct {
	diff           *port.Diff
	diffErr        error
	revision       *port.Revision
	revisionErr    error
	user           *port.User
	userErr        error
	latestRevision *port.Revision
	latestRevErr   error
	openTask       *port.BrokenBuildTask
	openTaskErr    error
	createTaskErr  error
	closeTaskErr   error
	artifacts      []string
	artifactsErr   error
	commentErr     error
	panelErr       error
	fileContent    []byte
	fileContentErr error

	createdTasks     []createdTask
	closedTasks      []int
	createdArtifacts []createdArtifact
	comments         map[int][]string
	panelContent     map[int]string
}

func newMockReviewTracker() *mockReviewTracker {
	return &mockReviewTracker{
		comments:     make(map[int][]string),
		panelContent: make(map[int]string),
	}
}

func (m *mockReviewTracker) ResolveDiff(_ context.Context, _ int) (*port.Diff, error) {
	return m.diff, m.diffErr
}

func (m *mockReviewTracker) GetRevision(_ context.Context, _ int) (*port.Revision, error) {
	return m.revision, m.revisionErr
}

func (m *mockReviewTracker) GetUser(_ context.Context, _ string) (*port.User, error) {
	return m.user, m.userErr
}

func (m *mockReviewTracker) LatestRevisionForCommits(_ context.Context, _ []string) (*port.Revision, error) {
	return m.latestRevision, m.latestRevErr
}

func (m *mockReviewTracker) FindOpenBrokenBuildTask(_ context.Context, _ string) (*port.BrokenBuildTask, error) {
	return m.openTask, m.openTaskErr
}

func (m *mockReviewTracker) CreateBrokenBuildTask(_ context.Context, title, description, priority, buildTypeID string) (*port.BrokenBuildTask, error) {
	if m.createTaskErr != nil {
		return nil, m.createTaskErr
	}
	m.createdTasks = append(m.createdTasks, createdTask{
		title:       title,
		description: description,
		priority:    priority,
		buildTypeID: buildTypeID,
	})
	return &port.BrokenBuildTask{ID: 890, PHID: "PHID-TASK-890"}, nil
}

func (m *mockReviewTracker) CloseTask(_ context.Context, taskID int, _ string) error {
	if m.closeTaskErr != nil {
		return m.closeTaskErr
	}
	m.closedTasks = append(m.closedTasks, taskID)
	return nil
}

func (m *mockReviewTracker) SearchBuildTargetArtifacts(_ context.Context, _ string) ([]string, error) {
	return m.artifacts, m.artifactsErr
}

func (m *mockReviewTracker) CreateBuildTargetArtifact(_ context.Context, targetPHID, key, name, uri string) error {
	m.createdArtifacts = append(m.createdArtifacts, createdArtifact{
		targetPHID: targetPHID,
		key:        key,
		name:       name,
		uri:        uri,
	})
	return nil
}

func (m *mockReviewTracker) CommentOnRevision(_ context.Context, revisionID int, comment string) error {
	if m.commentErr != nil {
		return m.commentErr
	}
	m.comments[revisionID] = append(m.comments[revisionID], comment)
	return nil
}

func (m *mockReviewTracker) SetPanelContent(_ context.Context, panelID int, content string) error {
	if m.panelErr != nil {
		return m.panelErr
	}
	m.panelContent[panelID] = content
	return nil
}

func (m *mockReviewTracker) GetFileContent(_ context.Context, _ string) ([]byte, error) {
	return m.fileContent, m.fileContentErr
}

func (m *mockReviewTracker) ProfileEditURL(username string) string {
	return "https://reviews.example.org/people/editprofile/" + username
}

func (m *mockReviewTracker) RevisionURL(revisionID int) string {
	return fmt.Sprintf("https://reviews.example.org/D%d", revisionID)
}

func (m *mockReviewTracker) TaskURL(taskID int) string {
	return fmt.Sprintf("https://reviews.example.org/T%d", taskID)
}

func (m *mockReviewTracker) CommitName(hash string) string {
	return "rABC" + hash
}

type postedMessage struct {
	target  string
	message string
}

type mockChatService struct {
	users   map[string]string
	postErr error

	posted []postedMessage
}

func (m *mockChatService) PostMessage(_ context.Context, target, message string) error {
	if m.postErr != nil {
		return m.postErr
	}
	m.posted = append(m.posted, postedMessage{target: target, message: message})
	return nil
}

func (m *mockChatService) LookupUserID(_ context.Context, handle string) (string, error) {
	if id, ok := m.users[handle]; ok {
		return id, nil
	}
	return "", port.ErrNotFound
}

func (m *mockChatService) FormatMention(userID string) string {
	return "<@" + userID + ">"
}

type mockLegacyCI struct {
	status *port.LegacyBranchStatus
	err    error
}

func (m *mockLegacyCI) GetBranchStatus(_ context.Context, _, _ string) (*port.LegacyBranchStatus, error) {
	return m.status, m.err
}
