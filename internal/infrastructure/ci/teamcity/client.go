package teamcity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Имя артефакта со сводкой покрытия, которую публикует coverage сборка
const coverageSummaryArtifact = "coverage-summary.txt"

// Формат дат в locator'ах TeamCity REST API
const locatorTimeLayout = "20060102T150405-0700"

// Client — клиент TeamCity REST API. Реализует port.CIServer.
type Client struct {
	baseURL string
	token   string
	project string
	client  *http.Client
	logger  *logger.Logger
}

// NewClient создает новый клиент
func NewClient(baseURL, token, project string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		project: project,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

type buildResponse struct {
	ID          int    `json:"id"`
	BuildTypeID string `json:"buildTypeId"`
	Status      string `json:"status"`
	StatusText  string `json:"statusText"`
	Triggered   struct {
		Type string `json:"type"`
	} `json:"triggered"`
	Properties struct {
		Property []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"property"`
	} `json:"properties"`
	Revisions struct {
		Revision []struct {
			Version string `json:"version"`
		} `json:"revision"`
	} `json:"revisions"`
}

// GetBuildInfo возвращает развернутую информацию о сборке
func (c *Client) GetBuildInfo(ctx context.Context, buildID int) (*port.BuildInfo, error) {
	var resp buildResponse
	path := fmt.Sprintf("/app/rest/builds/id:%d?fields=id,buildTypeId,status,statusText,"+
		"triggered(type),properties(property(name,value)),revisions(revision(version))", buildID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("teamcity: failed to fetch build %d: %w", buildID, err)
	}

	properties := make(map[string]string, len(resp.Properties.Property))
	for _, p := range resp.Properties.Property {
		properties[p.Name] = p.Value
	}

	commits := make([]string, 0, len(resp.Revisions.Revision))
	for _, r := range resp.Revisions.Revision {
		commits = append(commits, r.Version)
	}

	return &port.BuildInfo{
		ID:          resp.ID,
		BuildTypeID: resp.BuildTypeID,
		Status:      resp.Status,
		StatusText:  resp.StatusText,
		Properties:  properties,
		Commits:     commits,
		TriggerType: resp.Triggered.Type,
	}, nil
}

// GetBuildProblems возвращает проблемы сборки в порядке записи
func (c *Client) GetBuildProblems(ctx context.Context, buildID int) ([]port.ProblemOccurrence, error) {
	var resp struct {
		ProblemOccurrence []struct {
			Type    string `json:"type"`
			Details string `json:"details"`
		} `json:"problemOccurrence"`
	}
	path := fmt.Sprintf("/app/rest/problemOccurrences?locator=build:(id:%d)&fields=problemOccurrence(type,details)", buildID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("teamcity: failed to fetch build problems: %w", err)
	}

	problems := make([]port.ProblemOccurrence, 0, len(resp.ProblemOccurrence))
	for _, p := range resp.ProblemOccurrence {
		problems = append(problems, port.ProblemOccurrence{Type: p.Type, Details: p.Details})
	}
	return problems, nil
}

// GetFailedTests возвращает упавшие тесты сборки
func (c *Client) GetFailedTests(ctx context.Context, buildID int) ([]port.TestOccurrence, error) {
	var resp struct {
		TestOccurrence []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"testOccurrence"`
	}
	path := fmt.Sprintf("/app/rest/testOccurrences?locator=build:(id:%d),status:FAILURE&fields=testOccurrence(id,name)", buildID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("teamcity: failed to fetch failed tests: %w", err)
	}

	tests := make([]port.TestOccurrence, 0, len(resp.TestOccurrence))
	for _, t := range resp.TestOccurrence {
		tests = append(tests, port.TestOccurrence{ID: t.ID, Name: t.Name})
	}
	return tests, nil
}

// GetBuildLog возвращает живой лог сборки
func (c *Client) GetBuildLog(ctx context.Context, buildID int) (string, error) {
	data, err := c.getRaw(ctx, fmt.Sprintf("/downloadBuildLog.html?buildId=%d", buildID))
	if err != nil {
		return "", fmt.Errorf("teamcity: failed to download build log: %w", err)
	}
	return string(data), nil
}

// GetLogArtifact возвращает сжатый лог-артефакт. ErrNotFound, если сборка
// артефакт не публиковала.
func (c *Client) GetLogArtifact(ctx context.Context, buildID int, name string) ([]byte, error) {
	data, err := c.getRaw(ctx, fmt.Sprintf("/app/rest/builds/id:%d/artifacts/content/%s", buildID, url.PathEscape(name)))
	if err != nil {
		return nil, fmt.Errorf("teamcity: failed to fetch log artifact: %w", err)
	}
	return data, nil
}

// GetLatestCompletedBuild возвращает последнюю завершенную сборку
// конфигурации на ветке, nil без ошибки если истории нет
func (c *Client) GetLatestCompletedBuild(ctx context.Context, buildTypeID, branch string) (*port.BuildSummary, error) {
	var resp struct {
		Build []struct {
			ID         int    `json:"id"`
			Status     string `json:"status"`
			StatusText string `json:"statusText"`
		} `json:"build"`
	}
	locator := fmt.Sprintf("buildType:%s,branch:%s,state:finished,count:1", buildTypeID, url.QueryEscape(branch))
	if err := c.getJSON(ctx, "/app/rest/builds?locator="+locator, &resp); err != nil {
		return nil, fmt.Errorf("teamcity: failed to fetch latest build: %w", err)
	}

	if len(resp.Build) == 0 {
		return nil, nil
	}
	latest := resp.Build[0]
	return &port.BuildSummary{ID: latest.ID, Status: latest.Status, StatusText: latest.StatusText}, nil
}

// CountFailuresSince считает неуспешные завершенные сборки конфигурации
// на ветке начиная с указанного момента
func (c *Client) CountFailuresSince(ctx context.Context, buildTypeID, branch string, since time.Time) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	locator := fmt.Sprintf("buildType:%s,branch:%s,state:finished,status:FAILURE,sinceDate:%s",
		buildTypeID, url.QueryEscape(branch), url.QueryEscape(since.Format(locatorTimeLayout)))
	if err := c.getJSON(ctx, "/app/rest/builds?locator="+locator+"&fields=count", &resp); err != nil {
		return 0, fmt.Errorf("teamcity: failed to count failures: %w", err)
	}
	return resp.Count, nil
}

// AssociateConfigurationNames возвращает карту логическое имя -> конфигурация
// для всех конфигураций проекта
func (c *Client) AssociateConfigurationNames(ctx context.Context) (map[string]port.AssociatedBuild, error) {
	var resp struct {
		BuildType []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			ProjectID   string `json:"projectId"`
			ProjectName string `json:"projectName"`
		} `json:"buildType"`
	}
	path := fmt.Sprintf("/app/rest/buildTypes?locator=affectedProject:(id:%s)&fields=buildType(id,name,projectId,projectName)", c.project)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("teamcity: failed to list build types: %w", err)
	}

	associated := make(map[string]port.AssociatedBuild, len(resp.BuildType))
	for _, bt := range resp.BuildType {
		associated[bt.Name] = port.AssociatedBuild{
			BuildTypeID: bt.ID,
			BuildName:   bt.Name,
			ProjectID:   bt.ProjectID,
			ProjectName: bt.ProjectName,
		}
	}
	return associated, nil
}

// GetCoverageSummary возвращает текстовую lcov-сводку из артефактов сборки
func (c *Client) GetCoverageSummary(ctx context.Context, buildID int) (string, error) {
	data, err := c.GetLogArtifact(ctx, buildID, coverageSummaryArtifact)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// BuildURL строит ссылку на страницу сборки
func (c *Client) BuildURL(buildID int) string {
	return fmt.Sprintf("%s/viewLog.html?buildId=%d", c.baseURL, buildID)
}

// TypeBuildURL строит ссылку на последнюю сборку конфигурации
func (c *Client) TypeBuildURL(buildTypeID string) string {
	return fmt.Sprintf("%s/viewLog.html?buildTypeId=%s&buildId=lastFinished", c.baseURL, buildTypeID)
}

// TestLogURL строит ссылку на лог упавшего теста
func (c *Client) TestLogURL(buildID int, testID string) string {
	return fmt.Sprintf("%s/viewLog.html?buildId=%d&tab=buildLog#testOccurrence/%s", c.baseURL, buildID, testID)
}

// ConvertToGuestURL делает ссылку доступной без логина
func (c *Client) ConvertToGuestURL(rawURL string) string {
	if rawURL == "" {
		return rawURL
	}
	separator := "?"
	if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
		separator = "&"
	}
	return rawURL + separator + "guest=1"
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	data, err := c.getRaw(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unexpected response body: %w", err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, port.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
