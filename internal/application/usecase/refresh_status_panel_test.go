package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/service"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

const panelTestConfig = `
templates:
  common: &common
    timeout: 1200
builds:
  build-1:
    script: builds/build-1.sh
  build-hidden:
    hideOnStatusPanel: true
  build-2: {}
  gone-build: {}
`

func newPanelUseCase(ci *mockCIServer, review *mockReviewTracker, legacy *mockLegacyCI) *RefreshStatusPanelUseCase {
	badges := "https://raster.shields.io/static/v1"
	return NewRefreshStatusPanelUseCase(
		ci, review, legacy,
		service.NewPanelRenderer(badges, "TC build", ""),
		service.NewPanelRenderer(badges, "Travis build", "travis"),
		RefreshStatusPanelParams{
			ConfigFilePath: "contrib/teamcity/build-configurations.yml",
			PanelID:        17,
			PrimaryBranch:  "refs/heads/master",
			FallbackGroup:  "Unassociated",
			LegacyRepo:     "bitcoin-abc/bitcoin-abc",
			LegacyBranch:   "master",
			LegacyLabel:    "Travis",
			LegacyBuildURL: "https://travis-ci.org/bitcoin-abc/bitcoin-abc",
		},
		logger.New("error"),
	)
}

func TestRefreshStatusPanel_FullPass(t *testing.T) {
	ci := &mockCIServer{
		buildInfo: &port.BuildInfo{ID: 123456, Status: "FAILURE", TriggerType: "vcs"},
		latest:    &port.BuildSummary{ID: 100, Status: "SUCCESS"},
		associated: map[string]port.AssociatedBuild{
			"build-1": {BuildTypeID: "BuildType", BuildName: "My Build 1", ProjectName: "Project A"},
			"build-2": {BuildTypeID: "OtherType", BuildName: "My Build 2", ProjectName: "Project B"},
		},
	}
	review := newMockReviewTracker()
	review.fileContent = []byte(panelTestConfig)
	legacy := &mockLegacyCI{status: &port.LegacyBranchStatus{State: "passed", BuildURL: "https://travis-ci.org/build/1"}}

	uc := newPanelUseCase(ci, review, legacy)
	update, err := uc.Execute(context.Background(), newEvent(t, "BuildType", "refs/heads/master", "failure"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	content := review.panelContent[17]
	if content == "" {
		t.Fatal("panel content was not published")
	}

	// Блок legacy CI идет первым
	if !strings.HasPrefix(content, "| Travis | Status |\n|---|---|\n") {
		t.Fatalf("legacy block must open the panel:\n%q", content)
	}
	if !strings.Contains(content, "logo=travis") {
		t.Fatalf("legacy badge must carry the travis logo:\n%q", content)
	}

	// Конфигурация, чья сборка запустила проход, показывает живой статус
	if !strings.Contains(content, "| My Build 1]] | {image uri=\"https://raster.shields.io/static/v1?label=TC+build&message=failure&color=red\"") {
		t.Fatalf("triggering entry must use fresh build info:\n%q", content)
	}

	// Остальные строки используют последнюю известную сборку
	if !strings.Contains(content, "| My Build 2]] | {image uri=\"https://raster.shields.io/static/v1?label=TC+build&message=success&color=brightgreen\"") {
		t.Fatalf("non-triggering entry must use last known status:\n%q", content)
	}

	// Скрытая конфигурация не рендерится, отвязанная рендерится как Unknown
	if strings.Contains(content, "build-hidden") {
		t.Fatalf("hidden build must not be rendered:\n%q", content)
	}
	if !strings.Contains(content, "| gone-build | ") || !strings.Contains(content, "color=lightgrey") {
		t.Fatalf("unassociated build must render Unknown:\n%q", content)
	}

	// Порядок секций: первый встреченный проект первым
	projectA := strings.Index(content, "| Project A | Status |")
	projectB := strings.Index(content, "| Project B | Status |")
	if projectA < 0 || projectB < 0 || projectA > projectB {
		t.Fatalf("project sections out of order:\n%q", content)
	}

	if update == nil || update.PanelID != 17 || update.ContentSize != len(content) {
		t.Fatalf("unexpected update DTO: %+v", update)
	}
}

func TestRefreshStatusPanel_ConfigUnavailableAbortsPass(t *testing.T) {
	review := newMockReviewTracker()
	review.fileContentErr = port.ErrConfigUnavailable

	uc := newPanelUseCase(&mockCIServer{}, review, &mockLegacyCI{})
	if _, err := uc.Execute(context.Background(), newEvent(t, "BuildType", "refs/heads/master", "failure")); err == nil {
		t.Fatal("expected error when config is unavailable")
	}

	if len(review.panelContent) != 0 {
		t.Fatalf("aborted pass must not publish anything")
	}
}

func TestRefreshStatusPanel_LegacyOutageDegradesToUnknown(t *testing.T) {
	ci := &mockCIServer{associated: map[string]port.AssociatedBuild{}}
	review := newMockReviewTracker()
	review.fileContent = []byte("builds:\n  build-1: {}\n")
	legacy := &mockLegacyCI{err: context.DeadlineExceeded}

	uc := newPanelUseCase(ci, review, legacy)
	if _, err := uc.Execute(context.Background(), newEvent(t, "BuildType", "refs/heads/master", "failure")); err != nil {
		t.Fatalf("legacy CI outage must not abort the pass: %v", err)
	}

	content := review.panelContent[17]
	if !strings.Contains(content, "message=unknown&color=lightgrey") {
		t.Fatalf("legacy row must degrade to unknown:\n%q", content)
	}
}

func TestRefreshStatusPanel_FailedRowShowsServerStatusText(t *testing.T) {
	ci := &mockCIServer{
		buildInfo: &port.BuildInfo{ID: 123456, Status: "FAILURE", StatusText: "Tests failed: 2 (2 new)", TriggerType: "vcs"},
		latest:    &port.BuildSummary{ID: 100, Status: "FAILURE", StatusText: "Compilation error"},
		associated: map[string]port.AssociatedBuild{
			"build-1": {BuildTypeID: "BuildType", BuildName: "My Build 1", ProjectName: "Project A"},
			"build-2": {BuildTypeID: "OtherType", BuildName: "My Build 2", ProjectName: "Project A"},
		},
	}
	review := newMockReviewTracker()
	review.fileContent = []byte("builds:\n  build-1: {}\n  build-2: {}\n")
	legacy := &mockLegacyCI{status: &port.LegacyBranchStatus{State: "passed"}}

	uc := newPanelUseCase(ci, review, legacy)
	if _, err := uc.Execute(context.Background(), newEvent(t, "BuildType", "refs/heads/master", "failure")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	content := review.panelContent[17]
	if !strings.Contains(content, "message=Tests+failed%3A+2+%282+new%29") ||
		!strings.Contains(content, "alt=\"Tests failed: 2 (2 new)\"") {
		t.Fatalf("fresh failed row must carry the server's status text:\n%q", content)
	}
	if !strings.Contains(content, "message=Compilation+error") {
		t.Fatalf("last-known failed row must carry the server's status text:\n%q", content)
	}
}

func TestRefreshStatusPanel_GreenRowIgnoresStatusText(t *testing.T) {
	ci := &mockCIServer{
		latest: &port.BuildSummary{ID: 100, Status: "SUCCESS", StatusText: "Tests passed: 4227"},
		associated: map[string]port.AssociatedBuild{
			"build-1": {BuildTypeID: "OtherType", BuildName: "My Build 1", ProjectName: "Project A"},
		},
	}
	review := newMockReviewTracker()
	review.fileContent = []byte("builds:\n  build-1: {}\n")
	legacy := &mockLegacyCI{status: &port.LegacyBranchStatus{State: "passed"}}

	uc := newPanelUseCase(ci, review, legacy)
	if _, err := uc.Execute(context.Background(), newEvent(t, "BuildType", "refs/heads/master", "failure")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	content := review.panelContent[17]
	if !strings.Contains(content, "| My Build 1]] | {image uri=\"https://raster.shields.io/static/v1?label=TC+build&message=success&color=brightgreen\"") {
		t.Fatalf("green row keeps the plain success badge:\n%q", content)
	}
	if strings.Contains(content, "Tests passed") {
		t.Fatalf("status text must not leak onto green rows:\n%q", content)
	}
}

func TestParseBuildConfigurations(t *testing.T) {
	entries, err := parseBuildConfigurations([]byte(panelTestConfig))
	if err != nil {
		t.Fatalf("parseBuildConfigurations() error = %v", err)
	}

	wantNames := []string{"build-1", "build-hidden", "build-2", "gone-build"}
	if len(entries) != len(wantNames) {
		t.Fatalf("expected %d entries, got %d", len(wantNames), len(entries))
	}
	for i, name := range wantNames {
		if entries[i].Name != name {
			t.Fatalf("entry %d = %q, want %q (declaration order must be kept)", i, entries[i].Name, name)
		}
	}
	if !entries[1].Hidden {
		t.Fatalf("build-hidden must carry the hide flag")
	}
	if entries[0].Hidden || entries[2].Hidden {
		t.Fatalf("unflagged builds must not be hidden")
	}
}

func TestParseBuildConfigurations_Malformed(t *testing.T) {
	if _, err := parseBuildConfigurations([]byte("builds: [not, a, mapping]")); err == nil {
		t.Fatal("expected error for non-mapping builds section")
	}
	if _, err := parseBuildConfigurations([]byte("unrelated: true")); err == nil {
		t.Fatal("expected error when builds section is missing")
	}
}
