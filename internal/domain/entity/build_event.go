package entity

import (
	"fmt"

	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
)

// UnresolvedSentinel — placeholder, который CI подставляет вместо
// ветки или build target handle, когда значение не было разрешено
const UnresolvedSentinel = "UNRESOLVED"

// BuildEvent представляет нотификацию о завершении сборки (Aggregate Root)
// Иммутабельный объект: конструируется один раз на входящий webhook
type BuildEvent struct {
	buildName       string
	project         string
	buildID         int
	buildTypeID     string
	status          valueobject.BuildStatus
	revision        string
	branch          string
	buildURL        string
	buildTargetPHID string
}

// NewBuildEvent создает событие из распарсенного webhook payload (Factory Method)
func NewBuildEvent(
	buildName string,
	project string,
	buildID int,
	buildTypeID string,
	result string,
	revision string,
	branch string,
	buildURL string,
	buildTargetPHID string,
) (*BuildEvent, error) {
	if buildName == "" {
		return nil, fmt.Errorf("build event: buildName is required")
	}
	if buildTypeID == "" {
		return nil, fmt.Errorf("build event: buildTypeId is required")
	}
	if buildID <= 0 {
		return nil, fmt.Errorf("build event: buildId must be positive, got %d", buildID)
	}

	return &BuildEvent{
		buildName:       buildName,
		project:         project,
		buildID:         buildID,
		buildTypeID:     buildTypeID,
		status:          valueobject.ParseBuildStatus(result),
		revision:        revision,
		branch:          branch,
		buildURL:        buildURL,
		buildTargetPHID: buildTargetPHID,
	}, nil
}

func (e *BuildEvent) BuildName() string { return e.buildName }

func (e *BuildEvent) Project() string { return e.project }

func (e *BuildEvent) BuildID() int { return e.buildID }

func (e *BuildEvent) BuildTypeID() string { return e.buildTypeID }

func (e *BuildEvent) Status() valueobject.BuildStatus { return e.status }

func (e *BuildEvent) Revision() string { return e.revision }

func (e *BuildEvent) Branch() string { return e.branch }

func (e *BuildEvent) BuildURL() string { return e.buildURL }

func (e *BuildEvent) BuildTargetPHID() string { return e.buildTargetPHID }

// HasBuildTarget — привязано ли событие к реальному build target review-системы.
// Сборки, запущенные не через review-систему, несут sentinel вместо handle.
func (e *BuildEvent) HasBuildTarget() bool {
	return e.buildTargetPHID != "" && e.buildTargetPHID != UnresolvedSentinel
}
