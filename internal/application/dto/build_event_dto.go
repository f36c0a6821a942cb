package dto

import (
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
)

// BuildEventDTO представляет webhook-уведомление о завершении сборки
// в том виде, в котором его присылает CI сервер
type BuildEventDTO struct {
	BuildName       string `json:"buildName"`
	Project         string `json:"project"`
	BuildID         int    `json:"buildId"`
	BuildTypeID     string `json:"buildTypeId"`
	BuildResult     string `json:"buildResult"`
	Revision        string `json:"revision"`
	Branch          string `json:"branch"`
	BuildURL        string `json:"buildURL"`
	BuildTargetPHID string `json:"buildTargetPHID"`
}

// ToEntity конвертирует DTO в Domain Entity с валидацией обязательных полей
func (d *BuildEventDTO) ToEntity() (*entity.BuildEvent, error) {
	return entity.NewBuildEvent(
		d.BuildName,
		d.Project,
		d.BuildID,
		d.BuildTypeID,
		d.BuildResult,
		d.Revision,
		d.Branch,
		d.BuildURL,
		d.BuildTargetPHID,
	)
}

// FromBuildEvent конвертирует Domain Entity обратно в DTO (для публикации
// обработанного события в message broker)
func FromBuildEvent(event *entity.BuildEvent) *BuildEventDTO {
	return &BuildEventDTO{
		BuildName:       event.BuildName(),
		Project:         event.Project(),
		BuildID:         event.BuildID(),
		BuildTypeID:     event.BuildTypeID(),
		BuildResult:     event.Status().String(),
		Revision:        event.Revision(),
		Branch:          event.Branch(),
		BuildURL:        event.BuildURL(),
		BuildTargetPHID: event.BuildTargetPHID(),
	}
}

// BuildQueuedDTO представляет уведомление о постановке сборки в очередь.
// Несет ровно столько, сколько нужно для ранней привязки ссылки на сборку
type BuildQueuedDTO struct {
	BuildID         int    `json:"buildId"`
	BuildName       string `json:"buildName"`
	BuildTargetPHID string `json:"targetPHID"`
}
