package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
	"github.com/dreschagin/ci-buildbot/internal/domain/service"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// UpdateCoveragePanelUseCase публикует таблицу покрытия из lcov-сводки
// coverage сборки на выделенную панель
type UpdateCoveragePanelUseCase struct {
	ci        port.CIServer
	review    port.ReviewTracker
	parser    *service.CoverageReportParser
	panelID   int
	permalink string
	logger    *logger.Logger
}

// NewUpdateCoveragePanelUseCase создает новый use case
func NewUpdateCoveragePanelUseCase(
	ci port.CIServer,
	review port.ReviewTracker,
	parser *service.CoverageReportParser,
	panelID int,
	permalink string,
	log *logger.Logger,
) *UpdateCoveragePanelUseCase {
	return &UpdateCoveragePanelUseCase{
		ci:        ci,
		review:    review,
		parser:    parser,
		panelID:   panelID,
		permalink: permalink,
		logger:    log,
	}
}

// Execute обновляет coverage панель. Вызов для незавершившейся успехом
// сборки — внутренняя ошибка: покрытие считают только зеленые сборки.
// Отсутствие сводки в артефактах — норма (пропускаем проход).
func (uc *UpdateCoveragePanelUseCase) Execute(ctx context.Context, event *entity.BuildEvent) error {
	if event.Status() != valueobject.StatusSuccess {
		return fmt.Errorf("coverage panel requested for unsuccessful build %d (%s)",
			event.BuildID(), event.Status())
	}

	summary, err := uc.ci.GetCoverageSummary(ctx, event.BuildID())
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			uc.logger.Debug("No coverage summary in build artifacts", "build_id", event.BuildID())
			return nil
		}
		return fmt.Errorf("failed to fetch coverage summary: %w", err)
	}

	content := uc.parser.Render(summary)
	if uc.permalink != "" {
		content = fmt.Sprintf("[[ %s | HTML coverage report ]]\n\n%s", uc.permalink, content)
	}

	if err := uc.review.SetPanelContent(ctx, uc.panelID, content); err != nil {
		return fmt.Errorf("failed to publish coverage panel: %w", err)
	}

	uc.logger.Info("Coverage panel republished", "panel_id", uc.panelID, "build_id", event.BuildID())
	return nil
}
