package usecase

import (
	"context"
	"errors"

	"github.com/dreschagin/ci-buildbot/internal/application/dto"
	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
	"github.com/dreschagin/ci-buildbot/internal/domain/service"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// ErrUnresolvedEvent — событие несет неразрешенный placeholder вместо
// ветки. Транслируется фронтом в client error без side effects.
var ErrUnresolvedEvent = errors.New("event references unresolved placeholder identifiers")

// NATS subject'ы обработанных событий
const (
	subjectBuildEvaluated   = "ci.builds.evaluated"
	subjectHealthTransition = "ci.builds.health"
)

// HandleBuildCompletionUseCase — оркестратор одного события завершения
// сборки: классификация, привязка ссылки на сборку, инфраструктурный скан,
// диспетчеризация по категории и безусловное обновление status panel
type HandleBuildCompletionUseCase struct {
	classifier *service.EventClassifier
	health     *ReconcileBranchHealthUseCase
	comment    *CommentReviewFailureUseCase
	land       *NotifyLandResultUseCase
	link       *SyncBuildLinkUseCase
	panel      *RefreshStatusPanelUseCase
	coverage   *UpdateCoveragePanelUseCase
	infra      *NotifyInfraFailureUseCase

	// Опциональные downstream-подписчики, допускают nil
	publisher port.EventPublisher
	notifier  port.PanelNotifier
	metrics   port.MetricsRecorder

	coverageBuildTypeID string
	logger              *logger.Logger
}

// NewHandleBuildCompletionUseCase создает оркестратор. publisher, notifier
// и metrics могут быть nil — соответствующие фичи выключены.
func NewHandleBuildCompletionUseCase(
	classifier *service.EventClassifier,
	health *ReconcileBranchHealthUseCase,
	comment *CommentReviewFailureUseCase,
	land *NotifyLandResultUseCase,
	link *SyncBuildLinkUseCase,
	panel *RefreshStatusPanelUseCase,
	coverage *UpdateCoveragePanelUseCase,
	infra *NotifyInfraFailureUseCase,
	publisher port.EventPublisher,
	notifier port.PanelNotifier,
	metrics port.MetricsRecorder,
	coverageBuildTypeID string,
	log *logger.Logger,
) *HandleBuildCompletionUseCase {
	return &HandleBuildCompletionUseCase{
		classifier:          classifier,
		health:              health,
		comment:             comment,
		land:                land,
		link:                link,
		panel:               panel,
		coverage:            coverage,
		infra:               infra,
		publisher:           publisher,
		notifier:            notifier,
		metrics:             metrics,
		coverageBuildTypeID: coverageBuildTypeID,
		logger:              log,
	}
}

// Execute обрабатывает одно событие. Ошибка означает, что фронт должен
// ответить server error; ErrUnresolvedEvent — client error.
func (uc *HandleBuildCompletionUseCase) Execute(ctx context.Context, event *entity.BuildEvent) error {
	classification := uc.classifier.Classify(event)
	kind := classification.Kind

	// 1-2. Short-circuit: игнорируемые и неразрешенные события не имеют
	// side effects вообще, включая привязку ссылки и панель
	switch kind {
	case valueobject.KindIgnored:
		uc.logger.Info("Build event ignored by configuration", "build_type_id", event.BuildTypeID())
		uc.recordEvent(kind, "ignored")
		return nil
	case valueobject.KindInvalid:
		uc.recordEvent(kind, "invalid")
		return ErrUnresolvedEvent
	}

	// 3. Ссылка на сборку в review-системе: идемпотентно, сбой не
	// блокирует остальную обработку
	if event.HasBuildTarget() {
		if err := uc.link.Execute(ctx, event.BuildTargetPHID(), event.BuildName(), event.BuildID()); err != nil {
			uc.logger.Warn("Build link sync failed", "build_id", event.BuildID(), "error", err.Error())
			uc.recordUpstream("review", "sync_build_link", false)
		}
	}

	// 4. Инфраструктурный сбой обрабатывается отдельно и останавливает
	// обычную диспетчеризацию
	infraHandled, err := uc.infra.Execute(ctx, event, classification.DiffID)
	if err != nil {
		uc.recordEvent(kind, "error")
		return err
	}

	var actionErr error
	if !infraHandled {
		actionErr = uc.dispatch(ctx, event, classification)
	}

	// 5. Панель обновляется на каждом не-short-circuited событии;
	// ее сбой (включая недоступный конфиг) не портит ответ
	uc.refreshPanel(ctx, event)

	uc.publishEvaluated(ctx, event)

	switch {
	case actionErr == nil:
		uc.recordEvent(kind, "ok")
	case errors.Is(actionErr, ErrStaleEvent):
		uc.recordEvent(kind, "stale")
		actionErr = nil
	default:
		uc.recordEvent(kind, "error")
	}
	return actionErr
}

func (uc *HandleBuildCompletionUseCase) dispatch(ctx context.Context, event *entity.BuildEvent, classification service.Classification) error {
	switch classification.Kind {
	case valueobject.KindPrimary:
		transition, err := uc.health.Execute(ctx, event)
		if err != nil {
			return err
		}
		if transition != nil {
			uc.broadcastTransition(ctx, transition)
		}

		if uc.coverageBuildTypeID != "" && event.BuildTypeID() == uc.coverageBuildTypeID {
			return uc.coverage.Execute(ctx, event)
		}
		return nil

	case valueobject.KindReview:
		return uc.comment.Execute(ctx, event, classification.DiffID)

	case valueobject.KindLand:
		return uc.land.Execute(ctx, event)
	}

	// Unclassified: не ошибка, просто нечего делать
	uc.logger.Debug("Build event matched no category", "branch", event.Branch(), "build_type_id", event.BuildTypeID())
	return nil
}

func (uc *HandleBuildCompletionUseCase) refreshPanel(ctx context.Context, event *entity.BuildEvent) {
	update, err := uc.panel.Execute(ctx, event)
	if err != nil {
		uc.logger.Warn("Status panel refresh failed", "error", err.Error())
		uc.recordUpstream("review", "refresh_panel", false)
		return
	}

	if uc.metrics != nil {
		uc.metrics.RecordPanelRefresh()
	}
	if uc.notifier != nil {
		uc.notifier.BroadcastPanelUpdate(update)
	}
}

func (uc *HandleBuildCompletionUseCase) broadcastTransition(ctx context.Context, transition *dto.HealthTransitionDTO) {
	if uc.notifier != nil {
		uc.notifier.BroadcastHealthTransition(transition)
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishEvent(ctx, subjectHealthTransition, transition); err != nil {
			uc.logger.Warn("Failed to publish health transition", "error", err.Error())
		}
	}
}

func (uc *HandleBuildCompletionUseCase) publishEvaluated(ctx context.Context, event *entity.BuildEvent) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishEvent(ctx, subjectBuildEvaluated, dto.FromBuildEvent(event)); err != nil {
		uc.logger.Warn("Failed to publish evaluated event", "error", err.Error())
	}
}

func (uc *HandleBuildCompletionUseCase) recordEvent(kind valueobject.BuildKind, outcome string) {
	if uc.metrics != nil {
		uc.metrics.RecordEvent(kind.String(), outcome)
	}
}

func (uc *HandleBuildCompletionUseCase) recordUpstream(upstream, method string, success bool) {
	if uc.metrics != nil {
		uc.metrics.RecordUpstreamRequest(upstream, method, success)
	}
}
