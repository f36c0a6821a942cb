package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Маркер, которым скрипты сборки помечают сбои окружения в логе
const infraErrorMarker = "[Infrastructure Error]"

const infraApologyComment = "(IMPORTANT) The build failed due to an unexpected " +
	"infrastructure outage. The administrators have been notified to " +
	"investigate. Sorry for the inconvenience."

// NotifyInfraFailureUseCase отличает инфраструктурный сбой от настоящей
// поломки: зовет дежурных в infra канал и, для review сборок, извиняется
// в комментарии. После такого сбоя обычная обработка события не нужна.
type NotifyInfraFailureUseCase struct {
	ci           port.CIServer
	review       port.ReviewTracker
	chat         port.ChatService
	infraChannel string
	infraMention string
	logger       *logger.Logger
}

// NewNotifyInfraFailureUseCase создает новый use case
func NewNotifyInfraFailureUseCase(
	ci port.CIServer,
	review port.ReviewTracker,
	chat port.ChatService,
	infraChannel string,
	infraMention string,
	log *logger.Logger,
) *NotifyInfraFailureUseCase {
	return &NotifyInfraFailureUseCase{
		ci:           ci,
		review:       review,
		chat:         chat,
		infraChannel: infraChannel,
		infraMention: infraMention,
		logger:       log,
	}
}

// Execute сканирует лог упавшей автоматической сборки на инфраструктурный
// маркер. Возвращает true, если сбой инфраструктурный и дальнейшая
// обработка события должна остановиться. Сам скан best-effort: проблемы
// с получением лога не блокируют обычный путь.
func (uc *NotifyInfraFailureUseCase) Execute(ctx context.Context, event *entity.BuildEvent, diffID int) (bool, error) {
	if event.Status() != valueobject.StatusFailure {
		return false, nil
	}

	info, err := uc.ci.GetBuildInfo(ctx, event.BuildID())
	if err != nil {
		uc.logger.Warn("Infra scan skipped, build info unavailable", "build_id", event.BuildID(), "error", err.Error())
		return false, nil
	}
	if info.TriggerType == "user" {
		return false, nil
	}

	logText, err := uc.ci.GetBuildLog(ctx, event.BuildID())
	if err != nil {
		uc.logger.Warn("Infra scan skipped, build log unavailable", "build_id", event.BuildID(), "error", err.Error())
		return false, nil
	}

	if !strings.Contains(logText, infraErrorMarker) {
		return false, nil
	}

	message := fmt.Sprintf("There was an infrastructure failure in '%s': %s",
		event.BuildName(), uc.ci.ConvertToGuestURL(event.BuildURL()))
	if uc.infraMention != "" {
		message = uc.infraMention + " " + message
	}

	if err := uc.chat.PostMessage(ctx, uc.infraChannel, message); err != nil {
		return true, fmt.Errorf("failed to alert infra channel: %w", err)
	}

	// Автору диффа не повезло оказаться на сломанном агенте: извиняемся,
	// но падение комментария не считаем критичным
	if diffID > 0 {
		if diff, err := uc.review.ResolveDiff(ctx, diffID); err != nil {
			uc.logger.Warn("Failed to resolve diff for infra apology", "diff_id", diffID, "error", err.Error())
		} else if err := uc.review.CommentOnRevision(ctx, diff.RevisionID, infraApologyComment); err != nil {
			uc.logger.Warn("Failed to post infra apology", "revision_id", diff.RevisionID, "error", err.Error())
		}
	}

	uc.logger.Info("Infrastructure failure reported",
		"build_id", event.BuildID(), "build_name", event.BuildName())
	return true, nil
}
