package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Property сборки landbot'а, несущее номер приземляемой ревизии
const landRevisionProperty = "env.ABC_REVISION"

// NotifyLandResultUseCase сообщает автору ревизии результат auto-land
// сборки: личным сообщением, а если chat-идентичность автора неизвестна,
// то в общий канал с инструкцией ее настроить
type NotifyLandResultUseCase struct {
	ci         port.CIServer
	review     port.ReviewTracker
	chat       port.ChatService
	authors    *AuthorResolver
	devChannel string
	logger     *logger.Logger
}

// NewNotifyLandResultUseCase создает новый use case
func NewNotifyLandResultUseCase(
	ci port.CIServer,
	review port.ReviewTracker,
	chat port.ChatService,
	authors *AuthorResolver,
	devChannel string,
	log *logger.Logger,
) *NotifyLandResultUseCase {
	return &NotifyLandResultUseCase{
		ci:         ci,
		review:     review,
		chat:       chat,
		authors:    authors,
		devChannel: devChannel,
		logger:     log,
	}
}

// Execute уведомляет автора о результате land-сборки. Промежуточные
// статусы сообщений не порождают.
func (uc *NotifyLandResultUseCase) Execute(ctx context.Context, event *entity.BuildEvent) error {
	if event.Status() != valueobject.StatusSuccess && event.Status() != valueobject.StatusFailure {
		return nil
	}

	info, err := uc.ci.GetBuildInfo(ctx, event.BuildID())
	if err != nil {
		return fmt.Errorf("failed to fetch land build info: %w", err)
	}

	revisionID, err := parseRevisionID(info.Properties[landRevisionProperty])
	if err != nil {
		return fmt.Errorf("failed to resolve landed revision: %w", err)
	}

	revision, err := uc.review.GetRevision(ctx, revisionID)
	if err != nil {
		return fmt.Errorf("failed to fetch revision D%d: %w", revisionID, err)
	}

	author, err := uc.authors.Resolve(ctx, revision.AuthorPHID)
	if err != nil {
		return fmt.Errorf("failed to resolve revision author: %w", err)
	}

	message := "Failed to land your change:"
	if event.Status() == valueobject.StatusSuccess {
		message = "Successfully landed your change:"
	}
	message += fmt.Sprintf("\nRevision: %s\nBuild: %s",
		uc.review.RevisionURL(revisionID),
		uc.ci.ConvertToGuestURL(event.BuildURL()))

	target := author.ChatUserID
	if !author.HasChatIdentity() {
		target = uc.devChannel
		message = fmt.Sprintf(
			"%s: Please set your slack username in your Phabricator profile so the landbot can send you direct messages: %s\n%s",
			author.Username, author.ProfileEditURL, message)
	}

	if err := uc.chat.PostMessage(ctx, target, message); err != nil {
		return fmt.Errorf("failed to notify land result: %w", err)
	}

	uc.logger.Info("Land result notification sent",
		"revision_id", revisionID, "status", event.Status().String())
	return nil
}

// parseRevisionID принимает номер ревизии как с префиксом 'D', так и без
func parseRevisionID(raw string) (int, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "D")
	if raw == "" {
		return 0, fmt.Errorf("revision property is empty")
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid revision id %q", raw)
	}
	return id, nil
}
