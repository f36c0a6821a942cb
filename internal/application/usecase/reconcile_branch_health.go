package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/ci-buildbot/internal/application/dto"
	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// ErrStaleEvent — событие о сборке, которую уже вытеснила более новая
// завершенная сборка той же конфигурации. Поглощается без side effects.
var ErrStaleEvent = errors.New("stale build event")

const (
	// Приоритет задачи о сломанной primary ветке
	brokenTaskPriority = "unbreak"

	// Ровно две недавние неудачи (текущая + одна прошлая): flaky,
	// только сообщение в чат, задача не создается
	flakyFailureCount = 2

	// Три и больше: повторная flaky, уже отсвечена, молчим
	silentFailureCount = 3
)

// Комментарий при закрытии задачи и сообщение в чат при починке ветки
const greenAgainMessage = "Master is green again."

// ReconcileBranchHealthUseCase ведет состояние здоровья конфигурации на
// primary ветке. Состояние не хранится в процессе: оно каждый раз заново
// выводится из внешних snapshot'ов (последняя завершенная сборка,
// открытая задача о поломке, история неудач за окно).
type ReconcileBranchHealthUseCase struct {
	ci          port.CIServer
	review      port.ReviewTracker
	chat        port.ChatService
	authors     *AuthorResolver
	devChannel  string
	flakyWindow time.Duration
	logger      *logger.Logger

	// подменяется в тестах
	now func() time.Time
}

// NewReconcileBranchHealthUseCase создает новый use case
func NewReconcileBranchHealthUseCase(
	ci port.CIServer,
	review port.ReviewTracker,
	chat port.ChatService,
	authors *AuthorResolver,
	devChannel string,
	flakyWindow time.Duration,
	log *logger.Logger,
) *ReconcileBranchHealthUseCase {
	return &ReconcileBranchHealthUseCase{
		ci:          ci,
		review:      review,
		chat:        chat,
		authors:     authors,
		devChannel:  devChannel,
		flakyWindow: flakyWindow,
		logger:      log,
		now:         time.Now,
	}
}

// Execute обрабатывает завершение сборки на primary ветке. Возвращает
// переход состояния (broken/flaky/fixed) или nil, если состояние не менялось.
// ErrStaleEvent означает, что событие устарело и было проигнорировано.
func (uc *ReconcileBranchHealthUseCase) Execute(ctx context.Context, event *entity.BuildEvent) (*dto.HealthTransitionDTO, error) {
	if event.Status() != valueobject.StatusFailure && event.Status() != valueobject.StatusSuccess {
		return nil, nil
	}

	// 1. Здоровье ветки двигают только автоматические сборки
	info, err := uc.ci.GetBuildInfo(ctx, event.BuildID())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch build info: %w", err)
	}

	if info.TriggerType == "user" {
		uc.logger.Debug("User-triggered build, branch health unchanged", "build_id", event.BuildID())
		return nil, nil
	}

	// 2. Out-of-order защита: состояние двигает только событие о той сборке,
	// которая прямо сейчас является последней завершенной в конфигурации.
	// Вытесненное событие (и событие о сборке, которую CI еще не
	// проиндексировал) поглощается — следующее завершение все пересчитает.
	latest, err := uc.ci.GetLatestCompletedBuild(ctx, event.BuildTypeID(), event.Branch())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest completed build: %w", err)
	}

	if latest == nil || latest.ID != event.BuildID() {
		latestID := 0
		if latest != nil {
			latestID = latest.ID
		}
		uc.logger.Info("Event is not about the latest completed build, skipping",
			"build_id", event.BuildID(),
			"latest_build_id", latestID,
			"build_type_id", event.BuildTypeID(),
		)
		return nil, ErrStaleEvent
	}

	// 3. Открытая задача о поломке — внешний признак состояния Broken
	task, err := uc.review.FindOpenBrokenBuildTask(ctx, event.BuildTypeID())
	if err != nil {
		return nil, fmt.Errorf("failed to look up open broken-build task: %w", err)
	}

	if event.Status() == valueobject.StatusFailure {
		return uc.onFailure(ctx, event, info, task)
	}
	return uc.onSuccess(ctx, event, task)
}

func (uc *ReconcileBranchHealthUseCase) onFailure(
	ctx context.Context,
	event *entity.BuildEvent,
	info *port.BuildInfo,
	task *port.BrokenBuildTask,
) (*dto.HealthTransitionDTO, error) {
	if task != nil {
		// Уже Broken: задача открыта, не шумим повторно
		uc.logger.Debug("Build already known broken", "build_type_id", event.BuildTypeID(), "task_id", task.ID)
		return nil, nil
	}

	since := uc.now().Add(-uc.flakyWindow)
	failures, err := uc.ci.CountFailuresSince(ctx, event.BuildTypeID(), event.Branch(), since)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent failures: %w", err)
	}

	if failures >= silentFailureCount {
		uc.logger.Info("Repeated flaky failure, suppressing notification",
			"build_type_id", event.BuildTypeID(), "recent_failures", failures)
		return nil, nil
	}

	if failures == flakyFailureCount {
		message := fmt.Sprintf("Build '%s' appears to be flaky: %s",
			event.BuildName(), uc.ci.ConvertToGuestURL(event.BuildURL()))
		if err := uc.chat.PostMessage(ctx, uc.devChannel, message); err != nil {
			return nil, fmt.Errorf("failed to post flaky notification: %w", err)
		}
		return uc.transition(dto.TransitionFlaky, event, 0), nil
	}

	return uc.openBrokenTask(ctx, event, info)
}

// openBrokenTask — настоящая поломка: открываем задачу и зовем коммиттера
func (uc *ReconcileBranchHealthUseCase) openBrokenTask(
	ctx context.Context,
	event *entity.BuildEvent,
	info *port.BuildInfo,
) (*dto.HealthTransitionDTO, error) {
	commitNames := make([]string, 0, len(info.Commits))
	for _, hash := range info.Commits {
		commitNames = append(commitNames, uc.review.CommitName(hash))
	}

	description := fmt.Sprintf("[[ %s | %s ]] is broken on branch '%s'\n\nAssociated commits:\n",
		uc.ci.TypeBuildURL(event.BuildTypeID()), event.BuildName(), event.Branch())
	for _, name := range commitNames {
		description += name + "\n"
	}

	task, err := uc.review.CreateBrokenBuildTask(ctx,
		fmt.Sprintf("Build %s is broken.", event.BuildName()),
		description,
		brokenTaskPriority,
		event.BuildTypeID(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create broken-build task: %w", err)
	}

	// Коммиттер и дифф разрешаются best-effort: несвязанный или orphaned
	// коммит не должен срывать уведомление о поломке
	scheduled := info.TriggerType == "schedule"

	var revision *port.Revision
	var author *ResolvedAuthor
	if !scheduled && len(commitNames) > 0 {
		revision, err = uc.review.LatestRevisionForCommits(ctx, commitNames)
		if err != nil {
			uc.logger.Warn("Failed to resolve revision for commits", "error", err.Error())
			revision = nil
		}
		if revision != nil {
			author, err = uc.authors.Resolve(ctx, revision.AuthorPHID)
			if err != nil {
				uc.logger.Warn("Failed to resolve committer", "error", err.Error())
				author = nil
			}
		}
	}

	message := ""
	if author != nil {
		message += "Committer: " + uc.committerLine(author) + "\n"
	}
	message += fmt.Sprintf("Build '%s' appears to be broken: %s\n",
		event.BuildName(), uc.ci.ConvertToGuestURL(event.BuildURL()))
	message += "Task: " + uc.review.TaskURL(task.ID)
	if revision != nil {
		message += "\nDiff: " + uc.review.RevisionURL(revision.ID)
	}

	if err := uc.chat.PostMessage(ctx, uc.devChannel, message); err != nil {
		return nil, fmt.Errorf("failed to post broken-build notification: %w", err)
	}

	uc.logger.Info("Branch marked broken",
		"build_type_id", event.BuildTypeID(), "task_id", task.ID)
	return uc.transition(dto.TransitionBroken, event, task.ID), nil
}

func (uc *ReconcileBranchHealthUseCase) onSuccess(
	ctx context.Context,
	event *entity.BuildEvent,
	task *port.BrokenBuildTask,
) (*dto.HealthTransitionDTO, error) {
	if task == nil {
		// Healthy: отсутствие открытой задачи и есть здоровое состояние
		return nil, nil
	}

	if err := uc.review.CloseTask(ctx, task.ID, greenAgainMessage); err != nil {
		return nil, fmt.Errorf("failed to close broken-build task: %w", err)
	}

	// Flaky путь задачу не открывает, так что открытая задача означает
	// настоящую поломку: о починке сообщаем в чат
	if err := uc.chat.PostMessage(ctx, uc.devChannel, greenAgainMessage); err != nil {
		return nil, fmt.Errorf("failed to post green-again notification: %w", err)
	}

	uc.logger.Info("Branch healthy again",
		"build_type_id", event.BuildTypeID(), "task_id", task.ID)
	return uc.transition(dto.TransitionFixed, event, task.ID), nil
}

func (uc *ReconcileBranchHealthUseCase) committerLine(author *ResolvedAuthor) string {
	if author.HasChatIdentity() {
		return uc.chat.FormatMention(author.ChatUserID)
	}
	return fmt.Sprintf("%s (please set your slack username in your Phabricator profile: %s)",
		author.Username, author.ProfileEditURL)
}

func (uc *ReconcileBranchHealthUseCase) transition(kind string, event *entity.BuildEvent, taskID int) *dto.HealthTransitionDTO {
	return &dto.HealthTransitionDTO{
		Transition:  kind,
		BuildName:   event.BuildName(),
		BuildTypeID: event.BuildTypeID(),
		Branch:      event.Branch(),
		BuildURL:    event.BuildURL(),
		TaskID:      taskID,
		OccurredAt:  uc.now().UTC(),
	}
}
