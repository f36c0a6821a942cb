package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Properties сборки, из которых берется отображаемое имя для комментария
const (
	displayNameProperty = "env.ABC_BUILD_NAME"
	osNameProperty      = "env.OS_NAME"
)

// CommentReviewFailureUseCase оставляет на ревизии комментарий о падении
// сборки диффа. Тело комментария детерминированно зависит от исхода
// Failure Locator'а: сниппет, список тестов или голая констатация.
type CommentReviewFailureUseCase struct {
	ci      port.CIServer
	review  port.ReviewTracker
	locator *LocateFailureUseCase
	logger  *logger.Logger
}

// NewCommentReviewFailureUseCase создает новый use case
func NewCommentReviewFailureUseCase(
	ci port.CIServer,
	review port.ReviewTracker,
	locator *LocateFailureUseCase,
	log *logger.Logger,
) *CommentReviewFailureUseCase {
	return &CommentReviewFailureUseCase{
		ci:      ci,
		review:  review,
		locator: locator,
		logger:  log,
	}
}

// Execute комментирует падение сборки диффа diffID
func (uc *CommentReviewFailureUseCase) Execute(ctx context.Context, event *entity.BuildEvent, diffID int) error {
	if event.Status() != valueobject.StatusFailure {
		return nil
	}

	diff, err := uc.review.ResolveDiff(ctx, diffID)
	if err != nil {
		return fmt.Errorf("failed to resolve diff %d: %w", diffID, err)
	}

	detail := uc.locator.Execute(ctx, event.BuildID())
	body := uc.renderComment(ctx, event, detail)

	if err := uc.review.CommentOnRevision(ctx, diff.RevisionID, body); err != nil {
		return fmt.Errorf("failed to comment on revision D%d: %w", diff.RevisionID, err)
	}

	uc.logger.Info("Review failure comment posted",
		"revision_id", diff.RevisionID, "build_id", event.BuildID(), "detail_kind", int(detail.Kind()))
	return nil
}

func (uc *CommentReviewFailureUseCase) renderComment(ctx context.Context, event *entity.BuildEvent, detail valueobject.FailureDetail) string {
	// При build-level проблеме заголовок ведет сразу на лог упавшей
	// сборки, а не на страницу из события
	linkURL := uc.ci.ConvertToGuestURL(event.BuildURL())
	if detail.Kind() == valueobject.DetailBuildProblem && detail.Problem().LogURL != "" {
		linkURL = detail.Problem().LogURL
	}

	body := fmt.Sprintf("(IMPORTANT) Build [[%s | %s]] failed.",
		linkURL, uc.displayName(ctx, event))

	switch detail.Kind() {
	case valueobject.DetailBuildProblem:
		body += "\n\nSnippet of first build failure:\n```lines=16,COUNTEREXAMPLE\n" +
			detail.Problem().Snippet + "\n```"
	case valueobject.DetailTestFailures:
		body += "\n\nEach failure log is accessible here:\n"
		for _, test := range detail.Tests() {
			body += fmt.Sprintf("[[%s | %s]]\n", test.LogURL, test.Name)
		}
	}

	return body
}

// displayName предпочитает имя, заданное окружением сборки, затем имя с
// уточнением ОС, затем голое имя сборки. Недоступность build info не
// срывает комментарий.
func (uc *CommentReviewFailureUseCase) displayName(ctx context.Context, event *entity.BuildEvent) string {
	info, err := uc.ci.GetBuildInfo(ctx, event.BuildID())
	if err != nil {
		uc.logger.Warn("Failed to fetch build info for display name", "build_id", event.BuildID(), "error", err.Error())
		return event.BuildName()
	}

	if name := info.Properties[displayNameProperty]; name != "" {
		return name
	}
	if osName := info.Properties[osNameProperty]; osName != "" {
		return fmt.Sprintf("%s (%s)", event.BuildName(), osName)
	}
	return event.BuildName()
}
