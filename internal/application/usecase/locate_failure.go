package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/service"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Бюджет сниппета: столько строк лога сохраняется перед маркером падения
const snippetLineBudget = 16

// Имя сжатого лог-артефакта, который публикуют сборки
const buildLogArtifactName = "build.log.gz"

// LocateFailureUseCase определяет первопричину падения сборки:
// единственная build-level проблема со сниппетом лога, упорядоченный
// список упавших тестов или явное "подробности недоступны"
type LocateFailureUseCase struct {
	ci        port.CIServer
	extractor *service.LogSnippetExtractor
	logger    *logger.Logger
}

// NewLocateFailureUseCase создает новый use case
func NewLocateFailureUseCase(
	ci port.CIServer,
	extractor *service.LogSnippetExtractor,
	log *logger.Logger,
) *LocateFailureUseCase {
	return &LocateFailureUseCase{
		ci:        ci,
		extractor: extractor,
		logger:    log,
	}
}

// Execute не возвращает ошибку: любой сбой при получении данных деградирует
// до NoDetail, падение сборки все равно будет прокомментировано
func (uc *LocateFailureUseCase) Execute(ctx context.Context, buildID int) valueobject.FailureDetail {
	// 1. Build-level проблемы: первая записанная проблема — основной маркер
	problems, err := uc.ci.GetBuildProblems(ctx, buildID)
	if err != nil {
		uc.logger.Warn("Failed to fetch build problems", "build_id", buildID, "error", err.Error())
		return valueobject.NoDetail()
	}

	if len(problems) > 0 {
		return uc.problemDetail(ctx, buildID, problems[0])
	}

	// 2. Упавшие тесты: рендерятся списком ссылок, по одной на тест,
	// в порядке, в котором их вернул CI сервер
	tests, err := uc.ci.GetFailedTests(ctx, buildID)
	if err != nil {
		uc.logger.Warn("Failed to fetch failed tests", "build_id", buildID, "error", err.Error())
		return valueobject.NoDetail()
	}

	if len(tests) > 0 {
		failures := make([]valueobject.TestFailure, 0, len(tests))
		for _, test := range tests {
			failures = append(failures, valueobject.TestFailure{
				Name:   test.Name,
				LogURL: uc.ci.ConvertToGuestURL(uc.ci.TestLogURL(buildID, test.ID)),
			})
		}
		return valueobject.TestsDetail(failures)
	}

	// 3. Ни проблем, ни тестов: явный исход, не ошибка
	return valueobject.NoDetail()
}

func (uc *LocateFailureUseCase) problemDetail(ctx context.Context, buildID int, problem port.ProblemOccurrence) valueobject.FailureDetail {
	logText, err := uc.fetchLog(ctx, buildID)
	if err != nil {
		uc.logger.Warn("Failed to fetch build log", "build_id", buildID, "error", err.Error())
		return valueobject.NoDetail()
	}

	snippet := uc.extractor.Extract(logText, problem.Details, snippetLineBudget)

	return valueobject.ProblemDetail(valueobject.BuildProblem{
		Details: problem.Details,
		LogURL:  uc.ci.ConvertToGuestURL(uc.ci.BuildURL(buildID)),
		Snippet: snippet,
	})
}

// fetchLog берет сжатый лог-артефакт; если сборка его не опубликовала,
// откатывается на живой build log
func (uc *LocateFailureUseCase) fetchLog(ctx context.Context, buildID int) (string, error) {
	compressed, err := uc.ci.GetLogArtifact(ctx, buildID, buildLogArtifactName)
	if err == nil {
		return service.DecodeCompressedLog(bytes.NewReader(compressed))
	}
	if !errors.Is(err, port.ErrNotFound) {
		return "", fmt.Errorf("failed to fetch log artifact: %w", err)
	}

	return uc.ci.GetBuildLog(ctx, buildID)
}
