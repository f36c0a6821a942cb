package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// SyncBuildLinkUseCase следит за тем, чтобы на build target review-системы
// была ровно одна uri-ссылка на сборку. Один target могут делить несколько
// сборок, поэтому ключ включает имя сборки.
type SyncBuildLinkUseCase struct {
	ci     port.CIServer
	review port.ReviewTracker
	logger *logger.Logger
}

// NewSyncBuildLinkUseCase создает новый use case
func NewSyncBuildLinkUseCase(ci port.CIServer, review port.ReviewTracker, log *logger.Logger) *SyncBuildLinkUseCase {
	return &SyncBuildLinkUseCase{
		ci:     ci,
		review: review,
		logger: log,
	}
}

// Execute идемпотентен: безопасно вызывать на каждом завершении каждой
// сборки. Ключ с другим содержимым для того же имени не блокирует
// создание — legacy ключи считаются отсутствующими.
func (uc *SyncBuildLinkUseCase) Execute(ctx context.Context, buildTargetPHID, buildName string, buildID int) error {
	expectedKey := buildName + "-" + buildTargetPHID

	existing, err := uc.review.SearchBuildTargetArtifacts(ctx, buildTargetPHID)
	if err != nil {
		return fmt.Errorf("failed to search build target artifacts: %w", err)
	}

	for _, key := range existing {
		if key == expectedKey {
			uc.logger.Debug("Build link already attached", "artifact_key", expectedKey)
			return nil
		}
	}

	uri := uc.ci.ConvertToGuestURL(uc.ci.BuildURL(buildID))
	if err := uc.review.CreateBuildTargetArtifact(ctx, buildTargetPHID, expectedKey, buildName, uri); err != nil {
		return fmt.Errorf("failed to create build target artifact: %w", err)
	}

	uc.logger.Debug("Build link attached", "artifact_key", expectedKey, "uri", uri)
	return nil
}
