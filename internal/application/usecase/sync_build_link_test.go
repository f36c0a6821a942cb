package usecase

import (
	"context"
	"testing"

	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

func TestSyncBuildLink_CreatesWhenMissing(t *testing.T) {
	ci := &mockCIServer{}
	review := newMockReviewTracker()

	uc := NewSyncBuildLinkUseCase(ci, review, logger.New("error"))
	if err := uc.Execute(context.Background(), "PHID-HMBT-target", "build-name", 123456); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(review.createdArtifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(review.createdArtifacts))
	}
	artifact := review.createdArtifacts[0]
	if artifact.key != "build-name-PHID-HMBT-target" {
		t.Fatalf("unexpected artifact key: %q", artifact.key)
	}
	if artifact.name != "build-name" {
		t.Fatalf("unexpected artifact name: %q", artifact.name)
	}
	if artifact.uri != "https://ci.example.org/viewLog.html?buildId=123456&guest=1" {
		t.Fatalf("unexpected artifact uri: %q", artifact.uri)
	}
}

func TestSyncBuildLink_Idempotent(t *testing.T) {
	ci := &mockCIServer{}
	review := newMockReviewTracker()
	review.artifacts = []string{"build-name-PHID-HMBT-target"}

	uc := NewSyncBuildLinkUseCase(ci, review, logger.New("error"))
	if err := uc.Execute(context.Background(), "PHID-HMBT-target", "build-name", 123456); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := uc.Execute(context.Background(), "PHID-HMBT-target", "build-name", 123456); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(review.createdArtifacts) != 0 {
		t.Fatalf("existing key must suppress creation, got %d creations", len(review.createdArtifacts))
	}
}

func TestSyncBuildLink_LegacyKeyDoesNotBlock(t *testing.T) {
	ci := &mockCIServer{}
	review := newMockReviewTracker()
	review.artifacts = []string{"123456", "other-build-PHID-HMBT-target"}

	uc := NewSyncBuildLinkUseCase(ci, review, logger.New("error"))
	if err := uc.Execute(context.Background(), "PHID-HMBT-target", "build-name", 123456); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(review.createdArtifacts) != 1 {
		t.Fatalf("mismatched keys are treated as absent, expected re-creation")
	}
}
