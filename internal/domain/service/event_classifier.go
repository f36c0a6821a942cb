package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
)

// Ветка диффа — pseudo-ref, который review-система создает для изолированной
// сборки изменения, например refs/tags/phabricator/diff/1234
var reviewDiffRefPattern = regexp.MustCompile(`(?:^|/)phabricator/diff/(\d+)$`)

// Classification — результат классификации события (вычисляется один раз)
type Classification struct {
	Kind valueobject.BuildKind

	// Номер диффа для Kind == KindReview
	DiffID int
}

// EventClassifier относит входящее событие к одной из логических категорий
// (Domain Service, stateless)
type EventClassifier struct {
	ignoreKeyword   string
	landBuildTypeID string
	primaryBranches map[string]struct{}
}

// NewEventClassifier создает новый classifier
func NewEventClassifier(ignoreKeyword, landBuildTypeID string, primaryBranches []string) *EventClassifier {
	primary := make(map[string]struct{}, len(primaryBranches))
	for _, branch := range primaryBranches {
		branch = strings.TrimSpace(branch)
		if branch == "" {
			continue
		}
		primary[branch] = struct{}{}
	}

	return &EventClassifier{
		ignoreKeyword:   ignoreKeyword,
		landBuildTypeID: landBuildTypeID,
		primaryBranches: primary,
	}
}

// Classify вычисляет категорию события. Порядок проверок фиксирован:
// ignore-маркер, unresolved placeholder, auto-land, primary, review.
func (c *EventClassifier) Classify(event *entity.BuildEvent) Classification {
	if c.ignoreKeyword != "" && strings.Contains(event.BuildTypeID(), c.ignoreKeyword) {
		return Classification{Kind: valueobject.KindIgnored}
	}

	if event.Branch() == entity.UnresolvedSentinel {
		return Classification{Kind: valueobject.KindInvalid}
	}

	if c.landBuildTypeID != "" && event.BuildTypeID() == c.landBuildTypeID {
		return Classification{Kind: valueobject.KindLand}
	}

	if _, ok := c.primaryBranches[event.Branch()]; ok {
		return Classification{Kind: valueobject.KindPrimary}
	}

	if m := reviewDiffRefPattern.FindStringSubmatch(event.Branch()); m != nil {
		diffID, err := strconv.Atoi(m[1])
		if err == nil {
			return Classification{Kind: valueobject.KindReview, DiffID: diffID}
		}
	}

	return Classification{Kind: valueobject.KindUnclassified}
}
