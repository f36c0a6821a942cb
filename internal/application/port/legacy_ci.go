package port

import "context"

// LegacyBranchStatus — состояние ветки в legacy CI системе
type LegacyBranchStatus struct {
	State    string
	BuildURL string
}

// LegacyCI определяет интерфейс устаревшей CI системы, чьи сборки
// все еще отображаются на status panel (Port).
// Реализация будет в Infrastructure слое (Travis API client)
type LegacyCI interface {
	// GetBranchStatus возвращает состояние последней сборки ветки
	GetBranchStatus(ctx context.Context, repo, branch string) (*LegacyBranchStatus, error)
}
