package port

import "context"

// Diff — диф код-ревью, привязанный к сборке
type Diff struct {
	ID         int
	PHID       string
	RevisionID int
	AuthorPHID string
}

// Revision — ревизия код-ревью
type Revision struct {
	ID         int
	PHID       string
	AuthorPHID string
	Title      string
}

// User — пользователь review-трекера
type User struct {
	PHID       string
	Username   string
	ChatHandle string
}

// BrokenBuildTask — открытая задача о сломанной сборке
type BrokenBuildTask struct {
	ID   int
	PHID string
}

// ReviewTracker определяет интерфейс review/task трекера (Port).
// Реализация будет в Infrastructure слое (Phabricator Conduit client)
type ReviewTracker interface {
	// ResolveDiff возвращает диф по его номеру
	ResolveDiff(ctx context.Context, diffID int) (*Diff, error)

	// GetRevision возвращает ревизию по номеру
	GetRevision(ctx context.Context, revisionID int) (*Revision, error)

	// GetUser возвращает пользователя по PHID, включая chat handle
	// из настроенного поля профиля
	GetUser(ctx context.Context, userPHID string) (*User, error)

	// LatestRevisionForCommits ищет ревизию, связанную с одним из коммитов
	// (самую свежую, если их несколько). nil без ошибки, если связи нет
	LatestRevisionForCommits(ctx context.Context, commitNames []string) (*Revision, error)

	// FindOpenBrokenBuildTask ищет открытую задачу о поломке указанной
	// конфигурации. nil без ошибки, если такой задачи нет
	FindOpenBrokenBuildTask(ctx context.Context, buildTypeID string) (*BrokenBuildTask, error)

	// CreateBrokenBuildTask создает задачу о поломке с привязкой к конфигурации
	CreateBrokenBuildTask(ctx context.Context, title, description, priority, buildTypeID string) (*BrokenBuildTask, error)

	// CloseTask закрывает задачу с комментарием
	CloseTask(ctx context.Context, taskID int, comment string) error

	// SearchBuildTargetArtifacts возвращает ключи артефактов, уже
	// привязанных к build target
	SearchBuildTargetArtifacts(ctx context.Context, buildTargetPHID string) ([]string, error)

	// CreateBuildTargetArtifact привязывает uri-артефакт к build target
	CreateBuildTargetArtifact(ctx context.Context, buildTargetPHID, artifactKey, name, uri string) error

	// CommentOnRevision оставляет комментарий на ревизии
	CommentOnRevision(ctx context.Context, revisionID int, comment string) error

	// SetPanelContent заменяет содержимое dashboard-панели
	SetPanelContent(ctx context.Context, panelID int, content string) error

	// GetFileContent возвращает содержимое файла из репозитория.
	// Возвращает ErrConfigUnavailable, если файл недоступен
	GetFileContent(ctx context.Context, path string) ([]byte, error)

	// ProfileEditURL строит ссылку на редактирование профиля пользователя
	ProfileEditURL(username string) string

	// RevisionURL строит ссылку на ревизию
	RevisionURL(revisionID int) string

	// TaskURL строит ссылку на задачу
	TaskURL(taskID int) string

	// CommitName строит полное имя коммита из хеша ревизии
	CommitName(hash string) string
}
