package port

import (
	"context"
	"time"
)

// BuildInfo — развернутое описание сборки с CI сервера
type BuildInfo struct {
	ID          int
	BuildTypeID string
	Status      string
	StatusText  string
	Properties  map[string]string
	Commits     []string
	TriggerType string
}

// BuildSummary — краткое описание сборки из истории конфигурации
type BuildSummary struct {
	ID         int
	Status     string
	StatusText string
}

// ProblemOccurrence — проблема сборки (ошибка компиляции, таймаут и т.п.)
type ProblemOccurrence struct {
	Type    string
	Details string
}

// TestOccurrence — упавший тест внутри сборки
type TestOccurrence struct {
	ID   string
	Name string
}

// AssociatedBuild — имя и проект конфигурации из файла конфигураций
type AssociatedBuild struct {
	BuildTypeID string
	BuildName   string
	ProjectID   string
	ProjectName string
}

// CIServer определяет интерфейс CI сервера (Port).
// Реализация будет в Infrastructure слое (TeamCity REST client)
type CIServer interface {
	// GetBuildInfo возвращает развернутую информацию о сборке
	GetBuildInfo(ctx context.Context, buildID int) (*BuildInfo, error)

	// GetBuildProblems возвращает список проблем сборки
	GetBuildProblems(ctx context.Context, buildID int) ([]ProblemOccurrence, error)

	// GetFailedTests возвращает список упавших тестов сборки
	GetFailedTests(ctx context.Context, buildID int) ([]TestOccurrence, error)

	// GetBuildLog возвращает полный текст лога сборки
	GetBuildLog(ctx context.Context, buildID int) (string, error)

	// GetLogArtifact возвращает сжатый лог-артефакт сборки.
	// Возвращает ErrNotFound, если артефакт не был опубликован
	GetLogArtifact(ctx context.Context, buildID int, name string) ([]byte, error)

	// GetLatestCompletedBuild возвращает последнюю завершенную сборку
	// конфигурации на ветке. nil без ошибки, если истории нет
	GetLatestCompletedBuild(ctx context.Context, buildTypeID, branch string) (*BuildSummary, error)

	// CountFailuresSince считает число неуспешных сборок конфигурации
	// на ветке начиная с указанного момента
	CountFailuresSince(ctx context.Context, buildTypeID, branch string, since time.Time) (int, error)

	// AssociateConfigurationNames возвращает отображение логического имени
	// сборки на ее конфигурацию в CI. Состав может меняться между
	// вызовами, поэтому не кешируется
	AssociateConfigurationNames(ctx context.Context) (map[string]AssociatedBuild, error)

	// GetCoverageSummary возвращает текстовую сводку покрытия из артефактов сборки
	GetCoverageSummary(ctx context.Context, buildID int) (string, error)

	// BuildURL строит ссылку на страницу сборки
	BuildURL(buildID int) string

	// TypeBuildURL строит ссылку на последнюю сборку конфигурации
	TypeBuildURL(buildTypeID string) string

	// TestLogURL строит ссылку на лог конкретного упавшего теста
	TestLogURL(buildID int, testID string) string

	// ConvertToGuestURL добавляет к ссылке гостевой доступ
	ConvertToGuestURL(rawURL string) string
}
