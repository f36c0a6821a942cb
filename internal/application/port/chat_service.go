package port

import "context"

// ChatService определяет интерфейс чат-сервиса для уведомлений (Port).
// Реализация будет в Infrastructure слое (Slack client)
type ChatService interface {
	// PostMessage отправляет сообщение в канал или личные сообщения.
	// target — имя канала или ID пользователя
	PostMessage(ctx context.Context, target, message string) error

	// LookupUserID возвращает ID пользователя чата по его handle.
	// Возвращает ErrNotFound, если пользователь не найден
	LookupUserID(ctx context.Context, handle string) (string, error)

	// FormatMention форматирует упоминание пользователя по его ID
	FormatMention(userID string) string
}
