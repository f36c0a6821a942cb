package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// ResolvedAuthor — автор ревизии с разрешенной (или нет) chat-идентичностью
type ResolvedAuthor struct {
	Username       string
	ChatUserID     string
	ProfileEditURL string
}

// HasChatIdentity — нашелся ли автор в чат-системе
func (a ResolvedAuthor) HasChatIdentity() bool {
	return a.ChatUserID != ""
}

// AuthorResolver связывает автора ревизии с его учеткой в чат-системе
// через настроенное поле профиля
type AuthorResolver struct {
	review port.ReviewTracker
	chat   port.ChatService
	logger *logger.Logger
}

// NewAuthorResolver создает новый resolver
func NewAuthorResolver(review port.ReviewTracker, chat port.ChatService, log *logger.Logger) *AuthorResolver {
	return &AuthorResolver{
		review: review,
		chat:   chat,
		logger: log,
	}
}

// Resolve возвращает автора по его PHID. Отсутствие chat handle в профиле
// или незнакомый чат-системе handle — не ошибка: ChatUserID остается пустым,
// а ProfileEditURL указывает, где handle можно настроить.
func (r *AuthorResolver) Resolve(ctx context.Context, authorPHID string) (*ResolvedAuthor, error) {
	user, err := r.review.GetUser(ctx, authorPHID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve author %s: %w", authorPHID, err)
	}

	author := &ResolvedAuthor{
		Username:       user.Username,
		ProfileEditURL: r.review.ProfileEditURL(user.Username),
	}

	if user.ChatHandle == "" {
		return author, nil
	}

	chatUserID, err := r.chat.LookupUserID(ctx, user.ChatHandle)
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			r.logger.Warn("Chat user lookup failed", "handle", user.ChatHandle, "error", err.Error())
		}
		return author, nil
	}

	author.ChatUserID = chatUserID
	return author, nil
}
