package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Client — клиент Slack Web API. Реализует port.ChatService.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logger.Logger
}

// NewClient создает новый клиент
func NewClient(baseURL, token string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// PostMessage отправляет сообщение в канал или личные сообщения.
// target — имя канала или user ID
func (c *Client) PostMessage(ctx context.Context, target, message string) error {
	payload, err := json.Marshal(map[string]string{
		"channel": target,
		"text":    message,
	})
	if err != nil {
		return fmt.Errorf("slack: failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: request failed: %w", err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := decodeResponse(resp, &api); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("slack: chat.postMessage to %s failed: %s", target, api.Error)
	}

	c.logger.Debug("Chat message posted", "target", target)
	return nil
}

// LookupUserID возвращает ID пользователя по его handle.
// Возвращает port.ErrNotFound если handle никому не принадлежит
func (c *Client) LookupUserID(ctx context.Context, handle string) (string, error) {
	cursor := ""
	for {
		page, next, err := c.listUsers(ctx, cursor)
		if err != nil {
			return "", err
		}

		for _, member := range page {
			if member.Name == handle || member.Profile.DisplayName == handle {
				return member.ID, nil
			}
		}

		if next == "" {
			return "", fmt.Errorf("%w: chat user %s", port.ErrNotFound, handle)
		}
		cursor = next
	}
}

// FormatMention форматирует упоминание пользователя по его ID
func (c *Client) FormatMention(userID string) string {
	return "<@" + userID + ">"
}

type member struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Profile struct {
		DisplayName string `json:"display_name"`
	} `json:"profile"`
}

func (c *Client) listUsers(ctx context.Context, cursor string) ([]member, string, error) {
	query := url.Values{}
	query.Set("limit", "200")
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users.list?"+query.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("slack: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("slack: request failed: %w", err)
	}
	defer resp.Body.Close()

	var page struct {
		apiResponse
		Members          []member `json:"members"`
		ResponseMetadata struct {
			NextCursor string `json:"next_cursor"`
		} `json:"response_metadata"`
	}
	if err := decodeResponse(resp, &page); err != nil {
		return nil, "", fmt.Errorf("slack: %w", err)
	}
	if !page.OK {
		return nil, "", fmt.Errorf("slack: users.list failed: %s", page.Error)
	}

	return page.Members, page.ResponseMetadata.NextCursor, nil
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unexpected response body: %w", err)
	}
	return nil
}
