package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

func TestPostMessage(t *testing.T) {
	var gotPayload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer chat-token" {
			t.Errorf("unexpected authorization header: %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "chat-token", 5*time.Second, logger.New("error"))
	if err := client.PostMessage(context.Background(), "dev", "Master is green again."); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}

	if gotPayload["channel"] != "dev" || gotPayload["text"] != "Master is green again." {
		t.Errorf("unexpected payload: %v", gotPayload)
	}
}

func TestPostMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "chat-token", 5*time.Second, logger.New("error"))
	if err := client.PostMessage(context.Background(), "nope", "hello"); err == nil {
		t.Fatal("expected error for failed postMessage")
	}
}

func TestLookupUserIDPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"ok": true, "members": [
				{"id": "U001", "name": "bob", "profile": {"display_name": "bobby"}}
			], "response_metadata": {"next_cursor": "page2"}}`))
			return
		}
		w.Write([]byte(`{"ok": true, "members": [
			{"id": "U002", "name": "alice.ivanova", "profile": {"display_name": "alice"}}
		], "response_metadata": {"next_cursor": ""}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "chat-token", 5*time.Second, logger.New("error"))

	id, err := client.LookupUserID(context.Background(), "alice")
	if err != nil {
		t.Fatalf("LookupUserID failed: %v", err)
	}
	if id != "U002" {
		t.Errorf("expected U002, got %s", id)
	}
}

func TestLookupUserIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": true, "members": [], "response_metadata": {"next_cursor": ""}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "chat-token", 5*time.Second, logger.New("error"))

	_, err := client.LookupUserID(context.Background(), "ghost")
	if !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFormatMention(t *testing.T) {
	client := NewClient("https://slack.example.org/api", "", time.Second, logger.New("error"))
	if got := client.FormatMention("U001"); got != "<@U001>" {
		t.Errorf("unexpected mention: %s", got)
	}
}
