package travis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

func TestGetBranchStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/repo/bitcoin-abc%2Fbitcoin-abc/branch/master" {
			t.Errorf("unexpected path: %s", got)
		}
		if got := r.Header.Get("Travis-API-Version"); got != "3" {
			t.Errorf("unexpected api version header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"last_build": {"id": 777001, "state": "passed"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logger.New("error"))
	status, err := client.GetBranchStatus(context.Background(), "bitcoin-abc/bitcoin-abc", "master")
	if err != nil {
		t.Fatalf("GetBranchStatus failed: %v", err)
	}

	if status.State != "passed" {
		t.Errorf("expected state passed, got %s", status.State)
	}
	want := "https://travis-ci.org/bitcoin-abc/bitcoin-abc/builds/777001"
	if status.BuildURL != want {
		t.Errorf("expected build URL %s, got %s", want, status.BuildURL)
	}
}

func TestGetBranchStatusServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logger.New("error"))
	if _, err := client.GetBranchStatus(context.Background(), "bitcoin-abc/bitcoin-abc", "master"); err == nil {
		t.Fatal("expected error for server failure")
	}
}
