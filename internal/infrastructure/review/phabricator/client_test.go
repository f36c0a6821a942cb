package phabricator

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

type conduitCall struct {
	method string
	params map[string]interface{}
}

// conduitStub отвечает заранее заготовленными result'ами по имени метода
// и записывает все вызовы
func newConduitStub(t *testing.T, results map[string]string) (*Client, *[]conduitCall) {
	t.Helper()

	calls := &[]conduitCall{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse conduit form: %v", err)
		}

		var params map[string]interface{}
		if err := json.Unmarshal([]byte(r.PostFormValue("params")), &params); err != nil {
			t.Fatalf("failed to decode conduit params: %v", err)
		}
		if _, ok := params["__conduit__"]; !ok {
			t.Error("conduit call without api token")
		}

		method := r.URL.Path[len("/api/"):]
		*calls = append(*calls, conduitCall{method: method, params: params})

		result, ok := results[method]
		if !ok {
			w.Write([]byte(`{"result": null, "error_code": "ERR-CONDUIT-CALL", "error_info": "unknown method"}`))
			return
		}
		w.Write([]byte(`{"result": ` + result + `, "error_code": null, "error_info": null}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:         server.URL,
		APIToken:        "api-token",
		CommitPrefix:    "rABC",
		ChatHandleField: "custom.abc:slack-username",
		Timeout:         5 * time.Second,
	}, logger.New("error"))

	return client, calls
}

func TestResolveDiff(t *testing.T) {
	client, calls := newConduitStub(t, map[string]string{
		"differential.diff.search":     `{"data": [{"id": 4242, "phid": "PHID-DIFF-1", "fields": {"revisionPHID": "PHID-DREV-1", "authorPHID": "PHID-USER-1"}}]}`,
		"differential.revision.search": `{"data": [{"id": 1234, "phid": "PHID-DREV-1", "fields": {"authorPHID": "PHID-USER-1", "title": "Fix the thing"}}]}`,
	})

	diff, err := client.ResolveDiff(context.Background(), 4242)
	if err != nil {
		t.Fatalf("ResolveDiff failed: %v", err)
	}

	if diff.ID != 4242 || diff.RevisionID != 1234 || diff.AuthorPHID != "PHID-USER-1" {
		t.Errorf("unexpected diff: %+v", diff)
	}
	if len(*calls) != 2 {
		t.Errorf("expected 2 conduit calls, got %d", len(*calls))
	}
}

func TestGetUserReadsChatHandleField(t *testing.T) {
	client, _ := newConduitStub(t, map[string]string{
		"user.search": `{"data": [{"id": 7, "phid": "PHID-USER-1", "fields": {"username": "alice", "custom.abc:slack-username": "alice_slack"}}]}`,
	})

	user, err := client.GetUser(context.Background(), "PHID-USER-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Username != "alice" || user.ChatHandle != "alice_slack" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestFindOpenBrokenBuildTaskNotFound(t *testing.T) {
	client, calls := newConduitStub(t, map[string]string{
		"maniphest.search": `{"data": []}`,
	})

	task, err := client.FindOpenBrokenBuildTask(context.Background(), "BitcoinABC_Master")
	if err != nil {
		t.Fatalf("FindOpenBrokenBuildTask failed: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil task, got %+v", task)
	}

	constraints := (*calls)[0].params["constraints"].(map[string]interface{})
	if constraints["query"] != "BitcoinABC_Master" {
		t.Errorf("unexpected search constraints: %v", constraints)
	}
}

func TestCloseTaskTransactions(t *testing.T) {
	client, calls := newConduitStub(t, map[string]string{
		"maniphest.edit": `{"object": {"id": 890, "phid": "PHID-TASK-890"}}`,
	})

	if err := client.CloseTask(context.Background(), 890, "Master is green again."); err != nil {
		t.Fatalf("CloseTask failed: %v", err)
	}

	params := (*calls)[0].params
	if params["objectIdentifier"] != "T890" {
		t.Errorf("unexpected object identifier: %v", params["objectIdentifier"])
	}

	transactions := params["transactions"].([]interface{})
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
	comment := transactions[0].(map[string]interface{})
	if comment["type"] != "comment" || comment["value"] != "Master is green again." {
		t.Errorf("unexpected comment transaction: %v", comment)
	}
	status := transactions[1].(map[string]interface{})
	if status["type"] != "status" || status["value"] != "resolved" {
		t.Errorf("unexpected status transaction: %v", status)
	}
}

func TestLatestRevisionForCommitsPicksNewest(t *testing.T) {
	client, _ := newConduitStub(t, map[string]string{
		"diffusion.commit.search":      `{"data": [{"id": 1, "phid": "PHID-CMIT-1", "fields": {}}]}`,
		"edge.search":                  `{"data": [{"destinationPHID": "PHID-DREV-1"}, {"destinationPHID": "PHID-DREV-2"}]}`,
		"differential.revision.search": `{"data": [{"id": 100, "phid": "PHID-DREV-1", "fields": {}}, {"id": 200, "phid": "PHID-DREV-2", "fields": {"title": "Newer"}}]}`,
	})

	revision, err := client.LatestRevisionForCommits(context.Background(), []string{"deadbeef"})
	if err != nil {
		t.Fatalf("LatestRevisionForCommits failed: %v", err)
	}
	if revision == nil || revision.ID != 200 {
		t.Fatalf("expected revision 200, got %+v", revision)
	}
}

func TestGetFileContentUnavailable(t *testing.T) {
	client, _ := newConduitStub(t, map[string]string{})

	_, err := client.GetFileContent(context.Background(), "contrib/teamcity/build-configurations.yml")
	if !errors.Is(err, port.ErrConfigUnavailable) {
		t.Fatalf("expected ErrConfigUnavailable, got %v", err)
	}
}

func TestConduitErrorSurfaced(t *testing.T) {
	client, _ := newConduitStub(t, map[string]string{})

	_, err := client.GetRevision(context.Background(), 1234)
	if err == nil {
		t.Fatal("expected conduit error")
	}
}

func TestURLBuilders(t *testing.T) {
	client := NewClient(ClientConfig{
		BaseURL:      "https://reviews.example.org",
		CommitPrefix: "rABC",
		Timeout:      time.Second,
	}, logger.New("error"))

	if got := client.RevisionURL(1234); got != "https://reviews.example.org/D1234" {
		t.Errorf("unexpected revision URL: %s", got)
	}
	if got := client.TaskURL(890); got != "https://reviews.example.org/T890" {
		t.Errorf("unexpected task URL: %s", got)
	}
	if got := client.ProfileEditURL("alice"); got != "https://reviews.example.org/people/editprofile/alice" {
		t.Errorf("unexpected profile edit URL: %s", got)
	}
	if got := client.CommitName("deadbeef"); got != "rABCdeadbeef" {
		t.Errorf("unexpected commit name: %s", got)
	}
}
