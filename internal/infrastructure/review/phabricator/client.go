package phabricator

import (
	"context"
	"encoding/base64"
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

// Ветка, из которой читаются конфигурационные файлы
const configBranch = "master"

// ClientConfig — настройки Conduit клиента
type ClientConfig struct {
	BaseURL         string
	APIToken        string
	CommitPrefix    string
	ChatHandleField string
	Timeout         time.Duration
}

// Client — клиент Phabricator Conduit API. Реализует port.ReviewTracker.
type Client struct {
	baseURL         string
	apiToken        string
	commitPrefix    string
	chatHandleField string
	client          *http.Client
	logger          *logger.Logger
}

// NewClient создает новый клиент
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:        cfg.APIToken,
		commitPrefix:    cfg.CommitPrefix,
		chatHandleField: cfg.ChatHandleField,
		client:          &http.Client{Timeout: cfg.Timeout},
		logger:          log,
	}
}

type conduitResponse struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode *string         `json:"error_code"`
	ErrorInfo string          `json:"error_info"`
}

type searchResponse struct {
	Data []searchObject `json:"data"`
}

type searchObject struct {
	ID     int                    `json:"id"`
	PHID   string                 `json:"phid"`
	Fields map[string]interface{} `json:"fields"`
}

type editResponse struct {
	Object struct {
		ID   int    `json:"id"`
		PHID string `json:"phid"`
	} `json:"object"`
}

// ResolveDiff возвращает диф по номеру вместе с его ревизией
func (c *Client) ResolveDiff(ctx context.Context, diffID int) (*port.Diff, error) {
	var diffs searchResponse
	err := c.call(ctx, "differential.diff.search", map[string]interface{}{
		"constraints": map[string]interface{}{"ids": []int{diffID}},
	}, &diffs)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to search diff %d: %w", diffID, err)
	}
	if len(diffs.Data) == 0 {
		return nil, fmt.Errorf("phabricator: diff %d not found", diffID)
	}

	diff := diffs.Data[0]
	revisionPHID, _ := diff.Fields["revisionPHID"].(string)
	authorPHID, _ := diff.Fields["authorPHID"].(string)

	var revisions searchResponse
	err = c.call(ctx, "differential.revision.search", map[string]interface{}{
		"constraints": map[string]interface{}{"phids": []string{revisionPHID}},
	}, &revisions)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to resolve revision for diff %d: %w", diffID, err)
	}
	if len(revisions.Data) == 0 {
		return nil, fmt.Errorf("phabricator: revision %s not found", revisionPHID)
	}

	return &port.Diff{
		ID:         diff.ID,
		PHID:       diff.PHID,
		RevisionID: revisions.Data[0].ID,
		AuthorPHID: authorPHID,
	}, nil
}

// GetRevision возвращает ревизию по номеру
func (c *Client) GetRevision(ctx context.Context, revisionID int) (*port.Revision, error) {
	var resp searchResponse
	err := c.call(ctx, "differential.revision.search", map[string]interface{}{
		"constraints": map[string]interface{}{"ids": []int{revisionID}},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to search revision D%d: %w", revisionID, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("phabricator: revision D%d not found", revisionID)
	}

	return revisionFromObject(resp.Data[0]), nil
}

// GetUser возвращает пользователя по PHID. Chat handle читается из
// настроенного custom-поля профиля и может быть пустым
func (c *Client) GetUser(ctx context.Context, userPHID string) (*port.User, error) {
	var resp searchResponse
	err := c.call(ctx, "user.search", map[string]interface{}{
		"constraints": map[string]interface{}{"phids": []string{userPHID}},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to search user %s: %w", userPHID, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("phabricator: user %s not found", userPHID)
	}

	obj := resp.Data[0]
	username, _ := obj.Fields["username"].(string)
	handle, _ := obj.Fields[c.chatHandleField].(string)

	return &port.User{
		PHID:       obj.PHID,
		Username:   username,
		ChatHandle: handle,
	}, nil
}

// LatestRevisionForCommits ищет ревизию, привязанную к одному из коммитов,
// через commit -> revision edges. Если связанных ревизий несколько,
// возвращается самая свежая
func (c *Client) LatestRevisionForCommits(ctx context.Context, commitNames []string) (*port.Revision, error) {
	if len(commitNames) == 0 {
		return nil, nil
	}

	var commits searchResponse
	err := c.call(ctx, "diffusion.commit.search", map[string]interface{}{
		"constraints": map[string]interface{}{"identifiers": commitNames},
	}, &commits)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to search commits: %w", err)
	}
	if len(commits.Data) == 0 {
		return nil, nil
	}

	commitPHIDs := make([]string, 0, len(commits.Data))
	for _, commit := range commits.Data {
		commitPHIDs = append(commitPHIDs, commit.PHID)
	}

	var edges struct {
		Data []struct {
			DestinationPHID string `json:"destinationPHID"`
		} `json:"data"`
	}
	err = c.call(ctx, "edge.search", map[string]interface{}{
		"sourcePHIDs": commitPHIDs,
		"types":       []string{"commit.revision"},
	}, &edges)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to search commit edges: %w", err)
	}
	if len(edges.Data) == 0 {
		return nil, nil
	}

	revisionPHIDs := make([]string, 0, len(edges.Data))
	for _, edge := range edges.Data {
		revisionPHIDs = append(revisionPHIDs, edge.DestinationPHID)
	}

	var revisions searchResponse
	err = c.call(ctx, "differential.revision.search", map[string]interface{}{
		"constraints": map[string]interface{}{"phids": revisionPHIDs},
	}, &revisions)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to search linked revisions: %w", err)
	}
	if len(revisions.Data) == 0 {
		return nil, nil
	}

	latest := revisions.Data[0]
	for _, obj := range revisions.Data[1:] {
		if obj.ID > latest.ID {
			latest = obj
		}
	}
	return revisionFromObject(latest), nil
}

// FindOpenBrokenBuildTask ищет открытую задачу о поломке конфигурации.
// Задачи находятся по fulltext поиску: описание задачи всегда содержит
// имя сломанной конфигурации
func (c *Client) FindOpenBrokenBuildTask(ctx context.Context, buildTypeID string) (*port.BrokenBuildTask, error) {
	var resp searchResponse
	err := c.call(ctx, "maniphest.search", map[string]interface{}{
		"constraints": map[string]interface{}{
			"query":    buildTypeID,
			"statuses": []string{"open"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to search broken build task: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}

	return &port.BrokenBuildTask{ID: resp.Data[0].ID, PHID: resp.Data[0].PHID}, nil
}

// CreateBrokenBuildTask создает задачу о поломке. Конфигурация остается
// находимой через fulltext, потому что описание содержит ее имя
func (c *Client) CreateBrokenBuildTask(ctx context.Context, title, description, priority, buildTypeID string) (*port.BrokenBuildTask, error) {
	var resp editResponse
	err := c.call(ctx, "maniphest.edit", map[string]interface{}{
		"transactions": []map[string]interface{}{
			{"type": "title", "value": title},
			{"type": "description", "value": description},
			{"type": "priority", "value": priority},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to create task for %s: %w", buildTypeID, err)
	}

	return &port.BrokenBuildTask{ID: resp.Object.ID, PHID: resp.Object.PHID}, nil
}

// CloseTask закрывает задачу с комментарием
func (c *Client) CloseTask(ctx context.Context, taskID int, comment string) error {
	err := c.call(ctx, "maniphest.edit", map[string]interface{}{
		"objectIdentifier": fmt.Sprintf("T%d", taskID),
		"transactions": []map[string]interface{}{
			{"type": "comment", "value": comment},
			{"type": "status", "value": "resolved"},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("phabricator: failed to close task T%d: %w", taskID, err)
	}
	return nil
}

// SearchBuildTargetArtifacts возвращает ключи артефактов build target
func (c *Client) SearchBuildTargetArtifacts(ctx context.Context, buildTargetPHID string) ([]string, error) {
	var resp searchResponse
	err := c.call(ctx, "harbormaster.artifact.search", map[string]interface{}{
		"constraints": map[string]interface{}{"buildTargetPHIDs": []string{buildTargetPHID}},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("phabricator: failed to search artifacts: %w", err)
	}

	keys := make([]string, 0, len(resp.Data))
	for _, obj := range resp.Data {
		if key, ok := obj.Fields["artifactKey"].(string); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// CreateBuildTargetArtifact привязывает внешнюю ссылку к build target
func (c *Client) CreateBuildTargetArtifact(ctx context.Context, buildTargetPHID, artifactKey, name, uri string) error {
	err := c.call(ctx, "harbormaster.createartifact", map[string]interface{}{
		"buildTargetPHID": buildTargetPHID,
		"artifactKey":     artifactKey,
		"artifactType":    "uri",
		"artifactData": map[string]interface{}{
			"uri":         uri,
			"name":        name,
			"ui.external": true,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("phabricator: failed to create artifact %s: %w", artifactKey, err)
	}
	return nil
}

// CommentOnRevision оставляет комментарий на ревизии
func (c *Client) CommentOnRevision(ctx context.Context, revisionID int, comment string) error {
	err := c.call(ctx, "differential.revision.edit", map[string]interface{}{
		"objectIdentifier": fmt.Sprintf("D%d", revisionID),
		"transactions": []map[string]interface{}{
			{"type": "comment", "value": comment},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("phabricator: failed to comment on D%d: %w", revisionID, err)
	}
	return nil
}

// SetPanelContent заменяет текст dashboard-панели целиком
func (c *Client) SetPanelContent(ctx context.Context, panelID int, content string) error {
	err := c.call(ctx, "dashboard.panel.edit", map[string]interface{}{
		"objectIdentifier": fmt.Sprintf("W%d", panelID),
		"transactions": []map[string]interface{}{
			{"type": "custom.text", "value": content},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("phabricator: failed to set panel W%d content: %w", panelID, err)
	}
	return nil
}

// GetFileContent возвращает содержимое файла из primary ветки репозитория.
// Любой сбой (репозиторий недоступен, файла нет, download не удался)
// сворачивается в ErrConfigUnavailable, чтобы вызывающий мог прервать
// обновление панели, не различая причины
func (c *Client) GetFileContent(ctx context.Context, path string) ([]byte, error) {
	var queryResult struct {
		FilePHID string `json:"filePHID"`
	}
	err := c.call(ctx, "diffusion.filecontentquery", map[string]interface{}{
		"repository": c.commitPrefix,
		"branch":     configBranch,
		"path":       path,
	}, &queryResult)
	if err != nil || queryResult.FilePHID == "" {
		c.logger.Warn("File content query failed", "path", path)
		return nil, fmt.Errorf("%w: %s", port.ErrConfigUnavailable, path)
	}

	var encoded string
	err = c.call(ctx, "file.download", map[string]interface{}{
		"phid": queryResult.FilePHID,
	}, &encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", port.ErrConfigUnavailable, path)
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed file download for %s", port.ErrConfigUnavailable, path)
	}
	return content, nil
}

// ProfileEditURL строит ссылку на редактирование профиля пользователя
func (c *Client) ProfileEditURL(username string) string {
	return fmt.Sprintf("%s/people/editprofile/%s", c.baseURL, username)
}

// RevisionURL строит ссылку на ревизию
func (c *Client) RevisionURL(revisionID int) string {
	return fmt.Sprintf("%s/D%d", c.baseURL, revisionID)
}

// TaskURL строит ссылку на задачу
func (c *Client) TaskURL(taskID int) string {
	return fmt.Sprintf("%s/T%d", c.baseURL, taskID)
}

// CommitName строит полное имя коммита из хеша
func (c *Client) CommitName(hash string) string {
	return c.commitPrefix + hash
}

func revisionFromObject(obj searchObject) *port.Revision {
	authorPHID, _ := obj.Fields["authorPHID"].(string)
	title, _ := obj.Fields["title"].(string)
	return &port.Revision{
		ID:         obj.ID,
		PHID:       obj.PHID,
		AuthorPHID: authorPHID,
		Title:      title,
	}
}

// call выполняет Conduit метод. Параметры передаются одним JSON blob,
// как это делает arcanist
func (c *Client) call(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	if params == nil {
		params = make(map[string]interface{})
	}
	params["__conduit__"] = map[string]string{"token": c.apiToken}

	blob, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}

	form := url.Values{}
	form.Set("params", string(blob))
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var conduit conduitResponse
	if err := json.Unmarshal(body, &conduit); err != nil {
		return fmt.Errorf("unexpected response body: %w", err)
	}
	if conduit.ErrorCode != nil {
		return fmt.Errorf("conduit error %s: %s", *conduit.ErrorCode, conduit.ErrorInfo)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(conduit.Result, out); err != nil {
		return fmt.Errorf("unexpected conduit result: %w", err)
	}
	return nil
}
