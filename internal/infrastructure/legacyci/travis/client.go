package travis

import (
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

// Client — клиент Travis API v3. Реализует port.LegacyCI.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

// NewClient создает новый клиент
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

// GetBranchStatus возвращает состояние последней сборки ветки
func (c *Client) GetBranchStatus(ctx context.Context, repo, branch string) (*port.LegacyBranchStatus, error) {
	path := fmt.Sprintf("/repo/%s/branch/%s", url.PathEscape(repo), url.PathEscape(branch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("travis: failed to build request: %w", err)
	}
	req.Header.Set("Travis-API-Version", "3")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("travis: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("travis: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("travis: failed to read response: %w", err)
	}

	var branchResp struct {
		LastBuild struct {
			ID    int    `json:"id"`
			State string `json:"state"`
		} `json:"last_build"`
	}
	if err := json.Unmarshal(body, &branchResp); err != nil {
		return nil, fmt.Errorf("travis: unexpected response body: %w", err)
	}

	return &port.LegacyBranchStatus{
		State:    branchResp.LastBuild.State,
		BuildURL: fmt.Sprintf("https://travis-ci.org/%s/builds/%d", repo, branchResp.LastBuild.ID),
	}, nil
}
