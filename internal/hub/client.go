package hub

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

	"github.com/agentuity/go-common/logger"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to the hub's admin API: agent registration, identity lookup
// and config-change notification. The admin key is sent as a bearer token.
type Client struct {
	baseURL  string
	adminKey string
	client   *http.Client
	logger   logger.Logger
}

// APIError carries the failing request context for hub calls.
type APIError struct {
	URL    string
	Method string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func New(baseURL, adminKey string, log logger.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		adminKey: adminKey,
		client:   &http.Client{Timeout: defaultRequestTimeout},
		logger:   log,
	}
}

// RegisterRequest is the hub registration payload. config_path may carry a
// %s placeholder the hub substitutes with the agent name.
type RegisterRequest struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name,omitempty"`
	Description  string `json:"description,omitempty"`
	Type         string `json:"type"`
	ConfigSource string `json:"config_source,omitempty"`
	ConfigPath   string `json:"config_path,omitempty"`
	ConfigBranch string `json:"config_branch,omitempty"`
}

// RegistrationResponse includes the minted API key. The hub stores only a
// hash; this response is the single time the key is visible.
type RegistrationResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	APIKey       string `json:"api_key"`
	ConfigSource string `json:"config_source,omitempty"`
	ConfigPath   string `json:"config_path,omitempty"`
	ConfigBranch string `json:"config_branch,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// Agent is the hub's identity record as exposed to admin reads.
type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayName  string `json:"display_name,omitempty"`
	Description  string `json:"description,omitempty"`
	Type         string `json:"type"`
	ConfigSource string `json:"config_source,omitempty"`
	ConfigPath   string `json:"config_path,omitempty"`
	ConfigBranch string `json:"config_branch,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegistrationResponse, error) {
	var resp RegistrationResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/agents/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAgent(ctx context.Context, name string) (*Agent, error) {
	var resp Agent
	path := "/api/v1/agents/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports whether the hub is reachable and serving.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

type configChangeNotification struct {
	ConfigSource string   `json:"config_source"`
	Agents       []string `json:"agents,omitempty"`
}

// NotifyConfigChange tells the hub a source has new commits so it can
// invalidate cached resolutions for that source. Called from CI after a
// push to a config repository.
func (c *Client) NotifyConfigChange(ctx context.Context, configSource string, agents []string) error {
	payload := configChangeNotification{ConfigSource: configSource, Agents: agents}
	return c.do(ctx, http.MethodPost, "/api/v1/webhooks/config-change", payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, response any) error {
	requestURL := c.baseURL + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminKey)
	}

	c.logger.Trace("hub request: %s %s", method, requestURL)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("hub request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read hub response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			URL:    requestURL,
			Method: method,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}

	if response != nil {
		if err := json.Unmarshal(data, response); err != nil {
			return fmt.Errorf("failed to decode hub response: %w", err)
		}
	}
	return nil
}
