// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/talpslabs/talps/internal/models"
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client is a typed HTTP client for the talpsd API. Transport failures and
// 5xx responses are retried with exponential backoff; 4xx responses come
// back unchanged, those are answers, not outages. Deadlines belong to the
// caller's context: Shutdown in particular must be able to outwait any
// fixed timeout while the daemon drains.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		maxRetries: 4,
	}
}

// SubmitResponse is the body returned by a successful task submission.
type SubmitResponse struct {
	Message string        `json:"message"`
	ID      models.TaskID `json:"id"`
}

// SubmitTask registers a task and returns its assigned id.
func (c *Client) SubmitTask(ctx context.Context, spec models.TaskSpec) (models.TaskID, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", spec, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Tasks returns a snapshot of every live task.
func (c *Client) Tasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Task returns a snapshot of one live task. Finished tasks answer 404; look
// them up in History instead.
func (c *Client) Task(ctx context.Context, id models.TaskID) (models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", id), nil, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// History returns the journal of finished tasks.
func (c *Client) History(ctx context.Context) ([]models.TaskRecord, error) {
	var records []models.TaskRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/history", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Run starts task execution.
func (c *Client) Run(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/manager/run", nil, nil)
}

// Stop pauses task execution.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/manager/stop", nil, nil)
}

// Shutdown retires the manager. The call blocks until the daemon has
// joined its workers.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/manager/shutdown", nil, nil)
}

// Status returns a snapshot of the manager.
func (c *Client) Status(ctx context.Context) (models.ManagerState, error) {
	var state models.ManagerState
	if err := c.do(ctx, http.MethodGet, "/api/v1/manager/status", nil, &state); err != nil {
		return models.ManagerState{}, err
	}
	return state, nil
}

// Ping checks that the daemon is up.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(resp.Body)
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(msg)),
			}
			if resp.StatusCode >= 500 {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
