package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roadmap-automation/lh-manager-sub000/internal/metrics"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/tasks"
)

// Queue names the runner reports for a task.
const (
	queueScheduled = "scheduled"
	queueActive    = "active"
	queueHistory   = "history"
)

// noTaskFound is the runner's reply for an id it does not know.
const noTaskFound = "No task found"

// RunnerClient talks to the external task runner.
type RunnerClient struct {
	baseURL string
	client  *http.Client
	metrics *metrics.Metrics
}

// NewRunnerClient builds a client for the runner at baseURL. Metrics may be
// nil.
func NewRunnerClient(baseURL string, m *metrics.Metrics) *RunnerClient {
	return &RunnerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		metrics: m,
	}
}

func (c *RunnerClient) observe(start time.Time) {
	if c.metrics != nil {
		c.metrics.RunnerRoundTrip.Observe(time.Since(start).Seconds())
	}
}

func (c *RunnerClient) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	c.observe(start)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// SubmitTask posts a new task to the runner's queue.
func (c *RunnerClient) SubmitTask(ctx context.Context, task tasks.Task) error {
	return c.post(ctx, "/put", task)
}

// ResubmitTask reissues a task the runner has already seen.
func (c *RunnerClient) ResubmitTask(ctx context.Context, task tasks.Task) error {
	return c.post(ctx, "/resubmit", map[string]any{"task_id": task.ID, "task": task})
}

// CancelTask asks the runner to drop a task. drop_material tells it to
// discard any in-progress aspiration.
func (c *RunnerClient) CancelTask(ctx context.Context, taskID string, includeActiveQueue, dropMaterial bool) error {
	return c.post(ctx, "/cancel", map[string]any{
		"task_id":              taskID,
		"include_active_queue": includeActiveQueue,
		"drop_material":        dropMaterial,
	})
}

// TaskQueue reports which runner queue holds the task. Returns noTaskFound
// as the queue name for unknown ids.
func (c *RunnerClient) TaskQueue(ctx context.Context, taskID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_task_status/"+taskID, nil)
	if err != nil {
		return "", err
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	c.observe(start)
	if err != nil {
		return "", fmt.Errorf("GET task status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET task status: status %d", resp.StatusCode)
	}
	// The runner replies either {"queue": "..."} or a bare string for
	// unknown tasks.
	var reply struct {
		Queue string `json:"queue"`
	}
	if err := json.Unmarshal(body, &reply); err == nil && reply.Queue != "" {
		return reply.Queue, nil
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s, nil
	}
	if strings.Contains(string(body), noTaskFound) {
		return noTaskFound, nil
	}
	return "", fmt.Errorf("GET task status: unrecognized reply %q", body)
}

// SubtaskResults fetches the opaque result payload of one subtask.
func (c *RunnerClient) SubtaskResults(ctx context.Context, taskID, subtaskID string) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/get_subtask_results/%s/%s", c.baseURL, taskID, subtaskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	c.observe(start)
	if err != nil {
		return nil, fmt.Errorf("GET subtask results: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET subtask results: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
