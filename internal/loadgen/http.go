package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HTTP status code constants.
const (
	statusOK       = 200
	statusAccepted = 202
)

const pollInterval = 250 * time.Millisecond

// HTTPClient wraps http.Client and records per-request latency.
type HTTPClient struct {
	client *http.Client
	lat    *latencies
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
		lat:    &latencies{},
	}
}

// Get performs a GET request and records its latency.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	c.lat.add(time.Since(start))
	return resp, err
}

// Post performs a POST request with a JSON body and records its latency.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	c.lat.add(time.Since(start))
	return resp, err
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// decodeResponse reads the body and decodes it into v, expecting the
// given status code.
func decodeResponse(resp *http.Response, wantStatus int, v interface{}) error {
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// submitImport enqueues the fixture file and returns the job id.
func submitImport(ctx context.Context, client *HTTPClient, baseURL, path string) (string, error) {
	resp, err := client.Post(ctx, baseURL+"/api/v1/imports", map[string]string{"path": path})
	if err != nil {
		return "", fmt.Errorf("import submission failed: %w", err)
	}
	var ack jobAck
	if err := decodeResponse(resp, statusAccepted, &ack); err != nil {
		return "", fmt.Errorf("import submission rejected: %w", err)
	}
	return ack.JobID, nil
}

// pollImport polls the job until it reaches a terminal state.
func pollImport(ctx context.Context, client *HTTPClient, baseURL, jobID string) (jobStatus, error) {
	url := baseURL + "/api/v1/imports/" + jobID
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return jobStatus{}, fmt.Errorf("import polling cancelled: %w", ctx.Err())
		case <-ticker.C:
			resp, err := client.Get(ctx, url)
			if err != nil {
				return jobStatus{}, fmt.Errorf("status request failed: %w", err)
			}
			var status jobStatus
			if err := decodeResponse(resp, statusOK, &status); err != nil {
				return jobStatus{}, err
			}
			if status.terminal() {
				return status, nil
			}
		}
	}
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, client *HTTPClient, config *Config) ([]Entry, error) {
	url := fmt.Sprintf("%s/api/v1/leaderboard?limit=%d", config.BaseURL, config.TopN)
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("leaderboard request failed: %w", err)
	}
	var leaderboard []Entry
	if err := decodeResponse(resp, statusOK, &leaderboard); err != nil {
		return nil, err
	}
	return leaderboard, nil
}

// checkServiceHealth verifies the service answers its liveness probe.
func checkServiceHealth(ctx context.Context, client *HTTPClient, baseURL string) error {
	resp, err := client.Get(ctx, baseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}
	if resp.StatusCode != statusOK {
		return fmt.Errorf("service health check failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// latencies collects request durations for the percentile report.
type latencies struct {
	mu      sync.Mutex
	samples []time.Duration
}

func (l *latencies) add(d time.Duration) {
	l.mu.Lock()
	l.samples = append(l.samples, d)
	l.mu.Unlock()
}

func (l *latencies) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}

// percentile returns the p-th percentile (0 < p <= 100) of the
// collected samples, or zero when nothing was recorded.
func (l *latencies) percentile(p float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(l.samples))
	copy(sorted, l.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted))*p/100) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
