package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"grandline/internal/model"
)

const (
	defaultTimeout = 30 * time.Second

	// batchConcurrency caps in-flight requests during a batch fetch to
	// respect the API's implicit rate limits.
	batchConcurrency = 5

	userAgent = "grandline/1.0"
)

// SourceError reports a failed request against the episode API: either
// a non-2xx HTTP status (Status set) or a network-level failure (Err
// set).
type SourceError struct {
	Op     string
	Status int
	Err    error
}

func (e *SourceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: episode API returned HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Client talks to the episode API. The embedded http.Client is reused
// across requests and safe for concurrent use; call Close when done.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates an episode API client with a fixed per-request
// deadline.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// Close releases the client's pooled connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, op, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &SourceError{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &SourceError{Op: op, Err: err}
	}
	return resp, nil
}

// FetchAll retrieves the full episode collection. Items that fail
// validation are logged and skipped; the call itself only fails when
// the whole request or response is broken.
func (c *Client) FetchAll(ctx context.Context) ([]model.SourceEpisode, error) {
	const op = "fetch all episodes"
	url := fmt.Sprintf("%s/episodes/en", c.baseURL)

	resp, err := c.get(ctx, op, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SourceError{Op: op, Status: resp.StatusCode}
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &SourceError{Op: op, Err: fmt.Errorf("failed to decode episode list: %w", err)}
	}

	episodes := make([]model.SourceEpisode, 0, len(items))
	for _, item := range items {
		ep, err := model.ParseSourceEpisode(item)
		if err != nil {
			c.logger.Warn("skipping malformed episode", "id", rawID(item), "error", err)
			continue
		}
		episodes = append(episodes, ep)
	}

	c.logger.Info("fetched episodes", "received", len(items), "valid", len(episodes))
	return episodes, nil
}

// FetchOne retrieves a single episode by id. A 404 means the episode
// does not exist and yields (nil, nil). A 2xx response whose body is
// null, not an object, or not JSON at all is treated the same way; only
// transport failures, other HTTP errors, and validation failures of a
// well-formed object surface as errors.
func (c *Client) FetchOne(ctx context.Context, id int) (*model.SourceEpisode, error) {
	op := fmt.Sprintf("fetch episode %d", id)
	url := fmt.Sprintf("%s/episodes/en/%d", c.baseURL, id)

	resp, err := c.get(ctx, op, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("episode not found", "id", id)
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SourceError{Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceError{Op: op, Err: err}
	}

	var probe any
	if err := json.Unmarshal(body, &probe); err != nil {
		c.logger.Warn("episode response is not valid JSON, treating as absent", "id", id)
		return nil, nil
	}
	if probe == nil {
		c.logger.Debug("episode response is null, treating as absent", "id", id)
		return nil, nil
	}
	if _, ok := probe.(map[string]any); !ok {
		c.logger.Warn("episode response is not an object, treating as absent", "id", id)
		return nil, nil
	}

	ep, err := model.ParseSourceEpisode(body)
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// FetchBatch retrieves multiple episodes concurrently, at most
// batchConcurrency requests in flight. Individual failures and absent
// episodes are dropped, so the result may be shorter than ids and is in
// completion order. It only errors when ctx is cancelled.
func (c *Client) FetchBatch(ctx context.Context, ids []int) ([]model.SourceEpisode, error) {
	sem := semaphore.NewWeighted(batchConcurrency)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		episodes = make([]model.SourceEpisode, 0, len(ids))
	)

	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return episodes, err
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			defer sem.Release(1)

			ep, err := c.FetchOne(ctx, id)
			if err != nil {
				c.logger.Warn("failed to fetch episode", "id", id, "error", err)
				return
			}
			if ep == nil {
				return
			}
			mu.Lock()
			episodes = append(episodes, *ep)
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	c.logger.Info("batch fetch complete", "requested", len(ids), "fetched", len(episodes))
	return episodes, nil
}

// HealthCheck probes the API with a lightweight single-episode request.
// A 404 still proves the API is answering, so it counts as healthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	url := fmt.Sprintf("%s/episodes/en/1", c.baseURL)

	resp, err := c.get(ctx, "health check", url)
	if err != nil {
		c.logger.Error("episode API health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	healthy := (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusNotFound
	if !healthy {
		c.logger.Warn("episode API health check failed", "status", resp.StatusCode)
	}
	return healthy
}

// rawID pulls the id out of an unparseable record for log context.
func rawID(raw json.RawMessage) any {
	var probe struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.ID == nil {
		return "unknown"
	}
	return probe.ID
}
