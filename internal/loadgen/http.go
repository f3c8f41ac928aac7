package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
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
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// fanOut runs fn for every index in [0, n) on the given number of goroutines.
func fanOut(ctx context.Context, workers, n int, fn func(i int)) {
	if workers <= 0 {
		workers = 1
	}
	indices := make(chan int, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if ctx.Err() != nil {
					return
				}
				fn(i)
			}
		}()
	}

	go func() {
		defer close(indices)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case indices <- i:
			}
		}
	}()
	wg.Wait()
}

// bindPlayers registers every player in the configured scope as a primary
// game account.
func bindPlayers(ctx context.Context, cfg *Config, players []Player, stats *Stats) error {
	logger.Get().Info(ctx, "binding players", logger.Int("players", len(players)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/bindings"
	var created, failed int64

	fanOut(ctx, cfg.Workers, len(players), func(i int) {
		p := players[i]
		resp, err := client.Post(ctx, url, bindingRequest{
			Scope:       cfg.Scope,
			AccountID:   p.AccountID,
			ExternalUID: p.ExternalUID,
			Primary:     true,
		})
		if err != nil {
			atomic.AddInt64(&failed, 1)
			return
		}
		_, _ = readResponseBody(resp)
		if resp.StatusCode != StatusCreated {
			atomic.AddInt64(&failed, 1)
			return
		}
		atomic.AddInt64(&created, 1)
	})

	stats.BindingsCreated = int(created)
	stats.BindingsFailed = int(failed)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d bindings failed", failed, len(players))
	}
	logger.Get().Info(ctx, "binding completed", logger.Int("created", stats.BindingsCreated))
	return nil
}

// submitRuns submits runs pass by pass. Pass r carries every player's r-th
// run, and the next pass starts only after the service drained the queue, so
// the last run of each player is also the last one stored.
func submitRuns(ctx context.Context, cfg *Config, players []Player, stats *Stats) error {
	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/submissions"

	for pass := 0; pass < cfg.RunsPerPlayer; pass++ {
		pass := pass
		baseline, err := processedCount(ctx, client, cfg.BaseURL)
		if err != nil {
			return err
		}

		var accepted, throttled, failed, submitted int64
		var lastReport atomic.Int64
		fanOut(ctx, cfg.Workers, len(players), func(i int) {
			result, retries := submitSingleRun(ctx, client, url, players[i].Runs[pass])
			atomic.AddInt64(&submitted, 1)
			atomic.AddInt64(&throttled, int64(retries))
			switch result {
			case "success":
				atomic.AddInt64(&accepted, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}

			now := time.Now().UnixNano()
			if last := lastReport.Load(); cfg.Verbose && now-last >= int64(time.Second) && lastReport.CompareAndSwap(last, now) {
				logger.Get().Info(ctx, "submission progress",
					logger.Int("pass", pass+1),
					logger.Int64("submitted", atomic.LoadInt64(&submitted)),
					logger.Int("total", len(players)))
			}
		})

		stats.RunsSubmitted += int(submitted)
		stats.RunsAccepted += int(accepted)
		stats.RunsThrottled += int(throttled)
		stats.RunsFailed += int(failed)

		logger.Get().Info(ctx, "submission pass completed",
			logger.Int("pass", pass+1),
			logger.Int64("accepted", accepted),
			logger.Int64("throttled", throttled),
			logger.Int64("failed", failed))

		if failed > 0 {
			return fmt.Errorf("pass %d: %d submissions failed", pass+1, failed)
		}
		if err := waitForDrain(ctx, cfg, client, baseline+accepted); err != nil {
			return fmt.Errorf("pass %d: %w", pass+1, err)
		}
	}
	return nil
}

// submitSingleRun posts one run, backing off while the service reports a
// full queue. It returns the outcome and the number of throttled attempts.
func submitSingleRun(ctx context.Context, client *HTTPClient, url string, run model.Submission) (string, int) {
	throttled := 0
	for attempt := 0; attempt < MaxSubmitAttempts; attempt++ {
		resp, err := client.Post(ctx, url, run)
		if err != nil {
			return "failed", throttled
		}
		_, _ = readResponseBody(resp)

		switch resp.StatusCode {
		case StatusAccepted:
			return "success", throttled
		case StatusTooManyRequests:
			throttled++
			select {
			case <-ctx.Done():
				return "failed", throttled
			case <-time.After(ThrottleBackoff * time.Duration(attempt+1)):
			}
		default:
			return "failed", throttled
		}
	}
	return "failed", throttled
}

// processedCount reads the worker pool's processed counter from /stats.
func processedCount(ctx context.Context, client *HTTPClient, baseURL string) (int64, error) {
	stats, err := fetchStats(ctx, client, baseURL)
	if err != nil {
		return 0, err
	}
	return toInt64(stats["processed"]), nil
}

// waitForDrain polls /stats until the queue is empty and at least target
// submissions were processed.
func waitForDrain(ctx context.Context, cfg *Config, client *HTTPClient, target int64) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.DrainTimeout)
	defer cancel()

	ticker := time.NewTicker(DrainPollInterval)
	defer ticker.Stop()
	for {
		stats, err := fetchStats(ctx, client, cfg.BaseURL)
		if err == nil && toInt64(stats["queueLength"]) == 0 && toInt64(stats["processed"]) >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("queue did not drain: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func fetchStats(ctx context.Context, client *HTTPClient, baseURL string) (map[string]interface{}, error) {
	resp, err := client.Get(ctx, baseURL+"/stats")
	if err != nil {
		return nil, fmt.Errorf("stats request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("stats: HTTP %d", resp.StatusCode)
	}
	var stats map[string]interface{}
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}
	return stats, nil
}

// toInt64 converts a decoded JSON number.
func toInt64(v interface{}) int64 {
	if f, ok := v.(float64); ok {
		return int64(f)
	}
	return 0
}
