// Package fetch retrieves the explorer page, statically over HTTP and, as a
// fallback, through a headless rendering engine.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"perpwatch/pkg/logx"
)

// maxBodyBytes caps how much page we read; explorer pages are large but
// anything beyond this is not a transaction table.
const maxBodyBytes = 10 << 20

type Config struct {
	UserAgent string
	// Attempts is the total request budget including retries.
	Attempts int
	// RetryBase is doubled per attempt, with jitter.
	RetryBase time.Duration
	// Timeout bounds a single request.
	Timeout time.Duration
}

type Fetcher struct {
	cfg    Config
	log    logx.Logger
	client *http.Client
}

func New(cfg Config, log logx.Logger) *Fetcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		cfg:    cfg,
		log:    log,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Get fetches the page body. Transient failures (429, 5xx, network errors)
// are retried with exponential backoff within the attempt budget; any other
// non-2xx status is terminal immediately.
func (f *Fetcher) Get(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.Attempts; attempt++ {
		body, retryable, err := f.once(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		f.log.Debug("fetch attempt failed",
			logx.Int("attempt", attempt),
			logx.Int("max", f.cfg.Attempts),
			logx.Err(err))

		if attempt >= f.cfg.Attempts {
			break
		}
		t := time.NewTimer(retryDelay(f.cfg.RetryBase, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("fetch %s: retries exhausted: %w", url, lastErr)
}

func (f *Fetcher) once(ctx context.Context, url string) (body string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("fetch %s: %w", url, err)
	}
	// Explorer sites tend to reject unidentified clients.
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return "", true, fmt.Errorf("fetch %s: read body: %w", url, err)
		}
		return string(b), false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", true, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	default:
		return "", false, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
}

// retryDelay returns base * 2^(attempt-1) with 0.7..1.3 jitter, capped.
func retryDelay(base time.Duration, attempt int) time.Duration {
	const maxDelay = 30 * time.Second
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			d = maxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
