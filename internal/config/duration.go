package config

import (
	"fmt"
	"strings"
	"time"
)

func parseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func durationOrDefault(raw string, def time.Duration) time.Duration {
	d, err := parseDurationField("", raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// RetryBase returns the fetch backoff base delay.
func (c Config) RetryBase() time.Duration {
	return durationOrDefault(c.Fetch.RetryBase, 500*time.Millisecond)
}

// FetchTimeout bounds a single HTTP request.
func (c Config) FetchTimeout() time.Duration {
	return durationOrDefault(c.Fetch.Timeout, 30*time.Second)
}

// RenderTimeout bounds the headless-render fallback end to end.
func (c Config) RenderTimeout() time.Duration {
	return durationOrDefault(c.Render.Timeout, 45*time.Second)
}
