package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Environment variable names. The file (if any) is read first; environment
// values override it, so a bare crontab line with env vars needs no file at all.
const (
	EnvToken     = "TELEGRAM_BOT_TOKEN"
	EnvChatID    = "TELEGRAM_CHAT_ID"
	EnvTargetURL = "TARGET_URL"
	EnvKeyword   = "KEYWORD_FILTER"
	EnvBatchMax  = "BATCH_MAX"
	EnvSeenPath  = "SEEN_PATH"
	EnvSeenDrv   = "SEEN_DRIVER"
	EnvDebugDir  = "DEBUG_DIR"
	EnvRender    = "RENDER_FALLBACK"
	EnvSchedule  = "WATCH_SCHEDULE"
	EnvLogLevel  = "LOG_LEVEL"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Load builds the process configuration from an optional config file plus
// environment overrides, applies defaults, and validates the result.
// A missing file is only an error when the path was given explicitly.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		jb, err := toJSON(path, b)
		if err != nil {
			return Config{}, err
		}
		dec := json.NewDecoder(bytes.NewReader(jb))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		// reject trailing tokens (e.g. concatenated JSON)
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			if err == nil {
				return Config{}, errors.New("invalid config: trailing data")
			}
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv(EnvChatID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer chat id", EnvChatID, v)
		}
		cfg.Telegram.ChatID = id
	}
	if v := os.Getenv(EnvTargetURL); v != "" {
		cfg.Source.URL = v
	}
	if v := os.Getenv(EnvKeyword); v != "" {
		cfg.Filter.Keyword = v
	}
	if v := os.Getenv(EnvBatchMax); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: %q is not a positive integer", EnvBatchMax, v)
		}
		cfg.Batch.Max = n
	}
	if v := os.Getenv(EnvSeenPath); v != "" {
		cfg.Seen.Path = v
	}
	if v := os.Getenv(EnvSeenDrv); v != "" {
		cfg.Seen.Driver = v
	}
	if v := os.Getenv(EnvDebugDir); v != "" {
		cfg.Debug.Dir = v
	}
	if v := os.Getenv(EnvRender); v != "" {
		cfg.Render.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv(EnvSchedule); v != "" {
		cfg.Watch.Schedule = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.RatePerSec <= 0 {
		cfg.Telegram.RatePerSec = 1
	}
	if cfg.Source.UserAgent == "" {
		cfg.Source.UserAgent = defaultUserAgent
	}
	if cfg.Filter.Keyword == "" {
		cfg.Filter.Keyword = "order"
	}
	if cfg.Batch.Max <= 0 {
		cfg.Batch.Max = 10
	}
	if cfg.Fetch.Attempts <= 0 {
		cfg.Fetch.Attempts = 5
	}
	if cfg.Render.WaitSelector == "" {
		cfg.Render.WaitSelector = "table tbody tr"
	}
	if len(cfg.Render.ClickTabs) == 0 {
		cfg.Render.ClickTabs = []string{"Transactions", "Perps", "TRANSACTIONS", "PERPS"}
	}
	if cfg.Seen.Driver == "" {
		cfg.Seen.Driver = "jsonfile"
	}
	if cfg.Seen.Path == "" {
		cfg.Seen.Path = "./seen.json"
	}
}

// Validate reports every missing required key at once so a misconfigured
// deployment is fixable in a single pass. It runs before any network call.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Telegram.Token) == "" {
		missing = append(missing, EnvToken)
	}
	if c.Telegram.ChatID == 0 {
		missing = append(missing, EnvChatID)
	}
	if strings.TrimSpace(c.Source.URL) == "" {
		missing = append(missing, EnvTargetURL)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	u, err := url.Parse(c.Source.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("source url %q is not a valid http(s) URL", c.Source.URL)
	}

	if _, err := parseDurationField("fetch.retry_base", c.Fetch.RetryBase); err != nil {
		return err
	}
	if _, err := parseDurationField("fetch.timeout", c.Fetch.Timeout); err != nil {
		return err
	}
	if _, err := parseDurationField("render.timeout", c.Render.Timeout); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(c.Seen.Driver)) {
	case "jsonfile", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unknown seen driver %q (use jsonfile or sqlite)", c.Seen.Driver)
	}
	return nil
}
