package config

// Config is the immutable process configuration.
//
// It is assembled once at startup from an optional config file plus
// environment overrides, validated, and passed by value into components.
// All durations in the file are Go duration strings (e.g. "500ms", "45s").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Source   SourceConfig   `json:"source"`
	Filter   FilterConfig   `json:"filter"`
	Batch    BatchConfig    `json:"batch"`
	Fetch    FetchConfig    `json:"fetch"`
	Render   RenderConfig   `json:"render"`
	Seen     SeenConfig     `json:"seen"`
	Debug    DebugConfig    `json:"debug"`
	Watch    WatchConfig    `json:"watch"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
	// RatePerSec bounds outgoing sendMessage calls. Defaults to 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type SourceConfig struct {
	URL string `json:"url"`
	// UserAgent identifies the HTTP client; explorer sites tend to block
	// blank or default identities.
	UserAgent string `json:"user_agent,omitempty"`
}

type FilterConfig struct {
	// Keyword is matched case-insensitively as a substring against a
	// record's action label. Default "order" (with "open" always accepted).
	Keyword string `json:"keyword,omitempty"`
}

type BatchConfig struct {
	// Max caps how many new records go into one notification. Default 10.
	Max int `json:"max,omitempty"`
}

type FetchConfig struct {
	// Attempts is the total request budget including retries. Default 5.
	Attempts int `json:"attempts,omitempty"`
	// RetryBase is the base backoff delay, doubled per attempt.
	RetryBase string `json:"retry_base,omitempty"`
	// Timeout bounds a single HTTP request.
	Timeout string `json:"timeout,omitempty"`
}

// RenderConfig controls the headless-render fallback. It only runs when the
// static fetch yields zero extractable records, never speculatively.
type RenderConfig struct {
	Enabled bool `json:"enabled"`
	// Timeout bounds the whole render (navigation + wait). Default 45s.
	Timeout string `json:"timeout,omitempty"`
	// WaitSelector is the content-readiness selector. Default "table tbody tr".
	WaitSelector string `json:"wait_selector,omitempty"`
	// ClickTabs are tab labels tried once, best-effort, before reading the DOM.
	ClickTabs []string `json:"click_tabs,omitempty"`
}

// SeenConfig controls the durable seen-set.
//
// Driver values:
//   - "jsonfile": JSON array of ids, whole-file replace (default)
//   - "sqlite": SQLite database file
type SeenConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

type DebugConfig struct {
	// Dir is where raw-page and screenshot artifacts are written when
	// extraction comes up empty. Empty disables artifacts.
	Dir string `json:"dir,omitempty"`
}

type WatchConfig struct {
	// Schedule is a cron expression ("*/5 * * * *"), an interval ("10m"),
	// or HH:MM. Empty means single-shot only.
	Schedule string `json:"schedule,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`
}
