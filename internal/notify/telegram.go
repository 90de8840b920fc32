// Package notify delivers record batches to a Telegram chat.
package notify

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"perpwatch/internal/extract"
	"perpwatch/pkg/logx"
)

type Config struct {
	Token      string
	ChatID     int64
	RatePerSec int
	// SourceURL is the link fallback for records without one.
	SourceURL string

	// APIURL and Offline redirect/disable Telegram API access in tests.
	APIURL  string
	Offline bool
}

// Notifier sends one message per batch and reports delivery as a boolean.
// Delivery failures are logged, never propagated as errors, so the caller
// decides whether to persist the seen set.
type Notifier struct {
	cfg     Config
	log     logx.Logger
	bot     *tele.Bot
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Notifier, error) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: cfg.Offline,
		Client:  &http.Client{Timeout: 15 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &Notifier{
		cfg:     cfg,
		log:     log,
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}, nil
}

// Deliver sends the whole batch as a single message. True means the API
// confirmed the send; a 2xx transport status with an embedded failure
// indicator counts as failure (telebot surfaces the API's ok flag).
func (n *Notifier) Deliver(ctx context.Context, batch []extract.Record) bool {
	if len(batch) == 0 {
		return true
	}
	if err := n.limiter.Wait(ctx); err != nil {
		n.log.Warn("delivery aborted before send", logx.Err(err))
		return false
	}

	text := renderMessage(batch, n.cfg.SourceURL)
	_, err := n.bot.Send(tele.ChatID(n.cfg.ChatID), text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		n.log.Error("delivery failed",
			logx.Int("records", len(batch)),
			logx.Int64("chat_id", n.cfg.ChatID),
			logx.Err(err))
		return false
	}
	n.log.Info("batch delivered", logx.Int("records", len(batch)))
	return true
}
