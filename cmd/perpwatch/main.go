package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"perpwatch/internal/config"
	"perpwatch/internal/fetch"
	"perpwatch/internal/notify"
	"perpwatch/internal/run"
	"perpwatch/internal/seen"
	"perpwatch/internal/watch"
	"perpwatch/pkg/logx"
)

func main() {
	var cfgPath string
	var watchMode bool
	flag.StringVar(&cfgPath, "config", "", "path to config file (yaml or json); env vars override it")
	flag.BoolVar(&watchMode, "watch", false, "run on the configured schedule instead of once")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	log := logx.NewConsole(os.Stdout, cfg.Logging.Level)

	if watchMode {
		w := watch.New(cfg, cfgPath, log, func(ctx context.Context, cfg config.Config) error {
			return runOnce(ctx, cfg, log)
		})
		if err := w.Start(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		return
	}

	// Degraded completion (fetch or delivery failure) still exits zero:
	// unsent records stay unseen and carry over to the next scheduled run.
	if err := runOnce(ctx, cfg, log); err != nil {
		log.Error("run failed", logx.Err(err))
	}
}

func runOnce(ctx context.Context, cfg config.Config, log logx.Logger) error {
	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Source.UserAgent,
		Attempts:  cfg.Fetch.Attempts,
		RetryBase: cfg.RetryBase(),
		Timeout:   cfg.FetchTimeout(),
	}, log)

	var renderer run.PageRenderer
	if cfg.Render.Enabled {
		renderer = fetch.NewRenderer(fetch.RenderConfig{
			Timeout:      cfg.RenderTimeout(),
			WaitSelector: cfg.Render.WaitSelector,
			ClickTabs:    cfg.Render.ClickTabs,
		}, log)
	}

	store, err := seen.Open(seen.Config{Driver: cfg.Seen.Driver, Path: cfg.Seen.Path}, log)
	if err != nil {
		return err
	}
	defer store.Close()

	notifier, err := notify.New(notify.Config{
		Token:      cfg.Telegram.Token,
		ChatID:     cfg.Telegram.ChatID,
		RatePerSec: cfg.Telegram.RatePerSec,
		SourceURL:  cfg.Source.URL,
	}, log)
	if err != nil {
		return err
	}

	runner, err := run.New(cfg, log, fetcher, renderer, store, notifier)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}
