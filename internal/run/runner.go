// Package run composes fetch, extraction, dedup, and delivery into one
// single-shot pipeline run.
package run

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"perpwatch/internal/config"
	"perpwatch/internal/extract"
	"perpwatch/internal/fetch"
	"perpwatch/internal/seen"
	"perpwatch/pkg/logx"
)

// ErrDeliveryFailed marks a run whose notification was not confirmed; the
// seen set is deliberately left unpersisted so the same records are retried
// on the next scheduled run.
var ErrDeliveryFailed = errors.New("delivery not confirmed; seen set not persisted")

type PageFetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

type PageRenderer interface {
	Render(ctx context.Context, url string) (fetch.RenderResult, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, batch []extract.Record) bool
}

// Runner owns one pipeline run: fetch -> extract -> filter -> notify ->
// persist. Data flows strictly forward; persistence happens only after the
// notifier confirmed delivery, so a killed or failed run leaves durable
// state untouched.
type Runner struct {
	cfg      config.Config
	log      logx.Logger
	fetcher  PageFetcher
	renderer PageRenderer // nil disables the render fallback
	store    seen.Store
	notifier Deliverer

	base   *url.URL
	filter extract.Filter
}

func New(cfg config.Config, log logx.Logger, f PageFetcher, r PageRenderer, st seen.Store, nt Deliverer) (*Runner, error) {
	base, err := url.Parse(cfg.Source.URL)
	if err != nil {
		return nil, fmt.Errorf("source url: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		cfg:      cfg,
		log:      log,
		fetcher:  f,
		renderer: r,
		store:    st,
		notifier: nt,
		base:     base,
		filter:   extract.Filter{Keyword: cfg.Filter.Keyword},
	}, nil
}

// Run executes one pass. It returns an error for fetch, delivery, or
// persist failures; zero extracted records and an empty new-record batch
// are both successful no-ops.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()

	if err := r.store.Load(ctx); err != nil {
		return fmt.Errorf("load seen set: %w", err)
	}

	body, err := r.fetcher.Get(ctx, r.cfg.Source.URL)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	records := r.extractStatic(body)
	if len(records) == 0 {
		records, err = r.fallback(ctx, body)
		if err != nil {
			return err
		}
	}
	if len(records) == 0 {
		r.log.Info("no records extracted", logx.Duration("took", time.Since(start)))
		return nil
	}

	batch := r.filterNew(records)
	if len(batch) == 0 {
		r.log.Info("no new records", logx.Int("extracted", len(records)), logx.Duration("took", time.Since(start)))
		return nil
	}

	if !r.notifier.Deliver(ctx, batch) {
		return ErrDeliveryFailed
	}

	for _, rec := range batch {
		r.store.Add(rec.ID)
	}
	if err := r.store.Persist(ctx); err != nil {
		return err
	}

	r.log.Info("run complete",
		logx.Int("extracted", len(records)),
		logx.Int("notified", len(batch)),
		logx.Duration("took", time.Since(start)))
	return nil
}

func (r *Runner) extractStatic(body string) []extract.Record {
	chain := extract.NewChain(r.log, extract.Static(r.filter)...)
	return chain.Extract(body, r.base)
}

// fallback runs the headless render after the static path found nothing.
// The raw page is dumped first so selectors can be fixed offline.
func (r *Runner) fallback(ctx context.Context, body string) ([]extract.Record, error) {
	r.dumpArtifact("debug_page.html", []byte(body))
	if r.renderer == nil {
		return nil, nil
	}

	r.log.Info("static extraction empty, rendering page")
	res, err := r.renderer.Render(ctx, r.cfg.Source.URL)
	if err != nil {
		return nil, fmt.Errorf("render fallback: %w", err)
	}

	chain := extract.NewChain(r.log, extract.Rendered(r.filter)...)
	records := chain.Extract(res.HTML, r.base)
	if len(records) == 0 {
		r.dumpArtifact("debug_rendered.html", []byte(res.HTML))
		if len(res.Screenshot) > 0 {
			r.dumpArtifact("debug_screenshot.png", res.Screenshot)
		}
	}
	return records, nil
}

// filterNew keeps unseen records in document order, capped at the batch
// maximum. The tail is dropped, not sampled: leftovers stay unseen and
// surface on the next run.
func (r *Runner) filterNew(records []extract.Record) []extract.Record {
	var batch []extract.Record
	inBatch := map[string]bool{}
	for _, rec := range records {
		if rec.ID == "" || inBatch[rec.ID] || r.store.Contains(rec.ID) {
			continue
		}
		inBatch[rec.ID] = true
		batch = append(batch, rec)
		if len(batch) >= r.cfg.Batch.Max {
			break
		}
	}
	return batch
}

// dumpArtifact writes a diagnostic file, best-effort. Artifacts are never
// consumed by the pipeline.
func (r *Runner) dumpArtifact(name string, data []byte) {
	dir := r.cfg.Debug.Dir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.log.Debug("artifact dir", logx.Err(err))
		return
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.log.Debug("artifact write", logx.String("path", path), logx.Err(err))
		return
	}
	r.log.Info("debug artifact written", logx.String("path", path))
}
