package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"perpwatch/pkg/logx"
)

// RenderConfig controls the headless-render fallback.
type RenderConfig struct {
	// Timeout bounds navigation plus content wait, end to end.
	Timeout time.Duration
	// WaitSelector must become visible before the DOM is read.
	WaitSelector string
	// ClickTabs are tab labels clicked once each, best-effort, to surface
	// data hidden behind an inactive tab.
	ClickTabs []string
}

// RenderResult is the fully rendered document plus a full-page screenshot
// for selector maintenance.
type RenderResult struct {
	HTML       string
	Screenshot []byte
}

// Renderer loads the page in a real rendering engine and waits for dynamic
// content. It is strictly a fallback for pages that ship their data via
// scripts; the orchestrator only invokes it after the static path found
// nothing.
type Renderer struct {
	cfg RenderConfig
	log logx.Logger
}

func NewRenderer(cfg RenderConfig, log logx.Logger) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = "table tbody tr"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Renderer{cfg: cfg, log: log}
}

func (r *Renderer) Render(ctx context.Context, url string) (RenderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(url)); err != nil {
		return RenderResult{}, fmt.Errorf("render %s: navigate: %w", url, err)
	}

	// Data may sit behind an inactive tab. Clicks are best-effort: a
	// missing tab must not fail the render.
	for _, label := range r.cfg.ClickTabs {
		r.clickTab(browserCtx, label)
	}

	if err := chromedp.Run(browserCtx,
		chromedp.WaitVisible(r.cfg.WaitSelector, chromedp.ByQuery),
	); err != nil {
		return RenderResult{}, fmt.Errorf("render %s: waiting for %q: %w", url, r.cfg.WaitSelector, err)
	}

	var res RenderResult
	if err := chromedp.Run(browserCtx,
		chromedp.OuterHTML("html", &res.HTML, chromedp.ByQuery),
	); err != nil {
		return RenderResult{}, fmt.Errorf("render %s: read dom: %w", url, err)
	}
	// Screenshot is diagnostic only; a failure here is not a render failure.
	if err := chromedp.Run(browserCtx, chromedp.FullScreenshot(&res.Screenshot, 80)); err != nil {
		r.log.Debug("screenshot failed", logx.Err(err))
		res.Screenshot = nil
	}
	return res, nil
}

func (r *Renderer) clickTab(ctx context.Context, label string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	sel := fmt.Sprintf(`//*[normalize-space(text())=%q]`, label)
	if err := chromedp.Run(cctx, chromedp.Click(sel, chromedp.BySearch)); err != nil {
		r.log.Debug("tab click skipped", logx.String("tab", label), logx.Err(err))
		return
	}
	r.log.Debug("tab clicked", logx.String("tab", label))
}
