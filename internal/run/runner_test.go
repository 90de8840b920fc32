package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"perpwatch/internal/config"
	"perpwatch/internal/extract"
	"perpwatch/internal/fetch"
	"perpwatch/internal/seen"
	"perpwatch/pkg/logx"
)

type fakeFetcher struct {
	body string
	err  error
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (string, error) {
	return f.body, f.err
}

type fakeRenderer struct {
	res    fetch.RenderResult
	err    error
	called bool
}

func (r *fakeRenderer) Render(ctx context.Context, url string) (fetch.RenderResult, error) {
	r.called = true
	return r.res, r.err
}

type fakeNotifier struct {
	ok      bool
	batches [][]extract.Record
}

func (n *fakeNotifier) Deliver(ctx context.Context, batch []extract.Record) bool {
	n.batches = append(n.batches, batch)
	return n.ok
}

func testConfig(seenPath string) config.Config {
	return config.Config{
		Source: config.SourceConfig{URL: "https://hypurrscan.io/address/0x1"},
		Filter: config.FilterConfig{Keyword: "order"},
		Batch:  config.BatchConfig{Max: 10},
		Seen:   config.SeenConfig{Driver: "jsonfile", Path: seenPath},
	}
}

func openStore(t *testing.T, cfg config.Config) seen.Store {
	t.Helper()
	st, err := seen.Open(seen.Config{Driver: cfg.Seen.Driver, Path: cfg.Seen.Path}, logx.Nop())
	if err != nil {
		t.Fatalf("seen.Open: %v", err)
	}
	return st
}

func newRunner(t *testing.T, cfg config.Config, f PageFetcher, r PageRenderer, nt Deliverer) *Runner {
	t.Helper()
	runner, err := New(cfg, logx.Nop(), f, r, openStore(t, cfg), nt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return runner
}

// pageWith builds a transaction table with n qualifying rows, ids
// 0x%064d in document order.
func pageWith(n int) string {
	var rows strings.Builder
	for i := 0; i < n; i++ {
		hash := fmt.Sprintf("0x%064d", i)
		fmt.Fprintf(&rows,
			`<tr><td><a href="/tx/%s">%s</a></td><td>Open Long</td><td>%dm ago</td><td>-</td><td>-</td><td>1.5</td><td>ETH</td><td>3200</td></tr>`,
			hash, hash[:12], i+1)
	}
	return "<html><body><table><tbody>" + rows.String() + "</tbody></table></body></html>"
}

func TestRunNotifiesAndPersists(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "seen.json"))
	nt := &fakeNotifier{ok: true}
	runner := newRunner(t, cfg, &fakeFetcher{body: pageWith(3)}, nil, nt)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(nt.batches) != 1 || len(nt.batches[0]) != 3 {
		t.Fatalf("expected one batch of 3, got %+v", nt.batches)
	}

	st := openStore(t, cfg)
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, rec := range nt.batches[0] {
		if !st.Contains(rec.ID) {
			t.Fatalf("delivered id %s not persisted", rec.ID)
		}
	}
}

func TestBatchCapAndCarryOver(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "seen.json"))
	fetcher := &fakeFetcher{body: pageWith(15)}

	nt := &fakeNotifier{ok: true}
	runner := newRunner(t, cfg, fetcher, nil, nt)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(nt.batches[0]) != 10 {
		t.Fatalf("expected capped batch of 10, got %d", len(nt.batches[0]))
	}
	// Cap drops the tail, not a sample: the first 10 in document order.
	for i, rec := range nt.batches[0] {
		want := fmt.Sprintf("0x%064d", i)
		if rec.ID != want {
			t.Fatalf("batch[%d].ID = %s, want %s", i, rec.ID, want)
		}
	}

	// The remaining 5 are still "new" on the next run.
	nt2 := &fakeNotifier{ok: true}
	runner2 := newRunner(t, cfg, fetcher, nil, nt2)
	if err := runner2.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(nt2.batches) != 1 || len(nt2.batches[0]) != 5 {
		t.Fatalf("expected carry-over batch of 5, got %+v", nt2.batches)
	}
}

func TestSecondRunIsIdempotent(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "seen.json"))
	fetcher := &fakeFetcher{body: pageWith(2)}

	runner := newRunner(t, cfg, fetcher, nil, &fakeNotifier{ok: true})
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, err := os.ReadFile(cfg.Seen.Path)
	if err != nil {
		t.Fatalf("read seen file: %v", err)
	}

	nt2 := &fakeNotifier{ok: true}
	runner2 := newRunner(t, cfg, fetcher, nil, nt2)
	if err := runner2.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(nt2.batches) != 0 {
		t.Fatalf("second run must not notify, got %+v", nt2.batches)
	}
	after, err := os.ReadFile(cfg.Seen.Path)
	if err != nil {
		t.Fatalf("read seen file: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("seen file changed on a no-new run")
	}
}

func TestDeliveryFailureLeavesStoreUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.WriteFile(path, []byte(`["0xold"]`), 0o600); err != nil {
		t.Fatalf("seed seen file: %v", err)
	}
	cfg := testConfig(path)

	runner := newRunner(t, cfg, &fakeFetcher{body: pageWith(3)}, nil, &fakeNotifier{ok: false})
	err := runner.Run(context.Background())
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read seen file: %v", err)
	}
	if string(b) != `["0xold"]` {
		t.Fatalf("seen file mutated after failed delivery: %s", b)
	}
}

func TestFetchFailureAbortsRun(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "seen.json"))
	nt := &fakeNotifier{ok: true}
	runner := newRunner(t, cfg, &fakeFetcher{err: errors.New("status 403")}, nil, nt)

	if err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(nt.batches) != 0 {
		t.Fatal("must not notify after fetch failure")
	}
	if _, err := os.Stat(cfg.Seen.Path); !os.IsNotExist(err) {
		t.Fatal("seen file must not exist after failed run")
	}
}

func TestEmptyExtractionIsCleanNoop(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "seen.json"))
	nt := &fakeNotifier{ok: true}
	runner := newRunner(t, cfg, &fakeFetcher{body: "<html><body>maintenance</body></html>"}, nil, nt)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(nt.batches) != 0 {
		t.Fatal("no-record run must not notify")
	}
}

func TestRenderFallback(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(filepath.Join(dir, "seen.json"))
	cfg.Debug.Dir = filepath.Join(dir, "debug")

	renderer := &fakeRenderer{res: fetch.RenderResult{HTML: pageWith(1)}}
	nt := &fakeNotifier{ok: true}
	runner := newRunner(t, cfg, &fakeFetcher{body: "<html><body>js only</body></html>"}, renderer, nt)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !renderer.called {
		t.Fatal("render fallback not invoked on empty static extraction")
	}
	if len(nt.batches) != 1 || len(nt.batches[0]) != 1 {
		t.Fatalf("expected rendered records notified, got %+v", nt.batches)
	}
	// The raw page was dumped for selector maintenance.
	if _, err := os.Stat(filepath.Join(cfg.Debug.Dir, "debug_page.html")); err != nil {
		t.Fatalf("expected debug_page.html artifact: %v", err)
	}
}

func TestRenderFailureIsFetchFailure(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "seen.json"))
	renderer := &fakeRenderer{err: errors.New("waiting for selector: timeout")}
	nt := &fakeNotifier{ok: true}
	runner := newRunner(t, cfg, &fakeFetcher{body: "<html></html>"}, renderer, nt)

	if err := runner.Run(context.Background()); err == nil {
		t.Fatal("render timeout must fail the run")
	}
	if len(nt.batches) != 0 {
		t.Fatal("must not notify after render failure")
	}
}
