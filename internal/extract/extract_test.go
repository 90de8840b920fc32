package extract

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"perpwatch/pkg/logx"
)

var testHash = "0xabc123" + strings.Repeat("0", 58)

func baseURL(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("https://hypurrscan.io/address/0xc2a3")
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	return u
}

func tablePage(rows ...string) string {
	return "<html><body><table><thead><tr><th>Hash</th></tr></thead><tbody>" +
		strings.Join(rows, "") + "</tbody></table></body></html>"
}

func row(hash, kind string, rest ...string) string {
	cells := append([]string{
		fmt.Sprintf(`<td><a href="/tx/%s">%s…</a></td>`, hash, hash[:10]),
		"<td>" + kind + "</td>",
	}, rest...)
	for i, c := range rest {
		cells[i+2] = "<td>" + c + "</td>"
	}
	return "<tr>" + strings.Join(cells, "") + "</tr>"
}

func TestTableScanFullRow(t *testing.T) {
	page := tablePage(row(testHash, "Open Long", "2m ago", "-", "-", "1.5", "ETH", "3200"))

	recs := tableScan{filter: Filter{Keyword: "order"}}.Extract(page, baseURL(t))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.ID != testHash {
		t.Fatalf("ID = %q, want %q", rec.ID, testHash)
	}
	if rec.Kind != "Open Long" {
		t.Fatalf("Kind = %q, want Open Long", rec.Kind)
	}
	if rec.Age != "2m ago" || rec.Amount != "1.5" || rec.Token != "ETH" || rec.Price != "3200" {
		t.Fatalf("unexpected display fields: %+v", rec)
	}
	want := "https://hypurrscan.io/tx/" + testHash
	if rec.Link != want {
		t.Fatalf("Link = %q, want %q", rec.Link, want)
	}
}

func TestTableScanKeywordFilter(t *testing.T) {
	page := tablePage(
		row(testHash, "Close", "1m ago", "-", "-", "2", "BTC", "60000"),
	)
	recs := tableScan{filter: Filter{Keyword: "order"}}.Extract(page, baseURL(t))
	if len(recs) != 0 {
		t.Fatalf("expected Close row to be filtered out, got %d records", len(recs))
	}
}

func TestTableScanMissingColumnsBestEffort(t *testing.T) {
	page := tablePage(row(testHash, "Open Short"))
	recs := tableScan{filter: Filter{}}.Extract(page, baseURL(t))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Amount != "" || rec.Token != "" || rec.Price != "" {
		t.Fatalf("expected empty display fields, got %+v", rec)
	}
}

func TestTableScanKindFromRowText(t *testing.T) {
	// Empty kind column; the vocabulary match against row text should kick in.
	page := tablePage(fmt.Sprintf(
		`<tr><td><a href="/tx/%s">link</a></td><td></td><td>Increase position</td></tr>`, testHash))
	recs := tableScan{filter: Filter{Keyword: "increase"}}.Extract(page, baseURL(t))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if !strings.EqualFold(recs[0].Kind, "increase") {
		t.Fatalf("Kind = %q, want vocabulary match 'Increase'", recs[0].Kind)
	}
}

func TestExtractEmptyNeverFails(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"garbage", "<<<<not html]]]"},
		{"no rows", "<html><body><p>nothing here</p></body></html>"},
		{"rows without ids", tablePage("<tr><td>Open Long</td></tr>")},
	}
	chain := NewChain(logx.Nop(), Static(Filter{Keyword: "order"})...)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if recs := chain.Extract(tc.doc, baseURL(t)); len(recs) != 0 {
				t.Fatalf("expected no records, got %d", len(recs))
			}
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	page := tablePage(
		row(testHash, "Open Long", "2m", "-", "-", "1.5", "ETH", "3200"),
		row("0xdef456"+strings.Repeat("1", 58), "Open Short", "5m", "-", "-", "3", "SOL", "150"),
	)
	chain := NewChain(logx.Nop(), Static(Filter{Keyword: "order"})...)
	first := chain.Extract(page, baseURL(t))
	second := chain.Extract(page, baseURL(t))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestChainStopsAtFirstMatch(t *testing.T) {
	// Table rows qualify, so the block fallback content must be ignored.
	page := tablePage(row(testHash, "Open Long")) +
		`<ul><li>open order 0xffff000011112222</li></ul>`
	chain := NewChain(logx.Nop(), Static(Filter{Keyword: "order"})...)
	recs := chain.Extract(page, baseURL(t))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record from table strategy, got %d", len(recs))
	}
	if recs[0].ID != testHash {
		t.Fatalf("expected table record to win, got %q", recs[0].ID)
	}
}

func TestBlockScanFallback(t *testing.T) {
	doc := `<html><body>
		<div class="feed">
			<div class="entry">Open Long 0xaaaa111122223333 just now</div>
			<div class="entry">Close 0xbbbb111122223333</div>
		</div>
	</body></html>`
	recs := blockScan{filter: Filter{Keyword: "order"}}.Extract(doc, baseURL(t))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].ID != "0xaaaa111122223333" {
		t.Fatalf("ID = %q", recs[0].ID)
	}
	if recs[0].Link != "https://hypurrscan.io/address/0xc2a3" {
		t.Fatalf("expected link fallback to base url, got %q", recs[0].Link)
	}
}

func TestStateScan(t *testing.T) {
	doc := `<html><head><script id="__NEXT_DATA__" type="application/json">
	{"props":{"pageProps":{"txs":[
		{"hash":"0x1111222233334444","method":"Open Long","size":"1.5","coin":"ETH","px":"3200"},
		{"hash":"0x5555666677778888","method":"Close Long","size":"2"},
		{"note":"no id here","method":"Open Short"}
	]}}}
	</script></head><body></body></html>`

	recs := stateScan{filter: Filter{Keyword: "order"}}.Extract(doc, baseURL(t))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.ID != "0x1111222233334444" || rec.Kind != "Open Long" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Amount != "1.5" || rec.Token != "ETH" || rec.Price != "3200" {
		t.Fatalf("unexpected display fields: %+v", rec)
	}
}

func TestStateScanInitialStateAssignment(t *testing.T) {
	doc := `<script>window.__INITIAL_STATE__ = {"feed":{"items":[{"txHash":"0x9999aaaabbbbcccc","action":"open short"}]}};</script>`
	recs := stateScan{filter: Filter{Keyword: "order"}}.Extract(doc, baseURL(t))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].ID != "0x9999aaaabbbbcccc" {
		t.Fatalf("ID = %q", recs[0].ID)
	}
}

func TestStateScanDepthBound(t *testing.T) {
	// A record buried deeper than the walk bound must be ignored, not crash.
	deep := `{"hash":"0x1234abcd5678ef90","method":"Open Long"}`
	for i := 0; i < maxStateDepth+10; i++ {
		deep = `{"nested":` + deep + `}`
	}
	doc := `<script id="__NEXT_DATA__" type="application/json">` + deep + `</script>`
	recs := stateScan{filter: Filter{Keyword: "order"}}.Extract(doc, baseURL(t))
	if len(recs) != 0 {
		t.Fatalf("expected depth-bounded walk to find nothing, got %d", len(recs))
	}
}

func TestRenderedScan(t *testing.T) {
	doc := `<table><tbody>
		<tr><td><span>` + testHash[:14] + `…</span></td><td>Open Long</td><td>2m ago</td><td>-</td><td>-</td><td>1.5</td><td>ETH</td><td>3200</td></tr>
		<tr><td>0xdddd0000eeee1111</td><td>Close</td></tr>
	</tbody></table>`
	recs := renderedScan{filter: Filter{Keyword: "order"}}.Extract(doc, baseURL(t))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Kind != "Open Long" || rec.Amount != "1.5" || rec.Token != "ETH" || rec.Price != "3200" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestFilterMatch(t *testing.T) {
	cases := []struct {
		keyword string
		label   string
		want    bool
	}{
		{"order", "Open Long", true},
		{"order", "Limit Order", true},
		{"order", "Close", false},
		{"order", "", false},
		{"", "Open Short", true}, // empty keyword falls back to the default
		{"increase", "Increase Position", true},
		// An explicit keyword is authoritative: no "open" widening.
		{"increase", "Open Long", false},
		{"close", "Close", true},
		{"close", "Open Long", false},
	}
	for _, tc := range cases {
		f := Filter{Keyword: tc.keyword}
		if got := f.Match(tc.label); got != tc.want {
			t.Fatalf("Filter{%q}.Match(%q) = %v, want %v", tc.keyword, tc.label, got, tc.want)
		}
	}
}
