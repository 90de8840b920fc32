package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// stateScan digs records out of client-side state embedded in the page.
// Rendering frameworks often ship the full dataset pre-serialized instead
// of in markup; extracting it here avoids a headless-render round trip.
type stateScan struct {
	filter Filter
}

func (stateScan) Name() string { return "state" }

// maxStateDepth bounds the recursive walk. Embedded state size is
// publisher-controlled, so the descent must not be unbounded.
const maxStateDepth = 64

var (
	reNextData = regexp.MustCompile(`(?s)<script[^>]*id="__NEXT_DATA__"[^>]*>(.*?)</script>`)
	reNuxtData = regexp.MustCompile(`(?s)<script[^>]*id="__NUXT_DATA__"[^>]*>(.*?)</script>`)

	// Assignment-style state blobs; the object itself is carved out by a
	// balanced-brace scan, not by regex.
	stateMarkers = []string{"window.__INITIAL_STATE__", "window.__NUXT__", "window.__PRELOADED_STATE__"}
)

var (
	idKeys     = []string{"hash", "txHash", "tx_hash", "txhash", "transactionHash", "transaction_hash", "id"}
	actionKeys = []string{"method", "action", "side", "direction", "kind", "type"}
	amountKeys = []string{"amount", "size", "sz", "qty"}
	tokenKeys  = []string{"token", "coin", "asset", "symbol"}
	priceKeys  = []string{"price", "px", "limitPx"}
	ageKeys    = []string{"age", "time"}
)

func (s stateScan) Extract(doc string, base *url.URL) []Record {
	var out []Record
	seen := map[string]bool{}

	for _, blob := range stateBlobs(doc) {
		var v any
		if err := json.Unmarshal([]byte(blob), &v); err != nil {
			continue
		}
		s.walk(v, base, 0, seen, &out)
	}
	return out
}

// stateBlobs returns every candidate JSON blob embedded in the page.
func stateBlobs(doc string) []string {
	var blobs []string
	for _, m := range reNextData.FindAllStringSubmatch(doc, -1) {
		blobs = append(blobs, strings.TrimSpace(m[1]))
	}
	for _, m := range reNuxtData.FindAllStringSubmatch(doc, -1) {
		blobs = append(blobs, strings.TrimSpace(m[1]))
	}
	for _, marker := range stateMarkers {
		idx := strings.Index(doc, marker)
		if idx < 0 {
			continue
		}
		if b := balancedObject(doc, idx+len(marker)); b != "" {
			blobs = append(blobs, b)
		}
	}
	return blobs
}

// balancedObject carves the first {...} object at or after from, honoring
// string literals and escapes. Returns "" when no balanced object closes.
func balancedObject(s string, from int) string {
	start := strings.IndexByte(s[from:], '{')
	if start < 0 {
		return ""
	}
	start += from

	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// walk descends depth-first through the decoded state. Any mapping exposing
// an identifier-like plus an action-like field is a candidate record.
func (s stateScan) walk(v any, base *url.URL, depth int, seen map[string]bool, out *[]Record) {
	if depth > maxStateDepth {
		return
	}
	switch x := v.(type) {
	case map[string]any:
		if rec, ok := s.candidate(x, base); ok && !seen[rec.ID] {
			seen[rec.ID] = true
			*out = append(*out, rec)
		}
		// Sorted keys keep output stable across runs on identical content.
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.walk(x[k], base, depth+1, seen, out)
		}
	case []any:
		for _, e := range x {
			s.walk(e, base, depth+1, seen, out)
		}
	}
}

func (s stateScan) candidate(m map[string]any, base *url.URL) (Record, bool) {
	id := ""
	for _, k := range idKeys {
		if raw, ok := m[k]; ok {
			if str, ok := raw.(string); ok {
				if h := idFromText(str); h != "" {
					id = h
					break
				}
			}
		}
	}
	if id == "" {
		return Record{}, false
	}

	kind := ""
	for _, k := range actionKeys {
		if str := stringField(m, k); str != "" {
			kind = str
			break
		}
	}
	if !s.filter.Match(kind) {
		return Record{}, false
	}

	return Record{
		ID:     id,
		Kind:   kind,
		Age:    firstField(m, ageKeys),
		Amount: firstField(m, amountKeys),
		Token:  firstField(m, tokenKeys),
		Price:  firstField(m, priceKeys),
		Link:   resolveLink(base, ""),
	}, true
}

func firstField(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
