package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// renderedScan is a blunt row tokenizer for headless-rendered DOM content.
// Rendered markup can be too mangled for the structured scans (virtualized
// rows, style-only wrappers), so this strategy strips tags per <tr> blob
// and applies the same hash/keyword heuristics on the remaining text.
type renderedScan struct {
	filter Filter
}

func (renderedScan) Name() string { return "rendered" }

var (
	reRow  = regexp.MustCompile(`(?s)<tr[^>]*>.*?</tr>`)
	reCell = regexp.MustCompile(`(?s)<t[dh][^>]*>(.*?)</t[dh]>`)
	reTag  = regexp.MustCompile(`<[^>]+>`)
)

func (r renderedScan) Extract(doc string, base *url.URL) []Record {
	var out []Record
	seen := map[string]bool{}

	for _, row := range reRow.FindAllString(doc, -1) {
		text := collapse(reTag.ReplaceAllString(row, " "))

		id := idFromText(text)
		if id == "" || seen[id] {
			continue
		}
		// Cell values by position when the row still carries real cells.
		var cells []string
		for _, m := range reCell.FindAllStringSubmatch(row, -1) {
			cells = append(cells, collapse(reTag.ReplaceAllString(m[1], " ")))
		}

		kind := cellAt(cells, colKind)
		if kind == "" {
			kind = labelFromText(text)
		}
		if !r.filter.Match(kind) {
			continue
		}

		seen[id] = true
		out = append(out, Record{
			ID:     id,
			Kind:   kind,
			Age:    cellAt(cells, colAge),
			Amount: cellAt(cells, colAmount),
			Token:  cellAt(cells, colToken),
			Price:  cellAt(cells, colPrice),
			Link:   resolveLink(base, ""),
		})
	}
	return out
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
