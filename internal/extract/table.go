package extract

import (
	"net/url"

	"golang.org/x/net/html"
)

// Column offsets observed on the explorer's transaction table. Absent
// columns yield empty strings; that is best-effort policy, not failure.
const (
	colKind   = 1
	colAge    = 2
	colAmount = 5
	colToken  = 6
	colPrice  = 7
)

// tableScan reads the primary data table's body rows. It is the first and
// most precise strategy: per-row link, full-hash identifier, positional
// display columns.
type tableScan struct {
	filter Filter
}

func (tableScan) Name() string { return "table" }

func (t tableScan) Extract(doc string, base *url.URL) []Record {
	root := parseDoc(doc)
	if root == nil {
		return nil
	}

	var rows []*html.Node
	for _, tbody := range elements(root, "tbody") {
		rows = append(rows, elements(tbody, "tr")...)
	}
	if len(rows) == 0 {
		rows = elements(root, "tr")
	}

	var out []Record
	for _, tr := range rows {
		if rec, ok := t.row(tr, base); ok {
			out = append(out, rec)
		}
	}
	return out
}

// row parses one table row. Any malformed row is skipped, never fatal.
func (t tableScan) row(tr *html.Node, base *url.URL) (Record, bool) {
	cells := elements(tr, "td", "th")
	rowText := nodeText(tr)

	var href string
	for _, a := range elements(tr, "a") {
		if h := attrVal(a, "href"); h != "" && reTxLink.MatchString(h) {
			href = h
			break
		}
	}

	id := ""
	if href != "" {
		id = reFullHash.FindString(href)
	}
	if id == "" {
		id = reShortHash.FindString(rowText)
	}
	if id == "" {
		return Record{}, false
	}

	kind := cellText(cells, colKind)
	if kind == "" {
		kind = labelFromText(rowText)
	}
	if !t.filter.Match(kind) {
		return Record{}, false
	}

	return Record{
		ID:     id,
		Kind:   kind,
		Age:    cellText(cells, colAge),
		Amount: cellText(cells, colAmount),
		Token:  cellText(cells, colToken),
		Price:  cellText(cells, colPrice),
		Link:   resolveLink(base, href),
	}, true
}

func cellText(cells []*html.Node, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return nodeText(cells[i])
}
