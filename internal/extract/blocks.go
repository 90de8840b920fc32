package extract

import (
	"net/url"

	"golang.org/x/net/html"
)

// blockScan tolerates non-tabular markup: it looks for the smallest
// list-item/block-like elements whose text carries both an identifier and a
// qualifying action label. Display fields stay empty; this trades
// completeness for markup tolerance.
type blockScan struct {
	filter Filter
}

func (blockScan) Name() string { return "blocks" }

var blockTags = map[string]bool{
	"li":      true,
	"div":     true,
	"article": true,
	"section": true,
	"p":       true,
}

func (b blockScan) Extract(doc string, base *url.URL) []Record {
	root := parseDoc(doc)
	if root == nil {
		return nil
	}

	var out []Record
	seen := map[string]bool{}

	// Post-order: prefer the deepest qualifying element so a wrapping
	// container doesn't swallow its children into one record.
	var visit func(n *html.Node) bool
	visit = func(n *html.Node) bool {
		childHit := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if visit(c) {
				childHit = true
			}
		}
		if childHit {
			return true
		}
		if n.Type != html.ElementNode || !blockTags[n.Data] {
			return false
		}
		text := nodeText(n)
		id := idFromText(text)
		if id == "" || seen[id] {
			return false
		}
		kind := labelFromText(text)
		if !b.filter.Match(kind) {
			return false
		}
		seen[id] = true
		out = append(out, Record{
			ID:   id,
			Kind: kind,
			Link: resolveLink(base, ""),
		})
		return true
	}
	visit(root)
	return out
}
