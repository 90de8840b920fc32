package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

func parseDoc(doc string) *html.Node {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil
	}
	return root
}

// elements returns all descendant elements with one of the given tags,
// in document order.
func elements(root *html.Node, tags ...string) []*html.Node {
	if root == nil {
		return nil
	}
	var out []*html.Node
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, t := range tags {
				if n.Data == t {
					out = append(out, n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	return out
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText returns the node's visible text with whitespace collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	if n != nil {
		visit(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// resolveLink turns a scraped href into an absolute URL, falling back to the
// source page itself when the href is empty or unparsable.
func resolveLink(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	if strings.TrimSpace(href) == "" {
		return base.String()
	}
	u, err := url.Parse(href)
	if err != nil {
		return base.String()
	}
	return base.ResolveReference(u).String()
}
