package extract

import (
	"regexp"
	"strings"
)

// Record is one normalized transaction row scraped from the explorer page.
//
// ID is the only identity field; everything else is display-only and may be
// empty without invalidating the record.
type Record struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Age    string `json:"age,omitempty"`
	Amount string `json:"amount,omitempty"`
	Token  string `json:"token,omitempty"`
	Price  string `json:"price,omitempty"`
	Link   string `json:"link,omitempty"`
}

var (
	// Full transaction hash, the preferred identifier.
	reFullHash = regexp.MustCompile(`0x[0-9a-fA-F]{64}`)
	// Shorter 0x-prefixed hex, accepted from visible row text.
	reShortHash = regexp.MustCompile(`0x[0-9a-fA-F]{10,}`)
	// Action vocabulary used when no dedicated column carries the label.
	reVocab = regexp.MustCompile(`(?i)\b(open(?:\s+(?:long|short))?|order|increase|long|short)\b`)
	// Transaction-detail link target.
	reTxLink = regexp.MustCompile(`/tx/|0x[0-9a-fA-F]{10,}`)
)

// DefaultKeyword is the action filter applied when the operator sets none.
const DefaultKeyword = "order"

// Filter decides whether an action label qualifies for notification.
//
// Matching is a case-insensitive substring test against the configured
// keyword. Under the default keyword, position openings ("open ...") also
// qualify so the "order" filter doesn't hide new positions; an explicit
// operator keyword is authoritative and gets no such widening.
type Filter struct {
	Keyword string
}

func (f Filter) Match(label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return false
	}
	kw := strings.ToLower(strings.TrimSpace(f.Keyword))
	if kw == "" {
		kw = DefaultKeyword
	}
	if strings.Contains(l, kw) {
		return true
	}
	return kw == DefaultKeyword && strings.Contains(l, "open")
}

// labelFromText pulls an action label out of free text using the fixed
// vocabulary. Returns "" when nothing matches.
func labelFromText(s string) string {
	return strings.TrimSpace(reVocab.FindString(s))
}

// idFromText finds a 0x-prefixed identifier in free text, preferring a full
// 64-hex transaction hash.
func idFromText(s string) string {
	if h := reFullHash.FindString(s); h != "" {
		return h
	}
	return reShortHash.FindString(s)
}
