package notify

import (
	"fmt"
	"html"
	"strings"

	"perpwatch/internal/extract"
)

// renderMessage builds the single HTML-mode message for a batch. Records
// stay grouped in one message so related openings read together and the
// send stays inside Telegram's rate limits.
func renderMessage(batch []extract.Record, sourceURL string) string {
	var b strings.Builder
	b.WriteString("<b>📊 New positions opened:</b>\n")

	for _, rec := range batch {
		b.WriteString("\n")
		b.WriteString(iconFor(rec.Kind))
		b.WriteString(" <b>")
		b.WriteString(html.EscapeString(rec.Kind))
		b.WriteString("</b>\n")
		b.WriteString("🔑 <code>")
		b.WriteString(html.EscapeString(rec.ID))
		b.WriteString("</code>\n")

		if amt := strings.TrimSpace(rec.Amount + " " + rec.Token); amt != "" {
			fmt.Fprintf(&b, "💰 %s\n", html.EscapeString(amt))
		}
		if rec.Price != "" {
			fmt.Fprintf(&b, "💲 %s\n", html.EscapeString(rec.Price))
		}
		if rec.Age != "" {
			fmt.Fprintf(&b, "⏰ %s\n", html.EscapeString(rec.Age))
		}

		link := rec.Link
		if link == "" {
			link = sourceURL
		}
		fmt.Fprintf(&b, "🔗 <a href=\"%s\">View transaction</a>\n", html.EscapeString(link))
	}
	return b.String()
}

// iconFor picks the direction glyph from the action label.
func iconFor(kind string) string {
	k := strings.ToLower(kind)
	switch {
	case strings.Contains(k, "long"):
		return "📈"
	case strings.Contains(k, "short"):
		return "📉"
	default:
		return "🟢"
	}
}
