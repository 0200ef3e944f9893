package schedule

import (
	"strings"

	"golang.org/x/net/html"
)

// cleanBio turns the HTML-ish bio attribute into plain text.
func cleanBio(raw string) string {
	if raw == "" {
		return ""
	}
	raw = strings.ReplaceAll(raw, `\r\n`, "\n")
	raw = strings.ReplaceAll(raw, `\n`, "\n")
	raw = strings.ReplaceAll(raw, `<\/`, "</")

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(strings.Trim(strings.TrimSpace(b.String()), `"`))
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "p" {
				b.WriteByte('\n')
			}
		}
	}
}
