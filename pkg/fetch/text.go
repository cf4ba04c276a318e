package fetch

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"golang.org/x/net/html"
)

// ParseDate parses a date string in any common format. Zone-less values are read as UTC.
// It never panics; unparsable input yields false.
func ParseDate(text string) (t time.Time, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false
	}

	defer func() {
		if r := recover(); r != nil {
			t, ok = time.Time{}, false
		}
	}()

	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// ExtractText returns the text of sel with every whitespace run collapsed to one space.
// Text from separate nodes is space-separated; script and style content is skipped.
func ExtractText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}

	return CollapseSpace(b.String())
}

// CollapseSpace folds whitespace runs into single spaces and trims the result.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
