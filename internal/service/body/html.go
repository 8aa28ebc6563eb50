package body

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var skipped = map[string]bool{
	"img":      true,
	"script":   true,
	"style":    true,
	"head":     true,
	"noscript": true,
}

var blocks = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tr": true, "ul": true,
}

// htmlToText returns the visible text of doc with one line per block element.
func htmlToText(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}

	var b strings.Builder
	walk(root, &b)
	return normalize(b.String())
}

func walk(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		if skipped[n.Data] {
			return
		}
	case html.TextNode:
		b.WriteString(collapse(n.Data))
		return
	case html.CommentNode:
		return
	}

	block := n.Type == html.ElementNode && blocks[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}
	if block {
		b.WriteByte('\n')
	}
}

// collapse folds every whitespace run, including non-breaking spaces, into a
// single space.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// normalize trims every line and drops the empty ones, so adjacent blocks are
// separated by a single line break.
func normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(collapse(line)); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
