// Package render turns message and article bodies into plain terminal text.
package render

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/nhle/tempinbox/internal/model"
)

// Link is a hyperlink found while rendering, numbered in document order.
type Link struct {
	Index int
	URL   string
	Text  string
}

// Document is rendered text plus the links referenced from it as [n].
type Document struct {
	Text  string
	Links []Link
}

// String renders the text followed by a numbered link list.
func (d Document) String() string {
	if len(d.Links) == 0 {
		return d.Text
	}
	var b strings.Builder
	b.WriteString(d.Text)
	b.WriteString("\n\nLinks:\n")
	for _, l := range d.Links {
		fmt.Fprintf(&b, "  [%d] %s\n", l.Index, l.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// MessageBody renders a message detail. The HTML fragments are joined and
// rendered when present, otherwise the plain text body is used as is.
func MessageBody(d *model.MessageDetail) Document {
	if d == nil {
		return Document{}
	}
	if len(d.HTML) > 0 {
		doc, err := HTMLToText(strings.Join(d.HTML, ""))
		if err == nil && doc.Text != "" {
			return doc
		}
	}
	return Document{Text: normalizeNewlines(strings.TrimSpace(d.Text))}
}

// HTMLToText parses an HTML document or fragment and emits readable text.
// Scripts, styles and head content are dropped.
func HTMLToText(src string) (Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return Document{}, fmt.Errorf("parsing html: %w", err)
	}

	w := &walker{}
	w.visit(root)
	return Document{
		Text:  normalizeNewlines(strings.TrimSpace(w.b.String())),
		Links: w.links,
	}, nil
}

type walker struct {
	b          strings.Builder
	links      []Link
	quoteDepth int
	inPre      bool
	listDepth  int
}

func (w *walker) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.visit(c)
	}
}

func (w *walker) visit(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
	default:
		w.children(n)
		return
	}

	switch strings.ToLower(n.Data) {
	case "head", "style", "script", "title", "meta", "link", "noscript":
		return
	case "br":
		w.b.WriteByte('\n')
	case "hr":
		w.b.WriteString("\n-----\n")
	case "p", "div", "section", "article", "header", "footer":
		w.children(n)
		w.b.WriteString("\n\n")
	case "tr":
		w.children(n)
		w.b.WriteByte('\n')
	case "h1", "h2", "h3", "h4", "h5", "h6":
		if t := strings.TrimSpace(collectText(n)); t != "" {
			w.b.WriteString("\n")
			w.b.WriteString(strings.ToUpper(t))
			w.b.WriteString("\n\n")
		}
	case "ul", "ol":
		w.list(n, strings.EqualFold(n.Data, "ol"))
	case "blockquote":
		w.quoteDepth++
		w.children(n)
		w.quoteDepth--
		w.b.WriteByte('\n')
	case "pre":
		was := w.inPre
		w.inPre = true
		w.b.WriteByte('\n')
		w.children(n)
		w.inPre = was
		w.b.WriteString("\n\n")
	case "td", "th":
		w.children(n)
		w.b.WriteString("  ")
	case "a":
		w.anchor(n)
	case "img":
		if alt := strings.TrimSpace(attr(n, "alt")); alt != "" {
			w.b.WriteString("[" + alt + "]")
		}
	default:
		w.children(n)
	}
}

func (w *walker) list(n *html.Node, ordered bool) {
	w.listDepth++
	defer func() { w.listDepth-- }()

	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || !strings.EqualFold(c.Data, "li") {
			continue
		}
		i++
		w.b.WriteString(strings.Repeat("  ", w.listDepth-1))
		if ordered {
			fmt.Fprintf(&w.b, "%d. ", i)
		} else {
			w.b.WriteString("- ")
		}
		w.children(c)
		w.b.WriteByte('\n')
	}
	w.b.WriteByte('\n')
}

func (w *walker) anchor(n *html.Node) {
	href := strings.TrimSpace(attr(n, "href"))
	label := strings.TrimSpace(collectText(n))
	if label == "" {
		label = strings.TrimSpace(attr(n, "title"))
	}
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		w.b.WriteString(label)
		return
	}
	if label == "" {
		label = href
	}
	idx := len(w.links) + 1
	w.links = append(w.links, Link{Index: idx, URL: href, Text: label})
	fmt.Fprintf(&w.b, "%s [%d]", label, idx)
}

func (w *walker) text(s string) {
	if w.inPre {
		w.b.WriteString(s)
		return
	}
	s = collapseSpace(s)
	if strings.TrimSpace(s) == "" {
		if s != "" && !endsWithSpace(&w.b) {
			w.b.WriteByte(' ')
		}
		return
	}
	if atLineStart(&w.b) {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if w.quoteDepth > 0 {
			w.b.WriteString(strings.Repeat("> ", min(w.quoteDepth, 3)))
		}
	}
	w.b.WriteString(s)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(collapseSpace(n.Data))
		case html.ElementNode:
			switch strings.ToLower(n.Data) {
			case "script", "style":
				return
			case "br":
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// collapseSpace folds runs of whitespace into single spaces.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
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

func endsWithSpace(b *strings.Builder) bool {
	s := b.String()
	return s == "" || unicode.IsSpace(rune(s[len(s)-1]))
}

func atLineStart(b *strings.Builder) bool {
	s := b.String()
	return s == "" || s[len(s)-1] == '\n'
}

// normalizeNewlines trims trailing spaces from each line and collapses
// three or more consecutive newlines into two.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRightFunc(ln, unicode.IsSpace)
	}
	s = strings.Join(lines, "\n")

	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
