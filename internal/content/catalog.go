// Package content holds the guides and blog posts shown next to the inbox.
package content

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/nhle/tempinbox/internal/render"
)

// Article is a guide written in Markdown.
type Article struct {
	Slug        string
	Title       string
	Description string
	Author      string
	Date        string
	Markdown    string
}

// Post is a blog article.
type Post struct {
	Article
	Category string
	ReadTime string
}

// Catalog is a read-only set of guides and posts.
type Catalog struct {
	guides []Article
	posts  []Post
	md     goldmark.Markdown
}

// New creates a catalog over the given guides and posts.
func New(guides []Article, posts []Post) *Catalog {
	return &Catalog{
		guides: guides,
		posts:  posts,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Table,
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(guides, posts)
}

func (c *Catalog) Guides() []Article {
	return append([]Article(nil), c.guides...)
}

func (c *Catalog) Posts() []Post {
	return append([]Post(nil), c.posts...)
}

// Guide looks up a guide by slug.
func (c *Catalog) Guide(slug string) (Article, bool) {
	for _, a := range c.guides {
		if a.Slug == slug {
			return a, true
		}
	}
	return Article{}, false
}

// Post looks up a blog post by slug.
func (c *Catalog) Post(slug string) (Post, bool) {
	for _, p := range c.posts {
		if p.Slug == slug {
			return p, true
		}
	}
	return Post{}, false
}

// ToHTML converts an article body to HTML.
func (c *Catalog) ToHTML(a Article) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(a.Markdown), &buf); err != nil {
		return "", fmt.Errorf("converting %s: %w", a.Slug, err)
	}
	return buf.String(), nil
}

// Render converts an article body to terminal text. If conversion fails
// the raw Markdown is returned.
func (c *Catalog) Render(a Article) render.Document {
	out, err := c.ToHTML(a)
	if err != nil {
		return render.Document{Text: a.Markdown}
	}
	doc, err := render.HTMLToText(out)
	if err != nil {
		return render.Document{Text: a.Markdown}
	}
	return doc
}
