package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_SlugsUnique(t *testing.T) {
	c := Default()
	require.NotEmpty(t, c.Guides())
	require.NotEmpty(t, c.Posts())

	seen := map[string]bool{}
	for _, a := range c.Guides() {
		assert.False(t, seen[a.Slug], "duplicate slug %s", a.Slug)
		seen[a.Slug] = true
		assert.NotEmpty(t, a.Title)
	}
	for _, p := range c.Posts() {
		assert.False(t, seen[p.Slug], "duplicate slug %s", p.Slug)
		seen[p.Slug] = true
		assert.NotEmpty(t, p.Category)
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c := New(
		[]Article{{Slug: "g1", Title: "Guide"}},
		[]Post{{Article: Article{Slug: "p1", Title: "Post"}, Category: "Tech"}},
	)

	g, ok := c.Guide("g1")
	require.True(t, ok)
	assert.Equal(t, "Guide", g.Title)

	_, ok = c.Guide("p1")
	assert.False(t, ok)

	p, ok := c.Post("p1")
	require.True(t, ok)
	assert.Equal(t, "Tech", p.Category)

	_, ok = c.Post("missing")
	assert.False(t, ok)
}

func TestCatalog_ListsAreCopies(t *testing.T) {
	c := New([]Article{{Slug: "a"}}, nil)
	list := c.Guides()
	list[0].Slug = "changed"

	_, ok := c.Guide("a")
	assert.True(t, ok)
}

func TestCatalog_Render(t *testing.T) {
	c := New(nil, nil)
	doc := c.Render(Article{
		Slug:     "x",
		Markdown: "# Title\n\nSome **bold** text with a [link](https://x.test).\n\n- one\n- two\n",
	})

	assert.Equal(t, "TITLE\n\nSome bold text with a link [1].\n\n- one\n- two", doc.Text)
	require.Len(t, doc.Links, 1)
	assert.Equal(t, "https://x.test", doc.Links[0].URL)
}

func TestCatalog_RenderTable(t *testing.T) {
	c := New(nil, nil)
	html, err := c.ToHTML(Article{Markdown: "| a | b |\n|---|---|\n| 1 | 2 |\n"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "<table>"), html)
}
