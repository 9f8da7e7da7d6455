package blogflow_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/blogflow"
)

func TestDefaultMarkdownParser(t *testing.T) {
	parse := blogflow.DefaultMarkdownParser()

	t.Run("YAML frontmatter", func(t *testing.T) {
		content := "---\ntitle: Hello YAML\ncategory: travel\ntags: [hiking, maps]\n---\n\n# Heading\n\nBody text.\n"
		meta, body, err := parse([]byte(content))
		require.NoError(t, err)
		assert.Equal(t, "Hello YAML", meta.Title)
		assert.Equal(t, blogflow.CategoryTravel, meta.Category)
		assert.Equal(t, []string{"hiking", "maps"}, meta.Tags)
		assert.Equal(t, "# Heading\n\nBody text.", body)
	})

	t.Run("TOML frontmatter", func(t *testing.T) {
		content := "+++\ntitle = \"Hello TOML\"\nstatus = \"private\"\n+++\n\nBody text.\n"
		meta, body, err := parse([]byte(content))
		require.NoError(t, err)
		assert.Equal(t, "Hello TOML", meta.Title)
		assert.Equal(t, blogflow.StatusPrivate, meta.Status)
		assert.Equal(t, "Body text.", body)
	})

	t.Run("No frontmatter", func(t *testing.T) {
		meta, body, err := parse([]byte("Just a body.\n"))
		require.NoError(t, err)
		assert.Empty(t, meta.Title)
		assert.Equal(t, "Just a body.", body)
	})

	t.Run("Invalid category", func(t *testing.T) {
		_, _, err := parse([]byte("---\ntitle: Bad\ncategory: gardening\n---\nBody\n"))
		assert.ErrorIs(t, err, blogflow.ErrInvalidCategory)
	})

	t.Run("Invalid status", func(t *testing.T) {
		_, _, err := parse([]byte("---\ntitle: Bad\nstatus: archived\n---\nBody\n"))
		assert.ErrorIs(t, err, blogflow.ErrInvalidStatus)
	})
}

func TestRenderMarkdown(t *testing.T) {
	html, err := blogflow.RenderMarkdown("## Intro\n\nSome **bold** text and a [link](https://example.com).")
	require.NoError(t, err)
	assert.Contains(t, html, `<h2 id="intro">Intro</h2>`)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, `<a href="https://example.com">link</a>`)
}

func TestPlainText(t *testing.T) {
	text, err := blogflow.PlainText("# Title\n\nSome *emphasis* and `code`.\n\n<div>raw</div>\n")
	require.NoError(t, err)
	assert.Equal(t, "Title Some emphasis and code.", text)
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"Short text is kept", "short", 10, "short"},
		{"Cut on a word boundary", "one two three four", 9, "one two..."},
		{"Trailing punctuation is dropped", "first, second third", 8, "first..."},
		{"No limit", "anything goes", 0, "anything goes"},
		{"Whitespace is trimmed", "  padded  ", 20, "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, blogflow.Excerpt(tt.text, tt.limit))
		})
	}
}

func TestEstimateReadingTime(t *testing.T) {
	words := func(n int) string { return strings.Repeat("word ", n) }

	assert.Equal(t, 1, blogflow.EstimateReadingTime(""))
	assert.Equal(t, 1, blogflow.EstimateReadingTime(words(200)))
	assert.Equal(t, 2, blogflow.EstimateReadingTime(words(201)))
	assert.Equal(t, 5, blogflow.EstimateReadingTime(words(1000)))
}

func TestReadTimeLabel(t *testing.T) {
	assert.Equal(t, "< 1 min", blogflow.ReadTimeLabel(0))
	assert.Equal(t, "1 min", blogflow.ReadTimeLabel(1))
	assert.Equal(t, "59 min", blogflow.ReadTimeLabel(59))
	assert.Equal(t, "1 hr 0 min", blogflow.ReadTimeLabel(60))
	assert.Equal(t, "2 hr 15 min", blogflow.ReadTimeLabel(135))
}
