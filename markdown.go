package blogflow

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// DefaultExcerptLength is the number of characters kept when an excerpt is derived from the body.
const DefaultExcerptLength = 160

var (
	// htmlRenderer renders draft bodies.
	htmlRenderer = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			extension.Footnote,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
	)

	// textParser only parses, so text nodes keep their source bytes.
	textParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// MarkdownParserFunc converts a Markdown document with optional frontmatter into its metadata and body.
type MarkdownParserFunc func(input []byte) (*PostMeta, string, error)

// DefaultMarkdownParser returns a MarkdownParserFunc that uses a goldmark parser with the following extensions:
// - GFM
// - Frontmatter (YAML between "---" or TOML between "+++")
func DefaultMarkdownParser() MarkdownParserFunc {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
		),
	)

	return func(input []byte) (*PostMeta, string, error) {
		return ParseMarkdown(md, input)
	}
}

// ParseMarkdown splits a Markdown document into its frontmatter metadata and its Markdown body.
func ParseMarkdown(md goldmark.Markdown, content []byte) (*PostMeta, string, error) {
	ctx := parser.NewContext()
	md.Parser().Parse(text.NewReader(content), parser.WithContext(ctx))
	body := strings.TrimSpace(stripFrontmatter(string(content)))

	meta := &PostMeta{}
	data := frontmatter.Get(ctx)
	if data == nil {
		// No frontmatter found
		return meta, body, nil
	}

	if err := data.Decode(meta); err != nil {
		return meta, body, fmt.Errorf("failed to decode frontmatter: %w", err)
	}

	if err := meta.Validate(); err != nil {
		return meta, body, err
	}

	return meta, body, nil
}

// stripFrontmatter drops a leading YAML or TOML frontmatter block.
func stripFrontmatter(body string) string {
	for _, delim := range []string{"---", "+++"} {
		if !strings.HasPrefix(body, delim+"\n") {
			continue
		}
		rest := body[len(delim)+1:]
		if end := strings.Index(rest, "\n"+delim); end >= 0 {
			rest = rest[end+len(delim)+1:]
			return strings.TrimPrefix(rest, "\n")
		}
	}
	return body
}

// RenderMarkdown renders a Markdown body to HTML.
func RenderMarkdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := htmlRenderer.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}

// PlainText returns the visible text of a Markdown body with whitespace collapsed. Raw HTML is dropped.
func PlainText(body string) (string, error) {
	src := []byte(body)
	doc := textParser.Parser().Parse(text.NewReader(src))

	var buf strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if n.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte(' ')
		}

		switch node := n.(type) {
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk markdown: %w", err)
	}

	return strings.Join(strings.Fields(buf.String()), " "), nil
}

// Excerpt truncates text to at most limit characters on a word boundary, appending "..." when it was cut.
func Excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}

	return strings.TrimRight(cut, " ,.;:") + "..."
}

// EstimateReadingTime estimates the reading time of the content in whole minutes, at least one.
func EstimateReadingTime(content string) int {
	// Define reading speed in words per minute
	const wordsPerMinute = float64(200)

	words := float64(len(strings.Fields(content)))
	minutes := int(math.Ceil(words / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// ReadTimeLabel formats a reading time for display.
func ReadTimeLabel(minutes int) string {
	if minutes < 1 {
		return "< 1 min"
	} else if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d hr %d min", minutes/60, minutes%60)
}
