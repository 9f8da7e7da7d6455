package blogflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type FrontmatterFormat string

const (
	FrontmatterTOML FrontmatterFormat = "toml"
	FrontmatterYAML FrontmatterFormat = "yaml"
)

// PostMeta represents the frontmatter of a seed post or an exported draft
type PostMeta struct {
	ID              string      `yaml:"id,omitempty" toml:"id,omitempty"`
	Title           string      `yaml:"title,omitempty" toml:"title,omitempty"`
	Excerpt         string      `yaml:"excerpt,omitempty" toml:"excerpt,omitempty"`
	Category        Category    `yaml:"category,omitempty" toml:"category,omitempty"`
	Tags            []string    `yaml:"tags,omitempty" toml:"tags,omitempty"`
	Author          Author      `yaml:"author,omitempty" toml:"author,omitempty"`
	FeaturedImage   string      `yaml:"featuredImage,omitempty" toml:"featuredImage,omitempty"`
	PublishedAt     time.Time   `yaml:"publishedAt,omitempty" toml:"publishedAt,omitempty"`
	Status          DraftStatus `yaml:"status,omitempty" toml:"status,omitempty"`
	ScheduledAt     time.Time   `yaml:"scheduledAt,omitempty" toml:"scheduledAt,omitempty"`
	MetaTitle       string      `yaml:"metaTitle,omitempty" toml:"metaTitle,omitempty"`
	MetaDescription string      `yaml:"metaDescription,omitempty" toml:"metaDescription,omitempty"`
	Likes           int         `yaml:"likes,omitempty" toml:"likes,omitempty"`
	Comments        int         `yaml:"comments,omitempty" toml:"comments,omitempty"`
	Views           int         `yaml:"views,omitempty" toml:"views,omitempty"`
	IsNew           bool        `yaml:"isNew,omitempty" toml:"isNew,omitempty"`
	UpdatedAt       time.Time   `yaml:"updatedAt,omitempty" toml:"updatedAt,omitempty"`
}

func (pm *PostMeta) Validate() error {
	// Category must be one of the default categories
	if pm.Category != "" && !pm.Category.IsValid() {
		return fmt.Errorf("%w: category '%s' is not valid", ErrInvalidCategory, pm.Category)
	}

	// Status must be one of draft, published, scheduled, or private
	if pm.Status != "" && !pm.Status.IsValid() {
		return fmt.Errorf("%w: status '%s' is not valid", ErrInvalidStatus, pm.Status)
	}

	return nil
}

// DraftToMarkdown writes a draft as a Markdown document with frontmatter in the given format.
func DraftToMarkdown(d *Draft, format FrontmatterFormat) (string, error) {
	meta := &PostMeta{
		ID:              d.ID,
		Title:           d.Title,
		Excerpt:         d.Excerpt,
		Category:        d.Category,
		Tags:            d.Tags,
		Author:          d.Author,
		FeaturedImage:   d.FeaturedImage,
		Status:          d.Status,
		ScheduledAt:     d.ScheduledAt,
		MetaTitle:       d.MetaTitle,
		MetaDescription: d.MetaDescription,
		UpdatedAt:       d.UpdatedAt,
	}

	fm, err := generateFrontmatter(meta, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate frontmatter: %w", err)
	}

	switch format {
	case FrontmatterYAML:
		return fmt.Sprintf("---\n%s---\n\n%s\n", fm, strings.TrimSpace(d.Body)), nil
	default:
		return fmt.Sprintf("+++\n%s+++\n\n%s\n", fm, strings.TrimSpace(d.Body)), nil
	}
}

// DraftFromMarkdown reads a Markdown document with frontmatter back into a draft.
// A missing ID gets a fresh one and a missing status defaults to draft.
func DraftFromMarkdown(parse MarkdownParserFunc, content []byte) (*Draft, error) {
	if parse == nil {
		parse = DefaultMarkdownParser()
	}

	meta, body, err := parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse draft: %w", err)
	}

	d := NewDraft()
	if meta.ID != "" {
		d.ID = meta.ID
	}
	if meta.Status != "" {
		d.Status = meta.Status
	}
	d.Title = meta.Title
	d.Body = body
	d.Excerpt = meta.Excerpt
	d.Category = meta.Category
	d.Author = meta.Author
	d.FeaturedImage = meta.FeaturedImage
	d.ScheduledAt = meta.ScheduledAt
	d.MetaTitle = meta.MetaTitle
	d.MetaDescription = meta.MetaDescription
	d.UpdatedAt = meta.UpdatedAt
	for _, tag := range meta.Tags {
		d.AddTag(tag)
	}

	return d, nil
}

func generateFrontmatter(meta *PostMeta, format FrontmatterFormat) (string, error) {
	var frontmatter strings.Builder

	switch format {
	case FrontmatterYAML:
		yamlData, err := yaml.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("failed to marshal YAML frontmatter: %w", err)
		}
		frontmatter.Write(yamlData)

	case FrontmatterTOML:
		encoder := toml.NewEncoder(&frontmatter)
		if err := encoder.Encode(meta); err != nil {
			return "", fmt.Errorf("failed to marshal TOML frontmatter: %w", err)
		}

	default:
		return "", fmt.Errorf("unsupported frontmatter format: %s", format)
	}

	return frontmatter.String(), nil
}
