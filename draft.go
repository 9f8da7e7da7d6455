package blogflow

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DraftStatus is the lifecycle state of a draft.
type DraftStatus string

const (
	StatusDraft     DraftStatus = "draft"
	StatusPublished DraftStatus = "published"
	StatusScheduled DraftStatus = "scheduled"
	StatusPrivate   DraftStatus = "private"
)

func (ds DraftStatus) String() string {
	return string(ds)
}

// IsValid returns true if the status is one of the known statuses.
func (ds DraftStatus) IsValid() bool {
	switch ds {
	case StatusDraft, StatusPublished, StatusScheduled, StatusPrivate:
		return true
	default:
		return false
	}
}

// Draft is the editable form of a post.
type Draft struct {
	ID              string      `json:"id" yaml:"id,omitempty" toml:"id,omitempty"`
	Title           string      `json:"title" yaml:"title,omitempty" toml:"title,omitempty"`
	Body            string      `json:"body" yaml:"-" toml:"-"` // Body is Markdown
	Excerpt         string      `json:"excerpt" yaml:"excerpt,omitempty" toml:"excerpt,omitempty"`
	Category        Category    `json:"category" yaml:"category,omitempty" toml:"category,omitempty"`
	Tags            []string    `json:"tags" yaml:"tags,omitempty" toml:"tags,omitempty"`
	Status          DraftStatus `json:"status" yaml:"status,omitempty" toml:"status,omitempty"`
	ScheduledAt     time.Time   `json:"scheduledAt" yaml:"scheduledAt,omitempty" toml:"scheduledAt,omitempty"`
	FeaturedImage   string      `json:"featuredImage" yaml:"featuredImage,omitempty" toml:"featuredImage,omitempty"`
	MetaTitle       string      `json:"metaTitle" yaml:"metaTitle,omitempty" toml:"metaTitle,omitempty"`
	MetaDescription string      `json:"metaDescription" yaml:"metaDescription,omitempty" toml:"metaDescription,omitempty"`
	Author          Author      `json:"author" yaml:"author,omitempty" toml:"author,omitempty"`
	UpdatedAt       time.Time   `json:"updatedAt" yaml:"updatedAt,omitempty" toml:"updatedAt,omitempty"`
}

// NewDraft returns an empty draft with a fresh ID.
func NewDraft() *Draft {
	return &Draft{
		ID:     uuid.NewString(),
		Status: StatusDraft,
	}
}

// DraftFromPost hydrates a draft from an existing post for edit mode. The post's HTML content becomes the body.
func DraftFromPost(p *Post) *Draft {
	return &Draft{
		ID:            p.ID,
		Title:         p.Title,
		Body:          p.Content,
		Excerpt:       p.Excerpt,
		Category:      p.Category,
		Tags:          slices.Clone(p.Tags),
		Status:        StatusPublished,
		FeaturedImage: p.FeaturedImage,
		Author:        p.Author,
	}
}

// Clone returns a deep copy of the draft.
func (d *Draft) Clone() *Draft {
	cp := *d
	cp.Tags = slices.Clone(d.Tags)
	return &cp
}

// HasTag returns true if the exact tag is present.
func (d *Draft) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// AddTag appends the tag if it is not already present. It returns false when nothing changed.
func (d *Draft) AddTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || d.HasTag(tag) {
		return false
	}
	d.Tags = append(d.Tags, tag)
	return true
}

// RemoveTag removes the tag if present. It returns false when nothing changed.
func (d *Draft) RemoveTag(tag string) bool {
	i := slices.Index(d.Tags, tag)
	if i < 0 {
		return false
	}
	d.Tags = slices.Delete(d.Tags, i, i+1)
	return true
}

// IsEmpty returns true if neither a title nor a body has been written.
func (d *Draft) IsEmpty() bool {
	return strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Body) == ""
}

// ValidateForPublish returns a *ValidationError naming every field that prevents publishing.
func (d *Draft) ValidateForPublish() error {
	ve := &ValidationError{}

	if strings.TrimSpace(d.Title) == "" {
		ve.add("title", "title is required")
	}

	if strings.TrimSpace(d.Body) == "" {
		ve.add("body", "body is required")
	}

	switch {
	case d.Category == "" || d.Category == CategoryAll:
		ve.add("category", "category is required")
	case !d.Category.IsValid():
		ve.add("category", fmt.Sprintf("category %q is not valid", d.Category))
	}

	return ve.errOrNil()
}

// ToPost renders the draft into a post published at the given time.
// An empty excerpt is derived from the body text.
func (d *Draft) ToPost(publishedAt time.Time) (*Post, error) {
	html, err := RenderMarkdown(d.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to render draft %s: %w", d.ID, err)
	}

	excerpt := d.Excerpt
	if strings.TrimSpace(excerpt) == "" {
		text, err := PlainText(d.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to extract excerpt from draft %s: %w", d.ID, err)
		}
		excerpt = Excerpt(text, DefaultExcerptLength)
	}

	return &Post{
		ID:            d.ID,
		Title:         strings.TrimSpace(d.Title),
		Excerpt:       excerpt,
		Content:       html,
		FeaturedImage: d.FeaturedImage,
		Category:      d.Category,
		Tags:          slices.Clone(d.Tags),
		Author:        d.Author,
		PublishedAt:   publishedAt,
		ReadTime:      EstimateReadingTime(d.Body),
		IsNew:         true,
	}, nil
}
