package blogflow

import (
	"encoding/json"
	"slices"
	"time"
)

// Post represents a published blog post
type Post struct {
	ID            string    `json:"id" yaml:"id" toml:"id"`                                  // ID is the unique identifier of the post
	Title         string    `json:"title" yaml:"title" toml:"title"`                         // Title is the headline of the post
	Excerpt       string    `json:"excerpt" yaml:"excerpt" toml:"excerpt"`                   // Excerpt is the short summary shown on cards
	Content       string    `json:"content" yaml:"content" toml:"content"`                   // Content is the HTML body of the post
	FeaturedImage string    `json:"featuredImage" yaml:"featuredImage" toml:"featuredImage"` // FeaturedImage is the URL of the featured image
	Category      Category  `json:"category" yaml:"category" toml:"category"`                // Category is one of DefaultCategories
	Tags          []string  `json:"tags" yaml:"tags" toml:"tags"`                            // Tags are free-form labels in display order
	Author        Author    `json:"author" yaml:"author" toml:"author"`                      // Author is the byline
	PublishedAt   time.Time `json:"publishedAt" yaml:"publishedAt" toml:"publishedAt"`       // PublishedAt is the publish timestamp
	Likes         int       `json:"likes" yaml:"likes" toml:"likes"`                         // Likes is the like counter
	Comments      int       `json:"comments" yaml:"comments" toml:"comments"`                // Comments is the comment counter
	Views         int       `json:"views" yaml:"views" toml:"views"`                         // Views is the view counter
	ReadTime      int       `json:"readTime" yaml:"readTime" toml:"readTime"`                // ReadTime is the estimated reading time in minutes
	IsLiked       bool      `json:"isLiked" yaml:"isLiked" toml:"isLiked"`                   // IsLiked is true if the current user liked the post
	IsNew         bool      `json:"isNew" yaml:"isNew" toml:"isNew"`                         // IsNew marks recently published posts
}

// HasPublished returns true if the post has a published date
func (p *Post) HasPublished() bool {
	return !p.PublishedAt.IsZero()
}

// PublishedDate returns the published date in the format Jan 2, 2006
func (p *Post) PublishedDate() string {
	if !p.HasPublished() {
		return ""
	}

	return p.PublishedAt.Format("Jan 2, 2006")
}

// HasFeaturedImage returns true if the post has a featured image
func (p *Post) HasFeaturedImage() bool {
	return p.FeaturedImage != ""
}

// Clone returns a deep copy of the post so callers can't mutate a view's state.
func (p *Post) Clone() *Post {
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	return &cp
}

// SetLiked sets the liked flag and moves the like counter by one when the flag changes. The counter never goes
// below zero.
func (p *Post) SetLiked(liked bool) {
	if p.IsLiked == liked {
		return
	}
	p.IsLiked = liked
	if liked {
		p.Likes++
	} else if p.Likes > 0 {
		p.Likes--
	}
}

// CarryCounters copies the engagement and original publish date of the post being replaced by a republish.
func (p *Post) CarryCounters(existing *Post) {
	p.Likes = existing.Likes
	p.Comments = existing.Comments
	p.Views = existing.Views
	p.IsLiked = existing.IsLiked
	p.PublishedAt = existing.PublishedAt
	p.IsNew = existing.IsNew
}

// Serialize serializes the post to a byte slice
func (p *Post) Serialize() ([]byte, error) {
	return json.Marshal(p)
}

// Deserialize deserializes the byte slice to a post
func Deserialize(data []byte) (*Post, error) {
	var post Post
	err := json.Unmarshal(data, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ClonePosts deep copies a slice of posts.
func ClonePosts(posts []*Post) []*Post {
	out := make([]*Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
