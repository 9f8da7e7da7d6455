package blogflow

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// SortKey selects the comparator used to order the filtered posts.
type SortKey string

const (
	SortNewest        SortKey = "newest"
	SortOldest        SortKey = "oldest"
	SortMostLiked     SortKey = "most-liked"
	SortMostCommented SortKey = "most-commented"
	SortMostViewed    SortKey = "most-viewed"
	SortAlphabetical  SortKey = "alphabetical"
)

func (sk SortKey) String() string {
	return string(sk)
}

// SortKeys returns every supported sort key.
func SortKeys() []SortKey {
	return []SortKey{SortNewest, SortOldest, SortMostLiked, SortMostCommented, SortMostViewed, SortAlphabetical}
}

// DateRange bounds the publish timestamp. Start is inclusive, End is exclusive. A zero bound is unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero returns true if neither bound is set.
func (dr DateRange) IsZero() bool {
	return dr.Start.IsZero() && dr.End.IsZero()
}

// Contains returns true if t falls inside the range.
func (dr DateRange) Contains(t time.Time) bool {
	if !dr.Start.IsZero() && t.Before(dr.Start) {
		return false
	}
	if !dr.End.IsZero() && !t.Before(dr.End) {
		return false
	}
	return true
}

// FilterState contains the inputs that select and order the visible posts.
// Every field is optional and they combine with AND.
type FilterState struct {
	Search    string    // Case-insensitive substring matched against title, excerpt, author name and category.
	Category  Category  // The category to filter by. Empty or CategoryAll disables the filter.
	Author    string    // The author ID or name slug to filter by. Empty or "all" disables the filter.
	DateRange DateRange // The publish date range.
	SortBy    SortKey   // The sort order. Default is SortNewest.
}

// DefaultFilter returns the filter state of a freshly opened post list.
func DefaultFilter() FilterState {
	return FilterState{Category: CategoryAll, Author: "all", SortBy: SortNewest}
}

// Equal reports whether two filter states select and order posts identically.
func (f FilterState) Equal(other FilterState) bool {
	return f.Search == other.Search &&
		f.Category.IsAll() == other.Category.IsAll() && (f.Category.IsAll() || f.Category == other.Category) &&
		isAllAuthor(f.Author) == isAllAuthor(other.Author) && (isAllAuthor(f.Author) || f.Author == other.Author) &&
		f.DateRange.Start.Equal(other.DateRange.Start) && f.DateRange.End.Equal(other.DateRange.End) &&
		f.sortKey() == other.sortKey()
}

// IsActive returns true if any filter besides the sort order is set.
func (f FilterState) IsActive() bool {
	return strings.TrimSpace(f.Search) != "" || !f.Category.IsAll() || !isAllAuthor(f.Author) || !f.DateRange.IsZero()
}

// Matches returns true if the post passes every active filter.
func (f FilterState) Matches(p *Post) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Excerpt), q) &&
			!strings.Contains(strings.ToLower(p.Author.Name), q) &&
			!strings.Contains(strings.ToLower(p.Category.String()), q) {
			return false
		}
	}

	if !f.Category.IsAll() && p.Category != f.Category {
		return false
	}

	if !isAllAuthor(f.Author) && !p.Author.Matches(f.Author) {
		return false
	}

	return f.DateRange.Contains(p.PublishedAt)
}

// Apply returns the posts that match the filter, stably sorted by the sort key.
// The input slice is not modified, and posts with equal keys keep their input order.
func (f FilterState) Apply(posts []*Post) []*Post {
	filtered := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if f.Matches(p) {
			filtered = append(filtered, p)
		}
	}

	if compare := f.comparator(); compare != nil {
		slices.SortStableFunc(filtered, compare)
	}

	return filtered
}

func (f FilterState) sortKey() SortKey {
	if f.SortBy == "" {
		return SortNewest
	}
	return f.SortBy
}

func (f FilterState) comparator() func(a, b *Post) int {
	switch f.sortKey() {
	case SortNewest:
		return func(a, b *Post) int { return b.PublishedAt.Compare(a.PublishedAt) }
	case SortOldest:
		return func(a, b *Post) int { return a.PublishedAt.Compare(b.PublishedAt) }
	case SortMostLiked:
		return func(a, b *Post) int { return cmp.Compare(b.Likes, a.Likes) }
	case SortMostCommented:
		return func(a, b *Post) int { return cmp.Compare(b.Comments, a.Comments) }
	case SortMostViewed:
		return func(a, b *Post) int { return cmp.Compare(b.Views, a.Views) }
	case SortAlphabetical:
		return func(a, b *Post) int { return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	default:
		return nil
	}
}

func isAllAuthor(author string) bool {
	return author == "" || author == "all"
}
