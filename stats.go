package blogflow

import "time"

// Stats are the quick numbers shown above the post list.
type Stats struct {
	TotalPosts     int `json:"totalPosts"`
	Authors        int `json:"authors"`
	Categories     int `json:"categories"`
	PostsThisMonth int `json:"postsThisMonth"`
}

// ComputeStats counts posts, distinct authors and categories, and posts published in the calendar month of now.
func ComputeStats(posts []*Post, now time.Time) Stats {
	authors := make(map[string]struct{})
	categories := make(map[Category]struct{})
	stats := Stats{TotalPosts: len(posts)}

	year, month, _ := now.Date()
	for _, p := range posts {
		key := p.Author.ID
		if key == "" {
			key = p.Author.Slug()
		}
		if key != "" {
			authors[key] = struct{}{}
		}

		if p.Category != "" {
			categories[p.Category] = struct{}{}
		}

		if p.HasPublished() {
			y, m, _ := p.PublishedAt.In(now.Location()).Date()
			if y == year && m == month {
				stats.PostsThisMonth++
			}
		}
	}

	stats.Authors = len(authors)
	stats.Categories = len(categories)
	return stats
}

// AuthorStats are one author's dashboard totals and their posts, newest first.
type AuthorStats struct {
	TotalPosts    int     `json:"totalPosts"`
	TotalLikes    int     `json:"totalLikes"`
	TotalComments int     `json:"totalComments"`
	TotalViews    int     `json:"totalViews"`
	Posts         []*Post `json:"posts"`
}

// ComputeAuthorStats totals the posts written by author, matched by ID or name slug. An empty or "all" key
// matches nobody.
func ComputeAuthorStats(posts []*Post, author string) AuthorStats {
	if author == "" || author == string(CategoryAll) {
		return AuthorStats{}
	}

	filter := DefaultFilter()
	filter.Author = author
	mine := ClonePosts(filter.Apply(posts))

	stats := AuthorStats{TotalPosts: len(mine), Posts: mine}
	for _, p := range mine {
		stats.TotalLikes += p.Likes
		stats.TotalComments += p.Comments
		stats.TotalViews += p.Views
	}
	return stats
}
