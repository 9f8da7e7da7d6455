package blogflow

// DefaultPageSize is the number of posts revealed per "load more".
const DefaultPageSize = 9

// Paginator is a snapshot of the incremental pagination of a filtered post list: the visible prefix, the current
// page count, the page size, the number of loaded and filtered posts, and whether more posts can be loaded.
type Paginator struct {
	CurrentPage   int
	PageSize      int
	TotalPages    int
	LoadedPosts   int
	FilteredPosts int
	HasMore       bool
	HasPosts      bool
	Posts         []*Post
}

// NewPaginator returns a Paginator showing the first currentPage*pageSize posts of filtered, capped at its length.
// The visible posts are copies.
func NewPaginator(filtered []*Post, currentPage, pageSize int) Paginator {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	if currentPage < 1 {
		currentPage = 1
	}

	total := len(filtered)
	totalPages := (total + pageSize - 1) / pageSize
	loaded := min(currentPage*pageSize, total)

	return Paginator{
		CurrentPage:   currentPage,
		PageSize:      pageSize,
		TotalPages:    totalPages,
		LoadedPosts:   loaded,
		FilteredPosts: total,
		HasMore:       total > loaded,
		HasPosts:      loaded > 0,
		Posts:         ClonePosts(filtered[:loaded]),
	}
}
