package blogflow

import "context"

// LikeStore persists like toggles.
type LikeStore interface {
	// Like records that the current user liked (or unliked) a post.
	Like(ctx context.Context, postID string, liked bool) error
}

// DraftStore persists drafts and publishes them.
type DraftStore interface {
	// SaveDraft creates or replaces a draft and returns the stored copy.
	SaveDraft(ctx context.Context, draft *Draft) (*Draft, error)
	// Publish turns a draft into a post and returns the published post.
	Publish(ctx context.Context, draft *Draft) (*Post, error)
}

// PostStore is the backend behind the post list and the editor.
type PostStore interface {
	LikeStore
	DraftStore
	// List returns every post in a stable order.
	List(ctx context.Context) ([]*Post, error)
	// Get retrieves a post by its ID.
	Get(ctx context.Context, id string) (*Post, error)
	// GetDraft retrieves a draft by its ID.
	GetDraft(ctx context.Context, id string) (*Draft, error)
}

// PostWriter stores posts as-is, creating or replacing them. It is used to seed a store.
type PostWriter interface {
	Put(ctx context.Context, posts ...*Post) error
}

// Searcher is implemented by stores with their own full-text search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]*Post, error)
}

// CategoryCounter is implemented by stores that keep per-category post counts.
type CategoryCounter interface {
	CategoryCounts(ctx context.Context) (map[Category]int, error)
}
