package blogflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Store is a PostStore that can also be seeded.
type Store interface {
	PostStore
	PostWriter
}

// PostSource streams posts from somewhere outside the store, such as a Markdown directory.
type PostSource interface {
	Walk(ctx context.Context) (<-chan *Post, <-chan error)
}

// BlogOptions is a struct for configuring a new Blog.
type BlogOptions struct {
	Logger           *slog.Logger     // Logger is passed to every view and editor. Default is a debug logger to stderr.
	PageSize         int              // PageSize is the collection page size. Default is DefaultPageSize.
	AutoSaveInterval time.Duration    // AutoSaveInterval is the editor auto-save period. Default is DefaultAutoSaveInterval.
	Now              func() time.Time // Now is the clock used for stats and editors. Default is time.Now.
}

// Blog is the main entry point. It ties a store to the post list view and the draft editor.
type Blog struct {
	store Store
	opts  BlogOptions
}

func NewBlog(store Store, opts BlogOptions) *Blog {
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}
	opts.Now = orNow(opts.Now)
	return &Blog{store: store, opts: opts}
}

// Store returns the underlying store.
func (b *Blog) Store() Store {
	return b.store
}

// SyncAll copies every post from src into the store and returns how many were written.
func (b *Blog) SyncAll(ctx context.Context, src PostSource) (int, error) {
	posts, errs := src.Walk(ctx)

	n := 0
	for post := range posts {
		if err := b.store.Put(ctx, post); err != nil {
			// Drain so the walker can exit.
			for range posts {
			}
			return n, fmt.Errorf("error storing post %s: %w", post.ID, err)
		}
		n++
	}

	// Check for any errors from Walk
	for err := range errs {
		return n, fmt.Errorf("error walking source: %w", err)
	}

	b.opts.Logger.Info("Synced posts", slog.Int("count", n))
	return n, nil
}

// Seed stores posts as-is.
func (b *Blog) Seed(ctx context.Context, posts []*Post) error {
	if err := b.store.Put(ctx, posts...); err != nil {
		return fmt.Errorf("error seeding store: %w", err)
	}
	return nil
}

// Open loads the post collection and returns a list view over it.
func (b *Blog) Open(ctx context.Context, filter *FilterState) (*Collection, error) {
	posts, err := b.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}

	return NewCollection(b.store, posts, CollectionOptions{
		Filter:   filter,
		Logger:   b.opts.Logger,
		PageSize: b.opts.PageSize,
	}), nil
}

// Edit opens an editor. An empty id starts a new post; otherwise the stored draft is loaded, falling back to the
// published post of the same ID.
func (b *Blog) Edit(ctx context.Context, id string) (*Editor, error) {
	var draft *Draft
	if id != "" {
		d, err := b.store.GetDraft(ctx, id)
		switch {
		case err == nil:
			draft = d
		case errors.Is(err, ErrDraftNotFound):
			post, perr := b.store.Get(ctx, id)
			if perr != nil {
				return nil, fmt.Errorf("post not found as draft or post: %w", perr)
			}
			draft = DraftFromPost(post)
		default:
			return nil, fmt.Errorf("error loading draft %s: %w", id, err)
		}
	}

	return NewEditor(b.store, draft, EditorOptions{
		AutoSaveInterval: b.opts.AutoSaveInterval,
		Logger:           b.opts.Logger,
		Now:              b.opts.Now,
	}), nil
}

// Search uses the store's own index when it has one and falls back to the list filter otherwise.
func (b *Blog) Search(ctx context.Context, query string, limit int) ([]*Post, error) {
	return SearchStore(ctx, b.store, query, limit)
}

// Stats computes the quick stats over the whole collection.
func (b *Blog) Stats(ctx context.Context) (Stats, error) {
	posts, err := b.store.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("error listing posts: %w", err)
	}
	return ComputeStats(posts, b.opts.Now()), nil
}

// AuthorStats computes one author's dashboard totals.
func (b *Blog) AuthorStats(ctx context.Context, author string) (AuthorStats, error) {
	posts, err := b.store.List(ctx)
	if err != nil {
		return AuthorStats{}, fmt.Errorf("error listing posts: %w", err)
	}
	return ComputeAuthorStats(posts, author), nil
}

// CategoryCounts returns the number of posts per category.
func (b *Blog) CategoryCounts(ctx context.Context) (map[Category]int, error) {
	return CountCategories(ctx, b.store)
}

// SearchStore searches with the store's own index when it implements Searcher, otherwise it applies the list
// search filter to every post.
func SearchStore(ctx context.Context, store PostStore, query string, limit int) ([]*Post, error) {
	if s, ok := store.(Searcher); ok {
		return s.Search(ctx, query, limit)
	}

	posts, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}

	found := FilterState{Search: query}.Apply(posts)
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// CountCategories uses the store's counters when it implements CategoryCounter, otherwise it counts every post.
func CountCategories(ctx context.Context, store PostStore) (map[Category]int, error) {
	if c, ok := store.(CategoryCounter); ok {
		return c.CategoryCounts(ctx)
	}

	posts, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}

	counts := make(map[Category]int)
	for _, p := range posts {
		if p.Category != "" {
			counts[p.Category]++
		}
	}
	return counts, nil
}
