package blogflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// CollectionOptions is a struct for configuring a new Collection.
type CollectionOptions struct {
	Filter   *FilterState // Filter is the initial filter state. Default is DefaultFilter().
	Logger   *slog.Logger // Logger is the logger used by the collection. Default is a debug logger to stderr.
	PageSize int          // PageSize is the number of posts revealed per page. Default is DefaultPageSize.
}

// Collection is the post list view: it holds a post collection and exposes the visible prefix of it under the
// current filter, sort order and page count. Like toggles are applied optimistically and rolled back on failure.
type Collection struct {
	likes    LikeStore
	logger   *slog.Logger
	pageSize int

	mu       sync.Mutex
	posts    []*Post
	index    map[string]int
	filter   FilterState
	filtered []*Post
	page     int
	gen      uint64 // bumped by SetPosts
	pending  map[string]struct{}
	closed   bool
	inflight sync.WaitGroup
}

// NewCollection creates a Collection over copies of posts. Like toggles are persisted through likes.
func NewCollection(likes LikeStore, posts []*Post, opts CollectionOptions) *Collection {
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}

	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}

	filter := DefaultFilter()
	if opts.Filter != nil {
		filter = *opts.Filter
	}

	c := &Collection{
		likes:    likes,
		logger:   opts.Logger,
		pageSize: opts.PageSize,
		filter:   filter,
		pending:  make(map[string]struct{}),
	}
	c.setPostsLocked(posts)

	return c
}

// SetPosts replaces the collection and resets to the first page.
func (c *Collection) SetPosts(posts []*Post) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setPostsLocked(posts)
}

func (c *Collection) setPostsLocked(posts []*Post) {
	c.gen++
	c.posts = ClonePosts(posts)
	c.index = make(map[string]int, len(c.posts))
	for i, p := range c.posts {
		c.index[p.ID] = i
	}
	c.recompute()
	c.page = 1
}

// Filter returns the current filter state.
func (c *Collection) Filter() FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.filter
}

// SetFilter replaces the whole filter state. The page count resets to 1 only when the filter changed.
func (c *Collection) SetFilter(filter FilterState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setFilterLocked(filter)
}

func (c *Collection) setFilterLocked(filter FilterState) {
	if filter.Equal(c.filter) {
		return
	}

	c.filter = filter
	c.recompute()
	c.page = 1
}

// updateFilter applies a change to a copy of the current filter.
func (c *Collection) updateFilter(change func(f *FilterState)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.filter
	change(&f)
	c.setFilterLocked(f)
}

func (c *Collection) SetSearch(search string) {
	c.updateFilter(func(f *FilterState) { f.Search = search })
}

func (c *Collection) SetCategory(category Category) {
	c.updateFilter(func(f *FilterState) { f.Category = category })
}

func (c *Collection) SetAuthor(author string) {
	c.updateFilter(func(f *FilterState) { f.Author = author })
}

func (c *Collection) SetDateRange(dr DateRange) {
	c.updateFilter(func(f *FilterState) { f.DateRange = dr })
}

func (c *Collection) SetSort(sortBy SortKey) {
	c.updateFilter(func(f *FilterState) { f.SortBy = sortBy })
}

// ClearFilters restores DefaultFilter.
func (c *Collection) ClearFilters() {
	c.SetFilter(DefaultFilter())
}

// LoadMore reveals the next page. It never re-filters and returns false when everything is already visible.
func (c *Collection) LoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page*c.pageSize >= len(c.filtered) {
		return false
	}

	c.page++
	return true
}

// Page returns a snapshot of the visible posts.
func (c *Collection) Page() Paginator {
	c.mu.Lock()
	defer c.mu.Unlock()

	return NewPaginator(c.filtered, c.page, c.pageSize)
}

// Post returns a copy of the post with the given ID.
func (c *Collection) Post(id string) (*Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.posts[i].Clone(), true
}

// Posts returns copies of the whole collection in its original order.
func (c *Collection) Posts() []*Post {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ClonePosts(c.posts)
}

// IsLikePending returns true while a like toggle for the post is in flight. The like control should be disabled.
func (c *Collection) IsLikePending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.pending[id]
	return ok
}

// ToggleLike flips the liked state of a post immediately and persists it in the background.
// The returned channel receives the persist result once and is then closed. On failure the post's liked flag and
// like count are restored to their values before the toggle. Only one toggle per post may be in flight.
func (c *Collection) ToggleLike(ctx context.Context, id string) (<-chan error, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCollectionClosed
	}

	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}

	if _, busy := c.pending[id]; busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrLikePending, id)
	}

	post := c.posts[i]
	prevLiked, prevLikes := post.IsLiked, post.Likes
	post.SetLiked(!prevLiked)
	liked := post.IsLiked
	c.pending[id] = struct{}{}
	gen := c.gen
	c.recompute()
	c.inflight.Add(1)
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer c.inflight.Done()
		defer close(done)

		err := c.likes.Like(ctx, id, liked)
		if err != nil {
			err = fmt.Errorf("failed to persist like for post %s: %w", id, err)
		}
		c.completeLike(id, gen, prevLiked, prevLikes, err)
		done <- err
	}()

	return done, nil
}

// completeLike settles a toggle. A rollback applies only to the collection the toggle was made on; after SetPosts
// the replacement posts are left as given.
func (c *Collection) completeLike(id string, gen uint64, prevLiked bool, prevLikes int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, id)

	if c.closed {
		c.logger.Debug("Discarding like result after close", slog.String("post", id))
		return
	}

	if err == nil {
		return
	}

	if gen != c.gen {
		c.logger.Debug("Skipping like rollback for replaced collection", slog.String("post", id))
		return
	}

	i, ok := c.index[id]
	if !ok {
		return
	}

	post := c.posts[i]
	post.IsLiked = prevLiked
	post.Likes = prevLikes
	c.recompute()

	c.logger.Warn("Rolled back like toggle",
		slog.String("post", id),
		slog.Bool("liked", prevLiked),
		slog.Int("likes", prevLikes),
		slog.String("error", err.Error()))
}

// Wait blocks until every in-flight like toggle has completed.
func (c *Collection) Wait() {
	c.inflight.Wait()
}

// Close stops accepting like toggles. Results of toggles still in flight are discarded.
func (c *Collection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

// recompute re-filters and re-sorts the collection without touching the page count.
func (c *Collection) recompute() {
	c.filtered = c.filter.Apply(c.posts)
}
