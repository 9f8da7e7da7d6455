package blogflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryPostStore implements PostStore using in-memory storage. Posts are listed in insertion order.
type MemoryPostStore struct {
	mu     sync.RWMutex
	posts  map[string]*Post
	order  []string
	drafts map[string]*Draft
	now    func() time.Time
}

// NewMemoryPostStore creates a new MemoryPostStore holding copies of the given posts.
func NewMemoryPostStore(posts ...*Post) *MemoryPostStore {
	m := &MemoryPostStore{
		posts:  make(map[string]*Post),
		drafts: make(map[string]*Draft),
		now:    time.Now,
	}
	_ = m.Put(context.Background(), posts...)
	return m
}

// Put creates or replaces posts.
func (m *MemoryPostStore) Put(_ context.Context, posts ...*Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, post := range posts {
		m.putLocked(post.Clone())
	}
	return nil
}

func (m *MemoryPostStore) putLocked(post *Post) {
	if _, exists := m.posts[post.ID]; !exists {
		m.order = append(m.order, post.ID)
	}
	m.posts[post.ID] = post
}

// List returns copies of all posts
func (m *MemoryPostStore) List(_ context.Context) ([]*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts := make([]*Post, 0, len(m.order))
	for _, id := range m.order {
		posts = append(posts, m.posts[id].Clone())
	}
	return posts, nil
}

// Get retrieves a post from the store
func (m *MemoryPostStore) Get(_ context.Context, id string) (*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, exists := m.posts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	return post.Clone(), nil
}

// Like sets the liked flag of a post and adjusts its counter when the flag changes.
func (m *MemoryPostStore) Like(_ context.Context, postID string, liked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	post, exists := m.posts[postID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	post.SetLiked(liked)
	return nil
}

// GetDraft retrieves a draft from the store
func (m *MemoryPostStore) GetDraft(_ context.Context, id string) (*Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	draft, exists := m.drafts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return draft.Clone(), nil
}

// SaveDraft stores a copy of the draft with its UpdatedAt set.
func (m *MemoryPostStore) SaveDraft(_ context.Context, draft *Draft) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := draft.Clone()
	saved.UpdatedAt = m.now()
	m.drafts[saved.ID] = saved
	return saved.Clone(), nil
}

// Publish renders the draft into a post. Republishing keeps the counters of the existing post.
func (m *MemoryPostStore) Publish(_ context.Context, draft *Draft) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	post, err := draft.ToPost(now)
	if err != nil {
		return nil, err
	}

	if existing, ok := m.posts[post.ID]; ok {
		post.CarryCounters(existing)
	}
	m.putLocked(post)

	saved := draft.Clone()
	saved.Status = StatusPublished
	saved.UpdatedAt = now
	m.drafts[saved.ID] = saved

	return post.Clone(), nil
}

// Search matches the query the same way the post list search does.
func (m *MemoryPostStore) Search(ctx context.Context, query string, limit int) ([]*Post, error) {
	posts, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	found := FilterState{Search: query}.Apply(posts)
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// MemoryProfileStore implements ProfileStore using in-memory storage.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	now      func() time.Time
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[string]*Profile),
		now:      time.Now,
	}
}

// GetProfile returns a copy of the user's profile.
func (m *MemoryProfileStore) GetProfile(_ context.Context, userID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	cp := *profile
	return &cp, nil
}

// UpsertProfile creates the profile or replaces its fields.
func (m *MemoryProfileStore) UpsertProfile(_ context.Context, userID string, fields ProfileFields) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	profile, ok := m.profiles[userID]
	if !ok {
		profile = &Profile{UserID: userID, CreatedAt: now}
		m.profiles[userID] = profile
	}
	profile.ProfileFields = fields
	profile.UpdatedAt = now

	cp := *profile
	return &cp, nil
}
