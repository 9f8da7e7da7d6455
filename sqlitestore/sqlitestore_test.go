package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/blogflow"
	"github.com/hypergopher/blogflow/sqlitestore"
)

func setupTestEnvironment(t *testing.T) *sqlitestore.SQLiteStore {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlitestore.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create SQLite db: %v", err)
	}

	// Call init and create a new SQLiteStore db
	store := sqlitestore.NewSQLiteStore(db, "posts")
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}

	return store
}

func teardownTestEnvironment(t *testing.T, store *sqlitestore.SQLiteStore) {
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}
}

func testPosts() []*blogflow.Post {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return []*blogflow.Post{
		{
			ID: "p01", Title: "Getting Started with React Hooks", Excerpt: "Hooks from the ground up.",
			Content: "<p>Hooks</p>", Category: blogflow.CategoryTechnology, Tags: []string{"react", "hooks"},
			Author:      blogflow.Author{ID: "sarah", Name: "Sarah Johnson", AvatarURL: "https://example.com/s.png"},
			PublishedAt: base, Likes: 10, Comments: 2, Views: 100, ReadTime: 5,
		},
		{
			ID: "p02", Title: "Designing Accessible Interfaces", Excerpt: "Contrast, focus and motion.",
			Content: "<p>A11y</p>", Category: blogflow.CategoryDesign, Tags: []string{"a11y"},
			Author:      blogflow.Author{ID: "michael", Name: "Michael Chen"},
			PublishedAt: base.AddDate(0, 0, 1), Likes: 25, Comments: 8, Views: 300, ReadTime: 7,
		},
		{
			ID: "p03", Title: "State Management in React Apps", Excerpt: "Stores, signals and context.",
			Content: "<p>State</p>", Category: blogflow.CategoryTechnology,
			Author:      blogflow.Author{ID: "emma", Name: "Emma Wilson"},
			PublishedAt: base.AddDate(0, 0, 2), Likes: 30, Comments: 9, Views: 500, ReadTime: 9, IsNew: true,
		},
	}
}

func seed(t *testing.T, store *sqlitestore.SQLiteStore) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), testPosts()...))
}

func TestSQLiteStore_Init(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)

	// Init is idempotent
	assert.NoError(t, store.Init(context.Background()))
}

func TestSQLiteStore_PutAndGet(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)
	seed(t, store)

	ctx := context.Background()
	want := testPosts()[0]

	post, err := store.Get(ctx, "p01")
	require.NoError(t, err)
	assert.Equal(t, want.Title, post.Title)
	assert.Equal(t, want.Excerpt, post.Excerpt)
	assert.Equal(t, want.Content, post.Content)
	assert.Equal(t, want.Category, post.Category)
	assert.Equal(t, want.Tags, post.Tags)
	assert.Equal(t, want.Author, post.Author)
	assert.True(t, want.PublishedAt.Equal(post.PublishedAt))
	assert.Equal(t, want.Likes, post.Likes)
	assert.Equal(t, want.Comments, post.Comments)
	assert.Equal(t, want.Views, post.Views)
	assert.Equal(t, want.ReadTime, post.ReadTime)

	p3, err := store.Get(ctx, "p03")
	require.NoError(t, err)
	assert.True(t, p3.IsNew)
	assert.Empty(t, p3.Tags)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, blogflow.ErrPostNotFound)
}

func TestSQLiteStore_ListKeepsOrder(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)
	seed(t, store)

	ctx := context.Background()

	// Replacing a post keeps its position and rewrites its tags
	updated := testPosts()[0]
	updated.Title = "React Hooks, Revisited"
	updated.Tags = []string{"hooks"}
	require.NoError(t, store.Put(ctx, updated))

	posts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p01", posts[0].ID)
	assert.Equal(t, "React Hooks, Revisited", posts[0].Title)
	assert.Equal(t, []string{"hooks"}, posts[0].Tags)
	assert.Equal(t, "p02", posts[1].ID)
	assert.Equal(t, "p03", posts[2].ID)
}

func TestSQLiteStore_Search(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)
	seed(t, store)

	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"Title word", "react", []string{"p01", "p03"}},
		{"Prefix", "acces", []string{"p02"}},
		{"Author name", "wilson", []string{"p03"}},
		{"Category", "design", []string{"p02"}},
		{"Excerpt", "signals", []string{"p03"}},
		{"Every word must match", "react state", []string{"p03"}},
		{"Quotes are escaped", `"react`, []string{"p01", "p03"}},
		{"No match", "kubernetes", nil},
		{"Empty", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := store.Search(ctx, tt.query, 10)
			require.NoError(t, err)
			ids := make([]string, 0, len(posts))
			for _, p := range posts {
				ids = append(ids, p.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	// Search follows later edits
	updated := testPosts()[1]
	updated.Title = "Designing for Everyone"
	require.NoError(t, store.Put(ctx, updated))
	posts, err := store.Search(ctx, "accessible", 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestSQLiteStore_CategoryCounts(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)
	seed(t, store)

	counts, err := store.CategoryCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[blogflow.Category]int{
		blogflow.CategoryTechnology: 2,
		blogflow.CategoryDesign:     1,
	}, counts)
}

func TestSQLiteStore_Like(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)
	seed(t, store)

	ctx := context.Background()

	require.NoError(t, store.Like(ctx, "p02", true))
	require.NoError(t, store.Like(ctx, "p02", true))
	post, err := store.Get(ctx, "p02")
	require.NoError(t, err)
	assert.True(t, post.IsLiked)
	assert.Equal(t, 26, post.Likes)

	require.NoError(t, store.Like(ctx, "p02", false))
	post, _ = store.Get(ctx, "p02")
	assert.False(t, post.IsLiked)
	assert.Equal(t, 25, post.Likes)

	assert.ErrorIs(t, store.Like(ctx, "missing", true), blogflow.ErrPostNotFound)
}

func TestSQLiteStore_Drafts(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)
	seed(t, store)

	ctx := context.Background()

	_, err := store.GetDraft(ctx, "d1")
	assert.ErrorIs(t, err, blogflow.ErrDraftNotFound)

	draft := &blogflow.Draft{
		ID:       "d1",
		Title:    "New Post",
		Body:     "Some **markdown** body.",
		Category: blogflow.CategoryFood,
		Tags:     []string{"bread"},
		Status:   blogflow.StatusDraft,
	}
	saved, err := store.SaveDraft(ctx, draft)
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err := store.GetDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, draft.Title, got.Title)
	assert.Equal(t, draft.Body, got.Body)
	assert.Equal(t, draft.Tags, got.Tags)

	post, err := store.Publish(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "d1", post.ID)
	assert.Contains(t, post.Content, "<strong>markdown</strong>")

	stored, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bread"}, stored.Tags)

	got, err = store.GetDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, blogflow.StatusPublished, got.Status)

	posts, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 4)
}

func TestSQLiteStore_RepublishKeepsCounters(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)
	seed(t, store)

	ctx := context.Background()
	original, err := store.Get(ctx, "p02")
	require.NoError(t, err)

	draft := blogflow.DraftFromPost(original)
	draft.Title = "Designing Accessible Interfaces, Second Edition"
	post, err := store.Publish(ctx, draft)
	require.NoError(t, err)

	assert.Equal(t, original.Likes, post.Likes)
	assert.Equal(t, original.Views, post.Views)
	assert.True(t, original.PublishedAt.Equal(post.PublishedAt))

	stored, _ := store.Get(ctx, "p02")
	assert.Equal(t, "Designing Accessible Interfaces, Second Edition", stored.Title)
}

func TestSQLiteStore_Profiles(t *testing.T) {
	store := setupTestEnvironment(t)
	defer teardownTestEnvironment(t, store)

	ctx := context.Background()

	_, err := store.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, blogflow.ErrProfileNotFound)

	login := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	created, err := store.UpsertProfile(ctx, "u1", blogflow.ProfileFields{
		DisplayName: "Jo Park",
		Email:       "jo@example.com",
		Role:        blogflow.RoleReader,
		LastLogin:   login,
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "Jo Park", created.DisplayName)
	assert.True(t, login.Equal(created.LastLogin))

	updated, err := store.UpsertProfile(ctx, "u1", blogflow.ProfileFields{DisplayName: "Jo", Bio: "Hello."})
	require.NoError(t, err)
	assert.Equal(t, "Jo", updated.DisplayName)
	assert.Equal(t, "Hello.", updated.Bio)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
}
