package blogflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hypergopher/blogflow"
)

func TestNewPaginator(t *testing.T) {
	posts := samplePosts()

	tests := []struct {
		name        string
		posts       []*blogflow.Post
		page        int
		size        int
		wantLoaded  int
		wantPages   int
		wantHasMore bool
		wantHasAny  bool
	}{
		{"First page", posts, 1, 9, 9, 2, true, true},
		{"Second page shows the rest", posts, 2, 9, 12, 2, false, true},
		{"Page past the end is capped", posts, 5, 9, 12, 2, false, true},
		{"Exact fit", posts, 3, 4, 12, 3, false, true},
		{"Empty", nil, 1, 9, 0, 0, false, false},
		{"Zero page is page one", posts, 0, 5, 5, 3, true, true},
		{"Zero size uses the default", posts, 1, 0, blogflow.DefaultPageSize, 2, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := blogflow.NewPaginator(tt.posts, tt.page, tt.size)
			assert.Equal(t, tt.wantLoaded, p.LoadedPosts)
			assert.Len(t, p.Posts, tt.wantLoaded)
			assert.Equal(t, len(tt.posts), p.FilteredPosts)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.wantHasMore, p.HasMore)
			assert.Equal(t, tt.wantHasAny, p.HasPosts)
		})
	}
}

func TestNewPaginator_PostsAreCopies(t *testing.T) {
	posts := samplePosts()
	p := blogflow.NewPaginator(posts, 1, 3)

	p.Posts[0].Likes = 999
	p.Posts[0].Tags[0] = "changed"

	assert.Equal(t, 10, posts[0].Likes)
	assert.Equal(t, "technology", posts[0].Tags[0])
}
