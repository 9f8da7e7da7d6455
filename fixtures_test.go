package blogflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hypergopher/blogflow"
)

var (
	sarah   = blogflow.Author{ID: "sarah", Name: "Sarah Johnson"}
	michael = blogflow.Author{ID: "michael", Name: "Michael Chen"}
	emma    = blogflow.Author{ID: "emma", Name: "Emma Wilson"}
)

var errStore = errors.New("store unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// samplePosts returns twelve posts p01..p12, published on March 1..12 2024.
// Only p01 and p09 mention "react".
func samplePosts() []*blogflow.Post {
	rows := []struct {
		title    string
		category blogflow.Category
		author   blogflow.Author
		likes    int
		comments int
		views    int
	}{
		{"Getting Started with React Hooks", blogflow.CategoryTechnology, sarah, 10, 2, 100},
		{"Designing Accessible Interfaces", blogflow.CategoryDesign, michael, 25, 8, 300},
		{"Scaling a Small Business", blogflow.CategoryBusiness, emma, 5, 1, 50},
		{"Morning Routines That Work", blogflow.CategoryLifestyle, sarah, 40, 12, 900},
		{"Backpacking Through Patagonia", blogflow.CategoryTravel, michael, 15, 3, 220},
		{"The Perfect Sourdough", blogflow.CategoryFood, emma, 25, 6, 410},
		{"Sleep and Productivity", blogflow.CategoryHealth, sarah, 8, 0, 75},
		{"Teaching Kids to Code", blogflow.CategoryEducation, michael, 12, 4, 130},
		{"State Management in React Apps", blogflow.CategoryTechnology, emma, 30, 9, 500},
		{"Color Theory for Developers", blogflow.CategoryDesign, sarah, 3, 1, 60},
		{"Remote Team Rituals", blogflow.CategoryBusiness, michael, 18, 5, 240},
		{"Zero Waste Kitchen", blogflow.CategoryLifestyle, emma, 22, 7, 310},
	}

	posts := make([]*blogflow.Post, len(rows))
	for i, r := range rows {
		posts[i] = &blogflow.Post{
			ID:          fmt.Sprintf("p%02d", i+1),
			Title:       r.title,
			Excerpt:     "Notes on " + strings.ToLower(r.title) + ".",
			Content:     "<p>" + r.title + "</p>",
			Category:    r.category,
			Tags:        []string{string(r.category)},
			Author:      r.author,
			PublishedAt: time.Date(2024, 3, i+1, 9, 0, 0, 0, time.UTC),
			Likes:       r.likes,
			Comments:    r.comments,
			Views:       r.views,
			ReadTime:    5,
		}
	}
	return posts
}

func postIDs(posts []*blogflow.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

type likeCall struct {
	id    string
	liked bool
}

// fakeLikes is a LikeStore whose calls can be held open and made to fail.
type fakeLikes struct {
	mu    sync.Mutex
	calls []likeCall
	err   error
	block chan struct{}
}

func (f *fakeLikes) Like(ctx context.Context, id string, liked bool) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, likeCall{id: id, liked: liked})
	return f.err
}

func (f *fakeLikes) Calls() []likeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]likeCall(nil), f.calls...)
}

// fakeDrafts is a DraftStore that records saves, can be held open, and tracks concurrent saves.
type fakeDrafts struct {
	mu          sync.Mutex
	saves       []*blogflow.Draft
	published   []*blogflow.Draft
	saveErr     error
	publishErr  error
	block       chan struct{}
	entered     chan struct{}
	inflight    int
	maxInflight int
	now         time.Time
}

func newFakeDrafts(now time.Time) *fakeDrafts {
	return &fakeDrafts{now: now, entered: make(chan struct{}, 16)}
}

func (f *fakeDrafts) SaveDraft(_ context.Context, d *blogflow.Draft) (*blogflow.Draft, error) {
	f.mu.Lock()
	f.inflight++
	f.maxInflight = max(f.maxInflight, f.inflight)
	f.mu.Unlock()

	select {
	case f.entered <- struct{}{}:
	default:
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	f.saves = append(f.saves, d.Clone())
	if f.saveErr != nil {
		return nil, f.saveErr
	}

	saved := d.Clone()
	saved.UpdatedAt = f.now
	return saved, nil
}

func (f *fakeDrafts) Publish(_ context.Context, d *blogflow.Draft) (*blogflow.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, d.Clone())
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	return d.ToPost(f.now)
}

func (f *fakeDrafts) Saves() []*blogflow.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*blogflow.Draft(nil), f.saves...)
}

func (f *fakeDrafts) Published() []*blogflow.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*blogflow.Draft(nil), f.published...)
}

func (f *fakeDrafts) MaxInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}
