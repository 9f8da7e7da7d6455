package eventbroker

import (
	"context"
	"log/slog"

	"github.com/hypergopher/blogflow"
)

// Store wraps a blogflow.Store and announces likes and publishes after they are persisted.
// A failed announcement is logged and never fails the store call.
type Store struct {
	blogflow.Store
	events EventPublisher
	logger *slog.Logger
}

func NewStore(store blogflow.Store, events EventPublisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: store, events: events, logger: logger}
}

func (s *Store) Like(ctx context.Context, postID string, liked bool) error {
	if err := s.Store.Like(ctx, postID, liked); err != nil {
		return err
	}

	if err := s.events.PublishPostLiked(ctx, postID, liked); err != nil {
		s.logger.Warn("Failed to publish like event", slog.String("post", postID), slog.String("error", err.Error()))
	}
	return nil
}

func (s *Store) Publish(ctx context.Context, draft *blogflow.Draft) (*blogflow.Post, error) {
	post, err := s.Store.Publish(ctx, draft)
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishPostPublished(ctx, post); err != nil {
		s.logger.Warn("Failed to publish post event", slog.String("post", post.ID), slog.String("error", err.Error()))
	}
	return post, nil
}

// Search delegates to the wrapped store's search.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*blogflow.Post, error) {
	return blogflow.SearchStore(ctx, s.Store, query, limit)
}

// CategoryCounts delegates to the wrapped store's counts.
func (s *Store) CategoryCounts(ctx context.Context) (map[blogflow.Category]int, error) {
	return blogflow.CountCategories(ctx, s.Store)
}
