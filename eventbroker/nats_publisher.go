package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hypergopher/blogflow"
)

const (
	SubjectPostPublished = "post.published"
	SubjectPostLiked     = "post.liked"
)

// EventPublisher announces post changes to other services.
type EventPublisher interface {
	PublishPostPublished(ctx context.Context, post *blogflow.Post) error
	PublishPostLiked(ctx context.Context, postID string, liked bool) error
}

// msgPublisher is the part of *nats.Conn the publisher uses.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

type NatsPublisher struct {
	nc     msgPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewNatsPublisher(nc *nats.Conn, logger *slog.Logger) *NatsPublisher {
	return newPublisher(nc, logger)
}

func newPublisher(nc msgPublisher, logger *slog.Logger) *NatsPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NatsPublisher{nc: nc, logger: logger, now: time.Now}
}

// PostPublishedEvent is the payload of SubjectPostPublished.
type PostPublishedEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	AuthorID    string    `json:"author_id"`
	PublishedAt time.Time `json:"published_at"`
}

// PostLikedEvent is the payload of SubjectPostLiked.
type PostLikedEvent struct {
	ID      string    `json:"id"`
	Liked   bool      `json:"liked"`
	LikedAt time.Time `json:"liked_at"`
}

func (p *NatsPublisher) PublishPostPublished(_ context.Context, post *blogflow.Post) error {
	event := PostPublishedEvent{
		ID:          post.ID,
		Title:       post.Title,
		Category:    post.Category.String(),
		AuthorID:    post.Author.ID,
		PublishedAt: post.PublishedAt,
	}
	return p.publish(SubjectPostPublished, post.ID, event)
}

func (p *NatsPublisher) PublishPostLiked(_ context.Context, postID string, liked bool) error {
	event := PostLikedEvent{
		ID:      postID,
		Liked:   liked,
		LikedAt: p.now(),
	}
	return p.publish(SubjectPostLiked, postID, event)
}

func (p *NatsPublisher) publish(subject, postID string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Post-Id", postID)

	p.logger.Debug("Publishing event", slog.String("subject", subject), slog.String("post", postID))
	return p.nc.PublishMsg(msg)
}
