package blogflow

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Comment is a reader comment on a post. Top-level comments carry replies; replies never do.
type Comment struct {
	ID        string     `json:"id"`
	PostID    string     `json:"postID"`
	ParentID  string     `json:"parentID,omitempty"`
	Author    Author     `json:"author"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	Replies   []*Comment `json:"replies,omitempty"`
}

func (c *Comment) clone() *Comment {
	cp := *c
	cp.Replies = make([]*Comment, len(c.Replies))
	for i, r := range c.Replies {
		rc := *r
		cp.Replies[i] = &rc
	}
	if len(c.Replies) == 0 {
		cp.Replies = nil
	}
	return &cp
}

// CommentThread holds the comments of one post, newest first. Replies are one level deep and kept oldest first
// under their parent.
type CommentThread struct {
	postID string
	now    func() time.Time

	mu       sync.Mutex
	comments []*Comment
}

// NewCommentThread creates an empty thread for a post. A nil now uses time.Now.
func NewCommentThread(postID string, now func() time.Time) *CommentThread {
	return &CommentThread{postID: postID, now: orNow(now)}
}

// Add posts a top-level comment.
func (t *CommentThread) Add(author Author, text string) (*Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	c := &Comment{
		ID:        uuid.NewString(),
		PostID:    t.postID,
		Author:    author,
		Text:      text,
		CreatedAt: t.now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.comments = append([]*Comment{c}, t.comments...)
	return c.clone(), nil
}

// Reply answers a comment. Replying to a reply attaches to that reply's parent.
func (t *CommentThread) Reply(parentID string, author Author, text string) (*Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.findLocked(parentID)
	if parent == nil {
		return nil, fmt.Errorf("%w: %s", ErrCommentNotFound, parentID)
	}

	r := &Comment{
		ID:        uuid.NewString(),
		PostID:    t.postID,
		ParentID:  parent.ID,
		Author:    author,
		Text:      text,
		CreatedAt: t.now(),
	}
	parent.Replies = append(parent.Replies, r)

	rc := *r
	return &rc, nil
}

// findLocked returns the top-level comment with the given ID, or the parent of the reply with that ID.
func (t *CommentThread) findLocked(id string) *Comment {
	for _, c := range t.comments {
		if c.ID == id {
			return c
		}
		for _, r := range c.Replies {
			if r.ID == id {
				return c
			}
		}
	}
	return nil
}

// Comments returns copies of the top-level comments, newest first.
func (t *CommentThread) Comments() []*Comment {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Comment, len(t.comments))
	for i, c := range t.comments {
		out[i] = c.clone()
	}
	return out
}

// Count returns the number of comments including replies.
func (t *CommentThread) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.comments)
	for _, c := range t.comments {
		n += len(c.Replies)
	}
	return n
}
