package blogflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultAutoSaveInterval is how often a dirty draft is saved while the editor runs.
const DefaultAutoSaveInterval = 30 * time.Second

// EditorState is the save state of an editor session.
type EditorState int

const (
	StateClean EditorState = iota
	StateDirty
	StateSaving
)

func (s EditorState) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("EditorState(%d)", int(s))
	}
}

// EditorOptions is a struct for configuring a new Editor.
type EditorOptions struct {
	AutoSaveInterval time.Duration    // AutoSaveInterval is the auto-save tick period. Default is 30 seconds.
	Logger           *slog.Logger     // Logger is the logger used by the editor. Default is a debug logger to stderr.
	Now              func() time.Time // Now is the clock used for schedule checks and save times. Default is time.Now.
}

// Editor is a draft editor session. It holds one draft, tracks unsaved changes, and saves on request or on an
// auto-save tick. At most one save or publish is in flight; a request made meanwhile is rejected, not queued.
type Editor struct {
	store    DraftStore
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu        sync.Mutex
	draft     *Draft
	state     EditorState
	revision  uint64 // bumped by every edit
	lastSaved time.Time
	lastErr   error
	started   bool
	closed    bool
	stop      chan struct{}
	loop      sync.WaitGroup
}

// NewEditor opens an editor session. A nil draft starts a new empty post; otherwise the draft is edited in place
// of a copy. The session starts clean.
func NewEditor(store DraftStore, draft *Draft, opts EditorOptions) *Editor {
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}

	if opts.AutoSaveInterval <= 0 {
		opts.AutoSaveInterval = DefaultAutoSaveInterval
	}

	if draft == nil {
		draft = NewDraft()
	} else {
		draft = draft.Clone()
		if draft.ID == "" {
			draft.ID = NewDraft().ID
		}
		if draft.Status == "" {
			draft.Status = StatusDraft
		}
	}

	return &Editor{
		store:     store,
		logger:    opts.Logger,
		now:       orNow(opts.Now),
		interval:  opts.AutoSaveInterval,
		draft:     draft,
		state:     StateClean,
		lastSaved: draft.UpdatedAt,
		stop:      make(chan struct{}),
	}
}

// Draft returns a copy of the draft being edited.
func (e *Editor) Draft() *Draft {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.draft.Clone()
}

// State returns the save state.
func (e *Editor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// IsDirty returns true if there are changes that have not been saved.
func (e *Editor) IsDirty() bool {
	return e.State() != StateClean
}

// LastSaved returns the time of the last successful save, or the zero time.
func (e *Editor) LastSaved() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastSaved
}

// LastError returns the error of the last failed save, cleared by the next successful one.
func (e *Editor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastErr
}

// edit applies a change to the draft and marks the session dirty if anything changed.
// A change made while saving keeps the state Saving; the session ends dirty when that save completes.
func (e *Editor) edit(change func(d *Draft) bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !change(e.draft) {
		return
	}

	e.revision++
	if e.state == StateClean {
		e.state = StateDirty
	}
}

func (e *Editor) SetTitle(title string) {
	e.edit(func(d *Draft) bool {
		if d.Title == title {
			return false
		}
		d.Title = title
		return true
	})
}

func (e *Editor) SetBody(body string) {
	e.edit(func(d *Draft) bool {
		if d.Body == body {
			return false
		}
		d.Body = body
		return true
	})
}

func (e *Editor) SetExcerpt(excerpt string) {
	e.edit(func(d *Draft) bool {
		if d.Excerpt == excerpt {
			return false
		}
		d.Excerpt = excerpt
		return true
	})
}

func (e *Editor) SetFeaturedImage(image string) {
	e.edit(func(d *Draft) bool {
		if d.FeaturedImage == image {
			return false
		}
		d.FeaturedImage = image
		return true
	})
}

// SetMeta sets the SEO title and description.
func (e *Editor) SetMeta(title, description string) {
	e.edit(func(d *Draft) bool {
		if d.MetaTitle == title && d.MetaDescription == description {
			return false
		}
		d.MetaTitle = title
		d.MetaDescription = description
		return true
	})
}

// SetCategory selects the category. An empty category clears the selection.
func (e *Editor) SetCategory(category Category) error {
	if category != "" && !category.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidCategory, category)
	}

	e.edit(func(d *Draft) bool {
		if d.Category == category {
			return false
		}
		d.Category = category
		return true
	})
	return nil
}

// SetStatus switches between draft and private. Publishing and scheduling go through Publish and Schedule.
func (e *Editor) SetStatus(status DraftStatus) error {
	if status != StatusDraft && status != StatusPrivate {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	e.edit(func(d *Draft) bool {
		if d.Status == status {
			return false
		}
		d.Status = status
		d.ScheduledAt = time.Time{}
		return true
	})
	return nil
}

// AddTag adds a tag. Empty and duplicate tags are ignored.
func (e *Editor) AddTag(tag string) {
	e.edit(func(d *Draft) bool { return d.AddTag(tag) })
}

// RemoveTag removes a tag if present.
func (e *Editor) RemoveTag(tag string) {
	e.edit(func(d *Draft) bool { return d.RemoveTag(tag) })
}

// Schedule marks the draft to be published at a future time. It does not publish.
// Like the other setters it is ignored once the editor is closed.
func (e *Editor) Schedule(at time.Time) error {
	if !at.After(e.now()) {
		return fmt.Errorf("%w: %s", ErrScheduleInPast, at.Format(time.RFC3339))
	}

	e.edit(func(d *Draft) bool {
		if d.Status == StatusScheduled && d.ScheduledAt.Equal(at) {
			return false
		}
		d.Status = StatusScheduled
		d.ScheduledAt = at
		return true
	})
	return nil
}

// Save persists the draft if it has unsaved changes. It returns ErrSaveInProgress if a save is already in flight.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEditorClosed
	}

	switch e.state {
	case StateSaving:
		e.mu.Unlock()
		return ErrSaveInProgress
	case StateClean:
		e.mu.Unlock()
		return nil
	}

	snapshot, rev := e.beginSaveLocked()
	e.mu.Unlock()

	return e.persist(ctx, snapshot, rev)
}

// AutoSave runs one auto-save tick. It saves only when the session is dirty, no save is in flight, and the draft
// has a title or a body. It returns true if a save was attempted.
func (e *Editor) AutoSave(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false, ErrEditorClosed
	}

	if e.state != StateDirty || e.draft.IsEmpty() {
		e.mu.Unlock()
		return false, nil
	}

	snapshot, rev := e.beginSaveLocked()
	e.mu.Unlock()

	return true, e.persist(ctx, snapshot, rev)
}

func (e *Editor) beginSaveLocked() (*Draft, uint64) {
	e.state = StateSaving
	return e.draft.Clone(), e.revision
}

func (e *Editor) persist(ctx context.Context, snapshot *Draft, rev uint64) error {
	saved, err := e.store.SaveDraft(ctx, snapshot)
	if err != nil {
		err = fmt.Errorf("failed to save draft %s: %w", snapshot.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return err
	}

	e.finishLocked(rev, err)
	if err == nil && saved != nil {
		e.draft.UpdatedAt = saved.UpdatedAt
	}
	return err
}

// finishLocked moves out of Saving once a persist call returns.
func (e *Editor) finishLocked(rev uint64, err error) {
	if err != nil {
		e.state = StateDirty
		e.lastErr = err
		e.logger.Warn("Draft save failed, changes kept",
			slog.String("draft", e.draft.ID),
			slog.String("error", err.Error()))
		return
	}

	e.lastSaved = e.now()
	e.lastErr = nil
	if e.revision == rev {
		e.state = StateClean
	} else {
		e.state = StateDirty
	}
}

// Publish validates and publishes the draft. A draft missing its title, body or category is rejected with a
// *ValidationError naming each missing field and its status is left unchanged.
func (e *Editor) Publish(ctx context.Context) (*Post, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEditorClosed
	}

	if err := e.draft.ValidateForPublish(); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	if e.state == StateSaving {
		e.mu.Unlock()
		return nil, ErrSaveInProgress
	}

	snapshot, rev := e.beginSaveLocked()
	snapshot.Status = StatusPublished
	snapshot.ScheduledAt = time.Time{}
	e.mu.Unlock()

	post, err := e.store.Publish(ctx, snapshot)
	if err != nil {
		err = fmt.Errorf("failed to publish draft %s: %w", snapshot.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return post, err
	}

	e.finishLocked(rev, err)
	if err != nil {
		return nil, err
	}

	e.draft.Status = StatusPublished
	e.draft.ScheduledAt = time.Time{}
	e.logger.Info("Published draft", slog.String("draft", e.draft.ID), slog.String("title", post.Title))
	return post, nil
}

// Start runs the auto-save ticker until ctx is done or the editor is closed.
func (e *Editor) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started || e.closed {
		return
	}
	e.started = true

	e.loop.Add(1)
	go e.run(ctx)
}

func (e *Editor) run(ctx context.Context) {
	defer e.loop.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			saved, err := e.AutoSave(ctx)
			switch {
			case errors.Is(err, ErrEditorClosed):
				return
			case err != nil:
				e.logger.Warn("Auto-save failed", slog.String("error", err.Error()))
			case saved:
				e.logger.Debug("Auto-saved draft", slog.String("draft", e.Draft().ID))
			}
		}
	}
}

// Close stops the auto-save ticker and returns without waiting. A save still in flight is not cancelled, but its
// result no longer changes the session.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	close(e.stop)
}

// Wait blocks until the auto-save goroutine has exited, including any save it still has in flight.
func (e *Editor) Wait() {
	e.loop.Wait()
}
