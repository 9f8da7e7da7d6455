package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hypergopher/blogflow"
)

// SQLiteStore keeps posts, drafts and profiles in SQLite. Every table name is prefixed with tableName.
// It implements blogflow.PostStore, blogflow.PostWriter, blogflow.Searcher, blogflow.CategoryCounter and
// blogflow.ProfileStore.
type SQLiteStore struct {
	db        *sql.DB
	tableName string
	now       func() time.Time
}

// Open opens a SQLite database at dbPath with the pragmas the store expects.
func Open(dbPath string) (*sql.DB, error) {
	// Note: the busy_timeout pragma must be first because
	// the connection needs to be set to block on busy before WAL mode
	// is set in case it hasn't been already set by another connection.
	pragmas := "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=journal_size_limit(200000000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=temp_store(MEMORY)&_pragma=cache_size(-16000)"

	db, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func NewSQLiteStore(db *sql.DB, tableName string) *SQLiteStore {
	return &SQLiteStore{db: db, tableName: tableName, now: time.Now}
}

// Init initializes the SQLiteStore, creating the necessary tables or indexes if they do not exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	query := `
		-- Table for holding posts
		CREATE TABLE IF NOT EXISTS ` + s.tableName + ` (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT,
			excerpt TEXT,
			content TEXT,
			featured_image TEXT,
			category TEXT,
			author_id TEXT,
			author_name TEXT,
			author_avatar TEXT,
			published TEXT,
			likes INTEGER NOT NULL DEFAULT 0,
			comments INTEGER NOT NULL DEFAULT 0,
			views INTEGER NOT NULL DEFAULT 0,
			read_time INTEGER NOT NULL DEFAULT 0,
			is_liked BOOL NOT NULL DEFAULT 0,
			is_new BOOL NOT NULL DEFAULT 0
		);

		-- Index on category
		CREATE INDEX IF NOT EXISTS ` + s.tableName + `_category_idx ON ` + s.tableName + `(category);

		-- Index on published date
		CREATE INDEX IF NOT EXISTS ` + s.tableName + `_published_idx ON ` + s.tableName + `(published);

		-- Table for tags, in display order
		CREATE TABLE IF NOT EXISTS ` + s.tableName + `_tags (
			post_id TEXT,
			position INTEGER,
			value TEXT,
			PRIMARY KEY(post_id, position),
			FOREIGN KEY(post_id) REFERENCES ` + s.tableName + `(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS ` + s.tableName + `_tags_value_idx ON ` + s.tableName + `_tags(value);

		-- Table for drafts
		CREATE TABLE IF NOT EXISTS ` + s.tableName + `_drafts (
			id TEXT PRIMARY KEY,
			status TEXT,
			data TEXT,
			updated TEXT
		);

		-- Table for profiles
		CREATE TABLE IF NOT EXISTS ` + s.tableName + `_profiles (
			user_id TEXT PRIMARY KEY,
			display_name TEXT,
			email TEXT,
			avatar_url TEXT,
			bio TEXT,
			website TEXT,
			twitter TEXT,
			location TEXT,
			role TEXT,
			provider_id TEXT,
			last_login TEXT,
			created TEXT,
			updated TEXT
		);

		-- Create virtual table for full-text search
		CREATE VIRTUAL TABLE IF NOT EXISTS ` + s.tableName + `_search USING fts5(
			title,
			excerpt,
			author,
			category
		);

		-- Trigger to update the full-text search table
		CREATE TRIGGER IF NOT EXISTS ` + s.tableName + `_search_ai AFTER INSERT ON ` + s.tableName + `
		BEGIN
			INSERT INTO ` + s.tableName + `_search(rowid, title, excerpt, author, category)
			VALUES(new.seq, new.title, new.excerpt, new.author_name, new.category);
		END;

		CREATE TRIGGER IF NOT EXISTS ` + s.tableName + `_search_ad AFTER DELETE ON ` + s.tableName + `
		BEGIN
			DELETE FROM ` + s.tableName + `_search WHERE rowid = old.seq;
		END;

		CREATE TRIGGER IF NOT EXISTS ` + s.tableName + `_search_au AFTER UPDATE OF title, excerpt, author_name, category ON ` + s.tableName + `
		BEGIN
			DELETE FROM ` + s.tableName + `_search WHERE rowid = old.seq;
			INSERT INTO ` + s.tableName + `_search(rowid, title, excerpt, author, category)
			VALUES(new.seq, new.title, new.excerpt, new.author_name, new.category);
		END;
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

const postColumns = `id, title, excerpt, content, featured_image, category,
	author_id, author_name, author_avatar, published,
	likes, comments, views, read_time, is_liked, is_new`

// Put creates or replaces posts. A replaced post keeps its list position.
func (s *SQLiteStore) Put(ctx context.Context, posts ...*blogflow.Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, post := range posts {
		if err := s.upsertPost(ctx, tx, post); err != nil {
			return fmt.Errorf("error storing post %s: %w", post.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) upsertPost(ctx context.Context, tx *sql.Tx, post *blogflow.Post) error {
	query := `
		INSERT INTO ` + s.tableName + ` (` + postColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, excerpt = excluded.excerpt, content = excluded.content,
			featured_image = excluded.featured_image, category = excluded.category,
			author_id = excluded.author_id, author_name = excluded.author_name, author_avatar = excluded.author_avatar,
			published = excluded.published, likes = excluded.likes, comments = excluded.comments,
			views = excluded.views, read_time = excluded.read_time, is_liked = excluded.is_liked, is_new = excluded.is_new
	`
	if _, err := tx.ExecContext(ctx, query,
		post.ID, post.Title, post.Excerpt, post.Content, post.FeaturedImage, string(post.Category),
		post.Author.ID, post.Author.Name, post.Author.AvatarURL, formatTime(post.PublishedAt),
		post.Likes, post.Comments, post.Views, post.ReadTime, post.IsLiked, post.IsNew); err != nil {
		return err
	}

	// Delete existing tags
	query = `DELETE FROM ` + s.tableName + `_tags WHERE post_id = ?`
	if _, err := tx.ExecContext(ctx, query, post.ID); err != nil {
		return err
	}

	return s.insertTags(ctx, tx, post)
}

func (s *SQLiteStore) insertTags(ctx context.Context, tx *sql.Tx, post *blogflow.Post) error {
	for i, tag := range post.Tags {
		query := `INSERT INTO ` + s.tableName + `_tags (post_id, position, value) VALUES (?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, post.ID, i, tag); err != nil {
			return err
		}
	}
	return nil
}

// List returns every post in the order it was first stored.
func (s *SQLiteStore) List(ctx context.Context) ([]*blogflow.Post, error) {
	query := `SELECT ` + postColumns + ` FROM ` + s.tableName + ` ORDER BY seq`
	return s.queryPosts(ctx, query)
}

// Get retrieves a post by its ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*blogflow.Post, error) {
	query := `SELECT ` + postColumns + ` FROM ` + s.tableName + ` WHERE id = ?`
	posts, err := s.queryPosts(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("%w: %s", blogflow.ErrPostNotFound, id)
	}
	return posts[0], nil
}

// Search runs an FTS5 prefix query over title, excerpt, author and category, best match first.
func (s *SQLiteStore) Search(ctx context.Context, q string, limit int) ([]*blogflow.Post, error) {
	match := ftsMatch(q)
	if match == "" {
		return nil, nil
	}

	if limit < 1 {
		limit = 10
	}

	search := s.tableName + `_search`
	query := `
		SELECT ` + prefixColumns("p.", postColumns) + `
		FROM ` + search + `
		JOIN ` + s.tableName + ` p ON p.seq = ` + search + `.rowid
		WHERE ` + search + ` MATCH ?
		ORDER BY ` + search + `.rank
		LIMIT ?
	`
	return s.queryPosts(ctx, query, match, limit)
}

// CategoryCounts returns the number of stored posts per category.
func (s *SQLiteStore) CategoryCounts(ctx context.Context) (map[blogflow.Category]int, error) {
	query := `SELECT category, COUNT(*) FROM ` + s.tableName + ` WHERE category != '' GROUP BY category`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[blogflow.Category]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[blogflow.Category(category)] = count
	}
	return counts, rows.Err()
}

// Like sets the liked flag of a post and adjusts its counter when the flag changes.
func (s *SQLiteStore) Like(ctx context.Context, postID string, liked bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	post := &blogflow.Post{ID: postID}
	query := `SELECT likes, is_liked FROM ` + s.tableName + ` WHERE id = ?`
	err = tx.QueryRowContext(ctx, query, postID).Scan(&post.Likes, &post.IsLiked)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", blogflow.ErrPostNotFound, postID)
	}
	if err != nil {
		return err
	}

	post.SetLiked(liked)

	query = `UPDATE ` + s.tableName + ` SET likes = ?, is_liked = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query, post.Likes, post.IsLiked, postID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetDraft retrieves a draft by its ID.
func (s *SQLiteStore) GetDraft(ctx context.Context, id string) (*blogflow.Draft, error) {
	var data string
	query := `SELECT data FROM ` + s.tableName + `_drafts WHERE id = ?`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", blogflow.ErrDraftNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var draft blogflow.Draft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, fmt.Errorf("error deserializing draft %s: %w", id, err)
	}
	return &draft, nil
}

// SaveDraft stores a copy of the draft with its UpdatedAt set.
func (s *SQLiteStore) SaveDraft(ctx context.Context, draft *blogflow.Draft) (*blogflow.Draft, error) {
	saved := draft.Clone()
	saved.UpdatedAt = s.now()

	if err := s.writeDraft(ctx, s.db, saved); err != nil {
		return nil, fmt.Errorf("error saving draft %s: %w", draft.ID, err)
	}
	return saved, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) writeDraft(ctx context.Context, db execer, draft *blogflow.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}

	query := `REPLACE INTO ` + s.tableName + `_drafts (id, status, data, updated) VALUES (?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query, draft.ID, draft.Status.String(), string(data), formatTime(draft.UpdatedAt))
	return err
}

// Publish renders the draft into a post and stores both in one transaction. Republishing keeps the counters of
// the existing post.
func (s *SQLiteStore) Publish(ctx context.Context, draft *blogflow.Draft) (*blogflow.Post, error) {
	now := s.now()
	post, err := draft.ToPost(now)
	if err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, post.ID)
	switch {
	case err == nil:
		post.CarryCounters(existing)
	case !errors.Is(err, blogflow.ErrPostNotFound):
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err := s.upsertPost(ctx, tx, post); err != nil {
		return nil, fmt.Errorf("error publishing draft %s: %w", draft.ID, err)
	}

	saved := draft.Clone()
	saved.Status = blogflow.StatusPublished
	saved.UpdatedAt = now
	if err := s.writeDraft(ctx, tx, saved); err != nil {
		return nil, fmt.Errorf("error publishing draft %s: %w", draft.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return post, nil
}

const profileColumns = `user_id, display_name, email, avatar_url, bio, website, twitter, location,
	role, provider_id, last_login, created, updated`

// GetProfile returns the user's profile or blogflow.ErrProfileNotFound.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*blogflow.Profile, error) {
	var p blogflow.Profile
	var lastLogin, created, updated string

	query := `SELECT ` + profileColumns + ` FROM ` + s.tableName + `_profiles WHERE user_id = ?`
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.DisplayName, &p.Email, &p.AvatarURL, &p.Bio, &p.Website, &p.Twitter, &p.Location,
		&p.Role, &p.ProviderID, &lastLogin, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", blogflow.ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	if p.LastLogin, err = parseTime(lastLogin); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates the profile or replaces its fields. The creation time is kept on update.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, userID string, fields blogflow.ProfileFields) (*blogflow.Profile, error) {
	now := formatTime(s.now())
	query := `
		INSERT INTO ` + s.tableName + `_profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name, email = excluded.email, avatar_url = excluded.avatar_url,
			bio = excluded.bio, website = excluded.website, twitter = excluded.twitter, location = excluded.location,
			role = excluded.role, provider_id = excluded.provider_id, last_login = excluded.last_login,
			updated = excluded.updated
	`
	if _, err := s.db.ExecContext(ctx, query,
		userID, fields.DisplayName, fields.Email, fields.AvatarURL, fields.Bio, fields.Website, fields.Twitter,
		fields.Location, fields.Role, fields.ProviderID, formatTime(fields.LastLogin), now, now); err != nil {
		return nil, fmt.Errorf("error storing profile %s: %w", userID, err)
	}

	return s.GetProfile(ctx, userID)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryPosts(ctx context.Context, query string, args ...any) ([]*blogflow.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*blogflow.Post
	for rows.Next() {
		var p blogflow.Post
		var category, published string
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Excerpt, &p.Content, &p.FeaturedImage, &category,
			&p.Author.ID, &p.Author.Name, &p.Author.AvatarURL, &published,
			&p.Likes, &p.Comments, &p.Views, &p.ReadTime, &p.IsLiked, &p.IsNew); err != nil {
			return nil, err
		}

		p.Category = blogflow.Category(category)
		if p.PublishedAt, err = parseTime(published); err != nil {
			return nil, err
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range posts {
		if p.Tags, err = s.tags(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	return posts, nil
}

func (s *SQLiteStore) tags(ctx context.Context, postID string) ([]string, error) {
	query := `SELECT value FROM ` + s.tableName + `_tags WHERE post_id = ? ORDER BY position`
	rows, err := s.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// ftsMatch quotes every word of q as an FTS5 prefix term so user input can't break the query syntax.
func ftsMatch(q string) string {
	words := strings.Fields(q)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}

func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}
