package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hypergopher/blogflow"
)

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		excerpt TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		featured_image TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags JSONB NOT NULL DEFAULT '[]',
		author JSONB NOT NULL DEFAULT '{}',
		published_at TIMESTAMPTZ,
		likes INTEGER NOT NULL DEFAULT 0,
		comments INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		read_time INTEGER NOT NULL DEFAULT 0,
		is_liked BOOLEAN NOT NULL DEFAULT FALSE,
		is_new BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS posts_category_idx ON posts (category);
	CREATE INDEX IF NOT EXISTS posts_published_at_idx ON posts (published_at DESC);

	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		twitter TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		provider_id TEXT NOT NULL DEFAULT '',
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
`

const postColumns = `id, title, excerpt, content, featured_image, category, tags, author, published_at,
	likes, comments, views, read_time, is_liked, is_new`

// PostgresRepo is the relational store behind the hosted backend. It implements blogflow.PostStore,
// blogflow.PostWriter, blogflow.CategoryCounter and blogflow.ProfileStore.
type PostgresRepo struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db, now: time.Now}
}

// Connect opens a pool for the given database URL and checks that it is reachable.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables if they do not exist.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

// Put creates or replaces posts in one transaction.
func (r *PostgresRepo) Put(ctx context.Context, posts ...*blogflow.Post) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, post := range posts {
		if err := upsertPost(ctx, tx, post); err != nil {
			return fmt.Errorf("failed to store post %s: %w", post.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func upsertPost(ctx context.Context, tx pgx.Tx, post *blogflow.Post) error {
	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, excerpt = EXCLUDED.excerpt, content = EXCLUDED.content,
			featured_image = EXCLUDED.featured_image, category = EXCLUDED.category, tags = EXCLUDED.tags,
			author = EXCLUDED.author, published_at = EXCLUDED.published_at, likes = EXCLUDED.likes,
			comments = EXCLUDED.comments, views = EXCLUDED.views, read_time = EXCLUDED.read_time,
			is_liked = EXCLUDED.is_liked, is_new = EXCLUDED.is_new
	`

	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	authorJSON, err := json.Marshal(post.Author)
	if err != nil {
		return fmt.Errorf("failed to marshal author: %w", err)
	}

	_, err = tx.Exec(ctx, query,
		post.ID,
		post.Title,
		post.Excerpt,
		post.Content,
		post.FeaturedImage,
		string(post.Category),
		tagsJSON,
		authorJSON,
		nullTime(post.PublishedAt),
		post.Likes,
		post.Comments,
		post.Views,
		post.ReadTime,
		post.IsLiked,
		post.IsNew,
	)
	return err
}

// List returns every post in the order it was first stored.
func (r *PostgresRepo) List(ctx context.Context) ([]*blogflow.Post, error) {
	rows, err := r.db.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*blogflow.Post, error) {
	row := r.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", blogflow.ErrPostNotFound, id)
	}
	return post, err
}

// Like sets the liked flag and moves the counter by one when the flag changes, in a single statement.
func (r *PostgresRepo) Like(ctx context.Context, postID string, liked bool) error {
	query := `
		UPDATE posts
		SET likes = CASE
				WHEN is_liked = $2 THEN likes
				WHEN $2 THEN likes + 1
				ELSE GREATEST(likes - 1, 0)
			END,
			is_liked = $2
		WHERE id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query, postID, liked)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", blogflow.ErrPostNotFound, postID)
	}
	return nil
}

func (r *PostgresRepo) CategoryCounts(ctx context.Context) (map[blogflow.Category]int, error) {
	rows, err := r.db.Query(ctx, `SELECT category, COUNT(*) FROM posts WHERE category <> '' GROUP BY category`)
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

func (r *PostgresRepo) GetDraft(ctx context.Context, id string) (*blogflow.Draft, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT data FROM drafts WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", blogflow.ErrDraftNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var draft blogflow.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft %s: %w", id, err)
	}
	return &draft, nil
}

func (r *PostgresRepo) SaveDraft(ctx context.Context, draft *blogflow.Draft) (*blogflow.Draft, error) {
	saved := draft.Clone()
	saved.UpdatedAt = r.now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := writeDraft(ctx, tx, saved); err != nil {
		return nil, fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return saved, nil
}

func writeDraft(ctx context.Context, tx pgx.Tx, draft *blogflow.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	query := `
		INSERT INTO drafts (id, status, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	_, err = tx.Exec(ctx, query, draft.ID, draft.Status.String(), data, draft.UpdatedAt)
	return err
}

// Publish renders the draft into a post and stores both in one transaction. Republishing keeps the counters of
// the existing post.
func (r *PostgresRepo) Publish(ctx context.Context, draft *blogflow.Draft) (*blogflow.Post, error) {
	now := r.now()
	post, err := draft.ToPost(now)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`, post.ID)
	existing, err := scanPost(row)
	switch {
	case err == nil:
		post.CarryCounters(existing)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	if err := upsertPost(ctx, tx, post); err != nil {
		return nil, fmt.Errorf("failed to publish draft %s: %w", draft.ID, err)
	}

	saved := draft.Clone()
	saved.Status = blogflow.StatusPublished
	saved.UpdatedAt = now
	if err := writeDraft(ctx, tx, saved); err != nil {
		return nil, fmt.Errorf("failed to publish draft %s: %w", draft.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return post, nil
}

const profileColumns = `user_id, display_name, email, avatar_url, bio, website, twitter, location, role,
	provider_id, last_login, created_at, updated_at`

func (r *PostgresRepo) GetProfile(ctx context.Context, userID string) (*blogflow.Profile, error) {
	var p blogflow.Profile
	var lastLogin *time.Time

	row := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Email, &p.AvatarURL, &p.Bio, &p.Website, &p.Twitter,
		&p.Location, &p.Role, &p.ProviderID, &lastLogin, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", blogflow.ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	if lastLogin != nil {
		p.LastLogin = *lastLogin
	}
	return &p, nil
}

// UpsertProfile creates the profile or replaces its fields. The creation time is kept on update.
func (r *PostgresRepo) UpsertProfile(ctx context.Context, userID string, fields blogflow.ProfileFields) (*blogflow.Profile, error) {
	now := r.now()
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name, email = EXCLUDED.email, avatar_url = EXCLUDED.avatar_url,
			bio = EXCLUDED.bio, website = EXCLUDED.website, twitter = EXCLUDED.twitter,
			location = EXCLUDED.location, role = EXCLUDED.role, provider_id = EXCLUDED.provider_id,
			last_login = EXCLUDED.last_login, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		userID, fields.DisplayName, fields.Email, fields.AvatarURL, fields.Bio, fields.Website, fields.Twitter,
		fields.Location, fields.Role, fields.ProviderID, nullTime(fields.LastLogin), now)
	if err != nil {
		return nil, fmt.Errorf("failed to store profile %s: %w", userID, err)
	}

	return r.GetProfile(ctx, userID)
}

func scanPost(row pgx.Row) (*blogflow.Post, error) {
	var p blogflow.Post
	var category string
	var tagsJSON, authorJSON []byte
	var publishedAt *time.Time

	if err := row.Scan(&p.ID, &p.Title, &p.Excerpt, &p.Content, &p.FeaturedImage, &category, &tagsJSON,
		&authorJSON, &publishedAt, &p.Likes, &p.Comments, &p.Views, &p.ReadTime, &p.IsLiked, &p.IsNew); err != nil {
		return nil, err
	}

	p.Category = blogflow.Category(category)
	if publishedAt != nil {
		p.PublishedAt = *publishedAt
	}
	if err := json.Unmarshal(tagsJSON, &p.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(authorJSON, &p.Author); err != nil {
		return nil, fmt.Errorf("failed to unmarshal author: %w", err)
	}
	return &p, nil
}

func collectRows(rows pgx.Rows) ([]*blogflow.Post, error) {
	var posts []*blogflow.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
