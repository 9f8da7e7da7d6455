package bboltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.etcd.io/bbolt"

	"github.com/hypergopher/blogflow"
)

const (
	bboltFile        = "blogflow.db"
	bleveFile        = "blogflow.bleve"
	bucketPosts      = "posts"
	bucketDrafts     = "drafts"
	bucketCategories = "categories"
	bucketOrder      = "order"
)

// BBoltStore keeps posts and drafts in bbolt and indexes posts in bleve for search.
// It implements blogflow.PostStore, blogflow.PostWriter, blogflow.Searcher and blogflow.CategoryCounter.
type BBoltStore struct {
	bleveIndex bleve.Index
	boltIndex  *bbolt.DB
	dataDir    string // dataDir is the directory where the bolt file and bleve index live.
	logger     *slog.Logger
	mu         sync.Mutex
	now        func() time.Time
}

// searchDoc is the part of a post that is indexed for search.
type searchDoc struct {
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"publishedAt"`
}

func (searchDoc) BleveType() string {
	return "post"
}

// New creates a new BBoltStore. Call Init before use.
func New(dataDir string, logger *slog.Logger) *BBoltStore {
	if logger == nil {
		logger = defaultLogger()
	}

	return &BBoltStore{
		dataDir: dataDir,
		logger:  logger,
		now:     time.Now,
	}
}

// Init initializes the BBolt and Bleve indexes
func (bbs *BBoltStore) Init() error {
	boltIndex, err := bbs.initBolt()
	if err != nil {
		return fmt.Errorf("failed to initialize bbolt: %w", err)
	}
	bbs.boltIndex = boltIndex

	bleveIndex, err := bbs.initBleve()
	if err != nil {
		return fmt.Errorf("failed to initialize bleve: %w", err)
	}
	bbs.bleveIndex = bleveIndex

	return nil
}

// Clear removes every stored post, draft and count and starts over with empty indexes.
func (bbs *BBoltStore) Clear() error {
	if err := bbs.Close(); err != nil {
		return fmt.Errorf("failed to close indexes: %w", err)
	}

	// Remove the bolt and bleve files
	boltPath := filepath.Join(bbs.dataDir, bboltFile)
	blevePath := filepath.Join(bbs.dataDir, bleveFile)

	if err := os.Remove(boltPath); err != nil {
		return fmt.Errorf("failed to remove bolt file: %w", err)
	}

	if err := os.RemoveAll(blevePath); err != nil {
		return fmt.Errorf("failed to remove bleve file: %w", err)
	}

	return bbs.Init()
}

func (bbs *BBoltStore) Close() error {
	if bbs.boltIndex != nil {
		if err := bbs.boltIndex.Close(); err != nil {
			return err
		}
		bbs.boltIndex = nil
	}

	if bbs.bleveIndex != nil {
		err := bbs.bleveIndex.Close()
		bbs.bleveIndex = nil
		return err
	}

	return nil
}

// Put creates or replaces posts, keeping the category counts in step.
func (bbs *BBoltStore) Put(_ context.Context, posts ...*blogflow.Post) error {
	bbs.mu.Lock()
	defer bbs.mu.Unlock()

	for _, post := range posts {
		if err := bbs.putLocked(post); err != nil {
			return err
		}
	}
	return nil
}

func (bbs *BBoltStore) putLocked(post *blogflow.Post) error {
	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		return bbs.writePost(tx, post)
	})
	if err != nil {
		return fmt.Errorf("failed to update post in bolt: %w", err)
	}

	return bbs.index(post)
}

// writePost stores the post and moves the category count if the category changed.
func (bbs *BBoltStore) writePost(tx *bbolt.Tx, post *blogflow.Post) error {
	b := tx.Bucket([]byte(bucketPosts))
	if b == nil {
		return fmt.Errorf("bucket not found")
	}

	current, err := readPost(b, post.ID)
	if err != nil && !errors.Is(err, blogflow.ErrPostNotFound) {
		return err
	}

	postBytes, err := post.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize post: %w", err)
	}

	if err := b.Put([]byte(post.ID), postBytes); err != nil {
		return fmt.Errorf("failed to put post in bucket: %w", err)
	}

	if current == nil {
		if err := appendOrder(tx, post.ID); err != nil {
			return err
		}
	}

	if current != nil && current.Category == post.Category {
		return nil
	}

	if current != nil {
		if err := bbs.updateCategoryCount(tx, current.Category, -1); err != nil {
			bbs.logger.Error("failed to update category count",
				slog.String("category", current.Category.String()),
				slog.String("error", err.Error()))
		}
	}

	if err := bbs.updateCategoryCount(tx, post.Category, 1); err != nil {
		bbs.logger.Error("failed to update category count",
			slog.String("category", post.Category.String()),
			slog.String("error", err.Error()))
	}

	return nil
}

func (bbs *BBoltStore) index(post *blogflow.Post) error {
	doc := searchDoc{
		Title:       post.Title,
		Excerpt:     post.Excerpt,
		Author:      post.Author.Name,
		Category:    post.Category.String(),
		Tags:        post.Tags,
		PublishedAt: post.PublishedAt,
	}

	if err := bbs.bleveIndex.Index(post.ID, doc); err != nil {
		return fmt.Errorf("failed to index post in bleve: %w", err)
	}
	return nil
}

// List returns every post in the order it was first stored.
func (bbs *BBoltStore) List(_ context.Context) ([]*blogflow.Post, error) {
	var posts []*blogflow.Post
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		order := tx.Bucket([]byte(bucketOrder))
		b := tx.Bucket([]byte(bucketPosts))
		if order == nil || b == nil {
			return fmt.Errorf("bucket not found")
		}

		return order.ForEach(func(_, id []byte) error {
			post, err := readPost(b, string(id))
			if err != nil {
				return err
			}
			posts = append(posts, post)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

// Get retrieves a post by its ID.
func (bbs *BBoltStore) Get(_ context.Context, id string) (*blogflow.Post, error) {
	var post *blogflow.Post
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		var err error
		post, err = readPost(b, id)
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("error getting post %s: %w", id, err)
	}
	return post, nil
}

// Like sets the liked flag of a post and adjusts its counter when the flag changes.
func (bbs *BBoltStore) Like(_ context.Context, postID string, liked bool) error {
	bbs.mu.Lock()
	defer bbs.mu.Unlock()

	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		post, err := readPost(b, postID)
		if err != nil {
			return err
		}

		post.SetLiked(liked)
		postBytes, err := post.Serialize()
		if err != nil {
			return fmt.Errorf("failed to serialize post: %w", err)
		}
		return b.Put([]byte(postID), postBytes)
	})

	if err != nil {
		return fmt.Errorf("error liking post %s: %w", postID, err)
	}
	return nil
}

// GetDraft retrieves a draft by its ID.
func (bbs *BBoltStore) GetDraft(_ context.Context, id string) (*blogflow.Draft, error) {
	var draft *blogflow.Draft
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDrafts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", blogflow.ErrDraftNotFound, id)
		}

		draft = &blogflow.Draft{}
		if err := json.Unmarshal(data, draft); err != nil {
			return fmt.Errorf("error deserializing draft: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error getting draft %s: %w", id, err)
	}
	return draft, nil
}

// SaveDraft stores a copy of the draft with its UpdatedAt set.
func (bbs *BBoltStore) SaveDraft(_ context.Context, draft *blogflow.Draft) (*blogflow.Draft, error) {
	bbs.mu.Lock()
	defer bbs.mu.Unlock()

	saved := draft.Clone()
	saved.UpdatedAt = bbs.now()

	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		return writeDraft(tx, saved)
	})
	if err != nil {
		return nil, fmt.Errorf("error saving draft %s: %w", draft.ID, err)
	}
	return saved, nil
}

// Publish renders the draft into a post and stores both in one transaction. Republishing keeps the counters of
// the existing post.
func (bbs *BBoltStore) Publish(_ context.Context, draft *blogflow.Draft) (*blogflow.Post, error) {
	bbs.mu.Lock()
	defer bbs.mu.Unlock()

	now := bbs.now()
	post, err := draft.ToPost(now)
	if err != nil {
		return nil, err
	}

	err = bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		existing, err := readPost(b, post.ID)
		switch {
		case err == nil:
			post.CarryCounters(existing)
		case !errors.Is(err, blogflow.ErrPostNotFound):
			return err
		}

		if err := bbs.writePost(tx, post); err != nil {
			return err
		}

		saved := draft.Clone()
		saved.Status = blogflow.StatusPublished
		saved.UpdatedAt = now
		return writeDraft(tx, saved)
	})
	if err != nil {
		return nil, fmt.Errorf("error publishing draft %s: %w", draft.ID, err)
	}

	if err := bbs.index(post); err != nil {
		return nil, err
	}

	return post, nil
}

// Search runs a full-text query over title, excerpt, author, category and tags. Hits are ordered by score.
func (bbs *BBoltStore) Search(_ context.Context, q string, limit int) ([]*blogflow.Post, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}

	if limit < 1 {
		limit = 10
	}

	request := bleve.NewSearchRequestOptions(searchQuery(q), limit, 0, false)
	request.SortBy([]string{"-_score", "-publishedAt"})

	result, err := bbs.bleveIndex.Search(request)
	if err != nil {
		return nil, fmt.Errorf("error searching for posts: %w", err)
	}

	posts := make([]*blogflow.Post, 0, len(result.Hits))
	for _, hit := range result.Hits {
		post, err := bbs.Get(context.Background(), hit.ID)
		if err != nil {
			return nil, fmt.Errorf("error getting post %s: %w", hit.ID, err)
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// CategoryCounts returns the number of stored posts per category.
func (bbs *BBoltStore) CategoryCounts(_ context.Context) (map[blogflow.Category]int, error) {
	counts := make(map[blogflow.Category]int)
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketCategories))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		return b.ForEach(func(k, v []byte) error {
			counts[blogflow.Category(k)] = int(binary.BigEndian.Uint64(v))
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("error getting category counts: %w", err)
	}
	return counts, nil
}

func (bbs *BBoltStore) initBolt() (*bbolt.DB, error) {
	var err error
	boltPath := filepath.Join(bbs.dataDir, bboltFile)
	boltIndex, err := bbolt.Open(boltPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt index: %w", err)
	}

	err = boltIndex.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketPosts, bucketDrafts, bucketCategories, bucketOrder} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})

	if err != nil {
		_ = boltIndex.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return boltIndex, nil
}

func (bbs *BBoltStore) initBleve() (bleve.Index, error) {
	index, err := bleve.Open(filepath.Join(bbs.dataDir, bleveFile))
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		bbs.logger.Debug("Creating new bleve index")
		indexMapping := defineBleveMapping()
		index, err = bleve.NewUsing(filepath.Join(bbs.dataDir, bleveFile), indexMapping, bleve.Config.DefaultIndexType, bleve.Config.DefaultKVStore, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create bleve index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open bleve index: %w", err)
	}

	return index, nil
}

func defineBleveMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	docMapping.AddFieldMappingsAt("title", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("excerpt", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("author", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("category", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("tags", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("publishedAt", bleve.NewDateTimeFieldMapping())

	indexMapping.AddDocumentMapping("post", docMapping)

	return indexMapping
}

// searchQuery matches q against every indexed text field. A single word also matches as a prefix of the title.
func searchQuery(q string) query.Query {
	queries := make([]query.Query, 0, 6)
	for _, field := range []string{"title", "excerpt", "author", "tags"} {
		match := bleve.NewMatchQuery(q)
		match.SetField(field)
		queries = append(queries, match)
	}

	category := bleve.NewTermQuery(strings.ToLower(q))
	category.SetField("category")
	queries = append(queries, category)

	if !strings.ContainsAny(q, " \t") {
		prefix := bleve.NewPrefixQuery(strings.ToLower(q))
		prefix.SetField("title")
		queries = append(queries, prefix)
	}

	return bleve.NewDisjunctionQuery(queries...)
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{
			AddSource: false,
			Level:     slog.LevelDebug,
		}))
}

func readPost(b *bbolt.Bucket, id string) (*blogflow.Post, error) {
	postBytes := b.Get([]byte(id))
	if postBytes == nil {
		return nil, fmt.Errorf("%w: %s", blogflow.ErrPostNotFound, id)
	}

	post, err := blogflow.Deserialize(postBytes)
	if err != nil {
		return nil, fmt.Errorf("error deserializing post: %w", err)
	}
	return post, nil
}

func writeDraft(tx *bbolt.Tx, draft *blogflow.Draft) error {
	b := tx.Bucket([]byte(bucketDrafts))
	if b == nil {
		return fmt.Errorf("bucket not found")
	}

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to serialize draft: %w", err)
	}
	return b.Put([]byte(draft.ID), data)
}

// appendOrder records the insertion position of a new post under a sequence key.
func appendOrder(tx *bbolt.Tx, id string) error {
	b := tx.Bucket([]byte(bucketOrder))
	if b == nil {
		return fmt.Errorf("bucket not found")
	}

	seq, err := b.NextSequence()
	if err != nil {
		return fmt.Errorf("failed to get next sequence: %w", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return b.Put(key, []byte(id))
}

func (bbs *BBoltStore) updateCategoryCount(tx *bbolt.Tx, category blogflow.Category, delta int) error {
	if category == "" {
		return nil
	}

	b := tx.Bucket([]byte(bucketCategories))
	if b == nil {
		return fmt.Errorf("bucket not found")
	}

	count := 0
	key := []byte(category)
	countBytes := b.Get(key)
	if countBytes != nil {
		count = int(binary.BigEndian.Uint64(countBytes))
	}

	count += delta
	if count < 0 {
		count = 0
	}

	newCount := make([]byte, 8)
	binary.BigEndian.PutUint64(newCount, uint64(count))
	if count == 0 {
		return b.Delete(key)
	}

	return b.Put(key, newCount)
}
