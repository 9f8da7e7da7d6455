package blogflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

// SeedFile is the document format for bulk-loading posts: a list of posts under a "posts" key.
type SeedFile struct {
	Posts []*Post `yaml:"posts" toml:"posts"`
}

// LoadSeedFile reads posts from a TOML (.toml) or YAML (.yaml, .yml) seed file.
func LoadSeedFile(path string) ([]*Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to decode TOML seed file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to decode YAML seed file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed file extension: %s", filepath.Ext(path))
	}

	for i, post := range seed.Posts {
		if err := normalizeSeedPost(post); err != nil {
			return nil, fmt.Errorf("invalid post %d in %s: %w", i, path, err)
		}
	}

	return seed.Posts, nil
}

func normalizeSeedPost(post *Post) error {
	if post == nil {
		return fmt.Errorf("empty post entry")
	}
	if post.ID == "" {
		post.ID = slug.Make(post.Title)
	}
	if post.ID == "" {
		return fmt.Errorf("post has neither an id nor a title")
	}
	if post.Category != "" && !post.Category.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidCategory, post.Category)
	}
	if post.ReadTime == 0 {
		post.ReadTime = EstimateReadingTime(post.Content)
	}
	return nil
}

// MarkdownDir loads seed posts from a directory tree of Markdown files with frontmatter.
type MarkdownDir struct {
	rootDir string
	parse   MarkdownParserFunc
}

func NewMarkdownDir(rootDir string, parse MarkdownParserFunc) *MarkdownDir {
	if parse == nil {
		parse = DefaultMarkdownParser()
	}
	return &MarkdownDir{rootDir: rootDir, parse: parse}
}

// Walk streams every .md file under the root as a post. Walking stops at the first error.
func (md *MarkdownDir) Walk(ctx context.Context) (<-chan *Post, <-chan error) {
	posts := make(chan *Post)
	errs := make(chan error, 1)

	go func() {
		defer close(posts)
		defer close(errs)

		err := filepath.WalkDir(md.rootDir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(path) != ".md" {
				return nil
			}

			post, err := md.Read(path)
			if err != nil {
				return err
			}

			select {
			case posts <- post:
			case <-ctx.Done():
				return ctx.Err()
			}

			return nil
		})

		if err != nil {
			errs <- err
		}
	}()

	return posts, errs
}

// Read converts a single Markdown file into a post. The file's slug becomes the ID unless the frontmatter
// sets one, and a date prefix in the file name is used when the frontmatter has no publish date.
func (md *MarkdownDir) Read(path string) (*Post, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	meta, body, err := md.parse(content)
	if err != nil {
		return nil, fmt.Errorf("error processing markdown file %s: %w", path, err)
	}

	html, err := RenderMarkdown(body)
	if err != nil {
		return nil, fmt.Errorf("error rendering markdown file %s: %w", path, err)
	}

	slugPath := SlugifyPath(md.rootDir, path)

	post := &Post{
		ID:            meta.ID,
		Title:         meta.Title,
		Excerpt:       meta.Excerpt,
		Content:       html,
		FeaturedImage: meta.FeaturedImage,
		Category:      meta.Category,
		Tags:          meta.Tags,
		Author:        meta.Author,
		PublishedAt:   meta.PublishedAt,
		Likes:         meta.Likes,
		Comments:      meta.Comments,
		Views:         meta.Views,
		ReadTime:      EstimateReadingTime(body),
		IsNew:         meta.IsNew,
	}

	if post.ID == "" {
		post.ID = slugPath.WithoutDate()
	}

	if !post.HasPublished() {
		if slugPath.FileTime != nil {
			post.PublishedAt = *slugPath.FileTime
		} else {
			post.PublishedAt = stat.ModTime()
		}
	}

	if post.Excerpt == "" {
		text, err := PlainText(body)
		if err != nil {
			return nil, fmt.Errorf("error extracting excerpt from %s: %w", path, err)
		}
		post.Excerpt = Excerpt(text, DefaultExcerptLength)
	}

	return post, nil
}

// LoadMarkdownDir collects every post under rootDir.
func LoadMarkdownDir(ctx context.Context, rootDir string, parse MarkdownParserFunc) ([]*Post, error) {
	posts, errs := NewMarkdownDir(rootDir, parse).Walk(ctx)

	var out []*Post
	for post := range posts {
		out = append(out, post)
	}

	// Check for any errors from Walk
	for err := range errs {
		return nil, fmt.Errorf("error walking %s: %w", rootDir, err)
	}

	return out, nil
}
