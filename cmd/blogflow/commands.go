package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hypergopher/blogflow"
)

const dateLayout = "2006-01-02"

var (
	listSearch   string
	listCategory string
	listAuthor   string
	listFrom     string
	listTo       string
	listSort     string
	listPages    int

	searchLimit int

	statsAuthor string

	publishSchedule string

	exportFormat string
	exportOut    string
)

var seedCmd = &cobra.Command{
	Use:   "seed [path]",
	Short: "Load posts from a TOML/YAML seed file or a directory of Markdown files",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts the way the post list view shows them",
	Long: `Lists posts with the post list filters applied. Every filter is optional and
they combine with AND. --pages reveals that many pages, like pressing "load more".

Example:
  blogflow list --category technology --sort most-liked --pages 2`,
	RunE: runList,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over posts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show post, author and category totals",
	RunE:  runStats,
}

var publishCmd = &cobra.Command{
	Use:   "publish [file.md]",
	Short: "Publish or schedule a Markdown draft with frontmatter",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

var exportCmd = &cobra.Command{
	Use:   "export [draft-id]",
	Short: "Write a draft or post as Markdown with frontmatter",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Search title, excerpt, author and category")
	listCmd.Flags().StringVar(&listCategory, "category", string(blogflow.CategoryAll), "Category to show")
	listCmd.Flags().StringVar(&listAuthor, "author", "all", "Author ID or name slug")
	listCmd.Flags().StringVar(&listFrom, "from", "", "Earliest publish date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listTo, "to", "", "Latest publish date, inclusive (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listSort, "sort", string(blogflow.SortNewest), "Sort order")
	listCmd.Flags().IntVar(&listPages, "pages", 1, "Number of pages to reveal")

	statsCmd.Flags().StringVar(&statsAuthor, "author", "", "Show one author's totals and posts (ID or name slug)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results")

	publishCmd.Flags().StringVar(&publishSchedule, "schedule", "", "Schedule instead of publishing (RFC 3339 time)")

	exportCmd.Flags().StringVar(&exportFormat, "format", string(blogflow.FrontmatterTOML), "Frontmatter format (toml or yaml)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: stdout)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		n, err := blog.SyncAll(ctx, blogflow.NewMarkdownDir(path, nil))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d posts from %s\n", n, path)
		return nil
	}

	posts, err := blogflow.LoadSeedFile(path)
	if err != nil {
		return err
	}
	if err := blog.Seed(ctx, posts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d posts from %s\n", len(posts), path)
	return nil
}

func listFilter() (blogflow.FilterState, error) {
	filter := blogflow.FilterState{
		Search:   listSearch,
		Category: blogflow.Category(strings.ToLower(listCategory)),
		Author:   listAuthor,
		SortBy:   blogflow.SortKey(listSort),
	}

	if !filter.Category.IsAll() && !filter.Category.IsValid() {
		return filter, fmt.Errorf("%w: %s", blogflow.ErrInvalidCategory, listCategory)
	}

	if !slices.Contains(blogflow.SortKeys(), filter.SortBy) {
		return filter, fmt.Errorf("unknown sort %q", listSort)
	}

	if listFrom != "" {
		t, err := time.Parse(dateLayout, listFrom)
		if err != nil {
			return filter, fmt.Errorf("invalid --from: %w", err)
		}
		filter.DateRange.Start = t
	}

	if listTo != "" {
		t, err := time.Parse(dateLayout, listTo)
		if err != nil {
			return filter, fmt.Errorf("invalid --to: %w", err)
		}
		filter.DateRange.End = t.AddDate(0, 0, 1)
	}

	return filter, nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	filter, err := listFilter()
	if err != nil {
		return err
	}

	view, err := blog.Open(ctx, &filter)
	if err != nil {
		return err
	}
	defer view.Close()

	for i := 1; i < listPages && view.LoadMore(); i++ {
	}

	page := view.Page()
	writePosts(cmd.OutOrStdout(), page.Posts)
	fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d posts", page.LoadedPosts, page.FilteredPosts)
	if page.HasMore {
		fmt.Fprintf(cmd.OutOrStdout(), " (use --pages %d for more)", page.CurrentPage+1)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	posts, err := blog.Search(ctx, strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}

	if len(posts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No posts found")
		return nil
	}
	writePosts(cmd.OutOrStdout(), posts)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if statsAuthor != "" {
		return runAuthorStats(ctx, cmd.OutOrStdout())
	}

	stats, err := blog.Stats(ctx)
	if err != nil {
		return err
	}

	counts, err := blog.CategoryCounts(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Posts:            %d\n", stats.TotalPosts)
	fmt.Fprintf(out, "Authors:          %d\n", stats.Authors)
	fmt.Fprintf(out, "Categories:       %d\n", stats.Categories)
	fmt.Fprintf(out, "Posts this month: %d\n", stats.PostsThisMonth)

	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)

	fmt.Fprintln(out)
	for _, c := range categories {
		fmt.Fprintf(out, "  %-12s %d\n", c, counts[blogflow.Category(c)])
	}
	return nil
}

func runAuthorStats(ctx context.Context, out io.Writer) error {
	stats, err := blog.AuthorStats(ctx, statsAuthor)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Posts:    %d\n", stats.TotalPosts)
	fmt.Fprintf(out, "Likes:    %d\n", stats.TotalLikes)
	fmt.Fprintf(out, "Comments: %d\n", stats.TotalComments)
	fmt.Fprintf(out, "Views:    %d\n", stats.TotalViews)
	if len(stats.Posts) > 0 {
		fmt.Fprintln(out)
		writePosts(out, stats.Posts)
	}
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	content, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	draft, err := blogflow.DraftFromMarkdown(nil, content)
	if err != nil {
		return err
	}

	editor := blogflow.NewEditor(blog.Store(), draft, blogflow.EditorOptions{Logger: logger})
	defer editor.Close()

	if publishSchedule != "" {
		at, err := time.Parse(time.RFC3339, publishSchedule)
		if err != nil {
			return fmt.Errorf("invalid --schedule: %w", err)
		}
		if err := editor.Schedule(at); err != nil {
			return err
		}
		if err := editor.Save(ctx); err != nil {
			return err
		}
		d := editor.Draft()
		fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s (%s) for %s\n", d.Title, d.ID, d.ScheduledAt.Format(time.RFC3339))
		return nil
	}

	post, err := editor.Publish(ctx)
	if err != nil {
		var ve *blogflow.ValidationError
		if errors.As(err, &ve) {
			for _, f := range ve.Fields {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f.Field, f.Message)
			}
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Published %s (%s), %s\n", post.Title, post.ID, blogflow.ReadTimeLabel(post.ReadTime))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	editor, err := blog.Edit(ctx, args[0])
	if err != nil {
		return err
	}
	defer editor.Close()

	md, err := blogflow.DraftToMarkdown(editor.Draft(), blogflow.FrontmatterFormat(exportFormat))
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), md)
		return err
	}
	return os.WriteFile(exportOut, []byte(md), 0644)
}

func writePosts(out io.Writer, posts []*blogflow.Post) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tAUTHOR\tPUBLISHED\tLIKES\tREAD")
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Title, p.Category, p.Author.Name, p.PublishedDate(), p.Likes, blogflow.ReadTimeLabel(p.ReadTime))
	}
	_ = w.Flush()
}
