package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/hypergopher/blogflow"
	"github.com/hypergopher/blogflow/bboltstore"
	"github.com/hypergopher/blogflow/eventbroker"
	"github.com/hypergopher/blogflow/internal/config"
	"github.com/hypergopher/blogflow/pgstore"
	"github.com/hypergopher/blogflow/sqlitestore"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	cfg    config.Config
	logger *slog.Logger
	blog   *blogflow.Blog
	closer func() error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "blogflow",
	Short: "blogflow - browse, search and publish blog posts",
	Long: `blogflow manages a blog's post collection and drafts.

It loads posts into a store (memory, bbolt, sqlite or postgres), lists them with
the same filters, sort orders and pages as the post list view, and publishes
Markdown drafts through the editor.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		store, closeStore, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		closer = closeStore

		blog = blogflow.NewBlog(store, blogflow.BlogOptions{
			Logger:           logger,
			PageSize:         cfg.PageSize,
			AutoSaveInterval: cfg.AutoSaveInterval,
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closer != nil {
			return closer()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore builds the configured store. With a NATS URL set, likes and publishes are also announced.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (blogflow.Store, func() error, error) {
	var store blogflow.Store
	var closers []func() error

	switch cfg.Store {
	case config.DriverMemory:
		store = blogflow.NewMemoryPostStore()

	case config.DriverBBolt:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		bbs := bboltstore.New(cfg.DataDir, logger)
		if err := bbs.Init(); err != nil {
			return nil, nil, err
		}
		store = bbs
		closers = append(closers, bbs.Close)

	case config.DriverSQLite:
		db, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s := sqlitestore.NewSQLiteStore(db, "posts")
		if err := s.Init(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("failed to init sqlite store: %w", err)
		}
		store = s
		closers = append(closers, s.Close)

	case config.DriverPostgres:
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := pgstore.NewPostgresRepo(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres store: %w", err)
		}
		store = repo
		closers = append(closers, func() error { pool.Close(); return nil })

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("failed to connect to nats: %w", err), closeAll(closers))
		}
		store = eventbroker.NewStore(store, eventbroker.NewNatsPublisher(nc, logger), logger)
		closers = append(closers, nc.Drain)
	}

	return store, func() error { return closeAll(closers) }, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}
	return errors.Join(errs...)
}
