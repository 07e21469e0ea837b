// Package main provides the skyfeed CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stephanj/skyfeed/internal/bluesky"
	"github.com/stephanj/skyfeed/internal/config"
	"github.com/stephanj/skyfeed/internal/display"
	"github.com/stephanj/skyfeed/internal/feed"
	"github.com/stephanj/skyfeed/internal/session"
)

var version = "0.1.0"

const commandTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command for the skyfeed CLI.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "skyfeed",
		Short:   "Aggregate Bluesky posts from accounts and hashtags",
		Long:    "Skyfeed merges posts from tracked Bluesky accounts and hashtags into a single reverse-chronological feed.",
		Version: version,
	}

	rootCmd.SetVersionTemplate("skyfeed version {{.Version}}\n")

	rootCmd.AddCommand(newFeedCmd())
	rootCmd.AddCommand(newTestCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// newBuilder wires the API client, session manager, and pipeline from the
// resolved configuration. The returned cleanup closes the session cache.
func newBuilder(cfg config.Config) (*feed.Builder, func(), error) {
	var opts []bluesky.ClientOption
	if cfg.APIURL != "" {
		opts = append(opts, bluesky.WithBaseURL(cfg.APIURL))
	}
	client := bluesky.NewClient(opts...)

	store, err := session.OpenSQLiteStore(cfg.CacheDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open session cache: %w", err)
	}

	manager := session.NewManager(client, session.Credentials{
		Identifier: cfg.Identifier,
		Password:   cfg.Password,
	}, store)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	builder := feed.NewBuilder(client, manager, logger)

	return builder, func() { _ = store.Close() }, nil
}

// newFeedCmd creates the feed subcommand.
func newFeedCmd() *cobra.Command {
	var page int
	var pageSize int
	var accounts, hashtags, exclude []string

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Display the aggregated feed",
		Long:  "Fetch posts from the configured accounts and hashtags and display one page of the merged feed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			cfg := config.Load()
			if len(accounts) > 0 {
				cfg.Accounts = accounts
			}
			if len(hashtags) > 0 {
				cfg.Hashtags = hashtags
			}
			if len(exclude) > 0 {
				cfg.Blacklist = exclude
			}
			if pageSize > 0 {
				cfg.PageSize = pageSize
			}

			builder, cleanup, err := newBuilder(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := builder.BuildFeed(ctx, feed.Query{
				Accounts:  cfg.Accounts,
				Hashtags:  cfg.Hashtags,
				Blacklist: cfg.Blacklist,
				Page:      page,
				PageSize:  cfg.PageSize,
			})
			if err != nil {
				return err
			}

			formatter := display.NewTerminalFormatter()
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatFeed(result))
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Feed page to display")
	cmd.Flags().IntVarP(&pageSize, "page-size", "n", 0, "Posts per page (default from config)")
	cmd.Flags().StringSliceVarP(&accounts, "account", "a", nil, "Account handle to include (repeatable)")
	cmd.Flags().StringSliceVarP(&hashtags, "hashtag", "t", nil, "Hashtag to include (repeatable)")
	cmd.Flags().StringSliceVarP(&exclude, "exclude", "x", nil, "Author handle to exclude (repeatable)")

	return cmd
}

// newTestCmd creates the test subcommand.
func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the Bluesky connection",
		Long:  "Perform a forced authentication against Bluesky and report the result, without fetching posts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			builder, cleanup, err := newBuilder(config.Load())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := builder.TestConnection(ctx); err != nil {
				return fmt.Errorf("connection failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Connection successful.")
			return nil
		},
	}
}

// newCacheCmd creates the cache subcommand group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the cached session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the cached session",
		Long:  "Invalidate the cached Bluesky session, forcing re-authentication on the next request.",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, cleanup, err := newBuilder(config.Load())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := builder.ClearCache(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Session cache cleared.")
			return nil
		},
	})

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Config directory: %s\n", config.Dir())
			fmt.Fprintf(out, "Identifier: %s\n", cfg.Identifier)
			fmt.Fprintf(out, "Accounts: %s\n", strings.Join(cfg.Accounts, ", "))
			fmt.Fprintf(out, "Hashtags: %s\n", strings.Join(cfg.Hashtags, ", "))
			fmt.Fprintf(out, "Blacklist: %s\n", strings.Join(cfg.Blacklist, ", "))
			fmt.Fprintf(out, "Page size: %d\n", cfg.PageSize)
			return nil
		},
	}
}
