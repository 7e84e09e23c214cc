// Package cli implements the svgpress command-line interface.
//
// Commands cover one-shot export of a laid-out document to SVG, an
// incremental watch mode with a live preview server, cache management and
// a debug renderer for the flattened dependency graph. All commands
// support --verbose (-v) for debug-level logging; loggers travel through
// context.Context.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mbolt/svgpress/pkg/buildinfo"
	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/export"
)

// appName is the application name used for directories and display.
const appName = "svgpress"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *Config
}

// New creates a CLI instance with a default logger and the loaded config
// file (or defaults when none exists).
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: LoadConfig(""),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "svgpress exports laid-out documents to deduplicated SVG",
		Long:         `svgpress turns laid-out documents into self-contained SVG files, deduplicating repeated content and caching generated fragments so incremental re-exports only pay for what changed.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.exportCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.dagCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates an export runner for CLI use, with the cache backend
// picked by config (file by default). A nil keyer selects the default;
// watch mode passes a per-document scoped keyer.
func (c *CLI) newRunner(ctx context.Context, noCache bool, keyer cache.Keyer) (*export.Runner, error) {
	backing, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return export.NewRunner(backing, keyer, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.Config.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Config.Cache.Redis.Addr,
			Password: c.Config.Cache.Redis.Password,
			DB:       c.Config.Cache.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return cache.WithRetry(rc), nil
	case "memory":
		return cache.NewMemoryCache(), nil
	case "none":
		return cache.NewNullCache(), nil
	default:
		dir, err := cacheDir(c.Config.Cache.Dir)
		if err != nil {
			return nil, err
		}
		return cache.NewFileCache(dir)
	}
}

// cacheDir resolves the on-disk cache directory, creating it if needed.
func cacheDir(configured string) (string, error) {
	dir := configured
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".cache", appName)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// exportOptions translates config defaults plus command flags into pass
// options.
func (c *CLI) exportOptions(f *exportFlags) export.Options {
	opts := export.Options{
		PageGap:       c.Config.PageGap,
		InlineMaxRefs: c.Config.InlineMaxRefs,
		InlineMaxSize: c.Config.InlineMaxSize,
		Workers:       c.Config.Workers,
		PrettyIDs:     c.Config.PrettyIDs,
		Logger:        c.Logger,
	}
	if f.pageGap >= 0 {
		opts.PageGap = f.pageGap
	}
	if f.inlineMaxRefs > 0 {
		opts.InlineMaxRefs = f.inlineMaxRefs
	}
	if f.inlineMaxSize > 0 {
		opts.InlineMaxSize = f.inlineMaxSize
	}
	if f.workers > 0 {
		opts.Workers = f.workers
	}
	if f.prettyIDs {
		opts.PrettyIDs = true
	}
	opts.Refresh = f.refresh
	return opts
}
