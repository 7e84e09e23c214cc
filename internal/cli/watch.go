package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mbolt/svgpress/internal/server"
	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/export"
)

// watchCommand creates the incremental re-export command: it watches the
// input document, re-exports on change and serves a live preview.
func (c *CLI) watchCommand() *cobra.Command {
	var flags exportFlags
	var addr string
	var debounceMS int

	cmd := &cobra.Command{
		Use:   "watch [document.json]",
		Short: "Re-export on change and serve a live preview",
		Long: `Watch re-exports the document whenever the input file changes and
serves the result on a local preview server with live reload. The
fragment cache persists across passes, so an edit to one page only
regenerates the definitions whose content actually changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Watch.Addr
			}
			if debounceMS <= 0 {
				debounceMS = c.Config.Watch.DebounceMillis
			}
			return c.runWatch(cmd.Context(), args[0], &flags, addr, time.Duration(debounceMS)*time.Millisecond)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "preview server address")
	cmd.Flags().IntVar(&debounceMS, "debounce", 0, "debounce window for file events in milliseconds")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, input string, flags *exportFlags, addr string, debounce time.Duration) error {
	absPath, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	// Watch sessions can share one redis instance across documents; a
	// per-document key scope keeps their entries apart.
	runner, err := c.newRunner(ctx, flags.noCache, cache.NewScopedKeyer(nil, docScope(absPath)))
	if err != nil {
		return err
	}
	defer runner.Cache.Close()

	reg := prom.NewRegistry()
	server.NewPromHooks(reg).Register()

	srv := server.NewServer(addr, reg)
	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	printInfo("Preview at %s", StyleLink.Render("http://"+addr))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// Watching the directory survives editors that replace the file on
	// save instead of writing in place.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return err
	}

	runPass := c.passRunner(runner, srv, input, flags)
	runPass(ctx)

	var timer *time.Timer
	trigger := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serverErr:
			return err
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Collapse bursts of events into one pass.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watch error", "err", err)
		case <-trigger:
			runPass(ctx)
		}
	}
}

// docScope derives a cache key prefix from the watched document's path. The
// hash keeps prefixes fixed-length and avoids path separators in keys.
func docScope(path string) string {
	return "doc:" + cache.Hash([]byte(path))[:12] + ":"
}

// passRunner returns a closure running one export pass and publishing the
// result. A new pass cancels the previous one if it is still running; the
// fragment cache keeps whatever the cancelled pass committed.
func (c *CLI) passRunner(runner *export.Runner, srv *server.Server, input string, flags *exportFlags) func(context.Context) {
	var cancelPrev context.CancelFunc
	return func(parent context.Context) {
		if cancelPrev != nil {
			cancelPrev()
		}
		ctx, cancel := context.WithCancel(parent)
		cancelPrev = cancel

		go func() {
			prog := newProgress(c.Logger)
			d, err := readDocument(input)
			if err != nil {
				c.Logger.Error("read document", "err", errors.UserMessage(err))
				return
			}
			res, err := runner.Export(ctx, d, c.exportOptions(flags))
			if err != nil {
				if ctx.Err() == nil {
					c.Logger.Error("export failed", "err", errors.UserMessage(err))
				}
				return
			}
			for _, diag := range res.Diagnostics {
				c.Logger.Warn(diag.String())
			}
			srv.Publish(res)
			prog.done("pass " + res.PassID)
		}()
	}
}
