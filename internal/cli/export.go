package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/errors"
)

// exportFlags holds the command-line flags shared by export and watch.
type exportFlags struct {
	output        string  // output file path
	pageGap       float64 // vertical gap between pages (-1 = config default)
	inlineMaxRefs int     // inline threshold on reference count
	inlineMaxSize int     // inline threshold on fragment bytes
	workers       int     // parallel generation workers
	prettyIDs     bool    // append item kinds to definition ids
	refresh       bool    // bypass module and artifact caches
	noCache       bool    // disable the persistent cache entirely
	snapshot      bool    // persist a snapshot after the pass
	docID         string  // document id for snapshots
}

func (f *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default: input name with .svg)")
	cmd.Flags().Float64Var(&f.pageGap, "page-gap", -1, "vertical gap between pages in points")
	cmd.Flags().IntVar(&f.inlineMaxRefs, "inline-max-refs", 0, "highest reference count still inlined per occurrence")
	cmd.Flags().IntVar(&f.inlineMaxSize, "inline-max-size", 0, "largest inlined fragment in bytes")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel generation workers (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&f.prettyIDs, "pretty-ids", false, "append item kinds to definition ids")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass module and artifact caches")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the persistent cache")
	cmd.Flags().BoolVar(&f.snapshot, "snapshot", false, "persist a snapshot after the export")
	cmd.Flags().StringVar(&f.docID, "doc-id", "", "document id for snapshots (default: input path)")
}

// exportCommand creates the one-shot export command.
func (c *CLI) exportCommand() *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "export [document.json]",
		Short: "Export a laid-out document to SVG",
		Long: `Export reads a laid-out document (JSON) and writes a single
self-contained SVG. Repeated content is deduplicated into shared
definitions, and generated fragments are cached so re-exporting a
lightly edited document only regenerates what changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), args[0], &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runExport(ctx context.Context, input string, flags *exportFlags) error {
	d, err := readDocument(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, flags.noCache, nil)
	if err != nil {
		return err
	}
	defer runner.Cache.Close()

	spinner := newSpinnerWithContext(ctx, "exporting "+filepath.Base(input))
	spinner.Start()

	res, err := runner.Export(ctx, d, c.exportOptions(flags))
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("export failed: %s", errors.UserMessage(err)))
		return err
	}
	spinner.Stop()

	out := flags.output
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".svg"
	}
	if err := os.WriteFile(out, res.Artifact, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	printSuccess("Exported %s (%s)", filepath.Base(input), res.Stats.TotalTime.Round(time.Millisecond))
	printFile(out)
	printStats(res.Stats.PageCount, res.Stats.DefCount, res.CacheInfo.FragmentHits,
		res.CacheInfo.ArtifactHit || res.CacheInfo.ModuleHit)
	for _, diag := range res.Diagnostics {
		printWarning("%s", diag.String())
	}

	if flags.snapshot {
		if err := c.saveSnapshot(ctx, input, flags, res, runner); err != nil {
			printWarning("snapshot not saved: %s", errors.UserMessage(err))
		}
	}
	return nil
}

// readDocument loads a laid-out document from JSON.
func readDocument(path string) (*doc.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "read document %s", path)
	}
	var d doc.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "parse document %s", path)
	}
	if len(d.Pages) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidDocument, "document %s has no pages", path)
	}
	return &d, nil
}
