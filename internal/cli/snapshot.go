package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbolt/svgpress/pkg/assemble"
	"github.com/mbolt/svgpress/pkg/codegen"
	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/export"
	"github.com/mbolt/svgpress/pkg/store"
)

// newStore builds the snapshot store selected by config.
func (c *CLI) newStore(ctx context.Context) (store.Store, error) {
	if c.Config.Store.Backend == "mongo" {
		return store.NewMongoStore(ctx, store.MongoConfig{
			URI:        c.Config.Store.Mongo.URI,
			Database:   c.Config.Store.Mongo.Database,
			Collection: c.Config.Store.Mongo.Collection,
		})
	}
	return store.NewFileStore(c.Config.Store.Dir)
}

// saveSnapshot persists the pass result together with the fragments the
// runner holds, so a later process can re-assemble without regenerating.
func (c *CLI) saveSnapshot(ctx context.Context, input string, flags *exportFlags, res *export.Result, runner *export.Runner) error {
	docID := flags.docID
	if docID == "" {
		docID = input
	}
	st, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	snap, err := store.New(docID, res.Module, runner.Generator().Fragments().Entries())
	if err != nil {
		return err
	}
	if err := st.Save(ctx, snap); err != nil {
		return err
	}
	printDetail("Snapshot %s saved for %s", snap.ID, docID)
	return nil
}

// snapshotCommand manages persisted export snapshots.
func (c *CLI) snapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage persisted export snapshots",
	}
	cmd.AddCommand(c.snapshotListCommand())
	cmd.AddCommand(c.snapshotRestoreCommand())
	cmd.AddCommand(c.snapshotDeleteCommand())
	return cmd
}

// snapshotListCommand prints a document's snapshots, most recent first.
func (c *CLI) snapshotListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [doc-id]",
		Short: "List snapshots of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			snaps, err := st.List(ctx, args[0])
			if err != nil {
				return err
			}
			for _, snap := range snaps {
				printDetail("%s  %s  %s", snap.ID, snap.ModuleHash[:12], snap.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// snapshotRestoreCommand re-assembles an SVG from the latest snapshot of a
// document without lowering anything.
func (c *CLI) snapshotRestoreCommand() *cobra.Command {
	var output string
	var interactive bool
	cmd := &cobra.Command{
		Use:   "restore [doc-id]",
		Short: "Assemble the latest snapshot of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			var snap *store.Snapshot
			if interactive {
				snaps, err := st.List(ctx, args[0])
				if err != nil {
					return err
				}
				snap, err = pickSnapshot(snaps)
				if err != nil {
					return err
				}
				if snap == nil {
					printInfo("No snapshot selected")
					return nil
				}
			} else {
				snap, err = st.Latest(ctx, args[0])
				if err != nil {
					return err
				}
			}
			m, err := snap.DecodeModule()
			if err != nil {
				return err
			}

			gen := codegen.NewGenerator(nil, nil)
			if len(snap.Fragments) > 0 {
				gen.Fragments().Prime(snap.Fragments)
			}
			diags := errors.NewDiagnostics()
			out, err := gen.Generate(ctx, m, codegen.Options{
				InlineMaxRefs: c.Config.InlineMaxRefs,
				InlineMaxSize: c.Config.InlineMaxSize,
				PrettyIDs:     c.Config.PrettyIDs,
			}, diags)
			if err != nil {
				return err
			}
			svg, err := assemble.Assemble(m, out, assemble.Options{PageGap: c.Config.PageGap})
			if err != nil {
				return err
			}

			if output == "" {
				output = "restored.svg"
			}
			if err := os.WriteFile(output, []byte(svg), 0644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			printSuccess("Restored snapshot %s", snap.ID)
			printFile(output)
			printStats(len(m.Refs), m.Len(), out.CacheHits, true)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: restored.svg)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick a snapshot interactively")
	return cmd
}

func (c *CLI) snapshotDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [snapshot-id]",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)
			if err := st.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted snapshot %s", args[0])
			return nil
		},
	}
}
