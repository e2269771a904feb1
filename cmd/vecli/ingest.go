package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vecli/internal/embeddings"
	"github.com/fyrsmithlabs/vecli/internal/pipeline"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
)

func newAgentCmd(a *app) *cobra.Command {
	defaults := snapshot.DefaultColumns()
	var (
		cols      snapshot.ColumnMapping
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "agent <input_file>",
		Short: "Embed a table and save the snapshot",
		Long: `Read a CSV, TSV or XLSX table, drop the rows whose text column is empty,
embed the remaining texts and save them with their titles and categories to
<output-dir>/vector_data.gob.

Examples:
  # Default columns: Summary, book_name, categories
  vecli agent books.csv

  # Custom columns
  vecli agent reviews.xlsx --text-column body --title-column product --category-column rating`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := outputDir
			if dir == "" {
				dir = a.cfg.Snapshot.Dir
			}

			ing, err := pipeline.NewLazyIngestor(func(ctx context.Context) (embeddings.Embedder, error) {
				return a.textEmbedder(ctx)
			}, a.logger)
			if err != nil {
				return err
			}

			res, err := ing.Ingest(ctx, pipeline.IngestRequest{
				InputPath: args[0],
				Columns:   cols,
				OutputDir: dir,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d rows (%d without text dropped).\n", res.RowsLoaded, res.RowsDropped)
			fmt.Fprintf(out, "Saved %d embeddings to %s\n", res.Records, res.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&cols.Text, "text-column", defaults.Text, "column containing the text to embed")
	cmd.Flags().StringVar(&cols.Title, "title-column", defaults.Title, "column containing the titles")
	cmd.Flags().StringVar(&cols.Category, "category-column", defaults.Category, "column containing the categories")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "snapshot directory (default snapshot.dir)")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <snapshot_file> [collection]",
		Short: "Upload a snapshot into a collection, replacing its contents",
		Long: `Recreate the collection with the snapshot's vector size and cosine distance,
then upload every record in batches of 100. Any existing collection with the
same name is destroyed first.

An interrupted upload leaves the collection partially populated; run it again
to replace the contents.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			collection := a.collectionArg(args, 1)

			snap, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}

			idx, err := a.vectorIndex(ctx)
			if err != nil {
				return err
			}
			syncer, err := pipeline.NewSyncer(idx, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploading %d vectors to '%s'...\n", snap.Len(), collection)
			res, err := syncer.Sync(ctx, snap, collection)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Finished uploading %d vectors to '%s' collection.\n", res.Points, res.Collection)
			return nil
		},
	}
}
