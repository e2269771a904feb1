package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vecli/internal/pipeline"
)

func newInspectCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect [collection]",
		Short: "Print the first records of a collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			collection := a.collectionArg(args, 0)

			cols, err := a.columns()
			if err != nil {
				return err
			}
			idx, err := a.vectorIndex(ctx)
			if err != nil {
				return err
			}
			insp, err := pipeline.NewInspector(idx, a.logger)
			if err != nil {
				return err
			}

			rows, err := insp.Inspect(ctx, collection, limit, cols)
			if err != nil {
				return a.report(cmd, collection, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inspecting collection '%s':\n", collection)
			printRows(cmd.OutOrStdout(), cols, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of records to show")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format     string
		limit      int
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "export [collection]",
		Short: "Export collection records to JSON or CSV",
		Long: `Page through up to --limit records of the collection and write their title,
category and text to <output-path>/<collection>.<format>, keyed by the
snapshot's column names. Records come back in index order, not by relevance.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			collection := a.collectionArg(args, 0)

			cols, err := a.columns()
			if err != nil {
				return err
			}
			idx, err := a.vectorIndex(ctx)
			if err != nil {
				return err
			}
			exp, err := pipeline.NewExporter(idx, a.logger)
			if err != nil {
				return err
			}

			res, err := exp.Export(ctx, pipeline.ExportRequest{
				Collection: collection,
				Limit:      limit,
				Format:     format,
				OutputDir:  outputPath,
				Columns:    cols,
			})
			if err != nil {
				return a.report(cmd, collection, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", res.Count, res.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", pipeline.FormatJSON, "export format: json or csv")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of records to export")
	cmd.Flags().StringVar(&outputPath, "output-path", "exported_data", "directory for the exported file")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [collection]",
		Short: "Delete a collection permanently",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			collection := a.collectionArg(args, 0)

			idx, err := a.vectorIndex(ctx)
			if err != nil {
				return err
			}
			admin, err := pipeline.NewAdmin(idx, a.logger)
			if err != nil {
				return err
			}

			deleted, err := admin.Clear(ctx, collection)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Collection '%s' does not exist. Nothing to clear.\n", collection)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collection '%s' has been deleted successfully.\n", collection)
			return nil
		},
	}
}

func newCollectionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			idx, err := a.vectorIndex(ctx)
			if err != nil {
				return err
			}
			admin, err := pipeline.NewAdmin(idx, a.logger)
			if err != nil {
				return err
			}

			names, err := admin.List(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
