package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vecli/internal/pipeline"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
)

const (
	previewRunes       = 300
	separator          = "----------------------------------------"
	defaultSearchLimit = 5
)

type searchFlags struct {
	limit  int
	unique bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.limit, "limit", defaultSearchLimit, "number of results to return")
	cmd.Flags().BoolVar(&f.unique, "unique", false, "return at most one result per title")
}

// runSearch embeds the query and searches collection.
func (a *app) runSearch(cmd *cobra.Command, query, collection string, f searchFlags) ([]pipeline.SearchResult, snapshot.ColumnMapping, error) {
	ctx := cmd.Context()
	if strings.TrimSpace(query) == "" {
		return nil, snapshot.ColumnMapping{}, pipeline.ErrEmptyQuery
	}

	cols, err := a.columns()
	if err != nil {
		return nil, cols, err
	}
	emb, err := a.textEmbedder(ctx)
	if err != nil {
		return nil, cols, err
	}
	idx, err := a.vectorIndex(ctx)
	if err != nil {
		return nil, cols, err
	}
	s, err := pipeline.NewSearcher(emb, idx, a.logger)
	if err != nil {
		return nil, cols, err
	}

	results, err := s.Search(ctx, pipeline.SearchRequest{
		Query:      query,
		Collection: collection,
		Limit:      f.limit,
		Unique:     f.unique,
		Columns:    cols,
	})
	return results, cols, err
}

func newSearchCmd(a *app) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search <query> [collection]",
		Short: "Semantic search over a collection",
		Long: `Embed the query and print the nearest records by cosine similarity.

With --unique the index is asked for ten times --limit candidates and only the
best-scoring record of each title is kept.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := a.collectionArg(args, 1)
			results, cols, err := a.runSearch(cmd, args[0], collection, f)
			if err != nil {
				return a.report(cmd, collection, err)
			}
			printResults(cmd.OutOrStdout(), cols, results)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newSearchExportCmd(a *app) *cobra.Command {
	var (
		f          searchFlags
		format     string
		outputPath string
	)
	cmd := &cobra.Command{
		Use:     "search_export <query> [collection]",
		Aliases: []string{"search-export"},
		Short:   "Search a collection and export the results",
		Long: `Run the same search as 'vecli search' and write the hits to
<output-path>/<collection>_search_export.<format>, keyed by the snapshot's
column names.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := a.collectionArg(args, 1)
			results, cols, err := a.runSearch(cmd, args[0], collection, f)
			if err != nil {
				return a.report(cmd, collection, err)
			}

			idx, err := a.vectorIndex(cmd.Context())
			if err != nil {
				return err
			}
			exp, err := pipeline.NewExporter(idx, a.logger)
			if err != nil {
				return err
			}
			res, err := exp.ExportSearch(cmd.Context(), results, pipeline.SearchExportRequest{
				Collection: collection,
				Format:     format,
				OutputDir:  outputPath,
				Columns:    cols,
			})
			if err != nil {
				return a.report(cmd, collection, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d search results to %s\n", res.Count, res.Path)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&format, "format", pipeline.FormatJSON, "export format: json or csv")
	cmd.Flags().StringVar(&outputPath, "output-path", "exported_search", "directory for the exported file")
	return cmd
}

func printResults(w io.Writer, cols snapshot.ColumnMapping, results []pipeline.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for _, r := range results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "[%.4f] %s: %s\n", r.Score, cols.Title, r.Title)
		fmt.Fprintf(w, "%s: %s\n", cols.Category, r.Category)
		fmt.Fprintf(w, "%s: %s\n", cols.Text, preview(r.Text))
	}
}

func printRows(w io.Writer, cols snapshot.ColumnMapping, rows []pipeline.Row) {
	for _, r := range rows {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "%s: %s\n", cols.Title, r.Title)
		fmt.Fprintf(w, "%s: %s\n", cols.Category, r.Category)
		fmt.Fprintf(w, "%s: %s\n", cols.Text, preview(r.Text))
	}
}

// preview truncates s to previewRunes runes, marking the cut with "...".
func preview(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
