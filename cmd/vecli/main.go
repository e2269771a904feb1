// Package main implements vecli, a command-line tool that embeds the text
// column of a table, syncs the embeddings into a vector index and searches,
// inspects, exports or clears the resulting collections.
//
// Usage:
//
//	# Embed a CSV and write outputs/vector_data.gob
//	vecli agent books.csv
//
//	# Upload the snapshot into a collection
//	vecli upload outputs/vector_data.gob book_summaries
//
//	# Query it
//	vecli search "a boy who learns magic" --limit 3 --unique
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var version = "dev"

func main() {
	a := newApp()
	err := newRootCmd(a).ExecuteContext(context.Background())
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "vecli",
		Short: "Manage embeddings and vector index collections",
		Long: `vecli embeds the text column of a CSV, TSV or XLSX table, stores the
embeddings in a local snapshot and syncs them into a Qdrant (or embedded
chromem) collection for semantic search.

Configuration is read from ~/.config/vecli/config.yaml and VECLI_* environment
variables; the global flags below take precedence over both.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.config/vecli/config.yaml)")
	flags.StringVar(&a.flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&a.flags.snapshotPath, "snapshot", "", "snapshot file or directory used to recover the column mapping (default snapshot.dir)")
	flags.StringVar(&a.flags.indexProvider, "index", "", "vector index backend: qdrant or chromem")
	flags.StringVar(&a.flags.metricsTextfile, "metrics-textfile", "", "write index metrics in Prometheus text format to this file on exit")

	root.AddCommand(
		newAgentCmd(a),
		newUploadCmd(a),
		newInspectCmd(a),
		newSearchCmd(a),
		newExportCmd(a),
		newClearCmd(a),
		newSearchExportCmd(a),
		newCollectionsCmd(a),
	)
	addInitCmd(root)

	return root
}
