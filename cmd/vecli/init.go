//go:build cgo

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecli/internal/embeddings"
)

func addInitCmd(root *cobra.Command) {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Download the ONNX runtime used for local embeddings",
		Long: `Download the ONNX runtime library required by the fastembed provider into
~/.config/vecli/lib/.

If the ONNX_PATH environment variable is set, that path takes precedence.

Examples:
  vecli init
  vecli init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if path := embeddings.GetONNXLibraryPath(); path != "" {
					cmd.Printf("ONNX runtime already installed at: %s\n", path)
					cmd.Println("Use --force to re-download.")
					return nil
				}
			}

			cmd.Printf("Downloading ONNX runtime v%s...\n", embeddings.DefaultONNXRuntimeVersion)
			path, err := embeddings.DownloadONNXRuntime(cmd.Context(), "", "")
			if err != nil {
				return fmt.Errorf("failed to download ONNX runtime: %w", err)
			}
			cmd.Printf("Successfully installed ONNX runtime to: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-download even if the runtime exists")
	root.AddCommand(cmd)
}

// ensureRuntime makes the ONNX runtime available to fastembed.
func ensureRuntime(ctx context.Context, logger *zap.Logger) error {
	_, err := embeddings.EnsureONNXRuntime(ctx, logger)
	return err
}
