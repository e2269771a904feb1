//go:build !cgo

package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// addInitCmd is a no-op: without cgo there is no local embedding runtime to
// install and only the tei provider works.
func addInitCmd(*cobra.Command) {}

func ensureRuntime(context.Context, *zap.Logger) error { return nil }
