// Command fixturegen generates and verifies the reference fixtures of the
// Wheat, Audit, Iris and Auto datasets.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/YuminosukeSato/scigo-fixtures/cmd/generate"
	"github.com/YuminosukeSato/scigo-fixtures/cmd/verify"
	"github.com/YuminosukeSato/scigo-fixtures/cmd/version"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/spf13/cobra"
)

var root = &cobra.Command{
	Use:           "fixturegen",
	Short:         "Generate reference mapper, model and prediction fixtures",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	root.AddCommand(
		generate.CMD,
		verify.CMD,
		version.CMD,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		log.GetLogger().Error("fixturegen failed", log.ErrAttr(err)...)
		stop()
		os.Exit(1)
	}
}
