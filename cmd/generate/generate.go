package generate

import (
	"github.com/YuminosukeSato/scigo-fixtures/cmd/internal"
	"github.com/YuminosukeSato/scigo-fixtures/fixture"
	"github.com/spf13/cobra"
)

func init() {
	flags.Flags.Init(CMD)
	CMD.Flags().StringVarP(&flags.PlotDir, "plots", "p", "", "write diagnostic plots to the given directory")
	CMD.Flags().IntVarP(&flags.Jobs, "jobs", "j", 0, "set number of datasets generated concurrently")
}

var flags = struct {
	internal.Flags
}{}

// CMD defines the fixturegen generate command.
var CMD = &cobra.Command{
	Use:   "generate [DATASET...]",
	Short: "Fit the stock models and write mapper, model and prediction fixtures",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	c, logger, err := flags.Setup()
	if err != nil {
		return err
	}
	g := fixture.NewGenerator(c)
	g.Logger = logger
	return g.Run(cmd.Context(), flags.Selection(c, args)...)
}
