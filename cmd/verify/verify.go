package verify

import (
	"github.com/YuminosukeSato/scigo-fixtures/cmd/internal"
	"github.com/YuminosukeSato/scigo-fixtures/fixture"
	"github.com/spf13/cobra"
)

func init() {
	flags.Flags.Init(CMD)
	CMD.Flags().BoolVarP(&flags.refit, "refit", "r", false, "additionally refit every model and compare its predictions")
	CMD.Flags().Float64VarP(&flags.tolerance, "tolerance", "t", fixture.DefaultTolerance, "set relative tolerance of numeric comparisons")
}

var flags = struct {
	internal.Flags
	refit     bool
	tolerance float64
}{}

// CMD defines the fixturegen verify command.
var CMD = &cobra.Command{
	Use:   "verify [DATASET...]",
	Short: "Check generated fixtures against their inputs",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	c, logger, err := flags.Setup()
	if err != nil {
		return err
	}
	v := fixture.NewVerifier(c)
	v.Logger = logger
	v.Refit = flags.refit
	v.Tolerance = flags.tolerance
	return v.Run(cmd.Context(), flags.Selection(c, args)...)
}
