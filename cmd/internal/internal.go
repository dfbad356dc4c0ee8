// Package internal holds the flags shared by the fixturegen sub commands.
package internal

import (
	"github.com/YuminosukeSato/scigo-fixtures/config"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/spf13/cobra"
)

// Flags is used to define the standard command-line parameters for
// fixturegen sub commands. Non-zero values overwrite the settings of the
// configuration file.
type Flags struct {
	Params string // Path to the configuration file
	config.Config
}

// Init initializes the standard commandline arguments for the given
// subcommand.
func (flags *Flags) Init(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flags.Params, "config", "c", "", "set path to the TOML configuration file")
	cmd.Flags().StringVar(&flags.CSVDir, "csv-dir", "", "set the input and prediction csv directory")
	cmd.Flags().StringVar(&flags.PKLDir, "pkl-dir", "", "set the persisted mapper and model directory")
	cmd.Flags().StringSliceVarP(&flags.Datasets, "datasets", "d", nil, "restrict to the given datasets (Wheat, Audit, Iris, Auto)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "set log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.LogFormat, "log-format", "", "set log format (json, console)")
}

// Setup reads the configuration file, applies the command line overrides
// and installs the default logger.
func (flags *Flags) Setup() (*config.Config, log.Logger, error) {
	c, err := config.Read(flags.Params)
	if err != nil {
		return nil, nil, err
	}
	c.Overwrite(flags.Config)
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := log.SetupLogger(c.LogLevel, c.LogFormat, nil)
	if err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}

// Selection returns the datasets named on the command line, falling back to
// the configured ones.
func (flags *Flags) Selection(c *config.Config, args []string) []string {
	if len(args) > 0 {
		return args
	}
	return c.Datasets
}
