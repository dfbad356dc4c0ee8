// Package config reads the fixture generator settings from a TOML file.
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
)

// Config defines the generator's configuration.
type Config struct {
	CSVDir    string   `toml:"csv_dir"`
	PKLDir    string   `toml:"pkl_dir"`
	PlotDir   string   `toml:"plot_dir"` // no plots when empty
	Datasets  []string `toml:"datasets"` // all catalog datasets when empty
	Jobs      int      `toml:"jobs"`
	LogLevel  string   `toml:"log_level"`
	LogFormat string   `toml:"log_format"`
}

// Default returns the settings that reproduce the fixed csv/ and pkl/
// layout.
func Default() *Config {
	return &Config{
		CSVDir:    "csv",
		PKLDir:    "pkl",
		Jobs:      1,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Read reads the config from a TOML file on top of the defaults. If name
// is empty the defaults are returned.
func Read(name string) (*Config, error) {
	c := Default()
	if name == "" {
		return c, nil
	}
	is, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", name)
	}
	defer is.Close()

	md, err := toml.NewDecoder(is).Decode(c)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", name)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.NewValidationError("config", "unknown keys", strings.Join(keys, ", "))
	}
	return c, c.Validate()
}

// Overwrite replaces settings with the given values. Values only
// overwrite the settings if they are not go's zero value.
func (c *Config) Overwrite(o Config) {
	if o.CSVDir != "" {
		c.CSVDir = o.CSVDir
	}
	if o.PKLDir != "" {
		c.PKLDir = o.PKLDir
	}
	if o.PlotDir != "" {
		c.PlotDir = o.PlotDir
	}
	if len(o.Datasets) > 0 {
		c.Datasets = o.Datasets
	}
	if o.Jobs != 0 {
		c.Jobs = o.Jobs
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		c.LogFormat = o.LogFormat
	}
}

// Validate checks the settings that cannot be caught by later stages.
func (c *Config) Validate() error {
	if c.CSVDir == "" {
		return errors.NewValidationError("csv_dir", "must not be empty", c.CSVDir)
	}
	if c.PKLDir == "" {
		return errors.NewValidationError("pkl_dir", "must not be empty", c.PKLDir)
	}
	if c.Jobs < 1 {
		return errors.NewValidationError("jobs", "must be at least 1", c.Jobs)
	}
	if _, err := log.ToLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		return errors.NewValidationError("log_format", "must be json or console", c.LogFormat)
	}
	return nil
}
