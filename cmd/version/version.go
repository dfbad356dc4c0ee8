package version

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var version = "v0.1.0"

// CMD defines the fixturegen version command.
var CMD = &cobra.Command{
	Use:   "version",
	Short: "Print fixturegen's version",
	Run:   run,
}

func run(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s [%s/%s]\n", os.Args[0], version, runtime.GOOS, runtime.GOARCH)
}
