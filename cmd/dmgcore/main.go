// Command dmgcore is the DMG core's front door: a windowed player and a
// headless conformance runner, both thin wrappers over internal/vm.Machine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "dmgcore",
		Short: "A DMG (original Game Boy) emulator core and player",
	}
	root.AddCommand(newRunCmd(), newStepCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("dmgcore")
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dmgcore version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func init() {
	if lvl := os.Getenv("DMGCORE_LOG"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			logrus.SetLevel(parsed)
		}
	}
}
