package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/retail-sim/retail-sim/sim"
)

// defaultsCmd prints the default configuration as YAML, ready to be edited
// and passed back with --config.
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		if err := writeDefaultConfig(os.Stdout); err != nil {
			logrus.Fatalf("Unable to render defaults: %v", err)
		}
	},
}

// writeDefaultConfig renders sim.NewDefaultConfig with the same keys LoadConfig accepts.
func writeDefaultConfig(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sim.NewDefaultConfig()); err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(defaultsCmd)
}
