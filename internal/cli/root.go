package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	projectRoot string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gildash",
	Short: "Gildash - local code-intelligence engine",
	Long: `Gildash incrementally indexes a source tree and exposes symbol,
relation, and dependency-graph queries over it.`,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func resolveProjectRoot() (string, error) {
	if projectRoot != "" {
		return projectRoot, nil
	}
	return os.Getwd()
}
