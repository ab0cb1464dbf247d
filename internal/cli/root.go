// Package cli implements the gridcv command line.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	noColor bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gridcv",
		Short:         "Cross-validated hyperparameter grid search",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "gridcv.yaml", "config file path")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.AddCommand(newSearchCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newValidateCmd())
	return root
}
