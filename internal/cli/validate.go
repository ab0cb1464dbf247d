package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/gridcv/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a config file without running the search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if _, err := lookupModel(cfg.Model, cfg.Grid); err != nil {
				return err
			}
			size, err := cfg.Grid.Size()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d configurations × %d folds = %d trials)\n",
				cfgFile, cfg.Model, size, cfg.CV.Folds, size*cfg.CV.Folds)
			return nil
		},
	}
}
