package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpga-compose/autosoc/internal/design"
	"github.com/fpga-compose/autosoc/internal/diag"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Merge and evaluate input files and report diagnostics without emitting output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diags := &diag.Sink{}

			sources, err := loadSources(args, diags)
			if err != nil {
				return err
			}

			d := design.Build(sources, diags)

			for _, dg := range diags.Diagnostics() {
				fmt.Fprintln(cmd.ErrOrStderr(), dg.Error())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d bus(es), %d clock(s), %d PIC(s), %d sweep(s)\n",
				len(d.Buses), len(d.Clocks), len(d.PICs), d.Sweeps)

			return diags.Err()
		},
	}

	return cmd
}
