package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTallyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tally",
		Short: "Print the current vote counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := vc.Tally()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
}
