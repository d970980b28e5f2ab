package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/votekeeper/internal/client"
)

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register an identifier and receive a voting token",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)

			rawID, err := client.GetSimpleText(reader, "Enter your 10-digit ID", cmd.OutOrStdout())
			if err != nil {
				return err
			}

			verdict, err := vc.Register(rawID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), verdict)
			return nil
		},
	}
}
