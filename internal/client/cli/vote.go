package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/votekeeper/internal/client"
	"github.com/dmitrijs2005/votekeeper/internal/cryptox"
)

func newVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote",
		Short: "Cast an encrypted ballot",
		RunE: func(cmd *cobra.Command, args []string) error {
			pemBytes, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("error reading public key %s: %w", keyFile, err)
			}
			pub, err := cryptox.ParsePublicKeyPEM(pemBytes)
			if err != nil {
				return err
			}

			reader := bufio.NewReader(os.Stdin)

			rawID, err := client.GetSimpleText(reader, "Enter your 10-digit ID", cmd.OutOrStdout())
			if err != nil {
				return err
			}
			token, err := client.GetToken(reader, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			choice, err := client.GetSimpleText(reader, "Enter your choice", cmd.OutOrStdout())
			if err != nil {
				return err
			}

			verdict, err := vc.Vote(rawID, token, choice, pub)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), verdict)
			return nil
		},
	}
}
