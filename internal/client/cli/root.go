// Package cli wires the voting client into a cobra command tree. Each
// subcommand opens one connection, runs one protocol exchange and prints
// the server's verdict.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/votekeeper/internal/client"
)

var (
	serverAddr string
	keyFile    string
	timeout    time.Duration

	vc *client.Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "votekeeper",
		Short: "CLI client for the voting server",
		Long: `votekeeper is a CLI client for the line-based voting server.

It supports registering an identifier, casting an encrypted ballot and
requesting the current tally.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			vc = client.New(serverAddr, timeout)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "localhost:5555", "Server address (host:port)")
	rootCmd.PersistentFlags().StringVarP(&keyFile, "key", "k", "public_key.pem", "Ballot public key PEM file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Connection deadline")

	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newVoteCmd())
	rootCmd.AddCommand(newTallyCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
