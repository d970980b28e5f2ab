package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/votekeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   TCP bind address (e.g., ":5555")
//	-d string   PostgreSQL DSN
//	-t int      token validity, hours
//	-r int      session read timeout, seconds (0 disables)
//	-k int      RSA key size, bits
//	-p string   public key PEM output path
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-r", "-k", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Hours()), "token validity (in hours)")
	readTimeout := fs.Int("r", int(config.SessionReadTimeout.Seconds()), "session read timeout (in seconds)")

	fs.IntVar(&config.RSAKeySize, "k", config.RSAKeySize, "RSA key size (bits)")
	fs.StringVar(&config.PublicKeyFile, "p", config.PublicKeyFile, "public key PEM output path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Hour
	config.SessionReadTimeout = time.Duration(*readTimeout) * time.Second
}
