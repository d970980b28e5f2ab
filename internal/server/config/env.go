package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file
// in the working directory is loaded first if present; real environment
// variables win over the file.
//
// Recognized variables:
//
//	VOTEKEEPER_ADDRESS         TCP bind address
//	VOTEKEEPER_DATABASE_DSN    PostgreSQL DSN
//	VOTEKEEPER_TOKEN_VALIDITY  duration, e.g. "24h"
//	VOTEKEEPER_READ_TIMEOUT    duration, e.g. "2m"
//	VOTEKEEPER_RSA_KEY_SIZE    bits, e.g. "2048"
//	VOTEKEEPER_PUBLIC_KEY_FILE path for the public key PEM
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if v, ok := os.LookupEnv("VOTEKEEPER_ADDRESS"); ok {
		config.EndpointAddr = v
	}
	if v, ok := os.LookupEnv("VOTEKEEPER_DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("VOTEKEEPER_TOKEN_VALIDITY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenValidityDuration = d
		}
	}
	if v, ok := os.LookupEnv("VOTEKEEPER_READ_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.SessionReadTimeout = d
		}
	}
	if v, ok := os.LookupEnv("VOTEKEEPER_RSA_KEY_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.RSAKeySize = n
		}
	}
	if v, ok := os.LookupEnv("VOTEKEEPER_PUBLIC_KEY_FILE"); ok {
		config.PublicKeyFile = v
	}
}
