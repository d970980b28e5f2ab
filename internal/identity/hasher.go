// Package identity derives opaque pseudonyms from raw voter identifiers.
// The pseudonym is the only identity the store ever sees.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash maps a raw identifier to its hex-encoded SHA-256 digest. The result
// is deterministic: the same identifier always yields the same pseudonym,
// which is what makes the one-vote-per-identity checks possible. Input is
// not validated here.
func Hash(rawID string) string {
	sum := sha256.Sum256([]byte(rawID))
	return hex.EncodeToString(sum[:])
}

// Last4 returns the display fragment of an identifier: its last four
// characters. Non-authoritative, kept only for operator-facing output.
func Last4(rawID string) string {
	if len(rawID) < 4 {
		return rawID
	}
	return rawID[len(rawID)-4:]
}
