// Package credential issues one-time voting tokens.
package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Tokens are drawn uniformly from uppercase letters and digits.
const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLength   = 8
)

// Issuer generates registration tokens with an absolute expiry timestamp.
type Issuer struct {
	validity time.Duration

	// now is a seam for tests.
	now func() time.Time
}

// NewIssuer returns an Issuer whose tokens expire validity after issuance.
func NewIssuer(validity time.Duration) *Issuer {
	return &Issuer{validity: validity, now: time.Now}
}

// Issue returns a fresh token and its expiry. Each character is drawn
// independently with crypto/rand, so tokens are uniform over the alphabet.
func (i *Issuer) Issue() (string, time.Time, error) {
	b := make([]byte, tokenLength)
	for idx := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenAlphabet))))
		if err != nil {
			return "", time.Time{}, fmt.Errorf("error generating token: %w", err)
		}
		b[idx] = tokenAlphabet[n.Int64()]
	}
	return string(b), i.now().Add(i.validity), nil
}
