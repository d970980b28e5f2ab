// Package cryptox implements the asymmetric encryption capability for
// ballots: an RSA key pair held by the server for its process lifetime,
// OAEP (SHA-256, MGF1, empty label) on both sides, and PEM helpers for
// out-of-band distribution of the public key.
package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/votekeeper/internal/common"
)

const publicKeyPEMType = "PUBLIC KEY"

// KeyPair holds the server's RSA private key. The public component may be
// shared freely; the private key never leaves the process.
type KeyPair struct {
	private *rsa.PrivateKey
}

// Generate creates a new key pair. bits is the modulus size (2048 or more).
func Generate(bits int) (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("error generating key pair: %w", err)
	}
	return &KeyPair{private: key}, nil
}

// Public returns the public component of the key pair.
func (k *KeyPair) Public() *rsa.PublicKey {
	return &k.private.PublicKey
}

// CiphertextSize returns the exact byte length of a valid ciphertext,
// equal to the modulus size (256 for a 2048-bit key). The transport must
// never read more than this many ballot bytes.
func (k *KeyPair) CiphertextSize() int {
	return k.private.Size()
}

// MaxPlaintextSize returns the longest plaintext OAEP can carry under
// this key: k - 2*hLen - 2.
func (k *KeyPair) MaxPlaintextSize() int {
	return k.private.Size() - 2*sha256.Size - 2
}

// Decrypt recovers the plaintext ballot from ciphertext. Any failure
// (wrong key, corrupted or truncated input) is reported as
// common.ErrDecryptionFailed; the underlying cause is deliberately not
// exposed to avoid leaking padding details.
func (k *KeyPair) Decrypt(ciphertext []byte) (string, error) {
	plaintext, err := rsa.DecryptOAEP(sha256.New(), nil, k.private, ciphertext, nil)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// Encrypt produces an OAEP ciphertext for plaintext under pub. Used by the
// client; the server only decrypts.
func Encrypt(plaintext string, pub *rsa.PublicKey) ([]byte, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return nil, fmt.Errorf("error encrypting ballot: %w", err)
	}
	return ciphertext, nil
}

// PublicKeyPEM serializes the public key as a PKIX PEM block.
func (k *KeyPair) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(k.Public())
	if err != nil {
		return nil, fmt.Errorf("error marshaling public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: der}), nil
}

// ParsePublicKeyPEM loads an RSA public key from a PKIX PEM block, as
// written by PublicKeyPEM.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyPEMType {
		return nil, errors.New("no public key PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaKey, nil
}
