// Package rngsrc is the cryptographic random source leaf provider
// (spec.md §2), used for DEK/nonce generation and pre-key selection.
package rngsrc

import (
	"crypto/rand"
	"io"
	"math/big"
)

// Rng is the cryptographic randomness provider threaded into the encryption
// domain service.
type Rng interface {
	// Bytes fills and returns n cryptographically random bytes.
	Bytes(n int) ([]byte, error)

	// IntN returns a uniform random integer in [0, n).
	IntN(n int) (int, error)
}

// Crypto is the production Rng backed by crypto/rand.
type Crypto struct{}

func (Crypto) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (Crypto) IntN(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
