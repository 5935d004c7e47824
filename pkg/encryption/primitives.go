package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// rngReader adapts the Rng provider to io.Reader so it can feed
// crypto/ecdh's key generation.
type rngReader struct{ rng Rng }

func newRngReader(rng Rng) io.Reader { return rngReader{rng: rng} }

func (r rngReader) Read(p []byte) (int, error) {
	b, err := r.rng.Bytes(len(p))
	if err != nil {
		return 0, err
	}
	copy(p, b)
	return len(p), nil
}

// signWithIdentity authenticates a signed pre-key's public key under the
// local identity key via HMAC-SHA256, standing in for the source's identity
// signature (spec.md §1 Non-goals: primitive identities are abstract).
func signWithIdentity(identityPrivate, payload []byte) []byte {
	mac := hmac.New(sha256.New, identityPrivate)
	mac.Write(payload)
	return mac.Sum(nil)
}

// generateIdentityKeyPair mints a fresh X25519 identity key pair.
func generateIdentityKeyPair(rand io.Reader) (public, private []byte, err error) {
	key, err := ecdh.X25519().GenerateKey(rand)
	if err != nil {
		return nil, nil, fmt.Errorf("generate identity key: %w", err)
	}
	return key.PublicKey().Bytes(), key.Bytes(), nil
}

// deriveWrappingKey composes the X3DH-style ECDH agreement this stack fixes
// (SPEC_FULL.md §3): one DH between the two parties' identity keys,
// expanded through HKDF into the session's key-wrapping secret. The salt is
// the two identity public keys in sorted order, so either party derives the
// same key regardless of who initiates. The algorithmic depth beyond "one
// ECDH + HKDF" is intentionally out of scope (spec.md §1 Non-goals).
func deriveWrappingKey(localPrivate, localPublic, remotePublic []byte) ([]byte, error) {
	priv, err := ecdh.X25519().NewPrivateKey(localPrivate)
	if err != nil {
		return nil, fmt.Errorf("load local private key: %w", err)
	}
	pub, err := ecdh.X25519().NewPublicKey(remotePublic)
	if err != nil {
		return nil, fmt.Errorf("load remote public key: %w", err)
	}
	shared, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}

	salt := sortedConcat(localPublic, remotePublic)
	h := hkdf.New(sha256.New, shared, salt, []byte("prose-omemo-session"))
	out := make([]byte, model.KeySize)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

func sortedConcat(a, b []byte) []byte {
	if bytes.Compare(a, b) <= 0 {
		return append(append([]byte{}, a...), b...)
	}
	return append(append([]byte{}, b...), a...)
}

// wrapDEKAndMAC asymmetrically wraps the 32-byte DEK||MAC blob for one
// recipient device under its session wrapping key. The packed form is
// nonce||ciphertext||tag so EncryptionKey.Data is self-contained on the wire
// (spec.md §4.4 "Symmetric layer").
func wrapDEKAndMAC(rng Rng, wrappingKey, dekAndMAC []byte) ([]byte, error) {
	block, err := aes.NewCipher(wrappingKey)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, model.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	nonce, err := rng.Bytes(model.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, dekAndMAC, nil)
	return append(nonce, sealed...), nil
}

func unwrapDEKAndMAC(wrappingKey, packed []byte) ([]byte, error) {
	if len(packed) < model.NonceSize {
		return nil, fmt.Errorf("wrapped key too short")
	}
	nonce, wrapped := packed[:model.NonceSize], packed[model.NonceSize:]
	block, err := aes.NewCipher(wrappingKey)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, model.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm.Open(nil, nonce, wrapped, nil)
}

// sealBody AEAD-encrypts the plaintext body under the caller's fresh DEK and
// nonce, returning the ciphertext-without-tag and the detached tag
// (spec.md §4.4 step 3-4: "DEK||MAC" before wrapping).
func sealBody(dek, nonce []byte, plaintext []byte) (ciphertext, tag []byte, err error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, model.MACSize)
	if err != nil {
		return nil, nil, fmt.Errorf("gcm: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ctLen := len(sealed) - model.MACSize
	return sealed[:ctLen], sealed[ctLen:], nil
}

func openBody(dek, nonce, ciphertext, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, model.MACSize)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	sealed := append(append([]byte{}, ciphertext...), tag...)
	return gcm.Open(nil, nonce, sealed, nil)
}
