// Package proseerr defines the typed error taxonomy shared across the
// messaging and encryption pipeline.
package proseerr

import "errors"

// ConnectionErrorKind distinguishes transport-level failures.
type ConnectionErrorKind string

const (
	ConnectionGeneric    ConnectionErrorKind = "generic"
	ConnectionTimeout    ConnectionErrorKind = "timeout"
	ConnectionAuthFailed ConnectionErrorKind = "auth_failed"
)

// ConnectionError wraps a transport failure with a classification.
type ConnectionError struct {
	Kind ConnectionErrorKind
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return "connection error (" + string(e.Kind) + "): " + e.Err.Error()
	}
	return "connection error (" + string(e.Kind) + ")"
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// EncryptionErrorKind distinguishes encryption-side failures.
type EncryptionErrorKind string

const (
	EncryptionNoDevices    EncryptionErrorKind = "no_devices"
	EncryptionCryptoFailed EncryptionErrorKind = "crypto_failed"
	EncryptionSessionBroke EncryptionErrorKind = "session_broken"
	EncryptionTransient    EncryptionErrorKind = "transient"
)

// EncryptionError reports a failure while encrypting a message for recipients.
type EncryptionError struct {
	Kind EncryptionErrorKind
	Err  error
}

func (e *EncryptionError) Error() string {
	if e.Err != nil {
		return "encryption error (" + string(e.Kind) + "): " + e.Err.Error()
	}
	return "encryption error (" + string(e.Kind) + ")"
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// DecryptionErrorKind distinguishes decryption-side failures.
type DecryptionErrorKind string

const (
	DecryptionNotForThisDevice DecryptionErrorKind = "not_encrypted_for_this_device"
	DecryptionCryptoFailed     DecryptionErrorKind = "crypto_failed"
	DecryptionSizeMismatch     DecryptionErrorKind = "size_mismatch"
)

// DecryptionError reports a failure while decrypting an inbound payload.
type DecryptionError struct {
	Kind DecryptionErrorKind
	Err  error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return "decryption error (" + string(e.Kind) + "): " + e.Err.Error()
	}
	return "decryption error (" + string(e.Kind) + ")"
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// ErrNoPayload is returned by the parser when a stanza/envelope matches none
// of the recognized payload shapes (spec.md §4.2 step 8).
var ErrNoPayload = errors.New("message-like: no recognized payload")

// RepositoryError wraps a failure from a repository implementation.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return "repository error during " + e.Op + ": " + e.Err.Error()
	}
	return "repository error during " + e.Op
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed stanza that the parser could not make
// sense of at all (distinct from NoPayload, which is the expected
// "modifier without body" case).
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "protocol error: " + e.Reason + ": " + e.Err.Error()
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrNotFound is a generic not-found sentinel for repository/service lookups.
var ErrNotFound = errors.New("not found")

// IsConnectionKind reports whether err is a ConnectionError of the given kind.
func IsConnectionKind(err error, kind ConnectionErrorKind) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// IsEncryptionKind reports whether err is an EncryptionError of the given kind.
func IsEncryptionKind(err error, kind EncryptionErrorKind) bool {
	var ee *EncryptionError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}

// IsDecryptionKind reports whether err is a DecryptionError of the given kind.
func IsDecryptionKind(err error, kind DecryptionErrorKind) bool {
	var de *DecryptionError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
