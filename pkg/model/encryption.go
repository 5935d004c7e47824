package model

import "github.com/prose-im/prose-core-client-go/pkg/jidutil"

// DeviceID is an OMEMO device identifier, unique per user.
type DeviceID uint32

// Device is one OMEMO-capable client instance belonging to a user (spec.md §3).
type Device struct {
	ID    DeviceID
	Label string
}

// TrustLevel is the verification state of a peer device's identity key.
type TrustLevel string

const (
	TrustTrusted   TrustLevel = "trusted"
	TrustUndecided TrustLevel = "undecided"
	TrustUntrusted TrustLevel = "untrusted"
)

// SessionState is the per-peer-device crypto session state machine
// (spec.md §4.4 "State machine").
type SessionState string

const (
	SessionUnknown     SessionState = "unknown"
	SessionInitialized SessionState = "initialized"
	SessionBroken      SessionState = "broken"
)

// Session is per-peer-device crypto state, retained across restarts
// (spec.md §3).
type Session struct {
	DeviceID DeviceID
	Identity []byte // peer's identity public key, once known
	Trust    TrustLevel
	State    SessionState
	IsActive bool

	// PendingPreKeyConfirmation is true from the moment this session is
	// established from a peer's pre-key bundle until a payload from that
	// device (typically its key-transport reply) decrypts successfully,
	// confirming the peer derived the same wrapping key (spec.md §4.4
	// step 5). While true, Encrypt marks this device's wrapped key
	// is_pre_key=true so the peer knows to replenish and confirm.
	PendingPreKeyConfirmation bool

	// wrappingKey is the derived shared secret used to wrap per-message
	// DEKs for this device (SPEC_FULL.md §3: HKDF over an X25519 ECDH
	// composition). Empty until the session is initialized.
	wrappingKey []byte
}

// WrappingKey returns the session's derived key-wrapping secret.
func (s *Session) WrappingKey() []byte { return s.wrappingKey }

// SetWrappingKey installs a freshly derived key-wrapping secret.
func (s *Session) SetWrappingKey(key []byte) { s.wrappingKey = key }

// EncryptionKey is one recipient device's wrapped copy of a message's
// DEK||MAC blob (spec.md §4.4 step 4; wire name in spec.md §6 is "keys").
type EncryptionKey struct {
	RecipientDeviceID DeviceID
	Data              []byte
	IsPreKey          bool
}

// EncryptedPayload is the wire-level encrypted message envelope (spec.md §3).
type EncryptedPayload struct {
	DeviceID DeviceID // sender's device id
	IV       []byte
	Keys     []EncryptionKey
	Payload  []byte // ciphertext, MAC excluded (spec.md §6)
}

// PreKey is one single-use X25519 key offered in a device bundle.
type PreKey struct {
	ID        uint32
	PublicKey []byte
}

// SignedPreKey is the medium-term signed key in a device bundle.
type SignedPreKey struct {
	ID        uint32
	PublicKey []byte
	Signature []byte
}

// Bundle is a device's full published pre-key bundle.
type Bundle struct {
	DeviceID     DeviceID
	IdentityKey  []byte
	SignedPreKey SignedPreKey
	PreKeys      []PreKey
}

// PreKeyBundle is the (device, identity key, signed pre-key, one
// randomly-chosen pre-key) tuple consumed to initiate a session
// (spec.md §3).
type PreKeyBundle struct {
	DeviceID     DeviceID
	IdentityKey  []byte
	SignedPreKey SignedPreKey
	PreKey       PreKey
}

// DeviceList is the authoritative list of a user's devices, as published to
// or discovered from the server.
type DeviceList struct {
	User    jidutil.Participant
	Devices []Device
}

const (
	// PreKeyRangeMin/Max bound the advertised bundle's pre-key ids
	// (spec.md §6 "Pre-key id range [1,100]").
	PreKeyRangeMin = 1
	PreKeyRangeMax = 100

	// KeySize, MACSize, NonceSize are the AEAD wire-format constants
	// (spec.md §6).
	KeySize   = 16
	MACSize   = 16
	NonceSize = 12
)
