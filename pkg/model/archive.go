package model

import "time"

// RawStanza is the wire-level input to the parser: one live message stanza
// or one archived (MAM) envelope, pre-decoded by the transport adapter down
// to the fields the parser actually branches on (spec.md §4.2).
type RawStanza struct {
	// ClientID is the stanza's id attribute, if any. Absent for some
	// archived items, in which case the parser synthesizes one.
	ClientID string
	StanzaID string

	// FromRaw/ToRaw are full JIDs as seen on the wire (resource included for
	// MUC occupants); the parser applies identity resolution on top.
	FromRaw string
	ToRaw   string

	// IsMUC marks the enclosing room as a MUC room, selecting the identity
	// resolution rule (spec.md §4.2 "Identity resolution").
	IsMUC bool

	// RealUserID is the embedded real-user descriptor on a MUC occupant, when
	// the room exposes non-anonymous identities. Empty if unavailable.
	RealUserID string

	Timestamp time.Time

	Kind RawKind

	Body        Body
	Attachments []Attachment

	// TargetID/TargetIsServer carry a reaction/correction/retraction/receipt's
	// target, ambiguous between client and server id until resolved by the
	// caller (archived items name targets by server id; live stanzas by
	// client id, per the "Identity resolution" note in spec.md §4.2).
	TargetID       string
	TargetIsServer bool

	ReactionEmojis []string
	ErrorText      string

	Encrypted *EncryptedPayload
}

// RawKind tags which wire element drove payload-precedence resolution
// (spec.md §4.2 "Payload precedence").
type RawKind string

const (
	RawKindError        RawKind = "error"
	RawKindReaction      RawKind = "reaction"
	RawKindRetraction    RawKind = "retraction"
	RawKindCorrection    RawKind = "correction"
	RawKindDelivery      RawKind = "delivery_receipt"
	RawKindRead          RawKind = "read_receipt"
	RawKindMessage       RawKind = "message"
	RawKindKeyTransport  RawKind = "key_transport"
)
