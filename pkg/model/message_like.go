// Package model holds the domain data model shared by the reducer, parser,
// room service, and encryption service: MessageLike events, the reduced
// Message view, rooms, devices, and sessions (spec.md §3).
package model

import (
	"strings"
	"time"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
)

// MessageLikeID is a stable client-assigned id. IDs synthesized by the
// parser when a stanza omits one carry the "!!" prefix and must never leak
// out as a Message.RemoteID (spec.md §3 invariants).
type MessageLikeID string

const synthesizedPrefix = "!!"

// IsSynthesized reports whether id was generated locally rather than
// carried on the wire.
func (id MessageLikeID) IsSynthesized() bool {
	return strings.HasPrefix(string(id), synthesizedPrefix)
}

// NewSynthesizedMessageLikeID wraps a freshly generated unique token as a
// synthesized MessageLikeID (spec.md §4.2 "Id synthesis").
func NewSynthesizedMessageLikeID(token string) MessageLikeID {
	return MessageLikeID(synthesizedPrefix + token)
}

// StanzaID is a server-assigned id from the archive service. It is stable
// across retransmits, unlike MessageLikeID which the sender chooses.
type StanzaID string

// TargetRef identifies the message a modifier (Correction, Reaction,
// Retraction, receipt) applies to. Exactly one of ClientID/ServerID is set.
type TargetRef struct {
	ClientID MessageLikeID
	ServerID StanzaID
}

// IsServer reports whether the target was addressed by server (archive) id.
func (t TargetRef) IsServer() bool { return t.ServerID != "" }

// MessageLike is one atomic, immutable event in a room's append-only log
// (spec.md §3). It is never mutated after insertion.
type MessageLike struct {
	ID        MessageLikeID
	StanzaID  StanzaID // optional: present when the archive/server assigned one
	Target    *TargetRef
	From      jidutil.Participant
	To        jidutil.Participant // optional
	Timestamp time.Time
	Payload   Payload
}

// HasStanzaID reports whether the event carries a server-assigned id.
func (m MessageLike) HasStanzaID() bool { return m.StanzaID != "" }
