package model

import (
	"time"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
)

// Reaction is one emoji with the set of participants currently expressing
// it on a message (spec.md §4.1 reaction folding).
type Reaction struct {
	Emoji string
	From  []jidutil.Participant
}

// Message is the reduced, read-only view of a conversation entry, produced
// on demand by the reducer; it is never persisted (spec.md §3).
type Message struct {
	// RemoteID is the id of the send event, which may be one the parser
	// synthesized; ExternalRemoteID is the accessor that returns empty for
	// a synthesized id (spec.md §3 invariant: synthetic ids must never
	// leak as RemoteID).
	RemoteID MessageLikeID
	ServerID StanzaID

	From      jidutil.Participant
	Body      Body
	Timestamp time.Time

	IsRead       bool
	IsEdited     bool
	IsDelivered bool
	IsTransient bool
	IsEncrypted bool

	Reactions   []Reaction
	Attachments []Attachment
}

// ExternalRemoteID returns RemoteID unless it was synthesized, in which
// case it returns "" (spec.md §3 invariant).
func (m Message) ExternalRemoteID() MessageLikeID {
	if m.RemoteID.IsSynthesized() {
		return ""
	}
	return m.RemoteID
}
