// Package jidutil adapts mellium.im/xmpp/jid addressing to the domain-level
// Participant and RoomID identifiers used across the messaging pipeline.
package jidutil

import (
	"strings"

	"mellium.im/xmpp/jid"
)

// Participant identifies the sender or recipient of a MessageLike event.
// It is always a bare JID (no resource) except for MUC occupant identities,
// which carry the occupant nickname as the resource part.
type Participant string

// RoomID identifies a conversation: either a user's bare JID (one-to-one
// chat) or a MUC room's bare JID.
type RoomID string

// ParseParticipant normalizes raw into a bare-JID Participant. MUC callers
// that need the full occupant id should use ParseOccupant instead.
func ParseParticipant(raw string) (Participant, error) {
	j, err := jid.Parse(raw)
	if err != nil {
		return "", err
	}
	return Participant(j.Bare().String()), nil
}

// ParseOccupant parses a MUC occupant address (room@service/nick), keeping
// the resource (nickname) intact.
func ParseOccupant(raw string) (Participant, error) {
	j, err := jid.Parse(raw)
	if err != nil {
		return "", err
	}
	return Participant(j.String()), nil
}

// ParseRoomID normalizes raw into a bare-JID RoomID.
func ParseRoomID(raw string) (RoomID, error) {
	j, err := jid.Parse(raw)
	if err != nil {
		return "", err
	}
	return RoomID(j.Bare().String()), nil
}

// Bare strips any resource part from a Participant, returning the bare JID.
func (p Participant) Bare() Participant {
	j, err := jid.Parse(string(p))
	if err != nil {
		return p
	}
	return Participant(j.Bare().String())
}

// Nickname returns the resource part of a MUC occupant Participant, if any.
func (p Participant) Nickname() string {
	idx := strings.LastIndex(string(p), "/")
	if idx < 0 {
		return ""
	}
	return string(p)[idx+1:]
}

// String implements fmt.Stringer.
func (p Participant) String() string { return string(p) }

// String implements fmt.Stringer.
func (r RoomID) String() string { return string(r) }
