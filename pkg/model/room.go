package model

import (
	"time"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
)

// RoomType tags the kind of conversation a Room represents. Operations
// like SetTopic are runtime-checked against this tag rather than
// compile-time absent, per spec.md §9 "Phantom-kind room typing".
type RoomType string

const (
	RoomTypeDirectMessage   RoomType = "direct_message"
	RoomTypeGroup           RoomType = "group"
	RoomTypePrivateChannel  RoomType = "private_channel"
	RoomTypePublicChannel   RoomType = "public_channel"
	RoomTypeGeneric         RoomType = "generic"
)

// IsMUC reports whether rooms of this type are hosted by a MUC service
// (spec.md §4.3 toggle_reaction dispatch split, §7 topic/name errors).
func (t RoomType) IsMUC() bool {
	switch t {
	case RoomTypeGroup, RoomTypePrivateChannel, RoomTypePublicChannel:
		return true
	default:
		return false
	}
}

// RoomFeatures records capabilities discovered for a room, e.g. whether MAM
// (archive) is supported (spec.md §2).
type RoomFeatures struct {
	SupportsMAM bool
}

// RoomSettings is per-room, per-account state synced to the server under a
// copy-on-write discipline (spec.md §3, §5).
type RoomSettings struct {
	LastReadMessage   *LastReadMarker
	EncryptionEnabled bool
}

// LastReadMarker identifies the newest message a user has acknowledged
// reading, by whichever id form is available.
type LastReadMarker struct {
	ClientID  MessageLikeID
	ServerID  StanzaID
	Timestamp time.Time
}

// Equal reports whether two markers refer to the same read position. Used
// by mark_as_read's compare-before-write discipline (spec.md §5).
func (m *LastReadMarker) Equal(o *LastReadMarker) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.ClientID == o.ClientID && m.ServerID == o.ServerID && m.Timestamp.Equal(o.Timestamp)
}

// LocalRoomSettings is local-device-only state, never synced (spec.md §3).
type LocalRoomSettings struct {
	LastCatchupTime time.Time
	LastReadMessage *LastReadMarker
}

// Room is a logical conversation: a one-to-one chat or a MUC-hosted group
// (spec.md §3).
type Room struct {
	RoomID       jidutil.RoomID
	Type         RoomType
	Name         string // MUC rooms only
	Topic        string // MUC rooms only
	Participants []jidutil.Participant
	Settings     RoomSettings
	Features     RoomFeatures
}
