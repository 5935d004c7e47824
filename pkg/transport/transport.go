// Package transport specifies the wire-facing collaborators excluded from
// THE CORE (spec.md §1): the XMPP connector, messaging/archive services.
// Types lean on mellium.im/xmpp's stanza and jid packages so a real
// implementation can plug in without another translation layer.
package transport

import (
	"context"

	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// ConnectionEvent is delivered to the Connector's event callback (spec.md
// §6 "Transport (Connector)").
type ConnectionEvent struct {
	Kind    ConnectionEventKind
	Stanza  stanza.Message
	Err     error
}

type ConnectionEventKind string

const (
	EventConnected    ConnectionEventKind = "connected"
	EventDisconnected ConnectionEventKind = "disconnected"
	EventStanza       ConnectionEventKind = "stanza"
	EventPingTimer    ConnectionEventKind = "ping_timer"
	EventTimeoutTimer ConnectionEventKind = "timeout_timer"
)

// Connector owns the live XMPP connection (spec.md §6).
type Connector interface {
	Connect(ctx context.Context, fullJID jid.JID, password string) error
	Disconnect(ctx context.Context) error
	SendStanza(ctx context.Context, elem stanza.Message) error

	// OnEvent registers the callback invoked for every ConnectionEvent.
	// Only one callback is active at a time; registering again replaces it.
	OnEvent(cb func(ConnectionEvent))
}

// StanzaTranslator decodes one live stanza.Message into the RawStanza the
// parser consumes, and resolves which room it belongs to. Decoding the
// XEP-level wire structure (reaction/retraction/correction/receipt
// sub-elements, OMEMO encryption elements) is wire-protocol depth explicitly
// excluded from THE CORE (spec.md §1 Non-goals, same as Connector itself);
// this interface is the seam a concrete Connector implementation plugs a
// decoder into, so the room-service inbound pipeline never has to know the
// wire format.
type StanzaTranslator interface {
	Translate(msg stanza.Message) (room jidutil.RoomID, raw model.RawStanza, err error)
}

// SendMessageRequest is the outbound payload for send/update (spec.md §4.3).
type SendMessageRequest struct {
	Body           model.Body
	Attachments    []model.Attachment
	EncryptedBody  *model.EncryptedPayload
}

// MessagingService is the request-issuing surface for message mutations
// (spec.md §6 "Messaging (MessagingService)").
type MessagingService interface {
	Send(ctx context.Context, room jidutil.RoomID, req SendMessageRequest) (clientID string, err error)
	UpdateMessage(ctx context.Context, room jidutil.RoomID, msgID string, req SendMessageRequest) error
	RetractMessage(ctx context.Context, room jidutil.RoomID, msgID string) error
	ReactToChatMessage(ctx context.Context, userRoom jidutil.RoomID, msgID string, emojis []string) error
	ReactToMUCMessage(ctx context.Context, mucRoom jidutil.RoomID, stanzaID string, emojis []string) error
	SetUserIsComposing(ctx context.Context, room jidutil.RoomID, composing bool) error
	SendReadReceipt(ctx context.Context, room jidutil.RoomID, msgID string) error
	SendKeyTransportMessage(ctx context.Context, user jidutil.Participant, payload model.EncryptedPayload) error
	RelayArchivedMessageToRoom(ctx context.Context, room jidutil.RoomID, archived model.RawStanza) error
}

// RoomAttributesService mutates MUC-hosted room metadata. Split from
// MessagingService because topic and name changes travel over room
// configuration, not the message stream.
type RoomAttributesService interface {
	SetTopic(ctx context.Context, room jidutil.RoomID, topic string) error
	SetName(ctx context.Context, room jidutil.RoomID, name string) error
}

// ArchivePage is one page of a MAM query result.
type ArchivePage struct {
	Messages []model.RawStanza
	IsLast   bool
}

// ArchiveService is the paginated MAM fetch surface (spec.md §6 "Archive
// (ArchiveService)").
type ArchiveService interface {
	LoadMessagesBefore(ctx context.Context, room jidutil.RoomID, cursor string, limit int) (ArchivePage, error)
	LoadMessagesSince(ctx context.Context, room jidutil.RoomID, since int64, limit int) (ArchivePage, error)
	LoadMessagesAfter(ctx context.Context, room jidutil.RoomID, cursor string, limit int) (ArchivePage, error)
}
