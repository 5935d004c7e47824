package client

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"

	"github.com/prose-im/prose-core-client-go/internal/clock"
	"github.com/prose-im/prose-core-client-go/pkg/event"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/roomservice"
	"github.com/prose-im/prose-core-client-go/pkg/transport"
)

type noopMessaging struct{}

func (noopMessaging) Send(context.Context, jidutil.RoomID, transport.SendMessageRequest) (string, error) {
	return "wire-id", nil
}
func (noopMessaging) UpdateMessage(context.Context, jidutil.RoomID, string, transport.SendMessageRequest) error {
	return nil
}
func (noopMessaging) RetractMessage(context.Context, jidutil.RoomID, string) error { return nil }
func (noopMessaging) ReactToChatMessage(context.Context, jidutil.RoomID, string, []string) error {
	return nil
}
func (noopMessaging) ReactToMUCMessage(context.Context, jidutil.RoomID, string, []string) error {
	return nil
}
func (noopMessaging) SetUserIsComposing(context.Context, jidutil.RoomID, bool) error { return nil }
func (noopMessaging) SendReadReceipt(context.Context, jidutil.RoomID, string) error  { return nil }
func (noopMessaging) SendKeyTransportMessage(context.Context, jidutil.Participant, model.EncryptedPayload) error {
	return nil
}
func (noopMessaging) RelayArchivedMessageToRoom(context.Context, jidutil.RoomID, model.RawStanza) error {
	return nil
}

type noopArchive struct{}

func (noopArchive) LoadMessagesBefore(context.Context, jidutil.RoomID, string, int) (transport.ArchivePage, error) {
	return transport.ArchivePage{IsLast: true}, nil
}
func (noopArchive) LoadMessagesSince(context.Context, jidutil.RoomID, int64, int) (transport.ArchivePage, error) {
	return transport.ArchivePage{IsLast: true}, nil
}
func (noopArchive) LoadMessagesAfter(context.Context, jidutil.RoomID, string, int) (transport.ArchivePage, error) {
	return transport.ArchivePage{IsLast: true}, nil
}

func TestOpenRoom_IsMemoizedAndSendWorks(t *testing.T) {
	local := jidutil.Participant("alice@example.com")
	peer := jidutil.Participant("bob@example.com")

	c, err := New(Deps{
		Account:   "alice@example.com",
		LocalUser: local,
		Messaging: noopMessaging{},
		Archive:   noopArchive{},
		Clock:     clock.NewFixed(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	room := model.Room{RoomID: jidutil.RoomID(peer), Type: model.RoomTypeDirectMessage, Participants: []jidutil.Participant{local, peer}}

	svc1 := c.OpenRoom(room)
	svc2 := c.OpenRoom(room)
	assert.Same(t, svc1, svc2, "OpenRoom must memoize per room id")

	var gotEvents []event.ClientRoomEvent
	c.Dispatcher().OnRoomEvent(func(ev event.ClientRoomEvent) { gotEvents = append(gotEvents, ev) })

	require.NoError(t, svc1.Send(context.Background(), roomservice.SendRequest{Body: model.Body{Raw: "hi"}}))
	require.Len(t, gotEvents, 1)
	assert.Equal(t, event.MessagesAppended, gotEvents[0].Kind)
}

// fakeConnector hands its callback straight to the test via Fire, skipping
// any real transport.
type fakeConnector struct {
	cb func(transport.ConnectionEvent)
}

func (f *fakeConnector) Connect(context.Context, jid.JID, string) error { return nil }
func (f *fakeConnector) Disconnect(context.Context) error               { return nil }
func (f *fakeConnector) SendStanza(context.Context, stanza.Message) error {
	return nil
}
func (f *fakeConnector) OnEvent(cb func(transport.ConnectionEvent)) { f.cb = cb }

// fakeTranslator ignores the wire stanza and returns a canned room/raw pair,
// standing in for the XEP-level decoder a real Connector would plug in.
type fakeTranslator struct {
	room jidutil.RoomID
	raw  model.RawStanza
	err  error
}

func (f fakeTranslator) Translate(stanza.Message) (jidutil.RoomID, model.RawStanza, error) {
	return f.room, f.raw, f.err
}

func TestHandleConnectionEvent_RoutesInboundStanzaToRoom(t *testing.T) {
	local := jidutil.Participant("alice@example.com")
	peer := jidutil.Participant("bob@example.com")
	room := jidutil.RoomID(peer)

	connector := &fakeConnector{}
	raw := model.RawStanza{
		Kind:      model.RawKindMessage,
		StanzaID:  "wire-1",
		FromRaw:   string(peer),
		Body:      model.Body{Raw: "hello from bob"},
		Timestamp: time.Date(2026, 7, 29, 9, 5, 0, 0, time.UTC),
	}

	c, err := New(Deps{
		Account:    "alice@example.com",
		LocalUser:  local,
		Messaging:  noopMessaging{},
		Archive:    noopArchive{},
		Connector:  connector,
		Translator: fakeTranslator{room: room, raw: raw},
		Clock:      clock.NewFixed(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NotNil(t, connector.cb, "Client.New must register a callback with the Connector")

	roomModel := model.Room{RoomID: room, Type: model.RoomTypeDirectMessage, Participants: []jidutil.Participant{local, peer}}
	c.OpenRoom(roomModel)

	var gotEvents []event.ClientRoomEvent
	c.Dispatcher().OnRoomEvent(func(ev event.ClientRoomEvent) { gotEvents = append(gotEvents, ev) })

	connector.cb(transport.ConnectionEvent{Kind: transport.EventStanza, Stanza: stanza.Message{}})

	require.Len(t, gotEvents, 1)
	assert.Equal(t, event.MessagesAppended, gotEvents[0].Kind)

	msgs, err := c.messages.All(context.Background(), "alice@example.com", room)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestHandleConnectionEvent_UnopenedRoomIsDropped(t *testing.T) {
	local := jidutil.Participant("alice@example.com")
	peer := jidutil.Participant("bob@example.com")
	room := jidutil.RoomID(peer)

	connector := &fakeConnector{}
	raw := model.RawStanza{Kind: model.RawKindMessage, StanzaID: "wire-1", FromRaw: string(peer), Body: model.Body{Raw: "hi"}}

	c, err := New(Deps{
		Account:    "alice@example.com",
		LocalUser:  local,
		Messaging:  noopMessaging{},
		Archive:    noopArchive{},
		Connector:  connector,
		Translator: fakeTranslator{room: room, raw: raw},
		Clock:      clock.NewFixed(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	// Room was never opened: the stanza must be dropped, not panic.
	connector.cb(transport.ConnectionEvent{Kind: transport.EventStanza, Stanza: stanza.Message{}})

	msgs, err := c.messages.All(context.Background(), "alice@example.com", room)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHandleConnectionEvent_ConnectionStatusChanges(t *testing.T) {
	connector := &fakeConnector{}
	c, err := New(Deps{
		Account:   "alice@example.com",
		LocalUser: jidutil.Participant("alice@example.com"),
		Messaging: noopMessaging{},
		Archive:   noopArchive{},
		Connector: connector,
		Clock:     clock.NewFixed(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	var gotEvents []event.ClientEvent
	c.Dispatcher().OnClientEvent(func(ev event.ClientEvent) { gotEvents = append(gotEvents, ev) })

	connector.cb(transport.ConnectionEvent{Kind: transport.EventConnected})
	connector.cb(transport.ConnectionEvent{Kind: transport.EventDisconnected, Err: assert.AnError})

	require.Len(t, gotEvents, 2)
	assert.Equal(t, event.ConnectionStatusChanged, gotEvents[0].Kind)
	assert.Equal(t, event.ConnectionStatusChanged, gotEvents[1].Kind)
	assert.Equal(t, assert.AnError, gotEvents[1].Err)
}
