// Command prosecli is a minimal demo entrypoint: it wires a memory-backed
// Client against loopback stub transports and exercises a send/reduce
// round trip, for manual smoke-testing of the messaging pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-client-go/internal/clock"
	"github.com/prose-im/prose-core-client-go/pkg/client"
	"github.com/prose-im/prose-core-client-go/pkg/config"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/roomservice"
	"github.com/prose-im/prose-core-client-go/pkg/transport"
)

func main() {
	account := flag.String("account", "alice@example.com", "local account JID")
	peer := flag.String("peer", "bob@example.com", "peer JID to message")
	body := flag.String("body", "Hi from prosecli", "message body to send")
	jsonLog := flag.Bool("json", false, "emit JSON logs instead of console")
	configPath := flag.String("config", "", "optional YAML config file overriding the defaults")
	flag.Parse()

	logger := newLogger(*jsonLog)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("prosecli: failed to load config")
		}
		cfg = loaded
	}

	archive := &loopbackArchive{}
	c, err := client.New(client.Deps{
		Account:   *account,
		LocalUser: jidutil.Participant(*account),
		Config:    cfg,
		Messaging: loopbackMessaging{log: logger, from: *account, archive: archive},
		Archive:   archive,
		Clock:     clock.System{},
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("prosecli: failed to build client")
	}

	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("prosecli: initialize failed")
	}

	room := model.Room{
		RoomID:       jidutil.RoomID(*peer),
		Type:         model.RoomTypeDirectMessage,
		Participants: []jidutil.Participant{jidutil.Participant(*account), jidutil.Participant(*peer)},
	}
	svc := c.OpenRoom(room)

	if err := svc.Send(ctx, roomservice.SendRequest{Body: model.Body{Raw: *body}}); err != nil {
		logger.Fatal().Err(err).Msg("prosecli: send failed")
	}

	dtos, _, err := svc.LoadLatestMessages(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("prosecli: load_latest_messages failed")
	}
	for _, m := range dtos {
		fmt.Fprintf(os.Stdout, "[%s] %s: %s\n", m.Timestamp.Format(time.Kitchen), m.SenderName, m.Body.Raw)
	}
}

func newLogger(jsonOutput bool) zerolog.Logger {
	if jsonOutput {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// loopbackMessaging acknowledges every wire call locally, logs it, and echoes
// sends into the loopback archive so they can be read back, standing in for a
// real MessagingService connector plus a server-side MAM store.
type loopbackMessaging struct {
	log     zerolog.Logger
	from    string
	archive *loopbackArchive
}

func (l loopbackMessaging) Send(_ context.Context, room jidutil.RoomID, req transport.SendMessageRequest) (string, error) {
	l.log.Info().Str("room", string(room)).Str("body", req.Body.Raw).Msg("loopback: send")
	stanzaID := l.archive.record(model.RawStanza{
		FromRaw:     l.from,
		Timestamp:   time.Now(),
		Kind:        model.RawKindMessage,
		Body:        req.Body,
		Attachments: req.Attachments,
	})
	return stanzaID, nil
}
func (l loopbackMessaging) UpdateMessage(_ context.Context, room jidutil.RoomID, msgID string, req transport.SendMessageRequest) error {
	l.log.Info().Str("room", string(room)).Str("message_id", msgID).Msg("loopback: update")
	return nil
}
func (l loopbackMessaging) RetractMessage(_ context.Context, room jidutil.RoomID, msgID string) error {
	l.log.Info().Str("room", string(room)).Str("message_id", msgID).Msg("loopback: retract")
	return nil
}
func (l loopbackMessaging) ReactToChatMessage(_ context.Context, room jidutil.RoomID, msgID string, emojis []string) error {
	l.log.Info().Str("room", string(room)).Str("message_id", msgID).Strs("emojis", emojis).Msg("loopback: react")
	return nil
}
func (l loopbackMessaging) ReactToMUCMessage(_ context.Context, room jidutil.RoomID, stanzaID string, emojis []string) error {
	l.log.Info().Str("room", string(room)).Str("stanza_id", stanzaID).Strs("emojis", emojis).Msg("loopback: react (muc)")
	return nil
}
func (l loopbackMessaging) SetUserIsComposing(_ context.Context, room jidutil.RoomID, composing bool) error {
	l.log.Debug().Str("room", string(room)).Bool("composing", composing).Msg("loopback: composing")
	return nil
}
func (l loopbackMessaging) SendReadReceipt(_ context.Context, room jidutil.RoomID, msgID string) error {
	l.log.Debug().Str("room", string(room)).Str("message_id", msgID).Msg("loopback: read receipt")
	return nil
}
func (l loopbackMessaging) SendKeyTransportMessage(_ context.Context, user jidutil.Participant, _ model.EncryptedPayload) error {
	l.log.Debug().Str("user", string(user)).Msg("loopback: key transport")
	return nil
}
func (l loopbackMessaging) RelayArchivedMessageToRoom(_ context.Context, room jidutil.RoomID, _ model.RawStanza) error {
	l.log.Debug().Str("room", string(room)).Msg("loopback: relay archived message")
	return nil
}

// loopbackArchive is a tiny in-process MAM stand-in: everything
// loopbackMessaging sends is archived and served back as one page.
type loopbackArchive struct {
	mu    sync.Mutex
	items []model.RawStanza
}

func (a *loopbackArchive) record(raw model.RawStanza) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	raw.StanzaID = fmt.Sprintf("archived-%d", len(a.items)+1)
	a.items = append(a.items, raw)
	return raw.StanzaID
}

func (a *loopbackArchive) LoadMessagesBefore(context.Context, jidutil.RoomID, string, int) (transport.ArchivePage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return transport.ArchivePage{Messages: append([]model.RawStanza{}, a.items...), IsLast: true}, nil
}
func (a *loopbackArchive) LoadMessagesSince(context.Context, jidutil.RoomID, int64, int) (transport.ArchivePage, error) {
	return transport.ArchivePage{IsLast: true}, nil
}
func (a *loopbackArchive) LoadMessagesAfter(context.Context, jidutil.RoomID, string, int) (transport.ArchivePage, error) {
	return transport.ArchivePage{IsLast: true}, nil
}
