// Package client wires the messaging pipeline's engines and repositories
// into a single per-account object, analogous to the teacher's connector
// wiring: one Client owns the shared providers and collaborators, and hands
// out a RoomMessagingService per room plus a catch-up run per room.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-client-go/internal/clock"
	"github.com/prose-im/prose-core-client-go/internal/idgen"
	"github.com/prose-im/prose-core-client-go/internal/rngsrc"
	"github.com/prose-im/prose-core-client-go/pkg/config"
	"github.com/prose-im/prose-core-client-go/pkg/encryption"
	"github.com/prose-im/prose-core-client-go/pkg/event"
	"github.com/prose-im/prose-core-client-go/pkg/historycatchup"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/parser"
	"github.com/prose-im/prose-core-client-go/pkg/repo"
	"github.com/prose-im/prose-core-client-go/pkg/roomservice"
	"github.com/prose-im/prose-core-client-go/pkg/transport"
)

// ProfileRepo resolves a participant's stored display name (spec.md §4.3.2).
// Also satisfies roomservice.ProfileRepo structurally.
type ProfileRepo interface {
	DisplayName(ctx context.Context, p jidutil.Participant) (string, bool, error)
}

// Deps bundles every collaborator a Client needs. The message, settings,
// draft and unread repositories default to the in-memory reference
// implementations in pkg/repo when left nil. The encryption repositories
// have no default: the encryption service is built only when Devices,
// EncryptionKeys, Sessions and DeviceList are all set.
type Deps struct {
	Account  string
	LocalUser jidutil.Participant
	Config   config.Config

	Connector  transport.Connector
	Translator transport.StanzaTranslator
	Messaging  transport.MessagingService
	Archive    transport.ArchiveService
	Attributes transport.RoomAttributesService
	Devices    encryption.DeviceService
	Profiles   ProfileRepo

	Messages repo.MessageRepo
	Settings repo.SettingsRepo
	Drafts   repo.DraftRepo
	Unread   *repo.InMemoryUnreadRepo

	EncryptionKeys encryption.EncryptionKeyRepo
	Sessions       encryption.SessionRepo
	DeviceList     encryption.DeviceRepo

	Clock  clock.Clock
	IDs    idgen.IdGen
	Rng    rngsrc.Rng
	Logger zerolog.Logger
}

// Client is the top-level per-account wiring: shared providers and
// repositories, the encryption domain service, the parser, and a registry
// of per-room RoomMessagingService/HistoryCatchUp pairs.
type Client struct {
	account   string
	localUser jidutil.Participant
	cfg       config.Config

	messages repo.MessageRepo
	settings repo.SettingsRepo
	drafts   repo.DraftRepo
	unread   *repo.InMemoryUnreadRepo
	profiles ProfileRepo

	messaging  transport.MessagingService
	archive    transport.ArchiveService
	attributes transport.RoomAttributesService
	translator transport.StanzaTranslator

	encryption *encryption.Service
	dispatcher *event.Dispatcher

	ids   idgen.IdGen
	clock clock.Clock
	log   zerolog.Logger

	mu      sync.Mutex
	rooms   map[jidutil.RoomID]*roomEntry
}

type roomEntry struct {
	room    model.Room
	service *roomservice.Service
	catchup *historycatchup.Engine
}

// New assembles a Client from Deps, falling back to in-memory repositories
// for anything left unset.
func New(d Deps) (*Client, error) {
	if d.Account == "" {
		return nil, fmt.Errorf("client: account is required")
	}

	messages := d.Messages
	if messages == nil {
		messages = repo.NewInMemoryMessageRepo()
	}
	settings := d.Settings
	if settings == nil {
		settings = repo.NewInMemorySettingsRepo()
	}
	drafts := d.Drafts
	if drafts == nil {
		drafts = repo.NewInMemoryDraftRepo()
	}
	unread := d.Unread
	if unread == nil {
		unread = repo.NewInMemoryUnreadRepo()
	}

	cl := d.Clock
	if cl == nil {
		cl = clock.System{}
	}
	ids := d.IDs
	if ids == nil {
		ids = idgen.XidGen{}
	}
	rng := d.Rng
	if rng == nil {
		rng = rngsrc.Crypto{}
	}

	dispatcher := event.NewDispatcher()

	c := &Client{
		account:   d.Account,
		localUser: d.LocalUser,
		cfg:       d.Config,
		messages:  messages,
		settings:  settings,
		drafts:    drafts,
		unread:    unread,
		profiles:  d.Profiles,
		messaging:  d.Messaging,
		archive:    d.Archive,
		attributes: d.Attributes,
		translator: d.Translator,
		dispatcher: dispatcher,
		ids:       ids,
		clock:     cl,
		log:       d.Logger,
		rooms:     make(map[jidutil.RoomID]*roomEntry),
	}

	if d.Devices != nil && d.EncryptionKeys != nil && d.Sessions != nil && d.DeviceList != nil {
		c.encryption = encryption.New(d.LocalUser, deviceLabel(d.Config.SoftwareVersion), d.EncryptionKeys, d.Sessions, d.DeviceList, d.Devices, rng, cl, d.Logger)
	}

	if d.Connector != nil {
		d.Connector.OnEvent(c.handleConnectionEvent)
	}

	return c, nil
}

// Dispatcher exposes the event fan-out for embedder subscription.
func (c *Client) Dispatcher() *event.Dispatcher { return c.dispatcher }

// Initialize runs the encryption domain service's first-run bootstrap, if
// an encryption service was configured (spec.md §4.4 "Initialize").
func (c *Client) Initialize(ctx context.Context) error {
	if c.encryption == nil {
		return nil
	}
	return c.encryption.Initialize(ctx)
}

// OpenRoom registers room and returns its RoomMessagingService, constructing
// one on first access (spec.md §4.3, §4.5).
func (c *Client) OpenRoom(room model.Room) *roomservice.Service {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.rooms[room.RoomID]; ok {
		return entry.service
	}

	var decryptor parser.Decryptor
	if c.encryption != nil {
		decryptor = c.encryption
	}
	cache := repoDecryptCache{account: c.account, repo: c.messages}
	p := parser.New(decryptor, cache, c.log)

	svc := roomservice.New(roomservice.Deps{
		Account:    c.account,
		Room:       room,
		LocalUser:  c.localUser,
		Messages:   c.messages,
		Settings:   c.settings,
		Drafts:     c.drafts,
		Profiles:   c.profiles,
		Parser:     p,
		Encryptor:  c.encryptorFor(room),
		Messaging:  c.messaging,
		Archive:    c.archive,
		Attributes: c.attributes,
		Dispatcher: c.dispatcher,
		IDs:        c.ids,
		Clock:      c.clock,
		PageSize:   c.cfg.Messaging.MessagePageSize,
		MaxPages:   c.cfg.Messaging.MaxMessagePagesToLoad,
		Logger:     c.log,
	})

	catchup := historycatchup.New(historycatchup.Deps{
		Account:  c.account,
		Messages: c.messages,
		Settings: c.settings,
		Unread:   c.unread,
		Archive:  c.archive,
		Parser:   p,
		Clock:    c.clock,
		Logger:   c.log,
	})

	entry := &roomEntry{room: room, service: svc, catchup: catchup}
	c.rooms[room.RoomID] = entry
	return svc
}

// CatchUp runs the History Catch-Up Engine for an already-opened room
// (spec.md §4.5). It is a no-op if the room lacks MAM support.
func (c *Client) CatchUp(ctx context.Context, roomID jidutil.RoomID) error {
	c.mu.Lock()
	entry, ok := c.rooms[roomID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("client: room %s not opened", roomID)
	}
	if !entry.room.Features.SupportsMAM {
		return nil
	}
	return entry.catchup.Run(ctx, roomID)
}

// handleConnectionEvent is the Connector event-callback consumer: connection
// status changes become ClientEvents, and live stanzas complete spec.md §2's
// "on receive" data flow (Connector -> MessageParser -> (Encryption?) ->
// MessageRepo.append -> RoomMessagingService.notify -> Dispatcher). Ping and
// watchdog timers are the Connector's own responsibility to act on (spec.md
// §5 "Cancellation and timeouts") and are only logged here.
func (c *Client) handleConnectionEvent(ev transport.ConnectionEvent) {
	switch ev.Kind {
	case transport.EventConnected:
		c.dispatcher.EmitClient(event.ClientEvent{Kind: event.ConnectionStatusChanged})
	case transport.EventDisconnected:
		c.dispatcher.EmitClient(event.ClientEvent{Kind: event.ConnectionStatusChanged, Err: ev.Err})
	case transport.EventStanza:
		c.handleInboundStanza(ev)
	case transport.EventPingTimer, transport.EventTimeoutTimer:
		c.log.Debug().Str("kind", string(ev.Kind)).Msg("client: connection timer fired")
	}
}

// handleInboundStanza translates one live stanza, routes it to the room it
// belongs to, and hands it to that room's inbound pipeline (spec.md §5
// "inbound events for a single room_id are applied to the repo and
// dispatched in receive order"; there is no cross-room ordering guarantee,
// so each room's HandleInbound call is independent of every other room's).
func (c *Client) handleInboundStanza(ev transport.ConnectionEvent) {
	if c.translator == nil {
		c.log.Warn().Msg("client: no StanzaTranslator configured, dropping inbound stanza")
		return
	}
	room, raw, err := c.translator.Translate(ev.Stanza)
	if err != nil {
		c.log.Warn().Err(err).Msg("client: dropping untranslatable inbound stanza")
		return
	}

	c.mu.Lock()
	entry, ok := c.rooms[room]
	c.mu.Unlock()
	if !ok {
		c.log.Warn().Str("room", string(room)).Msg("client: inbound stanza for unopened room dropped")
		return
	}

	if err := entry.service.HandleInbound(context.Background(), raw); err != nil {
		c.log.Warn().Err(err).Str("room", string(room)).Msg("client: inbound stanza handling failed")
	}
}

// repoDecryptCache adapts repo.MessageRepo's CachedPlaintext to
// parser.DecryptCache, whose signature is context-free since the parser
// calls it deep inside a decrypt-failure path that has no outer ctx to
// thread when invoked from code that only hands the parser a room+stanza
// (spec.md §4.2 "Decryption" decrypt-fallback cache).
type repoDecryptCache struct {
	account string
	repo    repo.MessageRepo
}

func (c repoDecryptCache) CachedPlaintext(room jidutil.RoomID, messageID string) (string, bool) {
	body, ok, err := c.repo.CachedPlaintext(context.Background(), c.account, room, messageID)
	if err != nil {
		return "", false
	}
	return body, ok
}

// deviceLabel formats the configured software version as the local OMEMO
// device label (spec.md §6 "software_version ... used as device label").
func deviceLabel(v *config.SoftwareVersion) string {
	if v == nil {
		return ""
	}
	label := strings.TrimSpace(v.Name + " " + v.Version)
	if v.OS != "" {
		label += " (" + v.OS + ")"
	}
	return label
}

func (c *Client) encryptorFor(room model.Room) roomservice.Encryptor {
	if c.encryption == nil || room.Type.IsMUC() {
		return nil
	}
	return c.encryption
}
