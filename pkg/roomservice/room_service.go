// Package roomservice implements the RoomMessagingService: the per-room
// façade that drives sending, editing, retracting, reacting, read-tracking,
// and paginated history loading on top of the reducer (spec.md §4.3).
package roomservice

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-client-go/internal/clock"
	"github.com/prose-im/prose-core-client-go/internal/idgen"
	"github.com/prose-im/prose-core-client-go/pkg/event"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/parser"
	"github.com/prose-im/prose-core-client-go/pkg/reducer"
	"github.com/prose-im/prose-core-client-go/pkg/repo"
	"github.com/prose-im/prose-core-client-go/pkg/transport"
)

// Encryptor is the subset of the encryption domain service the room service
// needs, kept minimal per the consumer-defined interface convention used
// throughout this stack.
type Encryptor interface {
	Encrypt(ctx context.Context, recipient jidutil.Participant, plaintext string) (*model.EncryptedPayload, error)
	// ProcessKeyTransportMessage validates a handshake-only payload to
	// complete a pre-key handshake (spec.md §4.4 "Key transport messages").
	ProcessKeyTransportMessage(ctx context.Context, sender jidutil.Participant, payload model.EncryptedPayload) error
}

// ProfileRepo resolves a participant's display name for sender resolution
// (spec.md §4.3.2).
type ProfileRepo interface {
	DisplayName(ctx context.Context, p jidutil.Participant) (string, bool, error)
}

// Service is one room's RoomMessagingService instance.
type Service struct {
	Account string
	Room    model.Room

	messages  repo.MessageRepo
	settings  repo.SettingsRepo
	drafts    repo.DraftRepo
	profiles  ProfileRepo

	parser    *parser.Parser
	encryptor Encryptor // nil without an encryption service or for MUC rooms; Room.Settings.EncryptionEnabled is checked per send

	messaging  transport.MessagingService
	archive    transport.ArchiveService
	attributes transport.RoomAttributesService // nil outside MUC deployments

	dispatcher *event.Dispatcher
	ids        idgen.IdGen
	clock      clock.Clock
	localUser  jidutil.Participant

	pageSize uint32
	maxPages uint32

	logger zerolog.Logger
}

// Deps bundles Service's collaborators (constructor-injection, matching the
// teacher's connector-wiring style).
type Deps struct {
	Account    string
	Room       model.Room
	LocalUser  jidutil.Participant
	Messages   repo.MessageRepo
	Settings   repo.SettingsRepo
	Drafts     repo.DraftRepo
	Profiles   ProfileRepo
	Parser     *parser.Parser
	Encryptor  Encryptor
	Messaging  transport.MessagingService
	Archive    transport.ArchiveService
	Attributes transport.RoomAttributesService
	Dispatcher *event.Dispatcher
	IDs        idgen.IdGen
	Clock      clock.Clock
	PageSize   uint32
	MaxPages   uint32
	Logger     zerolog.Logger
}

func New(d Deps) *Service {
	return &Service{
		Account:    d.Account,
		Room:       d.Room,
		localUser:  d.LocalUser,
		messages:   d.Messages,
		settings:   d.Settings,
		drafts:     d.Drafts,
		profiles:   d.Profiles,
		parser:     d.Parser,
		encryptor:  d.Encryptor,
		messaging:  d.Messaging,
		archive:    d.Archive,
		attributes: d.Attributes,
		dispatcher: d.Dispatcher,
		ids:        d.IDs,
		clock:      d.Clock,
		pageSize:   d.PageSize,
		maxPages:   d.MaxPages,
		logger:     d.Logger,
	}
}

// encryptIfNeeded implements the shared "encrypt-if-needed" decision used by
// send and update (spec.md §4.3 send/update rows).
func (s *Service) encryptIfNeeded(ctx context.Context, recipient jidutil.Participant, body string) (*model.EncryptedPayload, error) {
	if s.encryptor == nil || !s.Room.Settings.EncryptionEnabled {
		return nil, nil
	}
	return s.encryptor.Encrypt(ctx, recipient, body)
}

// reduceAll loads the room's whole event log from the message repo and
// reduces it.
func (s *Service) reduceAll(ctx context.Context) ([]model.Message, error) {
	events, err := s.messages.All(ctx, s.Account, s.Room.RoomID)
	if err != nil {
		return nil, err
	}
	return reducer.Reduce(events, s.logger), nil
}
