package roomservice

import (
	"context"
	"errors"

	"github.com/prose-im/prose-core-client-go/pkg/event"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/parser"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
)

// HandleInbound completes spec.md §2's "on receive" data flow for one live
// stanza already scoped to this room: Connector -> MessageParser ->
// (EncryptionDomainService?) -> MessageRepo.append -> notify -> Dispatcher.
// Inbound events for a room are applied to the repo and dispatched in the
// order the caller invokes this method, matching spec.md §5's ordering
// guarantee; there is no cross-room ordering guarantee because each room
// owns its own Service.
func (s *Service) HandleInbound(ctx context.Context, raw model.RawStanza) error {
	if raw.Kind == model.RawKindKeyTransport {
		return s.handleKeyTransport(ctx, raw)
	}

	ev, err := s.parser.Parse(ctx, s.Room.RoomID, raw)
	if err != nil {
		if errors.Is(err, proseerr.ErrNoPayload) {
			return nil
		}
		s.logger.Warn().Err(err).Msg("roomservice: dropping unparseable inbound stanza")
		return nil
	}

	if err := s.messages.Append(ctx, s.Account, s.Room.RoomID, ev); err != nil {
		return err
	}

	kind, ids, ok := inboundEventFor(ev)
	if !ok {
		return nil
	}
	s.dispatcher.EmitRoom(event.ClientRoomEvent{Room: s.Room.RoomID, Kind: kind, IDs: ids})
	return nil
}

// handleKeyTransport routes a payload-free handshake stanza to the
// encryption service instead of the log: it carries no body and is never
// stored as a MessageLike (spec.md §4.4 "Key transport messages").
func (s *Service) handleKeyTransport(ctx context.Context, raw model.RawStanza) error {
	if s.encryptor == nil || raw.Encrypted == nil {
		return nil
	}
	from, err := parser.ResolveIdentity(raw)
	if err != nil {
		return err
	}
	if err := s.encryptor.ProcessKeyTransportMessage(ctx, from, *raw.Encrypted); err != nil {
		s.logger.Warn().Err(err).Msg("roomservice: key transport processing failed")
	}
	return nil
}

// inboundEventFor maps one freshly-appended event to the ClientRoomEvent it
// raises, per spec.md §4.3's operation table: a new message/error appends, a
// correction/reaction/receipt updates its target, a retraction deletes it.
func inboundEventFor(ev model.MessageLike) (event.ClientRoomEventKind, []string, bool) {
	switch ev.Payload.Kind() {
	case model.PayloadKindMessage, model.PayloadKindError:
		return event.MessagesAppended, []string{string(ev.ID)}, true
	case model.PayloadKindCorrection, model.PayloadKindReaction, model.PayloadKindDelivery, model.PayloadKindRead:
		id := targetIDString(ev.Target)
		if id == "" {
			return "", nil, false
		}
		return event.MessagesUpdated, []string{id}, true
	case model.PayloadKindRetraction:
		id := targetIDString(ev.Target)
		if id == "" {
			return "", nil, false
		}
		return event.MessagesDeleted, []string{id}, true
	default:
		return "", nil, false
	}
}

func targetIDString(t *model.TargetRef) string {
	if t == nil {
		return ""
	}
	if t.IsServer() {
		return string(t.ServerID)
	}
	return string(t.ClientID)
}
