package roomservice

import (
	"context"
	"strings"

	"github.com/prose-im/prose-core-client-go/pkg/event"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/transport"
)

// SendRequest is the caller-facing send/update request.
type SendRequest struct {
	Body        model.Body
	Attachments []model.Attachment
}

// Send appends local echo and dispatches a new message, or short-circuits
// to an encryption toggle for "/omemo enable|disable" (spec.md §4.3 "send").
func (s *Service) Send(ctx context.Context, req SendRequest) error {
	if strings.TrimSpace(req.Body.Raw) == "" && len(req.Attachments) == 0 {
		s.logger.Warn().Msg("roomservice: empty send request dropped")
		return nil
	}

	if cmd, ok := parseOmemoSlashCommand(req.Body.Raw); ok {
		return s.toggleEncryption(ctx, cmd)
	}

	var encrypted *model.EncryptedPayload
	if !s.Room.Type.IsMUC() {
		enc, err := s.encryptIfNeeded(ctx, s.recipient(), req.Body.Raw)
		if err != nil {
			return err
		}
		encrypted = enc
	}

	id := model.MessageLikeID(s.ids.New())
	ev := model.MessageLike{
		ID:        id,
		From:      s.localUser,
		Timestamp: s.clock.Now(),
		Payload: model.MessagePayload{
			Body:           req.Body,
			Attachments:    req.Attachments,
			EncryptionInfo: encryptionInfoFor(encrypted),
		},
	}
	if err := s.messages.Append(ctx, s.Account, s.Room.RoomID, ev); err != nil {
		return err
	}

	wireReq := transport.SendMessageRequest{Body: req.Body, Attachments: req.Attachments, EncryptedBody: encrypted}
	if _, err := s.messaging.Send(ctx, s.Room.RoomID, wireReq); err != nil {
		return err
	}

	s.dispatcher.EmitRoom(event.ClientRoomEvent{Room: s.Room.RoomID, Kind: event.MessagesAppended, IDs: []string{string(id)}})
	return nil
}

// Update appends a Correction targeting id (spec.md §4.3 "update").
func (s *Service) Update(ctx context.Context, id model.MessageLikeID, req SendRequest) error {
	var encrypted *model.EncryptedPayload
	if !s.Room.Type.IsMUC() {
		enc, err := s.encryptIfNeeded(ctx, s.recipient(), req.Body.Raw)
		if err != nil {
			return err
		}
		encrypted = enc
	}

	ev := model.MessageLike{
		ID:        model.MessageLikeID(s.ids.New()),
		From:      s.localUser,
		Timestamp: s.clock.Now(),
		Target:    &model.TargetRef{ClientID: id},
		Payload: model.CorrectionPayload{
			Body:           req.Body,
			Attachments:    req.Attachments,
			EncryptionInfo: encryptionInfoFor(encrypted),
		},
	}
	if err := s.messages.Append(ctx, s.Account, s.Room.RoomID, ev); err != nil {
		return err
	}

	wireReq := transport.SendMessageRequest{Body: req.Body, Attachments: req.Attachments, EncryptedBody: encrypted}
	if err := s.messaging.UpdateMessage(ctx, s.Room.RoomID, string(id), wireReq); err != nil {
		return err
	}

	s.dispatcher.EmitRoom(event.ClientRoomEvent{Room: s.Room.RoomID, Kind: event.MessagesUpdated, IDs: []string{string(id)}})
	return nil
}

// Retract passes through to the wire; the local repo is updated when the
// retraction echoes back over the inbound pipeline (spec.md §4.3 "retract").
func (s *Service) Retract(ctx context.Context, id model.MessageLikeID) error {
	return s.messaging.RetractMessage(ctx, s.Room.RoomID, string(id))
}

func (s *Service) SetUserIsComposing(ctx context.Context, composing bool) error {
	return s.messaging.SetUserIsComposing(ctx, s.Room.RoomID, composing)
}

// recipient returns the single other party of a one-to-one room. Callers
// must only invoke this for non-MUC rooms.
func (s *Service) recipient() jidutil.Participant {
	for _, p := range s.Room.Participants {
		if p != s.localUser {
			return p
		}
	}
	return jidutil.Participant("")
}

func encryptionInfoFor(payload *model.EncryptedPayload) *model.EncryptionInfo {
	if payload == nil {
		return nil
	}
	return &model.EncryptionInfo{TargetDeviceID: 0}
}

// parseOmemoSlashCommand recognizes the "/omemo enable|disable" shortcut
// (spec.md §4.3 "send").
func parseOmemoSlashCommand(raw string) (enable bool, ok bool) {
	trimmed := strings.TrimSpace(raw)
	switch trimmed {
	case "/omemo enable":
		return true, true
	case "/omemo disable":
		return false, true
	default:
		return false, false
	}
}

func (s *Service) toggleEncryption(ctx context.Context, enable bool) error {
	_, _, err := s.settings.CompareAndSwapSynced(ctx, s.Account, s.Room.RoomID, func(current model.RoomSettings) model.RoomSettings {
		current.EncryptionEnabled = enable
		return current
	})
	if err != nil {
		return err
	}
	s.Room.Settings.EncryptionEnabled = enable

	notice := "OMEMO encryption disabled"
	if enable {
		notice = "OMEMO encryption enabled"
	}
	ev := model.MessageLike{
		ID:        model.MessageLikeID(s.ids.New()),
		From:      s.localUser,
		Timestamp: s.clock.Now(),
		Payload:   model.MessagePayload{Body: model.Body{Raw: notice}, IsTransient: true},
	}
	if err := s.messages.Append(ctx, s.Account, s.Room.RoomID, ev); err != nil {
		return err
	}

	s.dispatcher.EmitRoom(event.ClientRoomEvent{Room: s.Room.RoomID, Kind: event.MessagesAppended, IDs: []string{string(ev.ID)}})
	return nil
}
