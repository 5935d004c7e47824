package roomservice

import (
	"context"

	"go.mau.fi/util/variationselector"

	"github.com/prose-im/prose-core-client-go/pkg/event"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
)

// ToggleReaction flips emoji in the local user's reaction set on id and
// sends the resulting full snapshot, per the declarative reaction model
// (spec.md §4.1, §4.3 "toggle_reaction"). The wire call is split by room
// kind: MUC rooms react by stanza id, direct chats by client id.
func (s *Service) ToggleReaction(ctx context.Context, id model.MessageLikeID, emoji string) error {
	emoji = variationselector.Remove(emoji)

	messages, err := s.reduceAll(ctx)
	if err != nil {
		return err
	}

	var current []string
	var serverID model.StanzaID
	for _, m := range messages {
		if m.RemoteID != id {
			continue
		}
		serverID = m.ServerID
		for _, r := range m.Reactions {
			if !containsParticipant(r.From, s.localUser) {
				continue
			}
			current = append(current, r.Emoji)
		}
		break
	}

	if s.Room.Type.IsMUC() && serverID == "" {
		return proseerr.ErrNotFound
	}

	next := toggleEmoji(current, emoji)

	ev := model.MessageLike{
		ID:        model.MessageLikeID(s.ids.New()),
		From:      s.localUser,
		Timestamp: s.clock.Now(),
		Target:    &model.TargetRef{ClientID: id},
		Payload:   model.ReactionPayload{Emojis: next},
	}
	if err := s.messages.Append(ctx, s.Account, s.Room.RoomID, ev); err != nil {
		return err
	}

	if s.Room.Type.IsMUC() {
		if err := s.messaging.ReactToMUCMessage(ctx, s.Room.RoomID, string(serverID), next); err != nil {
			return err
		}
	} else {
		if err := s.messaging.ReactToChatMessage(ctx, s.Room.RoomID, string(id), next); err != nil {
			return err
		}
	}

	s.dispatcher.EmitRoom(event.ClientRoomEvent{Room: s.Room.RoomID, Kind: event.MessagesUpdated, IDs: []string{string(id)}})
	return nil
}

func containsParticipant(list []jidutil.Participant, p jidutil.Participant) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func toggleEmoji(current []string, emoji string) []string {
	out := make([]string, 0, len(current)+1)
	found := false
	for _, e := range current {
		if e == emoji {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		out = append(out, emoji)
	}
	return out
}
