package roomservice

import (
	"context"

	"go.mau.fi/util/ptr"

	"github.com/prose-im/prose-core-client-go/pkg/event"
	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// MarkAsRead advances the room's last-read marker to the newest message in
// the reduced view and sends a read receipt, but only if the marker
// actually moves forward (spec.md §4.3 "mark_as_read", §5 compare-before-write).
func (s *Service) MarkAsRead(ctx context.Context) error {
	messages, err := s.reduceAll(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	newest := messages[len(messages)-1]

	marker := ptr.Ptr(model.LastReadMarker{
		ClientID:  newest.ExternalRemoteID(),
		ServerID:  newest.ServerID,
		Timestamp: newest.Timestamp,
	})

	changed, _, err := s.settings.CompareAndSwapSynced(ctx, s.Account, s.Room.RoomID, func(current model.RoomSettings) model.RoomSettings {
		if current.LastReadMessage.Equal(marker) {
			return current
		}
		current.LastReadMessage = marker
		return current
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.Room.Settings.LastReadMessage = marker

	msgID := string(newest.ExternalRemoteID())
	if msgID == "" {
		msgID = string(newest.ServerID)
	}
	if msgID == "" {
		return nil
	}
	if err := s.messaging.SendReadReceipt(ctx, s.Room.RoomID, msgID); err != nil {
		return err
	}

	s.dispatcher.EmitClient(event.ClientEvent{Kind: event.SidebarChanged})
	return nil
}
