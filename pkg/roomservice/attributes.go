package roomservice

import (
	"context"
	"fmt"

	"github.com/prose-im/prose-core-client-go/pkg/event"
)

// SetTopic changes the room's topic. Only MUC-hosted rooms carry a topic;
// calling this on a one-to-one chat fails synchronously (spec.md §7).
func (s *Service) SetTopic(ctx context.Context, topic string) error {
	if !s.Room.Type.IsMUC() {
		return fmt.Errorf("roomservice: cannot set topic on non-MUC room %s", s.Room.RoomID)
	}
	if s.attributes == nil {
		return fmt.Errorf("roomservice: no room attributes service configured")
	}
	if err := s.attributes.SetTopic(ctx, s.Room.RoomID, topic); err != nil {
		return err
	}
	s.Room.Topic = topic

	s.dispatcher.EmitRoom(event.ClientRoomEvent{Room: s.Room.RoomID, Kind: event.AttributesChanged})
	return nil
}

// SetName renames the room. Only MUC-hosted rooms have a mutable name;
// calling this on a one-to-one chat fails synchronously (spec.md §7).
func (s *Service) SetName(ctx context.Context, name string) error {
	if !s.Room.Type.IsMUC() {
		return fmt.Errorf("roomservice: cannot set name on non-MUC room %s", s.Room.RoomID)
	}
	if s.attributes == nil {
		return fmt.Errorf("roomservice: no room attributes service configured")
	}
	if err := s.attributes.SetName(ctx, s.Room.RoomID, name); err != nil {
		return err
	}
	s.Room.Name = name

	s.dispatcher.EmitRoom(event.ClientRoomEvent{Room: s.Room.RoomID, Kind: event.AttributesChanged})
	return nil
}
