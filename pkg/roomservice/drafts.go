package roomservice

import (
	"context"

	"github.com/prose-im/prose-core-client-go/pkg/event"
)

// SaveDraft persists (or, if text is empty, clears) the room's unsent draft
// text (spec.md §4.3 "save_draft"). Drafts are local-only and never synced.
func (s *Service) SaveDraft(ctx context.Context, text string) error {
	if err := s.drafts.Save(ctx, s.Account, s.Room.RoomID, text); err != nil {
		return err
	}
	s.dispatcher.EmitClient(event.ClientEvent{Kind: event.SidebarChanged})
	return nil
}

// LoadDraft returns the room's saved draft, if any (spec.md §4.3 "load_draft").
func (s *Service) LoadDraft(ctx context.Context) (string, bool, error) {
	return s.drafts.Load(ctx, s.Account, s.Room.RoomID)
}
