package roomservice

import (
	"context"
	"errors"
	"time"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
	"github.com/prose-im/prose-core-client-go/pkg/reducer"
)

// MessageDTO is a reduced Message paired with its resolved sender display
// name (spec.md §4.3.2 "Sender resolution"). RemoteID shadows the embedded
// model.Message's field of the same name with its sanitized form, so a
// caller reading dto.RemoteID can never observe a synthetic (`!!`-prefixed)
// id (spec.md §3) the way a bare promoted field would.
type MessageDTO struct {
	model.Message
	RemoteID   model.MessageLikeID
	SenderName string
}

// LoadLatestMessages is load_messages_before with no cursor (spec.md §4.3.1).
func (s *Service) LoadLatestMessages(ctx context.Context) ([]MessageDTO, string, error) {
	return s.LoadMessagesBefore(ctx, "")
}

// LoadMessagesBefore implements the paginated history-loading algorithm
// (spec.md §4.3.1): it walks the archive backwards in pages of s.pageSize,
// up to s.maxPages, until at least s.pageSize text messages have been
// collected or the archive is exhausted.
func (s *Service) LoadMessagesBefore(ctx context.Context, before string) ([]MessageDTO, string, error) {
	var (
		messages    []model.MessageLike // accumulated newest-first across pages
		textCount   uint32
		pages       uint32
		clientTargets []model.MessageLikeID
		serverTargets []model.StanzaID
		last        = before
	)

	for textCount < s.pageSize && pages < s.maxPages {
		page, err := s.archive.LoadMessagesBefore(ctx, s.Room.RoomID, last, int(s.pageSize))
		if err != nil {
			return nil, "", err
		}
		if len(page.Messages) == 0 {
			last = ""
			break
		}

		last = string(page.Messages[0].StanzaID)

		for i := len(page.Messages) - 1; i >= 0; i-- {
			raw := page.Messages[i]
			ev, err := s.parser.Parse(ctx, s.Room.RoomID, raw)
			if err != nil {
				if errors.Is(err, proseerr.ErrNoPayload) {
					continue
				}
				s.logger.Warn().Err(err).Msg("roomservice: dropping unparseable archive item")
				continue
			}
			if ev.Payload.Kind() == model.PayloadKindError {
				continue
			}
			if ev.Payload.Kind() == model.PayloadKindMessage {
				textCount++
				clientTargets = append(clientTargets, ev.ID)
				if ev.HasStanzaID() {
					serverTargets = append(serverTargets, ev.StanzaID)
				}
			}
			messages = append(messages, ev)
		}

		pages++
		if page.IsLast {
			last = ""
			break
		}
	}

	var laterModifiers []model.MessageLike
	if before != "" && (len(clientTargets) > 0 || len(serverTargets) > 0) {
		newest := newestTimestamp(messages)
		lm, err := s.messages.TargetingAnyOf(ctx, s.Account, s.Room.RoomID, clientTargets, serverTargets, newest)
		if err != nil {
			return nil, "", err
		}
		laterModifiers = lm
	}

	if len(messages) > 0 {
		if err := s.messages.Append(ctx, s.Account, s.Room.RoomID, messages...); err != nil {
			return nil, "", err
		}
	}
	if len(laterModifiers) > 0 {
		if err := s.messages.Append(ctx, s.Account, s.Room.RoomID, laterModifiers...); err != nil {
			return nil, "", err
		}
	}

	reversed := reverseMessageLikes(messages)
	combined := append(reversed, laterModifiers...)

	reduced := reducer.Reduce(combined, s.logger)
	dtos, err := s.resolveSenders(ctx, reduced)
	if err != nil {
		return nil, "", err
	}
	return dtos, last, nil
}

// LoadUnreadMessages returns every reduced message strictly newer than the
// room's last-read marker, or delegates to LoadLatestMessages if there is no
// marker yet (spec.md §4.3 "load_unread_messages").
func (s *Service) LoadUnreadMessages(ctx context.Context) ([]MessageDTO, error) {
	settings, err := s.settings.SyncedSettings(ctx, s.Account, s.Room.RoomID)
	if err != nil {
		return nil, err
	}
	if settings.LastReadMessage == nil {
		dtos, _, err := s.LoadLatestMessages(ctx)
		return dtos, err
	}

	events, err := s.messages.After(ctx, s.Account, s.Room.RoomID, settings.LastReadMessage.Timestamp)
	if err != nil {
		return nil, err
	}
	reduced := reducer.Reduce(events, s.logger)
	return s.resolveSenders(ctx, reduced)
}

// resolveSenders implements sender resolution (spec.md §4.3.2) through
// resolveSenderName, memoized per unique participant across the batch. No
// per-participant name from room state is consulted.
func (s *Service) resolveSenders(ctx context.Context, messages []model.Message) ([]MessageDTO, error) {
	names := make(map[string]string, len(messages))
	out := make([]MessageDTO, 0, len(messages))
	for _, m := range messages {
		key := string(m.From)
		name, ok := names[key]
		if !ok {
			resolved, err := s.resolveSenderName(ctx, m.From)
			if err != nil {
				return nil, err
			}
			name = resolved
			names[key] = name
		}
		out = append(out, MessageDTO{Message: m, RemoteID: m.ExternalRemoteID(), SenderName: name})
	}
	return out, nil
}

func newestTimestamp(events []model.MessageLike) (t time.Time) {
	for _, ev := range events {
		if ev.Timestamp.After(t) {
			t = ev.Timestamp
		}
	}
	return t
}

// resolveSenderName resolves one participant's display name (spec.md
// §4.3.2): the profile repo's stored name, else the occupant nickname
// carried in the participant id, else the id string itself.
func (s *Service) resolveSenderName(ctx context.Context, p jidutil.Participant) (string, error) {
	if s.profiles != nil {
		name, ok, err := s.profiles.DisplayName(ctx, p)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	if nick := p.Nickname(); nick != "" {
		return nick, nil
	}
	return p.String(), nil
}

func reverseMessageLikes(in []model.MessageLike) []model.MessageLike {
	out := make([]model.MessageLike, len(in))
	for i, ev := range in {
		out[len(in)-1-i] = ev
	}
	return out
}
