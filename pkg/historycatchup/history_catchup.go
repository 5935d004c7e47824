// Package historycatchup implements the History Catch-Up Engine: the
// paginated archive-replay algorithm that bridges cached history and the
// server archive after a (re)connection (spec.md §4.5).
package historycatchup

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-client-go/internal/clock"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/parser"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
	"github.com/prose-im/prose-core-client-go/pkg/repo"
	"github.com/prose-im/prose-core-client-go/pkg/transport"
)

// Floor is the hard lower bound on the catch-up start time (spec.md §6
// "catch-up floor 5 days").
const Floor = 5 * 24 * time.Hour

const batchSize = 100

// UnreadCounterRepo tracks the room's unread counter, updated atomically by
// the catch-up engine (spec.md §4.5).
type UnreadCounterRepo interface {
	IncrementUnread(ctx context.Context, account string, room jidutil.RoomID, delta int) error
}

// Deps bundles Engine's collaborators.
type Deps struct {
	Account  string
	Messages repo.MessageRepo
	Settings repo.SettingsRepo
	Unread   UnreadCounterRepo
	Archive  transport.ArchiveService
	Parser   *parser.Parser
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// Engine runs the catch-up algorithm for one room at a time.
type Engine struct {
	account  string
	messages repo.MessageRepo
	settings repo.SettingsRepo
	unread   UnreadCounterRepo
	archive  transport.ArchiveService
	parser   *parser.Parser
	clock    clock.Clock
	logger   zerolog.Logger
}

func New(d Deps) *Engine {
	return &Engine{
		account:  d.Account,
		messages: d.Messages,
		settings: d.Settings,
		unread:   d.Unread,
		archive:  d.Archive,
		parser:   d.Parser,
		clock:    d.Clock,
		logger:   d.Logger,
	}
}

// Run replays archive history for room since the last successful catch-up,
// per spec.md §4.5's start-time and pagination rules.
func (e *Engine) Run(ctx context.Context, room jidutil.RoomID) error {
	local, err := e.settings.LocalSettings(ctx, e.account, room)
	if err != nil {
		return err
	}
	synced, err := e.settings.SyncedSettings(ctx, e.account, room)
	if err != nil {
		return err
	}

	newestReceived, err := e.newestReceivedTimestamp(ctx, room)
	if err != nil {
		return err
	}

	start := latestOf(local.LastCatchupTime, newestReceived, e.clock.Now().Add(-Floor))

	var lastReadTime time.Time
	if synced.LastReadMessage != nil {
		lastReadTime = synced.LastReadMessage.Timestamp
	}

	unreadDelta, err := e.replay(ctx, room, start, lastReadTime)
	if err != nil {
		return err
	}

	local.LastCatchupTime = e.clock.Now()
	if err := e.settings.PutLocalSettings(ctx, e.account, room, local); err != nil {
		return err
	}
	if unreadDelta > 0 && e.unread != nil {
		if err := e.unread.IncrementUnread(ctx, e.account, room, unreadDelta); err != nil {
			return err
		}
	}
	return nil
}

// replay pages forward from start via load_messages_since then
// load_messages_after until the archive reports is_last, appending every
// parsed event and counting unread text messages (spec.md §4.5).
func (e *Engine) replay(ctx context.Context, room jidutil.RoomID, start time.Time, lastReadTime time.Time) (int, error) {
	page, err := e.archive.LoadMessagesSince(ctx, room, start.UnixMilli(), batchSize)
	if err != nil {
		return 0, err
	}

	unread := 0
	for {
		batch, pageUnread, err := e.parsePage(ctx, room, page, lastReadTime)
		if err != nil {
			return unread, err
		}
		unread += pageUnread

		if len(batch) > 0 {
			if err := e.messages.Append(ctx, e.account, room, batch...); err != nil {
				return unread, err
			}
		}

		if page.IsLast {
			return unread, nil
		}

		cursor := cursorFromPage(page)
		if cursor == "" {
			return unread, nil
		}
		page, err = e.archive.LoadMessagesAfter(ctx, room, cursor, batchSize)
		if err != nil {
			return unread, err
		}
	}
}

func (e *Engine) parsePage(ctx context.Context, room jidutil.RoomID, page transport.ArchivePage, lastReadTime time.Time) ([]model.MessageLike, int, error) {
	var batch []model.MessageLike
	unread := 0
	for _, raw := range page.Messages {
		ev, err := e.parser.Parse(ctx, room, raw)
		if err != nil {
			if errors.Is(err, proseerr.ErrNoPayload) {
				continue
			}
			e.logger.Warn().Err(err).Msg("historycatchup: dropping unparseable archive item")
			continue
		}
		if ev.Payload.Kind() == model.PayloadKindError {
			continue
		}
		batch = append(batch, ev)
		if ev.Payload.Kind() == model.PayloadKindMessage && ev.Timestamp.After(lastReadTime) {
			unread++
		}
	}
	return batch, unread, nil
}

func cursorFromPage(page transport.ArchivePage) string {
	if len(page.Messages) == 0 {
		return ""
	}
	last := page.Messages[len(page.Messages)-1]
	return last.StanzaID
}

func (e *Engine) newestReceivedTimestamp(ctx context.Context, room jidutil.RoomID) (time.Time, error) {
	all, err := e.messages.All(ctx, e.account, room)
	if err != nil {
		return time.Time{}, err
	}
	var newest time.Time
	for _, ev := range all {
		if ev.Timestamp.After(newest) {
			newest = ev.Timestamp
		}
	}
	return newest, nil
}

func latestOf(times ...time.Time) time.Time {
	var max time.Time
	for _, t := range times {
		if t.After(max) {
			max = t
		}
	}
	return max
}
