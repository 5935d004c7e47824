package historycatchup

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prose-im/prose-core-client-go/internal/clock"
	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/parser"
	"github.com/prose-im/prose-core-client-go/pkg/repo"
	"github.com/prose-im/prose-core-client-go/pkg/transport"
)

type pagedArchive struct {
	sincePage transport.ArchivePage
	afterPages map[string]transport.ArchivePage

	// sinceMillis records the start time the engine asked LoadMessagesSince for.
	sinceMillis int64
}

func (a *pagedArchive) LoadMessagesSince(_ context.Context, _ jidutil.RoomID, since int64, _ int) (transport.ArchivePage, error) {
	a.sinceMillis = since
	return a.sincePage, nil
}
func (a *pagedArchive) LoadMessagesAfter(_ context.Context, _ jidutil.RoomID, cursor string, _ int) (transport.ArchivePage, error) {
	return a.afterPages[cursor], nil
}
func (a *pagedArchive) LoadMessagesBefore(context.Context, jidutil.RoomID, string, int) (transport.ArchivePage, error) {
	return transport.ArchivePage{IsLast: true}, nil
}

func TestRun_ReplaysUntilLastAndAdvancesCatchupTime(t *testing.T) {
	room := jidutil.RoomID("room@conference.example.com")
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	base := now.Add(-4 * 24 * time.Hour)

	archive := &pagedArchive{
		sincePage: transport.ArchivePage{
			IsLast: false,
			Messages: []model.RawStanza{
				{ClientID: "c1", StanzaID: "s1", FromRaw: "bob@example.com", Timestamp: base, Kind: model.RawKindMessage, Body: model.Body{Raw: "hi"}},
			},
		},
		afterPages: map[string]transport.ArchivePage{
			"s1": {
				IsLast: true,
				Messages: []model.RawStanza{
					{ClientID: "c2", StanzaID: "s2", FromRaw: "bob@example.com", Timestamp: base.Add(time.Hour), Kind: model.RawKindMessage, Body: model.Body{Raw: "there"}},
				},
			},
		},
	}

	messages := repo.NewInMemoryMessageRepo()
	settings := repo.NewInMemorySettingsRepo()
	unread := repo.NewInMemoryUnreadRepo()
	p := parser.New(nil, nil, zerolog.Nop())

	engine := New(Deps{
		Account:  "alice@example.com",
		Messages: messages,
		Settings: settings,
		Unread:   unread,
		Archive:  archive,
		Parser:   p,
		Clock:    clock.NewFixed(now),
		Logger:   zerolog.Nop(),
	})

	require.NoError(t, engine.Run(context.Background(), room))

	all, err := messages.All(context.Background(), "alice@example.com", room)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Equal(t, 2, unread.Count("alice@example.com", room))

	local, err := settings.LocalSettings(context.Background(), "alice@example.com", room)
	require.NoError(t, err)
	assert.True(t, local.LastCatchupTime.Equal(now))
}

func TestRun_StartTimeRespectsFloor(t *testing.T) {
	room := jidutil.RoomID("bob@example.com")
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	archive := &pagedArchive{sincePage: transport.ArchivePage{IsLast: true}}
	messages := repo.NewInMemoryMessageRepo()
	settings := repo.NewInMemorySettingsRepo()
	p := parser.New(nil, nil, zerolog.Nop())

	require.NoError(t, settings.PutLocalSettings(context.Background(), "alice@example.com", room, model.LocalRoomSettings{
		LastCatchupTime: now.Add(-10 * 24 * time.Hour),
	}))

	engine := New(Deps{
		Account:  "alice@example.com",
		Messages: messages,
		Settings: settings,
		Archive:  archive,
		Parser:   p,
		Clock:    clock.NewFixed(now),
		Logger:   zerolog.Nop(),
	})

	require.NoError(t, engine.Run(context.Background(), room))

	// Last catch-up was 10 days ago, so the 5-day floor wins.
	assert.Equal(t, now.Add(-Floor).UnixMilli(), archive.sinceMillis)

	local, err := settings.LocalSettings(context.Background(), "alice@example.com", room)
	require.NoError(t, err)
	assert.True(t, local.LastCatchupTime.Equal(now))
}
