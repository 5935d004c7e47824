package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
)

type stubDecryptor struct {
	plaintext string
	err       error
}

func (s stubDecryptor) Decrypt(context.Context, jidutil.Participant, string, model.EncryptedPayload) (string, error) {
	return s.plaintext, s.err
}

type stubCache struct {
	value string
	ok    bool
}

func (s stubCache) CachedPlaintext(jidutil.RoomID, string) (string, bool) { return s.value, s.ok }

func TestParse_PlainMessage(t *testing.T) {
	p := New(stubDecryptor{}, nil, zerolog.Nop())
	raw := model.RawStanza{
		ClientID:  "m1",
		FromRaw:   "alice@prose.org",
		Timestamp: time.Now(),
		Kind:      model.RawKindMessage,
		Body:      model.Body{Raw: "hello"},
	}

	ev, err := p.Parse(context.Background(), "room@muc.prose.org", raw)
	require.NoError(t, err)
	assert.Equal(t, model.MessageLikeID("m1"), ev.ID)
	mp, ok := ev.Payload.(model.MessagePayload)
	require.True(t, ok)
	assert.Equal(t, "hello", mp.Body.Raw)
}

func TestParse_SynthesizesIDWhenMissing(t *testing.T) {
	p := New(stubDecryptor{}, nil, zerolog.Nop())
	raw := model.RawStanza{
		FromRaw:   "alice@prose.org",
		Timestamp: time.Now(),
		Kind:      model.RawKindMessage,
		Body:      model.Body{Raw: "hi"},
	}

	ev, err := p.Parse(context.Background(), "room@muc.prose.org", raw)
	require.NoError(t, err)
	assert.True(t, ev.ID.IsSynthesized())
}

func TestParse_EmptyBodyNoAttachmentsIsNoPayload(t *testing.T) {
	p := New(stubDecryptor{}, nil, zerolog.Nop())
	raw := model.RawStanza{
		FromRaw:   "alice@prose.org",
		Timestamp: time.Now(),
		Kind:      model.RawKindMessage,
	}

	_, err := p.Parse(context.Background(), "room@muc.prose.org", raw)
	assert.ErrorIs(t, err, proseerr.ErrNoPayload)
}

func TestParse_MUCIdentityPrefersRealUserID(t *testing.T) {
	p := New(stubDecryptor{}, nil, zerolog.Nop())
	raw := model.RawStanza{
		ClientID:   "m1",
		FromRaw:    "room@muc.prose.org/nick",
		RealUserID: "alice@prose.org",
		IsMUC:      true,
		Timestamp:  time.Now(),
		Kind:       model.RawKindMessage,
		Body:       model.Body{Raw: "hi"},
	}

	ev, err := p.Parse(context.Background(), "room@muc.prose.org", raw)
	require.NoError(t, err)
	assert.Equal(t, "alice@prose.org", ev.From.String())
}

func TestParse_DecryptFailureFallsBackToCache(t *testing.T) {
	p := New(stubDecryptor{err: errors.New("boom")}, stubCache{value: "cached plaintext", ok: true}, zerolog.Nop())
	raw := model.RawStanza{
		ClientID:  "m1",
		FromRaw:   "alice@prose.org",
		Timestamp: time.Now(),
		Kind:      model.RawKindMessage,
		Encrypted: &model.EncryptedPayload{DeviceID: 7},
	}

	ev, err := p.Parse(context.Background(), "room@muc.prose.org", raw)
	require.NoError(t, err)
	mp := ev.Payload.(model.MessagePayload)
	assert.Equal(t, "cached plaintext", mp.Body.Raw)
}

func TestParse_DecryptFailureWithoutCacheBecomesErrorPayload(t *testing.T) {
	p := New(stubDecryptor{err: errors.New("boom")}, stubCache{}, zerolog.Nop())
	raw := model.RawStanza{
		ClientID:  "m1",
		FromRaw:   "alice@prose.org",
		Timestamp: time.Now(),
		Kind:      model.RawKindMessage,
		Encrypted: &model.EncryptedPayload{DeviceID: 7},
	}

	ev, err := p.Parse(context.Background(), "room@muc.prose.org", raw)
	require.NoError(t, err)
	ep, ok := ev.Payload.(model.ErrorPayload)
	require.True(t, ok, "undecryptable message must surface as an Error payload, not a parse failure")
	assert.Contains(t, ep.Message, "Error: ")
}

func TestParse_ReactionCarriesTarget(t *testing.T) {
	p := New(stubDecryptor{}, nil, zerolog.Nop())
	raw := model.RawStanza{
		ClientID:       "r1",
		FromRaw:        "bob@prose.org",
		Timestamp:      time.Now(),
		Kind:           model.RawKindReaction,
		TargetID:       "m1",
		ReactionEmojis: []string{"👍"},
	}

	ev, err := p.Parse(context.Background(), "room@muc.prose.org", raw)
	require.NoError(t, err)
	require.NotNil(t, ev.Target)
	assert.Equal(t, model.MessageLikeID("m1"), ev.Target.ClientID)
}
