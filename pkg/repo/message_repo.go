// Package repo defines the repository interfaces excluded from THE CORE
// (spec.md §1) plus in-memory reference implementations used by tests and
// the demo CLI (SPEC_FULL.md §5).
package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// roomKey scopes every repository lookup by (account, room_id) as spec.md
// §6 requires ("every method is keyed by (account, room_id)").
type roomKey struct {
	account string
	room    jidutil.RoomID
}

// MessageRepo is the append-only log of message-like events.
type MessageRepo interface {
	Append(ctx context.Context, account string, room jidutil.RoomID, events ...model.MessageLike) error
	// All returns every event for the room ordered by Timestamp; events
	// with equal timestamps keep their append order.
	All(ctx context.Context, account string, room jidutil.RoomID) ([]model.MessageLike, error)
	// After returns every event with Timestamp strictly after t.
	After(ctx context.Context, account string, room jidutil.RoomID, t time.Time) ([]model.MessageLike, error)
	// TargetingAnyOf returns every event whose Target resolves to one of ids
	// (by client or server id) and whose Timestamp is strictly after t.
	TargetingAnyOf(ctx context.Context, account string, room jidutil.RoomID, clientIDs []model.MessageLikeID, serverIDs []model.StanzaID, after time.Time) ([]model.MessageLike, error)
	// CachedPlaintext returns the last successfully decrypted body recorded
	// for (room, message_id), if any (spec.md §4.2 decrypt-fallback cache).
	CachedPlaintext(ctx context.Context, account string, room jidutil.RoomID, messageID string) (string, bool, error)
}

// InMemoryMessageRepo is a process-local MessageRepo, safe for concurrent use.
type InMemoryMessageRepo struct {
	mu     sync.RWMutex
	events map[roomKey][]model.MessageLike
}

func NewInMemoryMessageRepo() *InMemoryMessageRepo {
	return &InMemoryMessageRepo{events: make(map[roomKey][]model.MessageLike)}
}

func (r *InMemoryMessageRepo) Append(_ context.Context, account string, room jidutil.RoomID, events ...model.MessageLike) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := roomKey{account, room}
	r.events[k] = append(r.events[k], events...)
	return nil
}

func (r *InMemoryMessageRepo) All(_ context.Context, account string, room jidutil.RoomID) ([]model.MessageLike, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]model.MessageLike{}, r.events[roomKey{account, room}]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *InMemoryMessageRepo) After(ctx context.Context, account string, room jidutil.RoomID, t time.Time) ([]model.MessageLike, error) {
	all, err := r.All(ctx, account, room)
	if err != nil {
		return nil, err
	}
	var out []model.MessageLike
	for _, ev := range all {
		if ev.Timestamp.After(t) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *InMemoryMessageRepo) TargetingAnyOf(ctx context.Context, account string, room jidutil.RoomID, clientIDs []model.MessageLikeID, serverIDs []model.StanzaID, after time.Time) ([]model.MessageLike, error) {
	all, err := r.All(ctx, account, room)
	if err != nil {
		return nil, err
	}
	clientSet := make(map[model.MessageLikeID]bool, len(clientIDs))
	for _, id := range clientIDs {
		clientSet[id] = true
	}
	serverSet := make(map[model.StanzaID]bool, len(serverIDs))
	for _, id := range serverIDs {
		serverSet[id] = true
	}

	var out []model.MessageLike
	for _, ev := range all {
		if ev.Target == nil || !ev.Timestamp.After(after) {
			continue
		}
		if clientSet[ev.Target.ClientID] || serverSet[ev.Target.ServerID] {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *InMemoryMessageRepo) CachedPlaintext(_ context.Context, account string, room jidutil.RoomID, messageID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ev := range r.events[roomKey{account, room}] {
		if string(ev.ID) != messageID {
			continue
		}
		if mp, ok := ev.Payload.(model.MessagePayload); ok {
			return mp.Body.Raw, true, nil
		}
		if cp, ok := ev.Payload.(model.CorrectionPayload); ok {
			return cp.Body.Raw, true, nil
		}
	}
	return "", false, nil
}
