package repo

import (
	"context"
	"sync"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
)

// InMemoryUnreadRepo tracks each room's unread counter. It satisfies the
// historycatchup engine's UnreadCounterRepo interface structurally.
type InMemoryUnreadRepo struct {
	mu     sync.Mutex
	counts map[roomKey]int
}

func NewInMemoryUnreadRepo() *InMemoryUnreadRepo {
	return &InMemoryUnreadRepo{counts: make(map[roomKey]int)}
}

func (r *InMemoryUnreadRepo) IncrementUnread(_ context.Context, account string, room jidutil.RoomID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[roomKey{account, room}] += delta
	return nil
}

func (r *InMemoryUnreadRepo) Count(account string, room jidutil.RoomID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[roomKey{account, room}]
}
