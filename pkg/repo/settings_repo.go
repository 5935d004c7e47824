package repo

import (
	"context"
	"sync"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// SettingsRepo owns per-room local and synced settings (spec.md §2).
type SettingsRepo interface {
	SyncedSettings(ctx context.Context, account string, room jidutil.RoomID) (model.RoomSettings, error)
	// CompareAndSwapSynced implements the clone-mutate-compare-replace
	// discipline (spec.md §5 "Shared resources"): mutate is invoked with the
	// current value; the result is stored only if it differs.
	CompareAndSwapSynced(ctx context.Context, account string, room jidutil.RoomID, mutate func(model.RoomSettings) model.RoomSettings) (changed bool, next model.RoomSettings, err error)

	LocalSettings(ctx context.Context, account string, room jidutil.RoomID) (model.LocalRoomSettings, error)
	PutLocalSettings(ctx context.Context, account string, room jidutil.RoomID, settings model.LocalRoomSettings) error
}

// DraftRepo persists per-room unsent draft text locally.
type DraftRepo interface {
	Load(ctx context.Context, account string, room jidutil.RoomID) (string, bool, error)
	Save(ctx context.Context, account string, room jidutil.RoomID, text string) error
}

type InMemorySettingsRepo struct {
	mu     sync.Mutex
	synced map[roomKey]model.RoomSettings
	local  map[roomKey]model.LocalRoomSettings
}

func NewInMemorySettingsRepo() *InMemorySettingsRepo {
	return &InMemorySettingsRepo{
		synced: make(map[roomKey]model.RoomSettings),
		local:  make(map[roomKey]model.LocalRoomSettings),
	}
}

func (r *InMemorySettingsRepo) SyncedSettings(_ context.Context, account string, room jidutil.RoomID) (model.RoomSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.synced[roomKey{account, room}], nil
}

func (r *InMemorySettingsRepo) CompareAndSwapSynced(_ context.Context, account string, room jidutil.RoomID, mutate func(model.RoomSettings) model.RoomSettings) (bool, model.RoomSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := roomKey{account, room}
	current := r.synced[k]
	next := mutate(current)
	if settingsEqual(current, next) {
		return false, current, nil
	}
	r.synced[k] = next
	return true, next, nil
}

func settingsEqual(a, b model.RoomSettings) bool {
	if a.EncryptionEnabled != b.EncryptionEnabled {
		return false
	}
	return a.LastReadMessage.Equal(b.LastReadMessage)
}

func (r *InMemorySettingsRepo) LocalSettings(_ context.Context, account string, room jidutil.RoomID) (model.LocalRoomSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local[roomKey{account, room}], nil
}

func (r *InMemorySettingsRepo) PutLocalSettings(_ context.Context, account string, room jidutil.RoomID, settings model.LocalRoomSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[roomKey{account, room}] = settings
	return nil
}

type InMemoryDraftRepo struct {
	mu     sync.Mutex
	drafts map[roomKey]string
}

func NewInMemoryDraftRepo() *InMemoryDraftRepo {
	return &InMemoryDraftRepo{drafts: make(map[roomKey]string)}
}

func (r *InMemoryDraftRepo) Load(_ context.Context, account string, room jidutil.RoomID) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text, ok := r.drafts[roomKey{account, room}]
	return text, ok, nil
}

func (r *InMemoryDraftRepo) Save(_ context.Context, account string, room jidutil.RoomID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := roomKey{account, room}
	if text == "" {
		delete(r.drafts, k)
		return nil
	}
	r.drafts[k] = text
	return nil
}
