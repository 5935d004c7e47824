package encryption

import (
	"context"
	"time"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// EncryptionKeyRepo exclusively owns the local device bundle and pre-keys
// (spec.md §9 "Ownership of device sessions").
type EncryptionKeyRepo interface {
	LocalDevice(ctx context.Context) (model.DeviceID, bool, error)
	SetLocalDevice(ctx context.Context, id model.DeviceID) error

	LocalIdentityKeyPair(ctx context.Context) (public, private []byte, ok bool, err error)
	SetLocalIdentityKeyPair(ctx context.Context, public, private []byte) error

	LocalSignedPreKey(ctx context.Context) (model.SignedPreKey, []byte, bool, error)
	SetLocalSignedPreKey(ctx context.Context, spk model.SignedPreKey, private []byte) error

	LocalPreKeys(ctx context.Context) ([]model.PreKey, error)
	LocalPreKeyPrivate(ctx context.Context, id uint32) ([]byte, bool, error)
	PutLocalPreKeys(ctx context.Context, keys []model.PreKey, privates map[uint32][]byte) error
	DeleteLocalPreKeys(ctx context.Context, ids []uint32) error

	PublishedBundle(ctx context.Context) (*model.Bundle, error)
}

// SessionRepo owns per-peer-device session state (spec.md §6).
type SessionRepo interface {
	GetAllSessions(ctx context.Context, user jidutil.Participant) ([]model.Session, error)
	GetSession(ctx context.Context, user jidutil.Participant, device model.DeviceID) (*model.Session, error)
	PutSession(ctx context.Context, user jidutil.Participant, session model.Session) error
	PutActiveDevices(ctx context.Context, user jidutil.Participant, devices []model.DeviceID) error
	DeleteSession(ctx context.Context, user jidutil.Participant, device model.DeviceID) error
}

// DeviceRepo owns per-user device lists (spec.md §6).
type DeviceRepo interface {
	GetAll(ctx context.Context, user jidutil.Participant) ([]model.Device, error)
	SetAll(ctx context.Context, user jidutil.Participant, devices []model.Device) error
	ClearCache(ctx context.Context, user jidutil.Participant) error
}

// DeviceService is the transport-facing surface for publishing and fetching
// device bundles and lists (spec.md §6 "Device service").
type DeviceService interface {
	PublishDeviceList(ctx context.Context, list model.DeviceList) error
	DeleteDeviceList(ctx context.Context) error
	PublishDeviceBundle(ctx context.Context, bundle model.Bundle) error
	LoadDeviceBundle(ctx context.Context, user jidutil.Participant, device model.DeviceID) (*model.Bundle, error)
	DeleteDeviceBundle(ctx context.Context, device model.DeviceID) error
	SendKeyTransportMessage(ctx context.Context, user jidutil.Participant, payload model.EncryptedPayload) error
}

// Rng is the randomness source (DEK/nonce generation, pre-key selection).
type Rng interface {
	Bytes(n int) ([]byte, error)
	IntN(n int) (int, error)
}

// Clock supplies "now" for maintenance bookkeeping.
type Clock interface {
	Now() time.Time
}
