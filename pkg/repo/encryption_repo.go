package repo

import (
	"context"
	"sync"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// InMemoryEncryptionKeyRepo implements encryption.EncryptionKeyRepo.
type InMemoryEncryptionKeyRepo struct {
	mu          sync.Mutex
	localDevice *model.DeviceID
	idPub       []byte
	idPriv      []byte
	spk         *model.SignedPreKey
	spkPriv     []byte
	preKeys     map[uint32]model.PreKey
	prePrivs    map[uint32][]byte
}

func NewInMemoryEncryptionKeyRepo() *InMemoryEncryptionKeyRepo {
	return &InMemoryEncryptionKeyRepo{preKeys: map[uint32]model.PreKey{}, prePrivs: map[uint32][]byte{}}
}

func (r *InMemoryEncryptionKeyRepo) LocalDevice(context.Context) (model.DeviceID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.localDevice == nil {
		return 0, false, nil
	}
	return *r.localDevice, true, nil
}

func (r *InMemoryEncryptionKeyRepo) SetLocalDevice(_ context.Context, id model.DeviceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localDevice = &id
	return nil
}

func (r *InMemoryEncryptionKeyRepo) LocalIdentityKeyPair(context.Context) ([]byte, []byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idPub == nil {
		return nil, nil, false, nil
	}
	return r.idPub, r.idPriv, true, nil
}

func (r *InMemoryEncryptionKeyRepo) SetLocalIdentityKeyPair(_ context.Context, pub, priv []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idPub, r.idPriv = pub, priv
	return nil
}

func (r *InMemoryEncryptionKeyRepo) LocalSignedPreKey(context.Context) (model.SignedPreKey, []byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spk == nil {
		return model.SignedPreKey{}, nil, false, nil
	}
	return *r.spk, r.spkPriv, true, nil
}

func (r *InMemoryEncryptionKeyRepo) SetLocalSignedPreKey(_ context.Context, spk model.SignedPreKey, priv []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spk, r.spkPriv = &spk, priv
	return nil
}

func (r *InMemoryEncryptionKeyRepo) LocalPreKeys(context.Context) ([]model.PreKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PreKey, 0, len(r.preKeys))
	for _, k := range r.preKeys {
		out = append(out, k)
	}
	return out, nil
}

func (r *InMemoryEncryptionKeyRepo) LocalPreKeyPrivate(_ context.Context, id uint32) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	priv, ok := r.prePrivs[id]
	return priv, ok, nil
}

func (r *InMemoryEncryptionKeyRepo) PutLocalPreKeys(_ context.Context, keys []model.PreKey, privates map[uint32][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.preKeys[k.ID] = k
	}
	for id, priv := range privates {
		r.prePrivs[id] = priv
	}
	return nil
}

func (r *InMemoryEncryptionKeyRepo) DeleteLocalPreKeys(_ context.Context, ids []uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.preKeys, id)
		delete(r.prePrivs, id)
	}
	return nil
}

func (r *InMemoryEncryptionKeyRepo) PublishedBundle(context.Context) (*model.Bundle, error) {
	return nil, nil
}

// InMemorySessionRepo implements encryption.SessionRepo.
type InMemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[jidutil.Participant]map[model.DeviceID]model.Session
}

func NewInMemorySessionRepo() *InMemorySessionRepo {
	return &InMemorySessionRepo{sessions: map[jidutil.Participant]map[model.DeviceID]model.Session{}}
}

func (r *InMemorySessionRepo) GetAllSessions(_ context.Context, user jidutil.Participant) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Session
	for _, s := range r.sessions[user] {
		out = append(out, s)
	}
	return out, nil
}

func (r *InMemorySessionRepo) GetSession(_ context.Context, user jidutil.Participant, device model.DeviceID) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byDevice, ok := r.sessions[user]
	if !ok {
		return nil, nil
	}
	s, ok := byDevice[device]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *InMemorySessionRepo) PutSession(_ context.Context, user jidutil.Participant, session model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[user] == nil {
		r.sessions[user] = map[model.DeviceID]model.Session{}
	}
	r.sessions[user][session.DeviceID] = session
	return nil
}

func (r *InMemorySessionRepo) PutActiveDevices(context.Context, jidutil.Participant, []model.DeviceID) error {
	return nil
}

func (r *InMemorySessionRepo) DeleteSession(_ context.Context, user jidutil.Participant, device model.DeviceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions[user], device)
	return nil
}

// InMemoryDeviceRepo implements encryption.DeviceRepo.
type InMemoryDeviceRepo struct {
	mu      sync.Mutex
	devices map[jidutil.Participant][]model.Device
}

func NewInMemoryDeviceRepo() *InMemoryDeviceRepo {
	return &InMemoryDeviceRepo{devices: map[jidutil.Participant][]model.Device{}}
}

func (r *InMemoryDeviceRepo) GetAll(_ context.Context, user jidutil.Participant) ([]model.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Device{}, r.devices[user]...), nil
}

func (r *InMemoryDeviceRepo) SetAll(_ context.Context, user jidutil.Participant, devices []model.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[user] = devices
	return nil
}

func (r *InMemoryDeviceRepo) ClearCache(_ context.Context, user jidutil.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, user)
	return nil
}
