// Package encryption implements the EncryptionDomainService: per-device
// session lifecycle, key wrapping, and pre-key replenishment (spec.md §4.4).
//
// The composition is fixed — one ECDH agreement expanded through HKDF into
// a per-session wrapping key, AES-128-GCM for both the per-message bulk
// cipher and the wrapped DEK||MAC blobs — per spec.md §1's "primitive
// identities are abstract" framing. This is not a general Signal/OMEMO
// reimplementation.
package encryption

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
)

// Service is the EncryptionDomainService.
type Service struct {
	self        jidutil.Participant
	deviceLabel string // advertised with the local device id; from software_version

	keys     EncryptionKeyRepo
	sessions SessionRepo
	devices  DeviceRepo
	wire     DeviceService
	rng      Rng
	clock    Clock
	logger   zerolog.Logger

	// mu single-flights writes to the idempotence sets, matching the
	// "writes single-flighted per (user, device)" concurrency note
	// (spec.md §5 "Shared resources").
	mu                     sync.Mutex
	unpublishAttempted     map[model.DeviceID]bool
	repairAttempted        map[repairKey]bool
}

type repairKey struct {
	user   jidutil.Participant
	device model.DeviceID
}

func New(self jidutil.Participant, deviceLabel string, keys EncryptionKeyRepo, sessions SessionRepo, devices DeviceRepo, wire DeviceService, rng Rng, clock Clock, logger zerolog.Logger) *Service {
	return &Service{
		self:               self,
		deviceLabel:        deviceLabel,
		keys:               keys,
		sessions:           sessions,
		devices:            devices,
		wire:               wire,
		rng:                rng,
		clock:              clock,
		logger:             logger,
		unpublishAttempted: make(map[model.DeviceID]bool),
		repairAttempted:    make(map[repairKey]bool),
	}
}

// Initialize generates (if absent) the local device bundle, ensures the
// local device id is in the authoritative device list, and publishes the
// bundle if the server has none (spec.md §4.4 "Initialize"). It also clears
// the idempotence sets (spec.md §5 "Idempotence sets").
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	s.unpublishAttempted = make(map[model.DeviceID]bool)
	s.repairAttempted = make(map[repairKey]bool)
	s.mu.Unlock()

	localID, ok, err := s.keys.LocalDevice(ctx)
	if err != nil {
		return fmt.Errorf("load local device: %w", err)
	}
	if !ok {
		localID, err = s.generateLocalBundle(ctx)
		if err != nil {
			return fmt.Errorf("generate local bundle: %w", err)
		}
	}

	selfDevices, err := s.devices.GetAll(ctx, s.self)
	if err != nil {
		return fmt.Errorf("load self device list: %w", err)
	}
	if !containsDevice(selfDevices, localID) {
		selfDevices = append(selfDevices, model.Device{ID: localID, Label: s.deviceLabel})
		if err := s.publishDeviceList(ctx, selfDevices); err != nil {
			s.logger.Warn().Err(err).Msg("encryption: publish device list failed")
		}
		if err := s.devices.SetAll(ctx, s.self, selfDevices); err != nil {
			return fmt.Errorf("persist self device list: %w", err)
		}
	}

	existing, err := s.wire.LoadDeviceBundle(ctx, s.self, localID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("encryption: load own bundle failed, will attempt publish")
	}
	if existing == nil {
		bundle, err := s.buildPublishedBundle(ctx)
		if err != nil {
			return fmt.Errorf("build bundle for publish: %w", err)
		}
		if err := s.wire.PublishDeviceBundle(ctx, *bundle); err != nil {
			s.logger.Warn().Err(err).Msg("encryption: publish bundle failed")
		}
	}

	return nil
}

func (s *Service) generateLocalBundle(ctx context.Context) (model.DeviceID, error) {
	id, err := s.rng.IntN(1 << 30)
	if err != nil {
		return 0, err
	}
	localID := model.DeviceID(id + 1)

	pub, priv, err := generateIdentityKeyPair(newRngReader(s.rng))
	if err != nil {
		return 0, err
	}
	if err := s.keys.SetLocalIdentityKeyPair(ctx, pub, priv); err != nil {
		return 0, err
	}

	spkPub, spkPriv, err := generateIdentityKeyPair(newRngReader(s.rng))
	if err != nil {
		return 0, err
	}
	spk := model.SignedPreKey{ID: 1, PublicKey: spkPub, Signature: signWithIdentity(priv, spkPub)}
	if err := s.keys.SetLocalSignedPreKey(ctx, spk, spkPriv); err != nil {
		return 0, err
	}

	if err := s.keys.SetLocalDevice(ctx, localID); err != nil {
		return 0, err
	}

	if err := s.replenishPreKeys(ctx); err != nil {
		return 0, err
	}
	return localID, nil
}

func (s *Service) buildPublishedBundle(ctx context.Context) (*model.Bundle, error) {
	localID, ok, err := s.keys.LocalDevice(ctx)
	if err != nil || !ok {
		return nil, fmt.Errorf("local device not initialized")
	}
	identityPub, _, ok, err := s.keys.LocalIdentityKeyPair(ctx)
	if err != nil || !ok {
		return nil, fmt.Errorf("local identity key not initialized")
	}
	spk, _, ok, err := s.keys.LocalSignedPreKey(ctx)
	if err != nil || !ok {
		return nil, fmt.Errorf("local signed pre-key not initialized")
	}
	preKeys, err := s.keys.LocalPreKeys(ctx)
	if err != nil {
		return nil, err
	}

	return &model.Bundle{
		DeviceID:     localID,
		IdentityKey:  identityPub,
		SignedPreKey: spk,
		PreKeys:      preKeys,
	}, nil
}

func (s *Service) publishDeviceList(ctx context.Context, devices []model.Device) error {
	return s.wire.PublishDeviceList(ctx, model.DeviceList{User: s.self, Devices: devices})
}

// replenishPreKeys keeps the advertised bundle padded to 100 ids in [1,100]
// (spec.md §4.4 "Pre-key replenishment").
func (s *Service) replenishPreKeys(ctx context.Context) error {
	existing, err := s.keys.LocalPreKeys(ctx)
	if err != nil {
		return err
	}
	have := make(map[uint32]bool, len(existing))
	for _, k := range existing {
		have[k.ID] = true
	}

	var missing []uint32
	for id := uint32(model.PreKeyRangeMin); id <= uint32(model.PreKeyRangeMax); id++ {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	newKeys := make([]model.PreKey, 0, len(missing))
	privates := make(map[uint32][]byte, len(missing))
	for _, id := range missing {
		pub, priv, err := generateIdentityKeyPair(newRngReader(s.rng))
		if err != nil {
			return err
		}
		newKeys = append(newKeys, model.PreKey{ID: id, PublicKey: pub})
		privates[id] = priv
	}

	if err := s.keys.PutLocalPreKeys(ctx, newKeys, privates); err != nil {
		return err
	}

	bundle, err := s.buildPublishedBundle(ctx)
	if err != nil {
		return err
	}
	sort.Slice(bundle.PreKeys, func(i, j int) bool { return bundle.PreKeys[i].ID < bundle.PreKeys[j].ID })
	if err := s.wire.PublishDeviceBundle(ctx, *bundle); err != nil {
		s.logger.Warn().Err(err).Msg("encryption: republish bundle after pre-key replenishment failed")
	}
	return nil
}

func containsDevice(devices []model.Device, id model.DeviceID) bool {
	for _, d := range devices {
		if d.ID == id {
			return true
		}
	}
	return false
}

var (
	errNoDevices              = errors.New("no recipient devices")
	errNoLocalIdentity        = errors.New("local identity key not initialized")
	errNoPreKeysInBundle      = errors.New("peer bundle has no pre-keys")
	errRepairAlreadyAttempted = errors.New("session repair already attempted for this device")
	errSessionStillBroken     = errors.New("session repair did not recover the session")
)

func wrapEncryptionError(kind proseerr.EncryptionErrorKind, err error) error {
	return &proseerr.EncryptionError{Kind: kind, Err: err}
}
