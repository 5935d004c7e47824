package encryption

import (
	"context"
	"fmt"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// startSessionsIfNeeded ensures an Initialized session exists for every
// active device of user, skipping the local device when user is self
// (spec.md §4.4 "Encrypt one message" step 1).
func (s *Service) startSessionsIfNeeded(ctx context.Context, user jidutil.Participant) error {
	localID, _, _ := s.keys.LocalDevice(ctx) //nolint:errcheck // best-effort; absence just means no self-filter
	devices, err := s.devices.GetAll(ctx, user)
	if err != nil {
		return err
	}

	for _, d := range devices {
		if user == s.self && d.ID == localID {
			continue
		}
		existing, err := s.sessions.GetSession(ctx, user, d.ID)
		if err != nil {
			return err
		}
		if existing != nil && existing.State == model.SessionInitialized {
			continue
		}
		if err := s.startSessionWithDevice(ctx, user, d.ID); err != nil {
			s.logger.Warn().Err(err).Str("device", deviceLogID(d.ID)).Msg("encryption: start session failed")
		}
	}
	return nil
}

// startSessionWithDevice fetches the peer bundle and, on success, derives
// the session wrapping key; on a missing self-bundle it unpublishes the
// stale device id at most once (spec.md §4.4 "Session initiation").
func (s *Service) startSessionWithDevice(ctx context.Context, user jidutil.Participant, device model.DeviceID) error {
	bundle, err := s.wire.LoadDeviceBundle(ctx, user, device)
	if err != nil {
		return err
	}
	if bundle == nil {
		if user == s.self {
			s.maybeUnpublishStaleDevice(ctx, device)
		}
		return nil
	}

	preKey, err := s.pickRandomPreKey(bundle.PreKeys)
	if err != nil {
		return err
	}
	peerBundle := model.PreKeyBundle{
		DeviceID:     bundle.DeviceID,
		IdentityKey:  bundle.IdentityKey,
		SignedPreKey: bundle.SignedPreKey,
		PreKey:       preKey,
	}

	return s.processPreKeyBundle(ctx, user, peerBundle)
}

// processPreKeyBundle is the primitive session-establishment step: derive a
// wrapping key from one ECDH agreement against the peer's identity key
// (symmetric regardless of which side initiates) and persist an Initialized
// session. The signed pre-key and the randomly-chosen one-time pre-key are
// retained on PreKeyBundle for parity with the source's handshake shape but
// play no further role in this stack's fixed, non-ratcheting composition
// (spec.md §1 Non-goals).
func (s *Service) processPreKeyBundle(ctx context.Context, user jidutil.Participant, bundle model.PreKeyBundle) error {
	localPub, localPriv, ok, err := s.keys.LocalIdentityKeyPair(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNoLocalIdentity
	}

	wrappingKey, err := deriveWrappingKey(localPriv, localPub, bundle.IdentityKey)
	if err != nil {
		return err
	}

	trust := model.TrustUndecided
	existing, err := s.sessions.GetSession(ctx, user, bundle.DeviceID)
	if err != nil {
		return err
	}
	// A peer device that reappears under a different identity key is an
	// explicit trust downgrade, not a silent carry-over of prior trust
	// (supplemented from original_source/.../encryption_domain_service.rs;
	// SPEC_FULL.md §4).
	switch {
	case existing != nil && len(existing.Identity) > 0 && string(existing.Identity) != string(bundle.IdentityKey):
		trust = model.TrustUntrusted
	case existing != nil:
		trust = existing.Trust
	}

	session := model.Session{
		DeviceID: bundle.DeviceID,
		Identity: bundle.IdentityKey,
		Trust:    trust,
		State:    model.SessionInitialized,
		IsActive: true,
		// This session was just derived from a pre-key bundle, so the peer
		// has not yet proven it derived the matching wrapping key (spec.md
		// §4.4 step 5).
		PendingPreKeyConfirmation: true,
	}
	session.SetWrappingKey(wrappingKey)

	return s.sessions.PutSession(ctx, user, session)
}

func (s *Service) pickRandomPreKey(preKeys []model.PreKey) (model.PreKey, error) {
	if len(preKeys) == 0 {
		return model.PreKey{}, errNoPreKeysInBundle
	}
	idx, err := s.rng.IntN(len(preKeys))
	if err != nil {
		return model.PreKey{}, err
	}
	return preKeys[idx], nil
}

// maybeUnpublishStaleDevice unpublishes a self device id whose bundle is no
// longer on the server, at most once per device id per process lifetime
// (spec.md §4.4, §5 "Idempotence sets").
func (s *Service) maybeUnpublishStaleDevice(ctx context.Context, device model.DeviceID) {
	s.mu.Lock()
	if s.unpublishAttempted[device] {
		s.mu.Unlock()
		return
	}
	s.unpublishAttempted[device] = true
	s.mu.Unlock()

	devices, err := s.devices.GetAll(ctx, s.self)
	if err != nil {
		s.logger.Warn().Err(err).Msg("encryption: load self devices for unpublish failed")
		return
	}
	remaining := devices[:0]
	for _, d := range devices {
		if d.ID != device {
			remaining = append(remaining, d)
		}
	}
	if err := s.publishDeviceList(ctx, remaining); err != nil {
		s.logger.Warn().Err(err).Msg("encryption: unpublish stale device failed")
		return
	}
	if err := s.devices.SetAll(ctx, s.self, remaining); err != nil {
		s.logger.Warn().Err(err).Msg("encryption: persist device list after unpublish failed")
	}
}

// repairSession re-initiates a session from the sender's bundle, at most
// once per (user, device) (spec.md §4.4 "Decrypt one message" step 2).
func (s *Service) repairSession(ctx context.Context, user jidutil.Participant, device model.DeviceID) error {
	key := repairKey{user: user, device: device}
	s.mu.Lock()
	if s.repairAttempted[key] {
		s.mu.Unlock()
		return errRepairAlreadyAttempted
	}
	s.repairAttempted[key] = true
	s.mu.Unlock()

	if err := s.startSessionWithDevice(ctx, user, device); err != nil {
		return err
	}

	sess, err := s.sessions.GetSession(ctx, user, device)
	if err != nil {
		return err
	}
	if sess == nil || sess.State != model.SessionInitialized {
		markBroken := model.Session{DeviceID: device, State: model.SessionBroken}
		_ = s.sessions.PutSession(ctx, user, markBroken)
		return errSessionStillBroken
	}
	return nil
}

// ReconcileDeviceList applies an authoritative device list update (spec.md
// §4.4 "Device list reconciliation").
func (s *Service) ReconcileDeviceList(ctx context.Context, list model.DeviceList) error {
	if list.User != s.self {
		return s.devices.SetAll(ctx, list.User, list.Devices)
	}

	localID, ok, err := s.keys.LocalDevice(ctx)
	if err != nil {
		return err
	}
	if ok && !containsDevice(list.Devices, localID) {
		updated := append(append([]model.Device{}, list.Devices...), model.Device{ID: localID, Label: s.deviceLabel})
		if err := s.publishDeviceList(ctx, updated); err != nil {
			s.logger.Warn().Err(err).Msg("encryption: republish self device list failed")
		}
		return s.devices.SetAll(ctx, s.self, updated)
	}
	return s.devices.SetAll(ctx, s.self, list.Devices)
}

func deviceLogID(id model.DeviceID) string {
	return fmt.Sprintf("%d", uint32(id))
}
