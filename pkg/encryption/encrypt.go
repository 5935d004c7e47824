package encryption

import (
	"context"
	"fmt"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
)

// Encrypt addresses every active-and-trusted-or-undecided device of both
// self and recipient exactly once (spec.md §4.4 "Encrypt one message").
func (s *Service) Encrypt(ctx context.Context, recipient jidutil.Participant, plaintext string) (*model.EncryptedPayload, error) {
	if err := s.startSessionsIfNeeded(ctx, s.self); err != nil {
		s.logger.Warn().Err(err).Msg("encryption: start self sessions failed")
	}
	if err := s.startSessionsIfNeeded(ctx, recipient); err != nil {
		s.logger.Warn().Err(err).Msg("encryption: start recipient sessions failed")
	}

	localID, _, err := s.keys.LocalDevice(ctx)
	if err != nil {
		return nil, wrapEncryptionError(proseerr.EncryptionCryptoFailed, err)
	}

	targets, err := s.addressableSessions(ctx, s.self, localID)
	if err != nil {
		return nil, wrapEncryptionError(proseerr.EncryptionCryptoFailed, err)
	}
	recipientTargets, err := s.addressableSessions(ctx, recipient, 0)
	if err != nil {
		return nil, wrapEncryptionError(proseerr.EncryptionCryptoFailed, err)
	}
	if len(recipientTargets) == 0 {
		return nil, wrapEncryptionError(proseerr.EncryptionNoDevices, errNoDevices)
	}
	targets = append(targets, recipientTargets...)

	dek, err := s.rng.Bytes(model.KeySize)
	if err != nil {
		return nil, wrapEncryptionError(proseerr.EncryptionCryptoFailed, err)
	}
	nonce, err := s.rng.Bytes(model.NonceSize)
	if err != nil {
		return nil, wrapEncryptionError(proseerr.EncryptionCryptoFailed, err)
	}
	ciphertext, mac, err := sealBody(dek, nonce, []byte(plaintext))
	if err != nil {
		return nil, wrapEncryptionError(proseerr.EncryptionCryptoFailed, err)
	}

	dekAndMAC := append(append([]byte{}, dek...), mac...)

	keys := make([]model.EncryptionKey, 0, len(targets))
	for _, t := range targets {
		wrapped, err := wrapDEKAndMAC(s.rng, t.session.WrappingKey(), dekAndMAC)
		if err != nil {
			s.logger.Warn().Err(err).Str("device", deviceLogID(t.session.DeviceID)).Msg("encryption: wrap key for device failed")
			continue
		}
		keys = append(keys, model.EncryptionKey{
			RecipientDeviceID: t.session.DeviceID,
			Data:              wrapped,
			IsPreKey:          t.session.PendingPreKeyConfirmation,
		})
	}
	if len(keys) == 0 {
		return nil, wrapEncryptionError(proseerr.EncryptionCryptoFailed, fmt.Errorf("no device accepted wrapping"))
	}

	return &model.EncryptedPayload{
		DeviceID: localID,
		IV:       nonce,
		Keys:     keys,
		Payload:  ciphertext,
	}, nil
}

type addressableTarget struct {
	session model.Session
}

// addressableSessions returns the active, trusted-or-undecided sessions for
// user, excluding excludeDevice (used to drop the local device when
// addressing self's other devices).
func (s *Service) addressableSessions(ctx context.Context, user jidutil.Participant, excludeDevice model.DeviceID) ([]addressableTarget, error) {
	sessions, err := s.sessions.GetAllSessions(ctx, user)
	if err != nil {
		return nil, err
	}
	var out []addressableTarget
	for _, sess := range sessions {
		if sess.DeviceID == excludeDevice {
			continue
		}
		if !sess.IsActive || sess.State != model.SessionInitialized {
			continue
		}
		if sess.Trust == model.TrustUntrusted {
			continue
		}
		out = append(out, addressableTarget{session: sess})
	}
	return out, nil
}
