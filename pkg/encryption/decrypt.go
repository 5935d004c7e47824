package encryption

import (
	"context"
	"errors"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
)

// Decrypt resolves the key addressed to the local device, attempts session
// repair once on failure, and returns the UTF-8 plaintext (spec.md §4.4
// "Decrypt one message").
func (s *Service) Decrypt(ctx context.Context, sender jidutil.Participant, messageID string, payload model.EncryptedPayload) (string, error) {
	localID, ok, err := s.keys.LocalDevice(ctx)
	if err != nil {
		return "", wrapDecryptionError(proseerr.DecryptionCryptoFailed, err)
	}
	if !ok {
		return "", wrapDecryptionError(proseerr.DecryptionNotForThisDevice, errNoLocalIdentity)
	}

	var (
		myKey    *model.EncryptionKey
		isPreKey bool
	)
	for i := range payload.Keys {
		if payload.Keys[i].RecipientDeviceID == localID {
			myKey = &payload.Keys[i]
			isPreKey = payload.Keys[i].IsPreKey
			break
		}
	}
	if myKey == nil {
		return "", wrapDecryptionError(proseerr.DecryptionNotForThisDevice, nil)
	}

	session, err := s.sessions.GetSession(ctx, sender, payload.DeviceID)
	if err != nil {
		return "", wrapDecryptionError(proseerr.DecryptionCryptoFailed, err)
	}

	dekAndMAC, err := s.tryUnwrap(session, myKey.Data)
	if err != nil {
		if repairErr := s.repairSession(ctx, sender, payload.DeviceID); repairErr != nil {
			return "", wrapDecryptionError(proseerr.DecryptionCryptoFailed, err)
		}
		session, err = s.sessions.GetSession(ctx, sender, payload.DeviceID)
		if err != nil {
			return "", wrapDecryptionError(proseerr.DecryptionCryptoFailed, err)
		}
		dekAndMAC, err = s.tryUnwrap(session, myKey.Data)
		if err != nil {
			return "", wrapDecryptionError(proseerr.DecryptionCryptoFailed, err)
		}
	}

	if len(dekAndMAC) != model.KeySize+model.MACSize {
		return "", wrapDecryptionError(proseerr.DecryptionSizeMismatch, nil)
	}
	dek, mac := dekAndMAC[:model.KeySize], dekAndMAC[model.KeySize:]

	plaintext, err := openBody(dek, payload.IV, payload.Payload, mac)
	if err != nil {
		return "", wrapDecryptionError(proseerr.DecryptionCryptoFailed, err)
	}

	// A successful unwrap proves the sender derived the same wrapping key,
	// confirming any pre-key handshake this session was waiting on (spec.md
	// §4.4 step 5).
	if session != nil && session.PendingPreKeyConfirmation {
		confirmed := *session
		confirmed.PendingPreKeyConfirmation = false
		if err := s.sessions.PutSession(ctx, sender, confirmed); err != nil {
			s.logger.Warn().Err(err).Msg("encryption: clearing pre-key confirmation failed")
		}
	}

	if isPreKey {
		if err := s.replenishPreKeys(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("encryption: pre-key replenishment after consumption failed")
		}
		if err := s.sendKeyTransport(ctx, sender); err != nil {
			s.logger.Warn().Err(err).Msg("encryption: key transport after pre-key consumption failed")
		}
	}

	return string(plaintext), nil
}

func (s *Service) tryUnwrap(session *model.Session, wrapped []byte) ([]byte, error) {
	if session == nil || session.State != model.SessionInitialized {
		return nil, errSessionNotInitialized
	}
	return unwrapDEKAndMAC(session.WrappingKey(), wrapped)
}

// sendKeyTransport completes the pre-key handshake by sending a payload-free
// EncryptedPayload back to the sender (spec.md §4.4 step 5).
func (s *Service) sendKeyTransport(ctx context.Context, sender jidutil.Participant) error {
	payload, err := s.Encrypt(ctx, sender, "")
	if err != nil {
		return err
	}
	return s.wire.SendKeyTransportMessage(ctx, sender, *payload)
}

// ProcessKeyTransportMessage validates a handshake-only payload identically
// to Decrypt, minus the UTF-8 step (spec.md §4.4 "Key transport messages").
func (s *Service) ProcessKeyTransportMessage(ctx context.Context, sender jidutil.Participant, payload model.EncryptedPayload) error {
	_, err := s.Decrypt(ctx, sender, "", payload)
	return err
}

func wrapDecryptionError(kind proseerr.DecryptionErrorKind, err error) error {
	return &proseerr.DecryptionError{Kind: kind, Err: err}
}

var errSessionNotInitialized = errors.New("session not initialized for sender device")
