// Package parser implements the MessageParser: decoding one inbound stanza
// or archived envelope into exactly one MessageLike (spec.md §4.2).
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
	"github.com/prose-im/prose-core-client-go/pkg/proseerr"
)

// Decryptor is the subset of the encryption domain service the parser needs.
// Defined here (consumer side) to keep pkg/parser free of an import on
// pkg/encryption.
type Decryptor interface {
	Decrypt(ctx context.Context, sender jidutil.Participant, messageID string, payload model.EncryptedPayload) (string, error)
}

// DecryptCache is the decrypt-fallback lookup the parser consults when a
// re-decrypt of a previously-seen ciphertext fails (spec.md §4.2
// "Decryption" paragraph, keyed by (room, message_id)).
type DecryptCache interface {
	CachedPlaintext(room jidutil.RoomID, messageID string) (string, bool)
}

const synthesizedIDPrefix = "!!"

// Parser decodes RawStanza values into MessageLike events.
type Parser struct {
	decryptor Decryptor
	cache     DecryptCache
	logger    zerolog.Logger
}

func New(decryptor Decryptor, cache DecryptCache, logger zerolog.Logger) *Parser {
	return &Parser{decryptor: decryptor, cache: cache, logger: logger}
}

// Parse converts one raw stanza/envelope, scoped to room, into a MessageLike.
// A NoPayload error (proseerr.ErrNoPayload) is the expected "modifier
// without body we don't recognize" case and callers should skip it silently
// (spec.md §7).
func (p *Parser) Parse(ctx context.Context, room jidutil.RoomID, raw model.RawStanza) (model.MessageLike, error) {
	id := model.MessageLikeID(raw.ClientID)
	if id == "" {
		id = model.NewSynthesizedMessageLikeID(uuid.NewString())
	}

	from, err := p.resolveIdentity(raw)
	if err != nil {
		return model.MessageLike{}, fmt.Errorf("%w: %s", proseerr.ErrNotFound, err)
	}

	ev := model.MessageLike{
		ID:        id,
		StanzaID:  model.StanzaID(raw.StanzaID),
		From:      from,
		Timestamp: raw.Timestamp,
	}

	payload, target, err := p.resolvePayload(ctx, room, string(id), raw, from)
	if err != nil {
		return model.MessageLike{}, err
	}
	ev.Payload = payload
	ev.Target = target

	return ev, nil
}

// resolvePayload applies payload precedence (spec.md §4.2 "Payload
// precedence"): the first matching wire element wins.
func (p *Parser) resolvePayload(ctx context.Context, room jidutil.RoomID, messageID string, raw model.RawStanza, from jidutil.Participant) (model.Payload, *model.TargetRef, error) {
	switch raw.Kind {
	case model.RawKindError:
		return model.ErrorPayload{Message: "Error: " + raw.ErrorText}, nil, nil

	case model.RawKindReaction:
		return model.ReactionPayload{Emojis: raw.ReactionEmojis}, targetFor(raw), nil

	case model.RawKindRetraction:
		return model.RetractionPayload{}, targetFor(raw), nil

	case model.RawKindCorrection:
		body, encInfo, err := p.resolveBody(ctx, room, messageID, raw, from)
		if err != nil {
			if errors.Is(err, proseerr.ErrNoPayload) {
				return nil, nil, err
			}
			return p.decryptFailurePayload(messageID, err), nil, nil
		}
		return model.CorrectionPayload{Body: body, Attachments: raw.Attachments, EncryptionInfo: encInfo}, targetFor(raw), nil

	case model.RawKindDelivery:
		return model.DeliveryReceiptPayload{}, targetFor(raw), nil

	case model.RawKindRead:
		return model.ReadReceiptPayload{}, targetFor(raw), nil

	case model.RawKindMessage:
		body, encInfo, err := p.resolveBody(ctx, room, messageID, raw, from)
		if err != nil {
			if errors.Is(err, proseerr.ErrNoPayload) {
				return nil, nil, err
			}
			return p.decryptFailurePayload(messageID, err), nil, nil
		}
		return model.MessagePayload{Body: body, Attachments: raw.Attachments, EncryptionInfo: encInfo}, nil, nil

	default:
		return nil, nil, proseerr.ErrNoPayload
	}
}

// resolveBody returns the plaintext body, decrypting first if the stanza
// carries an encrypted payload, with a cache fallback on decrypt failure
// (spec.md §4.2 "Decryption").
func (p *Parser) resolveBody(ctx context.Context, room jidutil.RoomID, messageID string, raw model.RawStanza, from jidutil.Participant) (model.Body, *model.EncryptionInfo, error) {
	if raw.Encrypted == nil {
		if raw.Body.Raw == "" && len(raw.Attachments) == 0 {
			return model.Body{}, nil, proseerr.ErrNoPayload
		}
		return raw.Body, nil, nil
	}

	var plaintext string
	var err error
	if p.decryptor == nil {
		err = errors.New("encrypted payload received with no decryptor configured")
	} else {
		plaintext, err = p.decryptor.Decrypt(ctx, from, messageID, *raw.Encrypted)
	}
	if err != nil {
		if p.cache != nil {
			if cached, ok := p.cache.CachedPlaintext(room, messageID); ok {
				p.logger.Warn().Err(err).Str("message_id", messageID).Msg("parser: decrypt failed, using cached plaintext")
				return model.Body{Raw: cached}, &model.EncryptionInfo{TargetDeviceID: uint32(raw.Encrypted.DeviceID)}, nil
			}
		}
		return model.Body{}, nil, err
	}

	return model.Body{Raw: plaintext}, &model.EncryptionInfo{TargetDeviceID: uint32(raw.Encrypted.DeviceID)}, nil
}

// decryptFailurePayload records an undecryptable body as an Error payload
// instead of dropping the event, so the failure stays visible in the room's
// history (spec.md §4.2 "Decryption", §7 propagation policy).
func (p *Parser) decryptFailurePayload(messageID string, err error) model.Payload {
	p.logger.Warn().Err(err).Str("message_id", messageID).Msg("parser: decrypt failed, recording error payload")
	return model.ErrorPayload{Message: "Error: " + err.Error()}
}

func targetFor(raw model.RawStanza) *model.TargetRef {
	if raw.TargetIsServer {
		return &model.TargetRef{ServerID: model.StanzaID(raw.TargetID)}
	}
	return &model.TargetRef{ClientID: model.MessageLikeID(raw.TargetID)}
}

// resolveIdentity applies spec.md §4.2's "Identity resolution": for MUC
// messages, prefer the embedded real user id, else the full occupant id;
// for non-MUC, the bare sender id.
func (p *Parser) resolveIdentity(raw model.RawStanza) (jidutil.Participant, error) {
	return ResolveIdentity(raw)
}

// ResolveIdentity applies spec.md §4.2's "Identity resolution" rule to a raw
// stanza. Exported so other live-traffic consumers (e.g. the inbound
// key-transport path, which never reaches Parse) can resolve a sender
// without duplicating the rule.
func ResolveIdentity(raw model.RawStanza) (jidutil.Participant, error) {
	if raw.IsMUC {
		if raw.RealUserID != "" {
			return jidutil.ParseParticipant(raw.RealUserID)
		}
		return jidutil.ParseOccupant(raw.FromRaw)
	}
	return jidutil.ParseParticipant(raw.FromRaw)
}

// IsSynthesizedID reports whether id was minted by this parser rather than
// carried on the wire.
func IsSynthesizedID(id string) bool {
	return strings.HasPrefix(id, synthesizedIDPrefix)
}
