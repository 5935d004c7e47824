// Package reducer implements the MessageReducer: the pure fold from an
// append-only stream of MessageLike events to the current list of logical
// Messages (spec.md §4.1).
package reducer

import (
	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// orderedMessages preserves client-id insertion order while allowing O(1)
// lookup and in-place "retraction" (nil-out) by id, per spec.md §4.1 step 1.
type orderedMessages struct {
	order []model.MessageLikeID
	byID  map[model.MessageLikeID]*model.Message
}

func newOrderedMessages() *orderedMessages {
	return &orderedMessages{byID: make(map[model.MessageLikeID]*model.Message)}
}

func (o *orderedMessages) insert(id model.MessageLikeID, msg *model.Message) {
	if _, exists := o.byID[id]; !exists {
		o.order = append(o.order, id)
	}
	o.byID[id] = msg
}

func (o *orderedMessages) get(id model.MessageLikeID) (*model.Message, bool) {
	m, ok := o.byID[id]
	return m, ok
}

func (o *orderedMessages) retract(id model.MessageLikeID) {
	o.byID[id] = nil
}

func (o *orderedMessages) values() []model.Message {
	out := make([]model.Message, 0, len(o.order))
	for _, id := range o.order {
		if m := o.byID[id]; m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// Reduce folds a chronologically ordered batch of events from one
// conversation into the current list of logical messages, in the input's
// insertion order with retracted entries removed (spec.md §4.1).
//
// logger receives a diagnostic for every orphan modifier or unrecognized
// payload kind; reduction never aborts on either (spec.md §4.1 "Failure
// conditions").
func Reduce(events []model.MessageLike, logger zerolog.Logger) []model.Message {
	messages := newOrderedMessages()
	stanzaToID := make(map[model.StanzaID]model.MessageLikeID)

	var modifiers []model.MessageLike

	// Pass 1: materialize Message/Error events, build the stanza-id index,
	// and buffer everything else as a modifier for pass 2.
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case model.MessagePayload:
			messages.insert(ev.ID, newMessageFromSend(ev, p))
			if ev.HasStanzaID() {
				stanzaToID[ev.StanzaID] = ev.ID
			}
		case model.ErrorPayload:
			messages.insert(ev.ID, newMessageFromError(ev, p))
			if ev.HasStanzaID() {
				stanzaToID[ev.StanzaID] = ev.ID
			}
		case nil:
			logger.Debug().Msg("reducer: event with nil payload skipped")
		default:
			modifiers = append(modifiers, ev)
		}
	}

	// Pass 2: resolve and apply modifiers in input order.
	for _, ev := range modifiers {
		target := ev.Target
		if target == nil {
			logger.Warn().Str("event_id", string(ev.ID)).Msg("reducer: modifier without target skipped")
			continue
		}

		clientID := target.ClientID
		if target.IsServer() {
			resolved, ok := stanzaToID[target.ServerID]
			if !ok {
				logger.Warn().Str("event_id", string(ev.ID)).Str("server_id", string(target.ServerID)).
					Msg("reducer: orphan modifier, unresolved server-id target")
				continue
			}
			clientID = resolved
		}

		msg, ok := messages.get(clientID)
		if !ok {
			logger.Warn().Str("event_id", string(ev.ID)).Str("target", string(clientID)).
				Msg("reducer: orphan modifier, unresolved target")
			continue
		}
		if msg == nil {
			// Target was retracted; the modifier is silently dropped but the
			// stanza_id->client_id mapping above remains intact for others.
			continue
		}

		switch p := ev.Payload.(type) {
		case model.CorrectionPayload:
			applyCorrection(msg, p)
		case model.ReactionPayload:
			applyReaction(msg, ev.From, p)
		case model.RetractionPayload:
			messages.retract(clientID)
		case model.DeliveryReceiptPayload:
			msg.IsDelivered = true
		case model.ReadReceiptPayload:
			msg.IsRead = true
		default:
			logger.Warn().Str("event_id", string(ev.ID)).Msg("reducer: unknown payload kind skipped")
		}
	}

	return messages.values()
}

func newMessageFromSend(ev model.MessageLike, p model.MessagePayload) *model.Message {
	return &model.Message{
		RemoteID:    ev.ID,
		ServerID:    ev.StanzaID,
		From:        ev.From,
		Body:        p.Body,
		Timestamp:   ev.Timestamp,
		IsEncrypted: p.EncryptionInfo != nil,
		IsTransient: p.IsTransient,
		Attachments: p.Attachments,
	}
}

func newMessageFromError(ev model.MessageLike, p model.ErrorPayload) *model.Message {
	return &model.Message{
		RemoteID:  ev.ID,
		ServerID:  ev.StanzaID,
		From:      ev.From,
		Body:      model.Body{Raw: p.Message},
		Timestamp: ev.Timestamp,
	}
}

func applyCorrection(msg *model.Message, p model.CorrectionPayload) {
	msg.Body = p.Body
	msg.Attachments = p.Attachments
	msg.IsEncrypted = p.EncryptionInfo != nil
	msg.IsEdited = true
}
