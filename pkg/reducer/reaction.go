package reducer

import (
	"go.mau.fi/util/variationselector"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
	"github.com/prose-im/prose-core-client-go/pkg/model"
)

// applyReaction replaces from's prior reactions on msg with the snapshot in
// p.Emojis: a declarative full-state payload, not a delta, so the result is
// idempotent under replay (spec.md §4.1 "Reaction folding", §8 "Reaction-set
// invariant"). Emoji keys are normalized by stripping the variation selector
// so the same reaction sent by clients that do/don't append VS-16 still
// folds into one entry.
func applyReaction(msg *model.Message, from jidutil.Participant, p model.ReactionPayload) {
	order := make([]string, 0, len(p.Emojis))
	wanted := make(map[string]bool, len(p.Emojis))
	for _, e := range p.Emojis {
		emoji := variationselector.Remove(e)
		if !wanted[emoji] {
			order = append(order, emoji)
		}
		wanted[emoji] = true
	}

	next := msg.Reactions[:0]
	for _, r := range msg.Reactions {
		r.From = removeParticipant(r.From, from)
		if wanted[r.Emoji] {
			delete(wanted, r.Emoji)
			r.From = appendParticipantOnce(r.From, from)
		}
		if len(r.From) > 0 {
			next = append(next, r)
		}
	}
	msg.Reactions = next

	for _, emoji := range order {
		if !wanted[emoji] {
			continue
		}
		msg.Reactions = append(msg.Reactions, model.Reaction{
			Emoji: emoji,
			From:  []jidutil.Participant{from},
		})
	}
}

func removeParticipant(from []jidutil.Participant, p jidutil.Participant) []jidutil.Participant {
	out := from[:0]
	for _, f := range from {
		if f != p {
			out = append(out, f)
		}
	}
	return out
}

func appendParticipantOnce(from []jidutil.Participant, p jidutil.Participant) []jidutil.Participant {
	for _, f := range from {
		if f == p {
			return from
		}
	}
	return append(from, p)
}
