// Package negotiation implements turn-based price negotiation on a room.
//
// A negotiation allows at most one round: the proposer names a price, the
// counterparty may accept, reject or counter once, and after a counter only
// the proposer may move. The proposer can withdraw at any point before a
// terminal status. Accepting fixes the final price for good.
package negotiation

import (
	"time"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Action is a move in a negotiation.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionCounter  Action = "counter"
	ActionWithdraw Action = "withdraw"
)

// Validate checks if the Action is a valid enum value.
func (a Action) Validate() error {
	switch a {
	case ActionAccept, ActionReject, ActionCounter, ActionWithdraw:
		return nil
	default:
		return market.Validationf("unknown action %q", a)
	}
}

// Move is one party's action.
type Move struct {
	Action       Action
	ActorRef     string
	CounterPrice int64 // counter only
	Message      string
}

// Transition applies mv to n and returns the next state. It performs no I/O
// and never mutates n.
func Transition(n market.Negotiation, mv Move, now time.Time) (market.Negotiation, error) {
	if err := mv.Action.Validate(); err != nil {
		return n, err
	}

	var role market.Turn
	switch mv.ActorRef {
	case n.ProposerRef:
		role = market.TurnProposer
	case n.CounterpartyRef:
		role = market.TurnCounterparty
	default:
		return n, market.Authorizationf("%s is not a party to negotiation %s", mv.ActorRef, n.ID)
	}

	if n.Status.IsTerminal() {
		return n, market.InvalidStatef("negotiation %s is already %s", n.ID, n.Status)
	}

	next := n
	next.UpdatedAtMs = now.UnixMilli()

	if mv.Action == ActionWithdraw {
		if role != market.TurnProposer {
			return n, market.Authorizationf("only the proposer can withdraw negotiation %s", n.ID)
		}
		next.Status = market.NegotiationWithdrawn
		next.Turn = market.TurnNone
		return next, nil
	}

	if n.Turn != role {
		return n, market.Authorizationf("it is not %s's turn in negotiation %s", mv.ActorRef, n.ID)
	}

	switch mv.Action {
	case ActionCounter:
		if role != market.TurnCounterparty || n.Status != market.NegotiationPending {
			return n, market.InvalidStatef("negotiation %s allows a single counter-offer by the counterparty", n.ID)
		}
		if mv.CounterPrice <= n.ProposedPrice || mv.CounterPrice > n.OriginalPrice {
			return n, market.Validationf("counter price must be above %d and at most %d, got %d",
				n.ProposedPrice, n.OriginalPrice, mv.CounterPrice)
		}
		price := mv.CounterPrice
		next.CounterOffer = &price
		next.Status = market.NegotiationCountered
		next.Turn = market.TurnProposer
		next.ResponseMessage = mv.Message

	case ActionAccept:
		price := n.ProposedPrice
		if n.Status == market.NegotiationCountered && n.CounterOffer != nil {
			price = *n.CounterOffer
		}
		next.FinalPrice = &price
		next.Status = market.NegotiationAccepted
		next.Turn = market.TurnNone
		if mv.Message != "" {
			next.ResponseMessage = mv.Message
		}

	case ActionReject:
		next.Status = market.NegotiationRejected
		next.Turn = market.TurnNone
		if mv.Message != "" {
			next.ResponseMessage = mv.Message
		}
	}

	return next, nil
}
