// Package visit schedules property viewings between a requester and the
// property's owner. The owner answers a request by confirming it, rejecting
// it or proposing another slot once; a proposed slot goes back to the
// requester, who accepts or declines it.
package visit

import (
	"time"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Action is a recipient's answer to a visit request.
type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionReject     Action = "reject"
	ActionReschedule Action = "reschedule"
	ActionComplete   Action = "complete"
)

// Validate checks if the action is one of the recipient actions.
func (a Action) Validate() error {
	switch a {
	case ActionConfirm, ActionReject, ActionReschedule, ActionComplete:
		return nil
	default:
		return market.Validationf("unknown visit action %q", a)
	}
}

// Move is a recipient's answer with its optional slot and notes.
type Move struct {
	Action   Action
	ActorRef string
	Slot     market.Slot
	Notes    string
}

// Transition applies a recipient move to v and returns the next state.
// Slots are resolved in loc. It performs no I/O and never mutates v.
func Transition(v market.VisitRequest, mv Move, now time.Time, loc *time.Location) (market.VisitRequest, error) {
	if err := mv.Action.Validate(); err != nil {
		return v, err
	}
	if mv.ActorRef != v.RecipientRef {
		return v, market.Authorizationf("only the recipient can answer visit request %s", v.ID)
	}
	if v.Status.IsTerminal() {
		return v, market.InvalidStatef("visit request %s is already %s", v.ID, v.Status)
	}

	switch mv.Action {
	case ActionConfirm:
		if v.Status != market.VisitPending {
			return v, market.InvalidStatef("only a pending visit can be confirmed, %s is %s", v.ID, v.Status)
		}
		if err := futureSlot(mv.Slot, now, loc); err != nil {
			return v, err
		}
		v.Status = market.VisitConfirmed
		v.Confirmed = mv.Slot

	case ActionReject:
		if v.Status != market.VisitPending {
			return v, market.InvalidStatef("only a pending visit can be rejected, %s is %s", v.ID, v.Status)
		}
		v.Status = market.VisitRejected

	case ActionReschedule:
		if v.Status != market.VisitPending {
			return v, market.InvalidStatef("only a pending visit can be rescheduled, %s is %s", v.ID, v.Status)
		}
		if v.Rescheduled {
			return v, market.InvalidStatef("visit request %s has already been rescheduled once", v.ID)
		}
		if err := futureSlot(mv.Slot, now, loc); err != nil {
			return v, err
		}
		v.Status = market.VisitRescheduled
		v.Confirmed = mv.Slot
		v.Rescheduled = true

	case ActionComplete:
		if v.Status != market.VisitConfirmed {
			return v, market.InvalidStatef("only a confirmed visit can be completed, %s is %s", v.ID, v.Status)
		}
		at, err := v.EffectiveSlot().At(loc)
		if err != nil {
			return v, market.Validationf("%v", err)
		}
		if now.Before(at) {
			return v, market.InvalidStatef("visit request %s cannot be completed before its slot", v.ID)
		}
		v.Status = market.VisitCompleted
	}

	if mv.Notes != "" {
		v.OwnerNotes = mv.Notes
	}
	v.UpdatedAtMs = now.UnixMilli()
	return v, nil
}

// futureSlot checks that s is well formed and strictly after now.
func futureSlot(s market.Slot, now time.Time, loc *time.Location) error {
	if s.Date == "" || s.Time == "" {
		return market.Validationf("date and time are required")
	}
	at, err := s.At(loc)
	if err != nil {
		return market.Validationf("%v", err)
	}
	if !at.After(now) {
		return market.Validationf("slot %s %s is not in the future", s.Date, s.Time)
	}
	return nil
}
