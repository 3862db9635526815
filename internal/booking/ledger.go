package booking

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/eventlog"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/notify"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// DefaultMaxDurationMonths bounds a booking's tenancy.
const DefaultMaxDurationMonths = 24

// Decision is the owner's answer to a pending booking.
type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionReject  Decision = "reject"
)

// CreateInput is the caller-supplied part of a new booking.
type CreateInput struct {
	RoomRef        string
	MoveInDate     time.Time
	DurationMonths int
	NegotiationRef string
}

// Ledger manages bookings.
type Ledger struct {
	client      *market.Client
	catalog     directory.Catalog
	clock       clock.Clock
	notifier    notify.Notifier
	events      *eventlog.Logger
	maxDuration int
	loc         *time.Location
}

// NewLedger creates a Ledger. Calendar dates are interpreted in loc; a nil
// loc means UTC and a non-positive maxDuration uses DefaultMaxDurationMonths.
func NewLedger(client *market.Client, catalog directory.Catalog, clk clock.Clock, notifier notify.Notifier,
	maxDuration int, loc *time.Location) *Ledger {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDurationMonths
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		client:      client,
		catalog:     catalog,
		clock:       clk,
		notifier:    notifier,
		events:      eventlog.New("booking", client.InstanceName()),
		maxDuration: maxDuration,
		loc:         loc,
	}
}

// Create books a room for a student. The monthly rent is the accepted
// negotiation's final price when one is given, otherwise the listed rent.
func (l *Ledger) Create(ctx context.Context, studentRef string, in CreateInput) (*market.Booking, error) {
	if in.DurationMonths < 1 || in.DurationMonths > l.maxDuration {
		return nil, market.Validationf("duration must be between 1 and %d months, got %d", l.maxDuration, in.DurationMonths)
	}
	if in.MoveInDate.IsZero() {
		return nil, market.Validationf("move-in date is required")
	}

	now := l.clock.Now()
	moveIn := startOfDay(in.MoveInDate, l.loc)
	if moveIn.Before(startOfDay(now, l.loc)) {
		return nil, market.Validationf("move-in date %s is in the past", moveIn.Format(market.DateLayout))
	}

	room, err := l.catalog.Room(ctx, in.RoomRef)
	if err != nil {
		if market.IsNotFound(err) {
			return nil, market.Validationf("unknown room %s", in.RoomRef)
		}
		return nil, err
	}
	if room.OwnerRef == studentRef {
		return nil, market.Validationf("owners cannot book their own room")
	}

	rent := room.MonthlyRent
	if in.NegotiationRef != "" {
		if rent, err = l.negotiatedRent(ctx, studentRef, in); err != nil {
			return nil, err
		}
	}

	prorated := ProratedMaintenance(room.MaintenanceMonthly, moveIn)
	b := &market.Booking{
		ID:                  uuid.New().String(),
		RoomRef:             room.ID,
		PropertyRef:         room.PropertyRef,
		StudentRef:          studentRef,
		OwnerRef:            room.OwnerRef,
		Status:              market.BookingPending,
		MoveInDate:          moveIn,
		MoveOutDate:         MoveOutDate(moveIn, in.DurationMonths),
		DurationMonths:      in.DurationMonths,
		MonthlyRent:         rent,
		SecurityDeposit:     room.SecurityDeposit,
		ProratedMaintenance: prorated,
		TotalAmount:         rent + room.SecurityDeposit + prorated,
		PaymentStatus:       market.PaymentPending,
		NegotiationRef:      in.NegotiationRef,
		CreatedAtMs:         now.UnixMilli(),
		UpdatedAtMs:         now.UnixMilli(),
	}
	if err := l.client.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	log.Printf("[Booking] %s booked room %s from %s for %d months (total %d)",
		studentRef, room.ID, moveIn.Format(market.DateLayout), in.DurationMonths, b.TotalAmount)
	l.events.Event("booking_created", map[string]interface{}{
		"booking_id":      b.ID,
		"room_ref":        room.ID,
		"monthly_rent":    rent,
		"total_amount":    b.TotalAmount,
		"negotiation_ref": in.NegotiationRef,
	})
	l.notifier.Notify(bookingEvent("booking.created", b, studentRef, now))
	return b, nil
}

func (l *Ledger) negotiatedRent(ctx context.Context, studentRef string, in CreateInput) (int64, error) {
	n, err := l.client.GetNegotiation(ctx, in.NegotiationRef)
	if err != nil {
		if market.IsNotFound(err) {
			return 0, market.Validationf("unknown negotiation %s", in.NegotiationRef)
		}
		return 0, err
	}
	if n.ProposerRef != studentRef {
		return 0, market.Authorizationf("negotiation %s belongs to another student", n.ID)
	}
	if n.RoomRef != in.RoomRef {
		return 0, market.Validationf("negotiation %s is for room %s, not %s", n.ID, n.RoomRef, in.RoomRef)
	}
	if n.Status != market.NegotiationAccepted || n.FinalPrice == nil {
		return 0, market.Validationf("negotiation %s is %s, not accepted", n.ID, n.Status)
	}
	return *n.FinalPrice, nil
}

// transitionAttempts bounds re-reads when a booking changes under an update.
const transitionAttempts = 3

// transition loads a booking, derives its next state with step and writes it
// under CAS. A conflict re-reads the booking and re-applies step, so a payment
// landing mid-update is seen by the next attempt.
func (l *Ledger) transition(ctx context.Context, bookingID string,
	step func(b *market.Booking, now time.Time) (market.Booking, error)) (prev, next *market.Booking, now time.Time, err error) {
	for attempt := 1; ; attempt++ {
		b, err := l.client.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, nil, now, err
		}
		now = l.clock.Now()
		n, err := step(b, now)
		if err != nil {
			return nil, nil, now, err
		}
		err = l.client.UpdateBooking(ctx, &n, b.Status)
		if err == nil {
			return b, &n, now, nil
		}
		if !errors.Is(err, market.ErrConflict) || attempt == transitionAttempts {
			return nil, nil, now, err
		}
		log.Printf("[Booking] %s changed during update, retrying (attempt %d)", bookingID, attempt)
	}
}

// OwnerRespond confirms or rejects a pending booking. Rejection cancels it.
func (l *Ledger) OwnerRespond(ctx context.Context, bookingID, ownerRef string, decision Decision) (*market.Booking, error) {
	if decision != DecisionConfirm && decision != DecisionReject {
		return nil, market.Validationf("unknown decision %q (expected confirm or reject)", decision)
	}

	prev, next, now, err := l.transition(ctx, bookingID, func(b *market.Booking, now time.Time) (market.Booking, error) {
		if b.OwnerRef != ownerRef {
			return *b, market.Authorizationf("only the owner can respond to booking %s", bookingID)
		}
		if b.Status != market.BookingPending {
			return *b, market.InvalidStatef("booking %s is already %s", bookingID, b.Status)
		}
		next := *b
		next.UpdatedAtMs = now.UnixMilli()
		if decision == DecisionConfirm {
			next.Status = market.BookingConfirmed
		} else {
			next.Status = market.BookingCancelled
			next.CancelledBy = ownerRef
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	l.recordTransition(next, prev.Status, ownerRef, now)
	if next.Status == market.BookingCancelled && next.AmountPaid > 0 {
		l.refundObligation(next, next.AmountPaid, ownerRef, now)
	}
	return next, nil
}

// Cancel lets the student or owner cancel a pending or confirmed booking
// before move-in. Cancelling a booking with money on it publishes a refund
// obligation; refunds themselves are settled outside the ledger. The amount
// owed is the amount paid when the cancellation was written; any payment
// recorded afterwards raises its own obligation in RecordPayment.
func (l *Ledger) Cancel(ctx context.Context, bookingID, actorRef string) (*market.Booking, error) {
	prev, next, now, err := l.transition(ctx, bookingID, func(b *market.Booking, now time.Time) (market.Booking, error) {
		if actorRef != b.StudentRef && actorRef != b.OwnerRef {
			return *b, market.Authorizationf("only the student or owner can cancel booking %s", bookingID)
		}
		if b.Status != market.BookingPending && b.Status != market.BookingConfirmed {
			return *b, market.InvalidStatef("booking %s is %s and can no longer be cancelled", bookingID, b.Status)
		}
		if !now.Before(b.MoveInDate) {
			return *b, market.InvalidStatef("booking %s cannot be cancelled on or after move-in", bookingID)
		}
		next := *b
		next.Status = market.BookingCancelled
		next.CancelledBy = actorRef
		next.UpdatedAtMs = now.UnixMilli()
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	l.recordTransition(next, prev.Status, actorRef, now)
	if next.AmountPaid > 0 {
		l.refundObligation(next, next.AmountPaid, actorRef, now)
	}
	return next, nil
}

// RecordPayment applies a verified payment. Replaying the same externalRef is
// a no-op. The lifecycle status never changes here; a payment that lands on a
// cancelled booking is recorded and owed back as a refund obligation.
func (l *Ledger) RecordPayment(ctx context.Context, bookingID string, amount int64, externalRef string) (*market.PaymentResult, error) {
	if amount <= 0 {
		return nil, market.Validationf("payment amount must be positive, got %d", amount)
	}
	if externalRef == "" {
		return nil, market.Validationf("payment reference is required")
	}

	now := l.clock.Now()
	res, err := l.client.RecordPayment(ctx, bookingID, externalRef, amount, now)
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		log.Printf("[Booking] Payment %s already recorded for booking %s", externalRef, bookingID)
		return res, nil
	}

	log.Printf("[Booking] Payment %s of %d recorded for booking %s (%s)", externalRef, amount, bookingID, res.PaymentStatus)
	l.events.Event("payment_recorded", map[string]interface{}{
		"booking_id":     bookingID,
		"external_ref":   externalRef,
		"amount":         amount,
		"amount_paid":    res.AmountPaid,
		"payment_status": string(res.PaymentStatus),
		"booking_status": string(res.BookingStatus),
	})
	e := notify.NewEvent("booking.payment_recorded", market.KindBooking, bookingID, "", now)
	e.Data["amount_paid"] = res.AmountPaid
	e.Data["payment_status"] = string(res.PaymentStatus)
	l.notifier.Notify(e)

	if res.BookingStatus == market.BookingCancelled {
		b, err := l.client.GetBooking(ctx, bookingID)
		if err != nil {
			// the payment stands; the obligation is still logged for settlement
			log.Printf("[CRITICAL] Payment %s of %d landed on cancelled booking %s: %v", externalRef, amount, bookingID, err)
			return res, nil
		}
		l.refundObligation(b, amount, "", now)
	}
	return res, nil
}

// refundObligation logs and publishes money owed back on a cancelled booking.
func (l *Ledger) refundObligation(b *market.Booking, amount int64, actorRef string, now time.Time) {
	log.Printf("[Booking] Refund obligation for booking %s: %d owed (%d paid)", b.ID, amount, b.AmountPaid)
	l.events.Event("refund_obligation", map[string]interface{}{
		"booking_id":     b.ID,
		"amount":         amount,
		"amount_paid":    b.AmountPaid,
		"payment_status": string(b.PaymentStatus),
		"cancelled_by":   b.CancelledBy,
	})
	e := bookingEvent("booking.refund_obligation", b, actorRef, now)
	e.Data["amount"] = amount
	e.Data["amount_paid"] = b.AmountPaid
	l.notifier.Notify(e)
}

// RecordPaymentFailure logs and publishes a failed payment attempt. The
// booking's payment status is unchanged.
func (l *Ledger) RecordPaymentFailure(ctx context.Context, bookingID, externalRef, reason string) error {
	b, err := l.client.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	now := l.clock.Now()
	log.Printf("[Booking] Payment %s failed for booking %s: %s", externalRef, bookingID, reason)
	l.events.Warn("payment_failed", map[string]interface{}{
		"booking_id":   bookingID,
		"external_ref": externalRef,
		"reason":       reason,
	})
	e := bookingEvent("booking.payment_failed", b, "", now)
	e.Data["reason"] = reason
	l.notifier.Notify(e)
	return nil
}

// SweepResult summarizes one ledger sweep.
type SweepResult struct {
	Activated int
	Completed int
}

// Sweep applies every time-driven transition due at now. Each booking is
// written once with its fixpoint status under CAS, so a concurrent or
// repeated sweep changes nothing.
func (l *Ledger) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	var errs []error

	for _, status := range []market.BookingStatus{market.BookingConfirmed, market.BookingActive} {
		ids, err := l.client.BookingIDsByStatus(ctx, status)
		if err != nil {
			return result, err
		}

		for _, id := range ids {
			b, err := l.client.GetBooking(ctx, id)
			if err != nil {
				if !market.IsNotFound(err) {
					errs = append(errs, err)
				}
				continue
			}
			// already advanced by an earlier pass over a different index
			if b.Status != status {
				continue
			}

			next, steps := Advance(*b, now)
			if len(steps) == 0 {
				continue
			}
			if err := l.client.UpdateBooking(ctx, &next, b.Status); err != nil {
				if !errors.Is(err, market.ErrConflict) {
					errs = append(errs, err)
				}
				continue
			}

			for _, s := range steps {
				switch s.To {
				case market.BookingActive:
					result.Activated++
				case market.BookingCompleted:
					result.Completed++
				}
				stepped := next
				stepped.Status = s.To
				l.recordTransition(&stepped, s.From, "", now)
			}
		}
	}

	return result, errors.Join(errs...)
}

// Get returns a booking visible to its student or owner.
func (l *Ledger) Get(ctx context.Context, bookingID, actorRef string) (*market.Booking, error) {
	b, err := l.client.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorRef != b.StudentRef && actorRef != b.OwnerRef {
		return nil, market.Authorizationf("booking %s is not visible to %s", bookingID, actorRef)
	}
	return b, nil
}

// ListByActor returns the bookings an actor is party to, newest first.
func (l *Ledger) ListByActor(ctx context.Context, actorRef string) ([]*market.Booking, error) {
	ids, err := l.client.ActorEntityIDs(ctx, market.KindBooking, actorRef)
	if err != nil {
		return nil, err
	}
	out := make([]*market.Booking, 0, len(ids))
	for _, id := range ids {
		b, err := l.client.GetBooking(ctx, id)
		if err != nil {
			if market.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAtMs > out[j].CreatedAtMs })
	return out, nil
}

func (l *Ledger) recordTransition(b *market.Booking, from market.BookingStatus, actorRef string, now time.Time) {
	log.Printf("[Booking] %s: %s -> %s", b.ID, from, b.Status)
	l.events.Event("booking_"+string(b.Status), map[string]interface{}{
		"booking_id":      b.ID,
		"previous_status": string(from),
		"actor_ref":       actorRef,
	})
	e := bookingEvent("booking."+string(b.Status), b, actorRef, now)
	e.Data["previous_status"] = string(from)
	l.notifier.Notify(e)
}

func bookingEvent(eventType string, b *market.Booking, actorRef string, now time.Time) *market.Event {
	e := notify.NewEvent(eventType, market.KindBooking, b.ID, actorRef, now, b.StudentRef, b.OwnerRef)
	e.Data["room_ref"] = b.RoomRef
	e.Data["status"] = string(b.Status)
	e.Data["payment_status"] = string(b.PaymentStatus)
	return e
}
