// Package payment fronts the external payment authority. Orders are created
// for a booking's outstanding amount; the authority's callback is accepted
// only with a valid HMAC-SHA256 signature over "orderId|paymentId" and is
// then applied to the booking ledger.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/eventlog"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// DefaultCurrency is used for orders when none is configured.
const DefaultCurrency = "INR"

// Bookings is the part of the booking ledger the authority drives.
type Bookings interface {
	Get(ctx context.Context, bookingID, actorRef string) (*market.Booking, error)
	RecordPayment(ctx context.Context, bookingID string, amount int64, externalRef string) (*market.PaymentResult, error)
	RecordPaymentFailure(ctx context.Context, bookingID, externalRef, reason string) error
}

// Authority creates payment orders and verifies payment callbacks.
type Authority struct {
	client    *market.Client
	bookings  Bookings
	keySecret []byte
	currency  string
	clock     clock.Clock
	events    *eventlog.Logger

	// concurrent callbacks for one payment collapse into a single verification
	sf singleflight.Group
}

// NewAuthority creates an Authority that checks signatures with keySecret.
func NewAuthority(client *market.Client, bookings Bookings, keySecret, currency string, clk clock.Clock) (*Authority, error) {
	if keySecret == "" {
		return nil, fmt.Errorf("payment key secret is required")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Authority{
		client:    client,
		bookings:  bookings,
		keySecret: []byte(keySecret),
		currency:  currency,
		clock:     clk,
		events:    eventlog.New("payment", client.InstanceName()),
	}, nil
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under keySecret.
func Sign(keySecret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Authority) validSignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, a.keySecret)
	mac.Write([]byte(orderID + "|" + paymentID))
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(mac.Sum(nil), got)
}

// CreateOrder opens an order for a booking. A zero amount requests the
// outstanding balance.
func (a *Authority) CreateOrder(ctx context.Context, bookingID, studentRef string, amount int64) (*market.PaymentOrder, error) {
	b, err := a.bookings.Get(ctx, bookingID, studentRef)
	if err != nil {
		return nil, err
	}
	if b.StudentRef != studentRef {
		return nil, market.Authorizationf("only the student can pay for booking %s", bookingID)
	}
	if b.Status.IsTerminal() {
		return nil, market.InvalidStatef("booking %s is %s", bookingID, b.Status)
	}

	outstanding := b.TotalAmount - b.AmountPaid
	if outstanding <= 0 {
		return nil, market.InvalidStatef("booking %s is already paid", bookingID)
	}
	if amount == 0 {
		amount = outstanding
	}
	if amount < 0 || amount > outstanding {
		return nil, market.Validationf("amount must be between 1 and the outstanding %d, got %d", outstanding, amount)
	}

	now := a.clock.Now()
	o := &market.PaymentOrder{
		ID:          "order_" + uuid.New().String(),
		BookingRef:  bookingID,
		StudentRef:  studentRef,
		Amount:      amount,
		Currency:    a.currency,
		Status:      market.OrderCreated,
		CreatedAtMs: now.UnixMilli(),
		UpdatedAtMs: now.UnixMilli(),
	}
	if err := a.client.CreatePaymentOrder(ctx, o); err != nil {
		return nil, err
	}

	log.Printf("[Payment] Order %s created for booking %s (%d %s)", o.ID, bookingID, amount, a.currency)
	a.events.Event("order_created", map[string]interface{}{
		"order_id":   o.ID,
		"booking_id": bookingID,
		"amount":     amount,
	})
	return o, nil
}

// VerifyResult is the outcome of an accepted payment callback.
type VerifyResult struct {
	Order   *market.PaymentOrder  `json:"order"`
	Payment *market.PaymentResult `json:"payment"`
}

// Verify checks a payment callback and records the payment on the booking.
// A bad signature is recorded as a payment failure and rejected. Replays of
// an accepted callback return the recorded state without paying twice.
func (a *Authority) Verify(ctx context.Context, orderID, paymentID, signature string) (*VerifyResult, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, market.Validationf("orderId, paymentId and signature are required")
	}

	v, err, _ := a.sf.Do("verify_"+paymentID, func() (interface{}, error) {
		return a.verify(ctx, orderID, paymentID, signature)
	})
	if err != nil {
		return nil, err
	}
	return v.(*VerifyResult), nil
}

func (a *Authority) verify(ctx context.Context, orderID, paymentID, signature string) (*VerifyResult, error) {
	o, err := a.client.GetPaymentOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !a.validSignature(orderID, paymentID, signature) {
		if ferr := a.bookings.RecordPaymentFailure(ctx, o.BookingRef, paymentID, "signature mismatch"); ferr != nil {
			log.Printf("[Payment] Failed to record payment failure for order %s: %v", orderID, ferr)
		}
		return nil, market.Validationf("invalid payment signature for order %s", orderID)
	}

	if o.Status == market.OrderPaid && o.PaymentID != paymentID {
		return nil, market.Conflictf("order %s was already paid by another payment", orderID)
	}

	res, err := a.bookings.RecordPayment(ctx, o.BookingRef, o.Amount, paymentID)
	if err != nil {
		return nil, err
	}
	if res.Applied && res.BookingStatus == market.BookingCancelled {
		log.Printf("[Payment] Payment %s for order %s landed on cancelled booking %s; %d owed back",
			paymentID, orderID, o.BookingRef, o.Amount)
	}

	if o.Status != market.OrderPaid {
		if err := a.markPaid(ctx, o, paymentID); err != nil {
			return nil, err
		}
	}
	return &VerifyResult{Order: o, Payment: res}, nil
}

// markPaid settles the order. The payment is already on the booking, so a
// lost CAS only needs the winner to agree on the payment id.
func (a *Authority) markPaid(ctx context.Context, o *market.PaymentOrder, paymentID string) error {
	now := a.clock.Now()
	next := *o
	next.Status = market.OrderPaid
	next.PaymentID = paymentID
	next.UpdatedAtMs = now.UnixMilli()

	err := a.client.UpdatePaymentOrder(ctx, &next)
	if errors.Is(err, market.ErrConflict) {
		current, gerr := a.client.GetPaymentOrder(ctx, o.ID)
		if gerr != nil {
			return gerr
		}
		if current.Status == market.OrderPaid && current.PaymentID == paymentID {
			*o = *current
			return nil
		}
		log.Printf("[CRITICAL] Payment %s recorded on booking %s but order %s settled differently", paymentID, o.BookingRef, o.ID)
		return err
	}
	if err != nil {
		return err
	}

	*o = next
	log.Printf("[Payment] Order %s paid by %s", o.ID, paymentID)
	a.events.Event("order_paid", map[string]interface{}{
		"order_id":   o.ID,
		"booking_id": o.BookingRef,
		"payment_id": paymentID,
		"amount":     o.Amount,
	})
	return nil
}
