package market

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// PaymentResult reports the payment axis of a booking after RecordPayment.
type PaymentResult struct {
	// Applied is false when the external reference had already been recorded
	Applied       bool          `json:"applied"`
	AmountPaid    int64         `json:"amount_paid"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	// BookingStatus is the lifecycle status the payment landed on
	BookingStatus BookingStatus `json:"booking_status"`
}

// RecordPayment applies amount to a booking exactly once per externalRef and
// advances its payment status to partial or paid. The lifecycle status and
// version are untouched.
func (c *Client) RecordPayment(ctx context.Context, bookingID, externalRef string, amount int64, now time.Time) (*PaymentResult, error) {
	keys := []string{
		BookingKey(c.instanceName, bookingID),
		BookingPaymentsKey(c.instanceName, bookingID),
	}
	res, err := recordPaymentScript.Run(ctx, c.rdb, keys, externalRef, amount, now.UnixMilli()).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("unexpected payment reply: %v", res)
	}

	code, _ := res[0].(int64)
	if code == -1 {
		return nil, NotFoundf("booking %s", bookingID)
	}
	paidStr, _ := res[1].(string)
	paid, err := strconv.ParseInt(paidStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount_paid in reply: %w", err)
	}
	status, _ := res[2].(string)
	lifecycle, _ := res[3].(string)

	return &PaymentResult{
		Applied:       code == 1,
		AmountPaid:    paid,
		PaymentStatus: PaymentStatus(status),
		BookingStatus: BookingStatus(lifecycle),
	}, nil
}

// PaymentOrderStatus is the state of an order handed to the payment authority.
type PaymentOrderStatus string

const (
	OrderCreated PaymentOrderStatus = "created"
	OrderPaid    PaymentOrderStatus = "paid"
	OrderFailed  PaymentOrderStatus = "failed"
)

// PaymentOrder is an amount the payment authority has been asked to collect
// for a booking. Verification callbacks are matched against it.
type PaymentOrder struct {
	ID          string             `json:"id"`
	BookingRef  string             `json:"booking_ref"`
	StudentRef  string             `json:"student_ref"`
	Amount      int64              `json:"amount"`
	Currency    string             `json:"currency"`
	Status      PaymentOrderStatus `json:"status"`
	PaymentID   string             `json:"payment_id,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	CreatedAtMs int64              `json:"created_at_ms"`
	UpdatedAtMs int64              `json:"updated_at_ms"`
	Version     int64              `json:"version"`
}

func paymentOrderToHash(o *PaymentOrder) map[string]interface{} {
	return map[string]interface{}{
		"id":            o.ID,
		"booking_ref":   o.BookingRef,
		"student_ref":   o.StudentRef,
		"amount":        o.Amount,
		"currency":      o.Currency,
		"status":        string(o.Status),
		"payment_id":    o.PaymentID,
		"reason":        o.Reason,
		"created_at_ms": o.CreatedAtMs,
		"updated_at_ms": o.UpdatedAtMs,
		"version":       o.Version,
	}
}

func hashToPaymentOrder(hash map[string]string) (*PaymentOrder, error) {
	version, err := parseVersion(hash)
	if err != nil {
		return nil, err
	}
	amount, err := strconv.ParseInt(hash["amount"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount field: %w", err)
	}
	return &PaymentOrder{
		ID:          hash["id"],
		BookingRef:  hash["booking_ref"],
		StudentRef:  hash["student_ref"],
		Amount:      amount,
		Currency:    hash["currency"],
		Status:      PaymentOrderStatus(hash["status"]),
		PaymentID:   hash["payment_id"],
		Reason:      hash["reason"],
		CreatedAtMs: parseMs(hash["created_at_ms"]),
		UpdatedAtMs: parseMs(hash["updated_at_ms"]),
		Version:     version,
	}, nil
}

// CreatePaymentOrder writes a new payment order.
func (c *Client) CreatePaymentOrder(ctx context.Context, o *PaymentOrder) error {
	if o.ID == "" || o.BookingRef == "" {
		return fmt.Errorf("invalid payment order: id and booking_ref are required")
	}
	if o.Amount <= 0 {
		return fmt.Errorf("invalid payment order: amount must be positive, got %d", o.Amount)
	}
	o.Version = 1
	return c.create(ctx, createOp{
		kind:   "payment_order",
		key:    PaymentOrderKey(c.instanceName, o.ID),
		member: o.ID,
		hash:   paymentOrderToHash(o),
	})
}

// GetPaymentOrder retrieves a payment order by ID.
func (c *Client) GetPaymentOrder(ctx context.Context, orderID string) (*PaymentOrder, error) {
	hash, err := c.getHash(ctx, "payment_order", PaymentOrderKey(c.instanceName, orderID), orderID)
	if err != nil {
		return nil, err
	}
	o, err := hashToPaymentOrder(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize payment order: %w", err)
	}
	return o, nil
}

// UpdatePaymentOrder writes a payment order under CAS on o.Version.
func (c *Client) UpdatePaymentOrder(ctx context.Context, o *PaymentOrder) error {
	version, err := c.cas(ctx, casOp{
		kind:     "payment_order",
		key:      PaymentOrderKey(c.instanceName, o.ID),
		member:   o.ID,
		expected: o.Version,
		hash:     paymentOrderToHash(o),
	})
	if err != nil {
		return err
	}
	o.Version = version
	return nil
}
