package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Reservation is a short-lived hold on one listing slot. It must be committed
// or released before ExpiresAt; an expired reservation no longer counts
// against capacity and cannot be committed.
type Reservation struct {
	ListingID string    `json:"listing_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Companion is a versioned write applied atomically with a slot commit.
type Companion struct {
	Key             string
	ExpectedVersion int64
	Fields          map[string]interface{}
	Delete          []string
}

// ApplicationCompanion builds the companion write that stores a transitioned
// application alongside a slot commit.
func (c *Client) ApplicationCompanion(a *Application) *Companion {
	comp := &Companion{
		Key:             ApplicationKey(c.instanceName, a.ID),
		ExpectedVersion: a.Version,
		Fields:          ApplicationToHash(a),
	}
	if a.Status != ApplicationPending {
		comp.Delete = []string{PendingApplicationKey(c.instanceName, a.ListingRef, a.ApplicantRef)}
	}
	return comp
}

// ReserveSlot atomically reserves one slot if committed participants plus live
// reservations are below maxParticipants. Returns ErrSlotUnavailable otherwise.
func (c *Client) ReserveSlot(ctx context.Context, listingID string, now time.Time, ttl time.Duration) (*Reservation, error) {
	r := &Reservation{
		ListingID: listingID,
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(ttl),
	}

	keys := []string{
		ListingKey(c.instanceName, listingID),
		ListingParticipantsKey(c.instanceName, listingID),
		ListingReservationsKey(c.instanceName, listingID),
	}
	code, err := reserveSlotScript.Run(ctx, c.rdb, keys, r.Token, now.UnixMilli(), r.ExpiresAt.UnixMilli()).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve slot: %w", err)
	}

	switch code {
	case 1:
		return r, nil
	case 0:
		return nil, fmt.Errorf("listing %s: %w", listingID, ErrSlotUnavailable)
	case -1:
		return nil, NotFoundf("listing %s", listingID)
	default:
		return nil, InvalidStatef("listing %s is not active", listingID)
	}
}

// CommitSlot turns a live reservation into a participant. When comp is
// non-nil its write is applied in the same script, so the participant and the
// companion entity change together or not at all. Returns true when the
// listing became full.
func (c *Client) CommitSlot(ctx context.Context, r *Reservation, userRef string, now time.Time, comp *Companion) (bool, error) {
	keys := []string{
		ListingKey(c.instanceName, r.ListingID),
		ListingParticipantsKey(c.instanceName, r.ListingID),
		ListingReservationsKey(c.instanceName, r.ListingID),
		ByActorKey(c.instanceName, KindListing, userRef),
	}
	expected := ""
	if comp != nil {
		keys = append(keys, comp.Key)
		keys = append(keys, comp.Delete...)
		expected = strconv.FormatInt(comp.ExpectedVersion, 10)
	}

	args := []interface{}{r.Token, now.UnixMilli(), userRef, expected, r.ListingID}
	if comp != nil {
		args = append(args, fieldArgs(comp.Fields)...)
	}

	code, err := commitSlotScript.Run(ctx, c.rdb, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("failed to commit slot: %w", err)
	}

	switch code {
	case 2:
		return true, nil
	case 1:
		return false, nil
	case -1:
		return false, NotFoundf("listing %s", r.ListingID)
	case -2:
		return false, InvalidStatef("listing %s is no longer active", r.ListingID)
	case -3:
		return false, fmt.Errorf("listing %s: %w", r.ListingID, ErrReservationExpired)
	case -4:
		return false, Conflictf("companion %s was modified concurrently", comp.Key)
	default:
		return false, Conflictf("%s is already a participant of listing %s", userRef, r.ListingID)
	}
}

// ReleaseSlot drops a reservation. Releasing an unknown or expired
// reservation is a no-op.
func (c *Client) ReleaseSlot(ctx context.Context, r *Reservation) error {
	keys := []string{ListingReservationsKey(c.instanceName, r.ListingID)}
	if err := releaseSlotScript.Run(ctx, c.rdb, keys, r.Token).Err(); err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

// SetListingStatus moves a listing to closed or expired and drops its
// outstanding reservations. Returns the previous status and whether anything
// changed; reapplying the current status is a no-op.
func (c *Client) SetListingStatus(ctx context.Context, listingID string, status ListingStatus, now time.Time) (ListingStatus, bool, error) {
	if status != ListingClosed && status != ListingExpired {
		return "", false, fmt.Errorf("listing status %q cannot be set directly", status)
	}

	keys := []string{
		ListingKey(c.instanceName, listingID),
		ListingReservationsKey(c.instanceName, listingID),
		OpenListingsKey(c.instanceName),
	}
	res, err := listingStatusScript.Run(ctx, c.rdb, keys, string(status), now.UnixMilli(), listingID).Slice()
	if err != nil {
		return "", false, fmt.Errorf("failed to set listing status: %w", err)
	}
	if len(res) != 2 {
		return "", false, fmt.Errorf("unexpected listing status reply: %v", res)
	}

	code, _ := res[0].(int64)
	prev, _ := res[1].(string)
	switch code {
	case 1:
		return ListingStatus(prev), true, nil
	case 0:
		return ListingStatus(prev), false, nil
	case -1:
		return "", false, NotFoundf("listing %s", listingID)
	default:
		return ListingStatus(prev), false, InvalidStatef("listing %s is %s", listingID, prev)
	}
}

// ReapReservations purges expired reservations of one listing and returns how
// many were dropped.
func (c *Client) ReapReservations(ctx context.Context, listingID string, now time.Time) (int, error) {
	keys := []string{ListingReservationsKey(c.instanceName, listingID)}
	n, err := reapReservationsScript.Run(ctx, c.rdb, keys, now.UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to reap reservations: %w", err)
	}
	return n, nil
}
