// Package sharing implements room-sharing listings and the matching of
// applicants into their slots.
//
// The Registry owns listings and their slot accounting. The Matcher owns
// applications and only touches slots through ReserveSlot, CommitSlot and
// ReleaseSlot, so the participant count is never written from two places.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/eventlog"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/notify"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// DefaultReservationTTL bounds how long a reserved slot waits for its commit.
const DefaultReservationTTL = 5 * time.Second

// SharePolicy decides whether an actor may open a listing for a property.
type SharePolicy func(initiator *market.Actor, property *market.Property) error

// StudentSharePolicy allows verified students to share any catalog property.
func StudentSharePolicy(initiator *market.Actor, _ *market.Property) error {
	if initiator.Role != market.RoleStudent {
		return fmt.Errorf("only students can open a room-sharing listing")
	}
	if !initiator.Verified() {
		return fmt.Errorf("email and phone must be verified to open a listing")
	}
	return nil
}

// CreateInput is the caller-supplied part of a new listing.
type CreateInput struct {
	PropertyRef     string
	MaxParticipants int
	Requirements    market.Requirements
	CostSharing     market.CostSharing
	AvailableFrom   time.Time
	AvailableTill   time.Time
	HouseRules      []string
}

// Registry manages listing lifecycles and slot accounting.
type Registry struct {
	client         *market.Client
	actors         directory.Actors
	catalog        directory.Catalog
	clock          clock.Clock
	notifier       notify.Notifier
	events         *eventlog.Logger
	policy         SharePolicy
	reservationTTL time.Duration
}

// NewRegistry creates a Registry. A zero reservationTTL uses DefaultReservationTTL.
func NewRegistry(client *market.Client, actors directory.Actors, catalog directory.Catalog,
	clk clock.Clock, notifier notify.Notifier, reservationTTL time.Duration) *Registry {
	if reservationTTL <= 0 {
		reservationTTL = DefaultReservationTTL
	}
	return &Registry{
		client:         client,
		actors:         actors,
		catalog:        catalog,
		clock:          clk,
		notifier:       notifier,
		events:         eventlog.New("sharing", client.InstanceName()),
		policy:         StudentSharePolicy,
		reservationTTL: reservationTTL,
	}
}

// SetPolicy replaces the share policy.
func (r *Registry) SetPolicy(p SharePolicy) {
	r.policy = p
}

// Create opens a listing with the initiator as its first participant.
func (r *Registry) Create(ctx context.Context, initiatorRef string, in CreateInput) (*market.Listing, error) {
	if in.MaxParticipants < 2 {
		return nil, market.Validationf("max_participants must be at least 2, got %d", in.MaxParticipants)
	}
	if err := validateTerms(in); err != nil {
		return nil, err
	}

	property, err := r.catalog.Property(ctx, in.PropertyRef)
	if err != nil {
		if market.IsNotFound(err) {
			return nil, market.Validationf("unknown property %s", in.PropertyRef)
		}
		return nil, err
	}
	initiator, err := r.actors.Actor(ctx, initiatorRef)
	if err != nil {
		if market.IsNotFound(err) {
			return nil, market.Validationf("unknown actor %s", initiatorRef)
		}
		return nil, err
	}
	if err := r.policy(initiator, property); err != nil {
		return nil, market.Validationf("%v", err)
	}

	now := r.clock.Now()
	availableFrom := in.AvailableFrom
	if availableFrom.IsZero() {
		availableFrom = now
	}

	listing := &market.Listing{
		ID:              uuid.New().String(),
		PropertyRef:     in.PropertyRef,
		InitiatorRef:    initiatorRef,
		MaxParticipants: in.MaxParticipants,
		Participants:    []market.Participant{{UserRef: initiatorRef, JoinedAtMs: now.UnixMilli()}},
		Status:          market.ListingActive,
		Requirements:    in.Requirements,
		CostSharing:     in.CostSharing,
		AvailableFrom:   availableFrom,
		AvailableTill:   in.AvailableTill,
		HouseRules:      in.HouseRules,
		CreatedAtMs:     now.UnixMilli(),
		UpdatedAtMs:     now.UnixMilli(),
	}
	if listing.HouseRules == nil {
		listing.HouseRules = []string{}
	}

	if err := r.client.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	log.Printf("[Sharing] Listing %s opened by %s for property %s (%d slots)",
		listing.ID, initiatorRef, in.PropertyRef, in.MaxParticipants)
	r.events.Event("listing_created", map[string]interface{}{
		"listing_id":       listing.ID,
		"initiator_ref":    initiatorRef,
		"property_ref":     in.PropertyRef,
		"max_participants": in.MaxParticipants,
	})
	r.notifier.Notify(notify.NewEvent("listing.created", market.KindListing, listing.ID, initiatorRef, now))

	return listing, nil
}

func validateTerms(in CreateInput) error {
	if !in.AvailableTill.IsZero() && !in.AvailableFrom.IsZero() && !in.AvailableTill.After(in.AvailableFrom) {
		return market.Validationf("available_till must be after available_from")
	}
	req := in.Requirements
	if req.AgeMin < 0 || req.AgeMax < 0 {
		return market.Validationf("age limits cannot be negative")
	}
	if req.AgeMin > 0 && req.AgeMax > 0 && req.AgeMin > req.AgeMax {
		return market.Validationf("age_min %d exceeds age_max %d", req.AgeMin, req.AgeMax)
	}
	switch req.Gender {
	case "", "any", "male", "female":
	default:
		return market.Validationf("unknown gender requirement %q", req.Gender)
	}
	if in.CostSharing.RentPerPerson < 0 || in.CostSharing.DepositPerPerson < 0 {
		return market.Validationf("cost sharing amounts cannot be negative")
	}
	return nil
}

// Get returns a listing with its participants.
func (r *Registry) Get(ctx context.Context, listingID string) (*market.Listing, error) {
	return r.client.GetListing(ctx, listingID)
}

// ListByActor returns the listings an actor opened or joined, oldest first.
func (r *Registry) ListByActor(ctx context.Context, actorRef string) ([]*market.Listing, error) {
	ids, err := r.client.ActorEntityIDs(ctx, market.KindListing, actorRef)
	if err != nil {
		return nil, err
	}
	listings := make([]*market.Listing, 0, len(ids))
	for _, id := range ids {
		l, err := r.client.GetListing(ctx, id)
		if err != nil {
			if market.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		listings = append(listings, l)
	}
	sortListings(listings)
	return listings, nil
}

// Close soft-closes a listing. Only the initiator may close; closing an
// already closed listing is a no-op. Pending applications are rejected.
func (r *Registry) Close(ctx context.Context, listingID, actorRef string) (*market.Listing, error) {
	return r.terminate(ctx, listingID, actorRef, market.ListingClosed, "listing closed by initiator")
}

// Expire marks a listing expired on the initiator's request. Pending
// applications are rejected.
func (r *Registry) Expire(ctx context.Context, listingID, actorRef string) (*market.Listing, error) {
	return r.terminate(ctx, listingID, actorRef, market.ListingExpired, "listing expired")
}

func (r *Registry) terminate(ctx context.Context, listingID, actorRef string, status market.ListingStatus, reason string) (*market.Listing, error) {
	listing, err := r.client.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.InitiatorRef != actorRef {
		return nil, market.Authorizationf("only the initiator can %s listing %s", verbFor(status), listingID)
	}

	if err := r.applyStatus(ctx, listing, actorRef, status, reason); err != nil {
		return nil, err
	}
	return r.client.GetListing(ctx, listingID)
}

func verbFor(status market.ListingStatus) string {
	if status == market.ListingClosed {
		return "close"
	}
	return "expire"
}

// applyStatus moves the listing to a terminal status and rejects whatever is
// still pending. Pending applications are swept even when the status was
// already applied, so an interrupted close can be completed by repeating it.
func (r *Registry) applyStatus(ctx context.Context, listing *market.Listing, actorRef string, status market.ListingStatus, reason string) error {
	now := r.clock.Now()
	prev, changed, err := r.client.SetListingStatus(ctx, listing.ID, status, now)
	if err != nil {
		return err
	}

	rejected, err := rejectPending(ctx, r.client, listing.ID, reason, now)
	if err != nil {
		return fmt.Errorf("listing %s is %s but pending applications were not all rejected: %w", listing.ID, status, err)
	}
	for _, app := range rejected {
		r.notifier.Notify(applicationEvent("application.rejected", app, "", now))
	}

	if !changed {
		return nil
	}

	log.Printf("[Sharing] Listing %s %s -> %s (%d pending applications rejected)", listing.ID, prev, status, len(rejected))
	r.events.Event("listing_"+string(status), map[string]interface{}{
		"listing_id":            listing.ID,
		"previous_status":       string(prev),
		"actor_ref":             actorRef,
		"applications_rejected": len(rejected),
	})
	event := notify.NewEvent("listing."+string(status), market.KindListing, listing.ID, actorRef, now, participantRefs(listing)...)
	event.Data["previous_status"] = string(prev)
	r.notifier.Notify(event)
	return nil
}

// ReserveSlot holds one slot of the listing for the configured TTL.
func (r *Registry) ReserveSlot(ctx context.Context, listingID string) (*market.Reservation, error) {
	return r.client.ReserveSlot(ctx, listingID, r.clock.Now(), r.reservationTTL)
}

// CommitSlot admits userRef into the reserved slot, applying comp in the same
// atomic step. Returns true when the listing became full.
func (r *Registry) CommitSlot(ctx context.Context, res *market.Reservation, userRef string, comp *market.Companion) (bool, error) {
	now := r.clock.Now()
	full, err := r.client.CommitSlot(ctx, res, userRef, now, comp)
	if err != nil {
		return false, err
	}

	if full {
		log.Printf("[Sharing] Listing %s is now full", res.ListingID)
		r.events.Event("listing_full", map[string]interface{}{"listing_id": res.ListingID})
		r.notifier.Notify(notify.NewEvent("listing.full", market.KindListing, res.ListingID, userRef, now))
	}
	return full, nil
}

// ReleaseSlot returns a reserved slot without committing it.
func (r *Registry) ReleaseSlot(ctx context.Context, res *market.Reservation) error {
	return r.client.ReleaseSlot(ctx, res)
}

// SweepResult summarizes one Registry sweep.
type SweepResult struct {
	Expired int
	Reaped  int
}

// Sweep expires listings whose availability window has passed and purges
// expired slot reservations. Safe to run repeatedly and concurrently.
func (r *Registry) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	ids, err := r.client.OpenListingIDs(ctx)
	if err != nil {
		return result, err
	}

	var errs []error
	for _, id := range ids {
		n, err := r.client.ReapReservations(ctx, id, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.Reaped += n

		listing, err := r.client.GetListing(ctx, id)
		if err != nil {
			if !market.IsNotFound(err) {
				errs = append(errs, err)
			}
			continue
		}
		if listing.AvailableTill.IsZero() || now.Before(listing.AvailableTill) {
			continue
		}
		if listing.Status != market.ListingActive && listing.Status != market.ListingFull {
			continue
		}
		if err := r.applyStatus(ctx, listing, "", market.ListingExpired, "listing availability ended"); err != nil {
			// closed between the read and the write
			if !errors.Is(err, market.ErrInvalidState) {
				errs = append(errs, err)
			}
			continue
		}
		result.Expired++
	}

	return result, errors.Join(errs...)
}

func participantRefs(l *market.Listing) []string {
	refs := make([]string, 0, len(l.Participants))
	for _, p := range l.Participants {
		refs = append(refs, p.UserRef)
	}
	return refs
}
