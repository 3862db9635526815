package sharing

import (
	"context"
	"errors"
	"fmt"
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

// Decision is the initiator's answer to an application.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ListingFullMessage is the responder message on applications rejected for lack of a slot.
const ListingFullMessage = "listing full"

// Matcher manages applications to listings.
type Matcher struct {
	client   *market.Client
	registry *Registry
	actors   directory.Actors
	clock    clock.Clock
	notifier notify.Notifier
	events   *eventlog.Logger
}

// NewMatcher creates a Matcher that admits applicants through registry.
func NewMatcher(client *market.Client, registry *Registry, actors directory.Actors, clk clock.Clock, notifier notify.Notifier) *Matcher {
	return &Matcher{
		client:   client,
		registry: registry,
		actors:   actors,
		clock:    clk,
		notifier: notifier,
		events:   eventlog.New("matcher", client.InstanceName()),
	}
}

// Apply files a pending application. Fails with a conflict when the listing
// is not active, the applicant is unverified or already a participant, or a
// pending application for the pair already exists.
func (m *Matcher) Apply(ctx context.Context, listingID, applicantRef, message string) (*market.Application, error) {
	listing, err := m.registry.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != market.ListingActive {
		return nil, market.Conflictf("listing %s is %s and not accepting applications", listingID, listing.Status)
	}
	if listing.HasParticipant(applicantRef) {
		return nil, market.Conflictf("%s is already a participant of listing %s", applicantRef, listingID)
	}

	applicant, err := m.actors.Actor(ctx, applicantRef)
	if err != nil {
		if market.IsNotFound(err) {
			return nil, market.Conflictf("unknown applicant %s", applicantRef)
		}
		return nil, err
	}
	if !applicant.Verified() {
		return nil, market.Conflictf("applicant must verify email and phone before applying")
	}

	now := m.clock.Now()
	app := &market.Application{
		ID:           uuid.New().String(),
		ListingRef:   listingID,
		ApplicantRef: applicantRef,
		Status:       market.ApplicationPending,
		Message:      message,
		AppliedAtMs:  now.UnixMilli(),
		UpdatedAtMs:  now.UnixMilli(),
	}
	if err := m.client.CreateApplication(ctx, app); err != nil {
		return nil, err
	}

	log.Printf("[Matcher] %s applied to listing %s (application %s)", applicantRef, listingID, app.ID)
	m.events.Event("application_submitted", map[string]interface{}{
		"application_id": app.ID,
		"listing_id":     listingID,
		"applicant_ref":  applicantRef,
	})
	m.notifier.Notify(applicationEvent("application.submitted", app, applicantRef, now, listing.InitiatorRef))

	return app, nil
}

// Respond records the initiator's decision on a pending application.
//
// Accepting reserves a slot and commits it together with the application's
// transition. If no slot is left the application is rejected with
// ListingFullMessage and the caller receives a conflict.
func (m *Matcher) Respond(ctx context.Context, applicationID, actorRef string, decision Decision, message string) (*market.Application, error) {
	app, err := m.client.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	listing, err := m.registry.Get(ctx, app.ListingRef)
	if err != nil {
		return nil, err
	}
	if listing.InitiatorRef != actorRef {
		return nil, market.Authorizationf("only the listing initiator can respond to applications")
	}
	if app.Status != market.ApplicationPending {
		return nil, market.InvalidStatef("application %s is already %s", applicationID, app.Status)
	}

	switch decision {
	case DecisionReject:
		return m.reject(ctx, app, actorRef, message)
	case DecisionAccept:
		return m.accept(ctx, app, listing, actorRef, message)
	default:
		return nil, market.Validationf("unknown decision %q (expected accept or reject)", decision)
	}
}

func (m *Matcher) reject(ctx context.Context, app *market.Application, actorRef, message string) (*market.Application, error) {
	now := m.clock.Now()
	next := *app
	next.Status = market.ApplicationRejected
	next.RespondedAtMs = now.UnixMilli()
	next.UpdatedAtMs = now.UnixMilli()
	next.ResponderMessage = message
	if err := m.client.UpdateApplication(ctx, &next); err != nil {
		return nil, err
	}

	log.Printf("[Matcher] Application %s rejected", app.ID)
	m.events.Event("application_rejected", map[string]interface{}{
		"application_id": app.ID,
		"listing_id":     app.ListingRef,
	})
	m.notifier.Notify(applicationEvent("application.rejected", &next, actorRef, now))
	return &next, nil
}

func (m *Matcher) accept(ctx context.Context, app *market.Application, listing *market.Listing, actorRef, message string) (*market.Application, error) {
	res, err := m.registry.ReserveSlot(ctx, listing.ID)
	if err != nil {
		if errors.Is(err, market.ErrSlotUnavailable) {
			if _, rejErr := m.reject(ctx, app, "", ListingFullMessage); rejErr != nil {
				log.Printf("[Matcher] Failed to auto-reject application %s: %v", app.ID, rejErr)
			}
			return nil, fmt.Errorf("%w: %w", market.ErrConflict, err)
		}
		return nil, err
	}

	now := m.clock.Now()
	next := *app
	next.Status = market.ApplicationAccepted
	next.RespondedAtMs = now.UnixMilli()
	next.UpdatedAtMs = now.UnixMilli()
	next.ResponderMessage = message

	full, err := m.registry.CommitSlot(ctx, res, app.ApplicantRef, m.client.ApplicationCompanion(&next))
	if err != nil {
		if relErr := m.registry.ReleaseSlot(ctx, res); relErr != nil {
			log.Printf("[Matcher] Failed to release reservation on listing %s: %v", listing.ID, relErr)
		}
		if errors.Is(err, market.ErrReservationExpired) {
			return nil, fmt.Errorf("%w: %w", market.ErrConflict, err)
		}
		return nil, err
	}
	next.Version++

	log.Printf("[Matcher] Application %s accepted; %s joined listing %s", app.ID, app.ApplicantRef, listing.ID)
	m.events.Event("application_accepted", map[string]interface{}{
		"application_id": app.ID,
		"listing_id":     listing.ID,
		"applicant_ref":  app.ApplicantRef,
		"listing_full":   full,
	})
	m.notifier.Notify(applicationEvent("application.accepted", &next, actorRef, now))
	return &next, nil
}

// Withdraw lets the original applicant retract a pending application.
func (m *Matcher) Withdraw(ctx context.Context, applicationID, actorRef string) (*market.Application, error) {
	app, err := m.client.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantRef != actorRef {
		return nil, market.Authorizationf("only the applicant can withdraw application %s", applicationID)
	}
	if app.Status != market.ApplicationPending {
		return nil, market.InvalidStatef("application %s is already %s", applicationID, app.Status)
	}

	now := m.clock.Now()
	next := *app
	next.Status = market.ApplicationWithdrawn
	next.UpdatedAtMs = now.UnixMilli()
	if err := m.client.UpdateApplication(ctx, &next); err != nil {
		return nil, err
	}

	log.Printf("[Matcher] Application %s withdrawn by %s", applicationID, actorRef)
	m.events.Event("application_withdrawn", map[string]interface{}{
		"application_id": applicationID,
		"listing_id":     app.ListingRef,
	})
	m.notifier.Notify(applicationEvent("application.withdrawn", &next, actorRef, now))
	return &next, nil
}

// Get returns an application visible to actorRef: its applicant or the
// listing's initiator.
func (m *Matcher) Get(ctx context.Context, applicationID, actorRef string) (*market.Application, error) {
	app, err := m.client.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantRef == actorRef {
		return app, nil
	}
	listing, err := m.registry.Get(ctx, app.ListingRef)
	if err != nil {
		return nil, err
	}
	if listing.InitiatorRef != actorRef {
		return nil, market.Authorizationf("application %s is not visible to %s", applicationID, actorRef)
	}
	return app, nil
}

// ListForListing returns every application of a listing, oldest first.
// Only the initiator may list them.
func (m *Matcher) ListForListing(ctx context.Context, listingID, actorRef string) ([]*market.Application, error) {
	listing, err := m.registry.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.InitiatorRef != actorRef {
		return nil, market.Authorizationf("only the initiator can list applications of listing %s", listingID)
	}
	return loadApplications(ctx, m.client, listingID)
}

func loadApplications(ctx context.Context, client *market.Client, listingID string) ([]*market.Application, error) {
	ids, err := client.ListingApplicationIDs(ctx, listingID)
	if err != nil {
		return nil, err
	}
	apps := make([]*market.Application, 0, len(ids))
	for _, id := range ids {
		app, err := client.GetApplication(ctx, id)
		if err != nil {
			if market.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].AppliedAtMs != apps[j].AppliedAtMs {
			return apps[i].AppliedAtMs < apps[j].AppliedAtMs
		}
		return apps[i].ID < apps[j].ID
	})
	return apps, nil
}

// rejectPending rejects every pending application of a listing with a system
// message. A lost CAS is retried once against the fresh record, which may by
// then be terminal.
func rejectPending(ctx context.Context, client *market.Client, listingID, reason string, now time.Time) ([]*market.Application, error) {
	apps, err := loadApplications(ctx, client, listingID)
	if err != nil {
		return nil, err
	}

	var rejected []*market.Application
	var errs []error
	for _, app := range apps {
		for attempt := 0; attempt < 2 && app.Status == market.ApplicationPending; attempt++ {
			next := *app
			next.Status = market.ApplicationRejected
			next.RespondedAtMs = now.UnixMilli()
			next.UpdatedAtMs = now.UnixMilli()
			next.ResponderMessage = reason

			err := client.UpdateApplication(ctx, &next)
			if err == nil {
				rejected = append(rejected, &next)
				break
			}
			if !errors.Is(err, market.ErrConflict) {
				errs = append(errs, err)
				break
			}
			if app, err = client.GetApplication(ctx, app.ID); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return rejected, errors.Join(errs...)
}

func applicationEvent(eventType string, app *market.Application, actorRef string, now time.Time, recipients ...string) *market.Event {
	if len(recipients) == 0 {
		recipients = []string{app.ApplicantRef}
	}
	e := notify.NewEvent(eventType, market.KindApplication, app.ID, actorRef, now, recipients...)
	e.Data["listing_id"] = app.ListingRef
	e.Data["status"] = string(app.Status)
	if app.ResponderMessage != "" {
		e.Data["responder_message"] = app.ResponderMessage
	}
	return e
}

func sortListings(listings []*market.Listing) {
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].CreatedAtMs != listings[j].CreatedAtMs {
			return listings[i].CreatedAtMs < listings[j].CreatedAtMs
		}
		return listings[i].ID < listings[j].ID
	})
}
