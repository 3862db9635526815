package visit

import (
	"context"
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

// Scheduler persists visit requests and applies their transitions.
type Scheduler struct {
	client   *market.Client
	catalog  directory.Catalog
	clock    clock.Clock
	notifier notify.Notifier
	events   *eventlog.Logger
	loc      *time.Location
}

// NewScheduler creates a Scheduler. Visit slots are local times in loc; a
// nil loc means UTC.
func NewScheduler(client *market.Client, catalog directory.Catalog, clk clock.Clock, notifier notify.Notifier, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		client:   client,
		catalog:  catalog,
		clock:    clk,
		notifier: notifier,
		events:   eventlog.New("visit", client.InstanceName()),
		loc:      loc,
	}
}

// Request asks the owner of a property for a viewing at a future slot.
func (s *Scheduler) Request(ctx context.Context, requesterRef, propertyRef, recipientRef string, preferred market.Slot, message string) (*market.VisitRequest, error) {
	now := s.clock.Now()
	if err := futureSlot(preferred, now, s.loc); err != nil {
		return nil, err
	}

	property, err := s.catalog.Property(ctx, propertyRef)
	if err != nil {
		if market.IsNotFound(err) {
			return nil, market.Validationf("unknown property %s", propertyRef)
		}
		return nil, err
	}
	if property.OwnerRef != recipientRef {
		return nil, market.Validationf("%s does not own property %s", recipientRef, propertyRef)
	}
	if requesterRef == recipientRef {
		return nil, market.Validationf("owners cannot request visits to their own property")
	}

	v := &market.VisitRequest{
		ID:           uuid.New().String(),
		PropertyRef:  propertyRef,
		RequesterRef: requesterRef,
		RecipientRef: recipientRef,
		Status:       market.VisitPending,
		Preferred:    preferred,
		Message:      message,
		CreatedAtMs:  now.UnixMilli(),
		UpdatedAtMs:  now.UnixMilli(),
	}
	if err := s.client.CreateVisit(ctx, v); err != nil {
		return nil, err
	}

	log.Printf("[Visit] %s requested a visit to %s on %s %s", requesterRef, propertyRef, preferred.Date, preferred.Time)
	s.events.Event("visit_requested", map[string]interface{}{
		"visit_id":     v.ID,
		"property_ref": propertyRef,
		"date":         preferred.Date,
		"time":         preferred.Time,
	})
	s.notifier.Notify(visitEvent("visit.requested", v, requesterRef, now))
	return v, nil
}

// Respond applies the recipient's answer to a visit request.
func (s *Scheduler) Respond(ctx context.Context, visitID string, mv Move) (*market.VisitRequest, error) {
	v, err := s.client.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	next, err := Transition(*v, mv, now, s.loc)
	if err != nil {
		return nil, err
	}
	if err := s.client.UpdateVisit(ctx, &next); err != nil {
		return nil, err
	}
	s.recordTransition(&next, v.Status, mv.ActorRef, now)
	return &next, nil
}

// AnswerReschedule lets the requester accept or decline the slot proposed by
// a reschedule. Accepting confirms the visit on that slot; declining cancels it.
func (s *Scheduler) AnswerReschedule(ctx context.Context, visitID, requesterRef string, accept bool) (*market.VisitRequest, error) {
	v, err := s.client.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.RequesterRef != requesterRef {
		return nil, market.Authorizationf("only the requester can answer the reschedule of visit request %s", visitID)
	}
	if v.Status != market.VisitRescheduled {
		return nil, market.InvalidStatef("visit request %s is %s, not rescheduled", visitID, v.Status)
	}

	now := s.clock.Now()
	next := *v
	next.UpdatedAtMs = now.UnixMilli()
	if accept {
		if err := futureSlot(v.Confirmed, now, s.loc); err != nil {
			return nil, market.InvalidStatef("rescheduled slot of visit request %s has passed", visitID)
		}
		next.Status = market.VisitConfirmed
	} else {
		next.Status = market.VisitCancelled
	}

	if err := s.client.UpdateVisit(ctx, &next); err != nil {
		return nil, err
	}
	s.recordTransition(&next, v.Status, requesterRef, now)
	return &next, nil
}

// Cancel lets either party cancel a non-terminal visit before its slot.
func (s *Scheduler) Cancel(ctx context.Context, visitID, actorRef string) (*market.VisitRequest, error) {
	v, err := s.client.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if actorRef != v.RequesterRef && actorRef != v.RecipientRef {
		return nil, market.Authorizationf("only the requester or recipient can cancel visit request %s", visitID)
	}
	if v.Status.IsTerminal() {
		return nil, market.InvalidStatef("visit request %s is already %s", visitID, v.Status)
	}

	now := s.clock.Now()
	at, err := v.EffectiveSlot().At(s.loc)
	if err != nil {
		return nil, err
	}
	if !now.Before(at) {
		return nil, market.InvalidStatef("visit request %s cannot be cancelled after its slot", visitID)
	}

	next := *v
	next.Status = market.VisitCancelled
	next.UpdatedAtMs = now.UnixMilli()
	if err := s.client.UpdateVisit(ctx, &next); err != nil {
		return nil, err
	}
	s.recordTransition(&next, v.Status, actorRef, now)
	return &next, nil
}

// Get returns a visit request visible to one of its parties.
func (s *Scheduler) Get(ctx context.Context, visitID, actorRef string) (*market.VisitRequest, error) {
	v, err := s.client.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if actorRef != v.RequesterRef && actorRef != v.RecipientRef {
		return nil, market.Authorizationf("visit request %s is not visible to %s", visitID, actorRef)
	}
	return v, nil
}

// ListByActor returns the visit requests an actor is party to, newest first.
func (s *Scheduler) ListByActor(ctx context.Context, actorRef string) ([]*market.VisitRequest, error) {
	ids, err := s.client.ActorEntityIDs(ctx, market.KindVisit, actorRef)
	if err != nil {
		return nil, err
	}
	out := make([]*market.VisitRequest, 0, len(ids))
	for _, id := range ids {
		v, err := s.client.GetVisit(ctx, id)
		if err != nil {
			if market.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAtMs > out[j].CreatedAtMs })
	return out, nil
}

func (s *Scheduler) recordTransition(v *market.VisitRequest, from market.VisitStatus, actorRef string, now time.Time) {
	log.Printf("[Visit] %s: %s -> %s", v.ID, from, v.Status)
	s.events.Event("visit_"+string(v.Status), map[string]interface{}{
		"visit_id":        v.ID,
		"previous_status": string(from),
		"actor_ref":       actorRef,
	})
	e := visitEvent("visit."+string(v.Status), v, actorRef, now)
	e.Data["previous_status"] = string(from)
	s.notifier.Notify(e)
}

func visitEvent(eventType string, v *market.VisitRequest, actorRef string, now time.Time) *market.Event {
	e := notify.NewEvent(eventType, market.KindVisit, v.ID, actorRef, now, v.RequesterRef, v.RecipientRef)
	e.Data["property_ref"] = v.PropertyRef
	e.Data["status"] = string(v.Status)
	slot := v.EffectiveSlot()
	e.Data["date"] = slot.Date
	e.Data["time"] = slot.Time
	return e
}
