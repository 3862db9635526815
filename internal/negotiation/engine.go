package negotiation

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

// Engine persists negotiations and applies moves under optimistic concurrency.
type Engine struct {
	client   *market.Client
	catalog  directory.Catalog
	clock    clock.Clock
	notifier notify.Notifier
	events   *eventlog.Logger
}

// NewEngine creates a negotiation Engine.
func NewEngine(client *market.Client, catalog directory.Catalog, clk clock.Clock, notifier notify.Notifier) *Engine {
	return &Engine{
		client:   client,
		catalog:  catalog,
		clock:    clk,
		notifier: notifier,
		events:   eventlog.New("negotiation", client.InstanceName()),
	}
}

// Propose opens a negotiation on a room at a price below its listed rent.
// The room's owner becomes the counterparty and holds the first turn.
func (e *Engine) Propose(ctx context.Context, proposerRef, roomRef string, proposedPrice int64, message string) (*market.Negotiation, error) {
	room, err := e.catalog.Room(ctx, roomRef)
	if err != nil {
		if market.IsNotFound(err) {
			return nil, market.Validationf("unknown room %s", roomRef)
		}
		return nil, err
	}
	if room.OwnerRef == proposerRef {
		return nil, market.Validationf("owners cannot negotiate on their own room")
	}
	if proposedPrice <= 0 || proposedPrice >= room.MonthlyRent {
		return nil, market.Validationf("proposed price must be above 0 and below the listed %d, got %d",
			room.MonthlyRent, proposedPrice)
	}

	now := e.clock.Now()
	n := &market.Negotiation{
		ID:              uuid.New().String(),
		RoomRef:         roomRef,
		ProposerRef:     proposerRef,
		CounterpartyRef: room.OwnerRef,
		OriginalPrice:   room.MonthlyRent,
		ProposedPrice:   proposedPrice,
		Status:          market.NegotiationPending,
		Turn:            market.TurnCounterparty,
		Message:         message,
		CreatedAtMs:     now.UnixMilli(),
		UpdatedAtMs:     now.UnixMilli(),
	}
	if err := e.client.CreateNegotiation(ctx, n); err != nil {
		return nil, err
	}

	log.Printf("[Negotiation] %s proposed %d on room %s (listed %d)", proposerRef, proposedPrice, roomRef, room.MonthlyRent)
	e.events.Event("negotiation_proposed", map[string]interface{}{
		"negotiation_id": n.ID,
		"room_ref":       roomRef,
		"proposed_price": proposedPrice,
		"original_price": room.MonthlyRent,
	})
	e.notifier.Notify(negotiationEvent("negotiation.proposed", n, proposerRef, now))
	return n, nil
}

// Respond applies one move. A concurrent move on the same negotiation makes
// the loser fail with a conflict.
func (e *Engine) Respond(ctx context.Context, negotiationID, actorRef string, action Action, counterPrice int64, message string) (*market.Negotiation, error) {
	n, err := e.client.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	next, err := Transition(*n, Move{
		Action:       action,
		ActorRef:     actorRef,
		CounterPrice: counterPrice,
		Message:      message,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := e.client.UpdateNegotiation(ctx, &next); err != nil {
		return nil, err
	}

	log.Printf("[Negotiation] %s: %s by %s -> %s", negotiationID, action, actorRef, next.Status)
	data := map[string]interface{}{
		"negotiation_id":  negotiationID,
		"action":          string(action),
		"actor_ref":       actorRef,
		"previous_status": string(n.Status),
		"status":          string(next.Status),
	}
	if next.FinalPrice != nil {
		data["final_price"] = *next.FinalPrice
	}
	e.events.Event("negotiation_"+string(next.Status), data)
	e.notifier.Notify(negotiationEvent("negotiation."+string(next.Status), &next, actorRef, now))
	return &next, nil
}

// Get returns a negotiation visible to one of its parties.
func (e *Engine) Get(ctx context.Context, negotiationID, actorRef string) (*market.Negotiation, error) {
	n, err := e.client.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if actorRef != n.ProposerRef && actorRef != n.CounterpartyRef {
		return nil, market.Authorizationf("negotiation %s is not visible to %s", negotiationID, actorRef)
	}
	return n, nil
}

// ListByActor returns the negotiations an actor is party to, newest first.
func (e *Engine) ListByActor(ctx context.Context, actorRef string) ([]*market.Negotiation, error) {
	ids, err := e.client.ActorEntityIDs(ctx, market.KindNegotiation, actorRef)
	if err != nil {
		return nil, err
	}
	out := make([]*market.Negotiation, 0, len(ids))
	for _, id := range ids {
		n, err := e.client.GetNegotiation(ctx, id)
		if err != nil {
			if market.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAtMs > out[j].CreatedAtMs })
	return out, nil
}

func negotiationEvent(eventType string, n *market.Negotiation, actorRef string, now time.Time) *market.Event {
	other := n.CounterpartyRef
	if actorRef == n.CounterpartyRef {
		other = n.ProposerRef
	}
	e := notify.NewEvent(eventType, market.KindNegotiation, n.ID, actorRef, now, other)
	e.Data["room_ref"] = n.RoomRef
	e.Data["status"] = string(n.Status)
	if n.FinalPrice != nil {
		e.Data["final_price"] = *n.FinalPrice
	}
	return e
}
