// Package sweep runs the time-driven transitions: listing expiry, reaping of
// abandoned slot reservations, and booking activation and completion.
// Every pass is idempotent, so several sweepers may run against one instance.
package sweep

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/booking"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/eventlog"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/sharing"
)

// DefaultInterval is the time between sweeps.
const DefaultInterval = time.Minute

// Listings sweeps room-sharing listings.
type Listings interface {
	Sweep(ctx context.Context, now time.Time) (sharing.SweepResult, error)
}

// Bookings sweeps the booking ledger.
type Bookings interface {
	Sweep(ctx context.Context, now time.Time) (booking.SweepResult, error)
}

// Result is the outcome of one sweep.
type Result struct {
	Listings sharing.SweepResult `json:"listings"`
	Bookings booking.SweepResult `json:"bookings"`
}

// Sweeper runs both sweeps on an interval.
type Sweeper struct {
	listings Listings
	bookings Bookings
	clock    clock.Clock
	interval time.Duration
	events   *eventlog.Logger
}

// New creates a Sweeper. A non-positive interval uses DefaultInterval.
func New(listings Listings, bookings Bookings, clk clock.Clock, interval time.Duration, instance string) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		listings: listings,
		bookings: bookings,
		clock:    clk,
		interval: interval,
		events:   eventlog.New("sweeper", instance),
	}
}

// RunOnce sweeps listings and bookings concurrently at the current time.
// Both sweeps run to completion; the first error is returned.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	now := s.clock.Now()
	var res Result
	var g errgroup.Group

	g.Go(func() error {
		r, err := s.listings.Sweep(ctx, now)
		res.Listings = r
		return err
	})
	g.Go(func() error {
		r, err := s.bookings.Sweep(ctx, now)
		res.Bookings = r
		return err
	})
	err := g.Wait()

	if res != (Result{}) {
		s.events.Event("sweep_completed", map[string]interface{}{
			"listings_expired":    res.Listings.Expired,
			"reservations_reaped": res.Listings.Reaped,
			"bookings_activated":  res.Bookings.Activated,
			"bookings_completed":  res.Bookings.Completed,
		})
	}
	return res, err
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// Errors are logged and the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("[Sweeper] Started, sweeping every %s", s.interval)

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[Sweeper] Sweep failed: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Printf("[Sweeper] Context cancelled, stopping")
			return
		case <-ticker.C:
		}
	}
}
