// Package app wires the marketplace engines from a validated configuration.
// Both nestd and nestctl build on it.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/booking"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/config"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/negotiation"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/notify"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/payment"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/sharing"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/sweep"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/visit"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Connect opens the market client for cfg and verifies Redis is reachable.
func Connect(ctx context.Context, cfg *config.NestConfig) (*market.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client, err := market.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create market client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis not accessible at %s: %w", cfg.Redis.URL, err)
	}
	return client, nil
}

// Engines holds every coordination engine sharing one store.
type Engines struct {
	Client       *market.Client
	Directory    *directory.Store
	Registry     *sharing.Registry
	Matcher      *sharing.Matcher
	Negotiations *negotiation.Engine
	Ledger       *booking.Ledger
	Visits       *visit.Scheduler
	Payments     *payment.Authority // nil without payments.key_secret
	Sweeper      *sweep.Sweeper
}

// Build creates the engines for cfg. Transitions are reported to notifier.
func Build(cfg *config.NestConfig, client *market.Client, clk clock.Clock, notifier notify.Notifier) (*Engines, error) {
	store := directory.NewStore(client)
	loc := cfg.Location()

	registry := sharing.NewRegistry(client, store, store, clk, notifier, cfg.ReservationTTL())
	ledger := booking.NewLedger(client, store, clk, notifier, cfg.MaxDurationMonths(), loc)

	e := &Engines{
		Client:       client,
		Directory:    store,
		Registry:     registry,
		Matcher:      sharing.NewMatcher(client, registry, store, clk, notifier),
		Negotiations: negotiation.NewEngine(client, store, clk, notifier),
		Ledger:       ledger,
		Visits:       visit.NewScheduler(client, store, clk, notifier, loc),
		Sweeper:      sweep.New(registry, ledger, clk, cfg.SweepInterval(), cfg.Instance),
	}

	if cfg.Payments.KeySecret != "" {
		authority, err := payment.NewAuthority(client, ledger, cfg.Payments.KeySecret, cfg.Payments.Currency, clk)
		if err != nil {
			return nil, err
		}
		e.Payments = authority
	}
	return e, nil
}
