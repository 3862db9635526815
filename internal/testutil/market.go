// Package testutil provides shared fixtures for engine and API tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/notify"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Fixture references seeded by NewEnv.
const (
	Owner       = "owner-1"
	OtherOwner  = "owner-2"
	Student     = "student-1"
	Student2    = "student-2"
	Student3    = "student-3"
	Student4    = "student-4"
	Unverified  = "student-unverified"
	Admin       = "admin-1"
	Property    = "prop-1"
	Property2   = "prop-2"
	Room        = "room-1"
	RoomRent    = int64(10000)
	RoomDeposit = int64(20000)
	RoomUpkeep  = int64(900)
)

// Start is the fixed instant fake clocks start at: Monday 10 March 2025, 09:00 UTC.
var Start = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// Env bundles a miniredis-backed market with seeded reference data.
type Env struct {
	Redis    *miniredis.Miniredis
	Client   *market.Client
	Store    *directory.Store
	Clock    *clock.FakeClock
	Recorder *notify.Recorder
}

// NewEnv starts miniredis, seeds the fixture catalog and returns the environment.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := market.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, Fixtures().Apply(context.Background(), client))

	return &Env{
		Redis:    mr,
		Client:   client,
		Store:    directory.NewStore(client),
		Clock:    clock.Fake(Start),
		Recorder: &notify.Recorder{},
	}
}

// Fixtures returns the reference data every engine test starts from.
func Fixtures() *directory.Seed {
	verified := func(id string, role market.Role) market.Actor {
		return market.Actor{ID: id, Name: id, Role: role, EmailVerified: true, PhoneVerified: true}
	}
	return &directory.Seed{
		Actors: []market.Actor{
			verified(Owner, market.RoleOwner),
			verified(OtherOwner, market.RoleOwner),
			verified(Student, market.RoleStudent),
			verified(Student2, market.RoleStudent),
			verified(Student3, market.RoleStudent),
			verified(Student4, market.RoleStudent),
			verified(Admin, market.RoleAdmin),
			{ID: Unverified, Name: Unverified, Role: market.RoleStudent, EmailVerified: true},
		},
		Properties: []market.Property{
			{ID: Property, Name: "Green Residency", OwnerRef: Owner, City: "Pune"},
			{ID: Property2, Name: "Lake View", OwnerRef: OtherOwner, City: "Pune"},
		},
		Rooms: []market.Room{
			{ID: Room, PropertyRef: Property, OwnerRef: Owner, MonthlyRent: RoomRent, SecurityDeposit: RoomDeposit, MaintenanceMonthly: RoomUpkeep},
		},
	}
}
