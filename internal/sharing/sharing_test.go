package sharing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/testutil"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

type fixture struct {
	env      *testutil.Env
	registry *Registry
	matcher  *Matcher
}

func setup(t *testing.T) *fixture {
	env := testutil.NewEnv(t)
	reg := NewRegistry(env.Client, env.Store, env.Store, env.Clock, env.Recorder, 0)
	return &fixture{
		env:      env,
		registry: reg,
		matcher:  NewMatcher(env.Client, reg, env.Store, env.Clock, env.Recorder),
	}
}

func (f *fixture) listing(t *testing.T, max int) *market.Listing {
	t.Helper()
	l, err := f.registry.Create(context.Background(), testutil.Student, CreateInput{
		PropertyRef:     testutil.Property,
		MaxParticipants: max,
		CostSharing:     market.CostSharing{RentPerPerson: 5000, DepositPerPerson: 10000},
	})
	require.NoError(t, err)
	return l
}

func TestCreateListing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	l := f.listing(t, 3)
	assert.Equal(t, market.ListingActive, l.Status)
	require.Len(t, l.Participants, 1)
	assert.Equal(t, testutil.Student, l.Participants[0].UserRef)
	assert.True(t, l.AvailableFrom.Equal(testutil.Start))

	mine, err := f.registry.ListByActor(ctx, testutil.Student)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, l.ID, mine[0].ID)

	assert.Equal(t, []string{"listing.created"}, f.env.Recorder.Types())
}

func TestCreateListingValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		initiator string
		in        CreateInput
	}{
		{"too few slots", testutil.Student, CreateInput{PropertyRef: testutil.Property, MaxParticipants: 1}},
		{"unknown property", testutil.Student, CreateInput{PropertyRef: "nope", MaxParticipants: 2}},
		{"owner cannot share", testutil.Owner, CreateInput{PropertyRef: testutil.Property, MaxParticipants: 2}},
		{"unverified student", testutil.Unverified, CreateInput{PropertyRef: testutil.Property, MaxParticipants: 2}},
		{"inverted window", testutil.Student, CreateInput{
			PropertyRef: testutil.Property, MaxParticipants: 2,
			AvailableFrom: testutil.Start.AddDate(0, 1, 0), AvailableTill: testutil.Start,
		}},
		{"inverted ages", testutil.Student, CreateInput{
			PropertyRef: testutil.Property, MaxParticipants: 2,
			Requirements: market.Requirements{AgeMin: 30, AgeMax: 20},
		}},
		{"negative rent share", testutil.Student, CreateInput{
			PropertyRef: testutil.Property, MaxParticipants: 2,
			CostSharing: market.CostSharing{RentPerPerson: -1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.Create(ctx, tt.initiator, tt.in)
			assert.ErrorIs(t, err, market.ErrValidation)
		})
	}
}

// A listing for three fills with two acceptances; the next acceptance is
// turned into a "listing full" rejection.
func TestListingFillsThenRejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 3)

	var apps []*market.Application
	for _, s := range []string{testutil.Student2, testutil.Student3, testutil.Student4} {
		app, err := f.matcher.Apply(ctx, l.ID, s, "hello")
		require.NoError(t, err)
		apps = append(apps, app)
	}

	accepted, err := f.matcher.Respond(ctx, apps[0].ID, testutil.Student, DecisionAccept, "welcome")
	require.NoError(t, err)
	assert.Equal(t, market.ApplicationAccepted, accepted.Status)
	assert.Equal(t, "welcome", accepted.ResponderMessage)

	_, err = f.matcher.Respond(ctx, apps[1].ID, testutil.Student, DecisionAccept, "")
	require.NoError(t, err)

	got, err := f.registry.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ListingFull, got.Status)
	assert.Len(t, got.Participants, 3)

	_, err = f.matcher.Respond(ctx, apps[2].ID, testutil.Student, DecisionAccept, "")
	assert.ErrorIs(t, err, market.ErrConflict)
	assert.ErrorIs(t, err, market.ErrSlotUnavailable)

	third, err := f.env.Client.GetApplication(ctx, apps[2].ID)
	require.NoError(t, err)
	assert.Equal(t, market.ApplicationRejected, third.Status)
	assert.Equal(t, ListingFullMessage, third.ResponderMessage)

	got, err = f.registry.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 3)

	assert.Contains(t, f.env.Recorder.Types(), "listing.full")
}

func TestConcurrentAcceptsOnLastSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 2)

	var apps []*market.Application
	for _, s := range []string{testutil.Student2, testutil.Student3, testutil.Student4} {
		app, err := f.matcher.Apply(ctx, l.ID, s, "")
		require.NoError(t, err)
		apps = append(apps, app)
	}

	var wg sync.WaitGroup
	results := make([]error, len(apps))
	for i, app := range apps {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, results[i] = f.matcher.Respond(ctx, id, testutil.Student, DecisionAccept, "")
		}(i, app.ID)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, market.ErrConflict)
	}
	assert.Equal(t, 1, winners)

	got, err := f.registry.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 2)
	assert.Equal(t, market.ListingFull, got.Status)

	all, err := f.matcher.ListForListing(ctx, l.ID, testutil.Student)
	require.NoError(t, err)
	accepted := 0
	for _, app := range all {
		assert.NotEqual(t, market.ApplicationPending, app.Status)
		if app.Status == market.ApplicationAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestApplyGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 3)

	t.Run("unverified applicant", func(t *testing.T) {
		_, err := f.matcher.Apply(ctx, l.ID, testutil.Unverified, "")
		assert.ErrorIs(t, err, market.ErrConflict)
	})

	t.Run("initiator is already a participant", func(t *testing.T) {
		_, err := f.matcher.Apply(ctx, l.ID, testutil.Student, "")
		assert.ErrorIs(t, err, market.ErrConflict)
	})

	t.Run("one pending application per pair", func(t *testing.T) {
		_, err := f.matcher.Apply(ctx, l.ID, testutil.Student2, "")
		require.NoError(t, err)
		_, err = f.matcher.Apply(ctx, l.ID, testutil.Student2, "again")
		assert.ErrorIs(t, err, market.ErrConflict)
	})

	t.Run("unknown listing", func(t *testing.T) {
		_, err := f.matcher.Apply(ctx, "00000000-0000-0000-0000-000000000000", testutil.Student2, "")
		assert.ErrorIs(t, err, market.ErrNotFound)
	})
}

func TestRespondGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 3)
	app, err := f.matcher.Apply(ctx, l.ID, testutil.Student2, "")
	require.NoError(t, err)

	_, err = f.matcher.Respond(ctx, app.ID, testutil.Student3, DecisionAccept, "")
	assert.ErrorIs(t, err, market.ErrAuthorization)

	_, err = f.matcher.Respond(ctx, app.ID, testutil.Student, "maybe", "")
	assert.ErrorIs(t, err, market.ErrValidation)

	rejected, err := f.matcher.Respond(ctx, app.ID, testutil.Student, DecisionReject, "sorry")
	require.NoError(t, err)
	assert.Equal(t, market.ApplicationRejected, rejected.Status)
	assert.NotZero(t, rejected.RespondedAtMs)

	_, err = f.matcher.Respond(ctx, app.ID, testutil.Student, DecisionAccept, "")
	assert.ErrorIs(t, err, market.ErrInvalidState)

	// a rejected applicant may apply again
	_, err = f.matcher.Apply(ctx, l.ID, testutil.Student2, "second try")
	assert.NoError(t, err)
}

func TestWithdraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 3)
	app, err := f.matcher.Apply(ctx, l.ID, testutil.Student2, "")
	require.NoError(t, err)

	_, err = f.matcher.Withdraw(ctx, app.ID, testutil.Student3)
	assert.ErrorIs(t, err, market.ErrAuthorization)

	withdrawn, err := f.matcher.Withdraw(ctx, app.ID, testutil.Student2)
	require.NoError(t, err)
	assert.Equal(t, market.ApplicationWithdrawn, withdrawn.Status)

	_, err = f.matcher.Withdraw(ctx, app.ID, testutil.Student2)
	assert.ErrorIs(t, err, market.ErrInvalidState)
}

func TestGetApplicationVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 3)
	app, err := f.matcher.Apply(ctx, l.ID, testutil.Student2, "")
	require.NoError(t, err)

	_, err = f.matcher.Get(ctx, app.ID, testutil.Student2)
	assert.NoError(t, err)
	_, err = f.matcher.Get(ctx, app.ID, testutil.Student)
	assert.NoError(t, err)
	_, err = f.matcher.Get(ctx, app.ID, testutil.Student3)
	assert.ErrorIs(t, err, market.ErrAuthorization)

	_, err = f.matcher.ListForListing(ctx, l.ID, testutil.Student2)
	assert.ErrorIs(t, err, market.ErrAuthorization)
}

func TestCloseRejectsPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 3)

	a1, err := f.matcher.Apply(ctx, l.ID, testutil.Student2, "")
	require.NoError(t, err)
	a2, err := f.matcher.Apply(ctx, l.ID, testutil.Student3, "")
	require.NoError(t, err)
	_, err = f.matcher.Withdraw(ctx, a2.ID, testutil.Student3)
	require.NoError(t, err)

	_, err = f.registry.Close(ctx, l.ID, testutil.Student2)
	assert.ErrorIs(t, err, market.ErrAuthorization)

	closed, err := f.registry.Close(ctx, l.ID, testutil.Student)
	require.NoError(t, err)
	assert.Equal(t, market.ListingClosed, closed.Status)

	got, err := f.env.Client.GetApplication(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ApplicationRejected, got.Status)
	assert.NotEmpty(t, got.ResponderMessage)

	got, err = f.env.Client.GetApplication(ctx, a2.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ApplicationWithdrawn, got.Status)

	// idempotent
	again, err := f.registry.Close(ctx, l.ID, testutil.Student)
	require.NoError(t, err)
	assert.Equal(t, closed.Version, again.Version)

	_, err = f.registry.Expire(ctx, l.ID, testutil.Student)
	assert.ErrorIs(t, err, market.ErrInvalidState)

	_, err = f.matcher.Apply(ctx, l.ID, testutil.Student4, "")
	assert.ErrorIs(t, err, market.ErrConflict)
}

// An application written after its listing closed is refused in the same
// step that checks the status, so nothing is left pending on a closed listing.
func TestApplyRacingClose(t *testing.T) {
	ctx := context.Background()

	t.Run("application lands after close", func(t *testing.T) {
		f := setup(t)
		l := f.listing(t, 3)
		_, err := f.registry.Close(ctx, l.ID, testutil.Student)
		require.NoError(t, err)

		late := &market.Application{
			ID:           uuid.New().String(),
			ListingRef:   l.ID,
			ApplicantRef: testutil.Student2,
			Status:       market.ApplicationPending,
			AppliedAtMs:  testutil.Start.UnixMilli(),
			UpdatedAtMs:  testutil.Start.UnixMilli(),
		}
		err = f.env.Client.CreateApplication(ctx, late)
		assert.ErrorIs(t, err, market.ErrConflict)

		_, err = f.env.Client.GetApplication(ctx, late.ID)
		assert.ErrorIs(t, err, market.ErrNotFound)
	})

	t.Run("concurrent applies and close", func(t *testing.T) {
		f := setup(t)
		l := f.listing(t, 4)

		var wg sync.WaitGroup
		for _, applicant := range []string{testutil.Student2, testutil.Student3, testutil.Student4} {
			wg.Add(1)
			go func(applicant string) {
				defer wg.Done()
				_, err := f.matcher.Apply(ctx, l.ID, applicant, "")
				if err != nil {
					assert.ErrorIs(t, err, market.ErrConflict)
				}
			}(applicant)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.registry.Close(ctx, l.ID, testutil.Student)
			assert.NoError(t, err)
		}()
		wg.Wait()

		ids, err := f.env.Client.ListingApplicationIDs(ctx, l.ID)
		require.NoError(t, err)
		for _, id := range ids {
			a, err := f.env.Client.GetApplication(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, market.ApplicationRejected, a.Status, "application %s", id)
		}
	})
}

func TestExpireThenClose(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 2)

	expired, err := f.registry.Expire(ctx, l.ID, testutil.Student)
	require.NoError(t, err)
	assert.Equal(t, market.ListingExpired, expired.Status)

	closed, err := f.registry.Close(ctx, l.ID, testutil.Student)
	require.NoError(t, err)
	assert.Equal(t, market.ListingClosed, closed.Status)
}

func TestSweepExpiresEndedListings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ending, err := f.registry.Create(ctx, testutil.Student, CreateInput{
		PropertyRef:     testutil.Property,
		MaxParticipants: 2,
		AvailableFrom:   testutil.Start,
		AvailableTill:   testutil.Start.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	open := f.listing(t, 2)

	app, err := f.matcher.Apply(ctx, ending.ID, testutil.Student2, "")
	require.NoError(t, err)
	_, err = f.registry.ReserveSlot(ctx, open.ID)
	require.NoError(t, err)

	later := testutil.Start.AddDate(0, 0, 8)
	res, err := f.registry.Sweep(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Reaped)

	got, err := f.registry.Get(ctx, ending.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ListingExpired, got.Status)

	pending, err := f.env.Client.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ApplicationRejected, pending.Status)

	// re-running changes nothing
	res, err = f.registry.Sweep(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
}

func TestCommitAfterReservationTimeout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.listing(t, 2)

	res, err := f.registry.ReserveSlot(ctx, l.ID)
	require.NoError(t, err)

	f.env.Clock.Advance(DefaultReservationTTL + time.Second)

	_, err = f.registry.CommitSlot(ctx, res, testutil.Student2, nil)
	assert.True(t, errors.Is(err, market.ErrReservationExpired))

	got, err := f.registry.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)
}
