package visit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/testutil"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

var (
	tomorrow  = market.Slot{Date: "2025-03-11", Time: "10:30"}
	dayAfter  = market.Slot{Date: "2025-03-12", Time: "16:00"}
	yesterday = market.Slot{Date: "2025-03-09", Time: "10:00"}
)

func setupScheduler(t *testing.T) (*Scheduler, *testutil.Env) {
	env := testutil.NewEnv(t)
	return NewScheduler(env.Client, env.Store, env.Clock, env.Recorder, time.UTC), env
}

func request(t *testing.T, s *Scheduler) *market.VisitRequest {
	t.Helper()
	v, err := s.Request(context.Background(), testutil.Student, testutil.Property, testutil.Owner, tomorrow, "after class")
	require.NoError(t, err)
	return v
}

func TestRequestValidation(t *testing.T) {
	s, _ := setupScheduler(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		requester string
		property  string
		recipient string
		slot      market.Slot
	}{
		{"bad date", testutil.Student, testutil.Property, testutil.Owner, market.Slot{Date: "11/03/2025", Time: "10:00"}},
		{"bad time", testutil.Student, testutil.Property, testutil.Owner, market.Slot{Date: "2025-03-11", Time: "10am"}},
		{"missing time", testutil.Student, testutil.Property, testutil.Owner, market.Slot{Date: "2025-03-11"}},
		{"past slot", testutil.Student, testutil.Property, testutil.Owner, yesterday},
		{"unknown property", testutil.Student, "nope", testutil.Owner, tomorrow},
		{"recipient does not own property", testutil.Student, testutil.Property, testutil.OtherOwner, tomorrow},
		{"owner visits own property", testutil.Owner, testutil.Property, testutil.Owner, tomorrow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Request(ctx, tt.requester, tt.property, tt.recipient, tt.slot, "")
			assert.ErrorIs(t, err, market.ErrValidation)
		})
	}

	v := request(t, s)
	assert.Equal(t, market.VisitPending, v.Status)
	assert.Equal(t, tomorrow, v.Preferred)
	assert.True(t, v.Confirmed.IsZero())
}

func TestTransition(t *testing.T) {
	now := testutil.Start
	base := market.VisitRequest{
		ID:           "v1",
		RequesterRef: testutil.Student,
		RecipientRef: testutil.Owner,
		Status:       market.VisitPending,
		Preferred:    tomorrow,
	}
	with := func(status market.VisitStatus, confirmed market.Slot, rescheduled bool) market.VisitRequest {
		v := base
		v.Status = status
		v.Confirmed = confirmed
		v.Rescheduled = rescheduled
		return v
	}

	tests := []struct {
		name    string
		visit   market.VisitRequest
		move    Move
		at      time.Time
		want    market.VisitStatus
		wantErr error
	}{
		{"confirm", base, Move{Action: ActionConfirm, ActorRef: testutil.Owner, Slot: tomorrow}, now, market.VisitConfirmed, nil},
		{"confirm needs slot", base, Move{Action: ActionConfirm, ActorRef: testutil.Owner}, now, "", market.ErrValidation},
		{"confirm by requester", base, Move{Action: ActionConfirm, ActorRef: testutil.Student, Slot: tomorrow}, now, "", market.ErrAuthorization},
		{"reject", base, Move{Action: ActionReject, ActorRef: testutil.Owner}, now, market.VisitRejected, nil},
		{"reschedule", base, Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: dayAfter}, now, market.VisitRescheduled, nil},
		{"reschedule to the past", base, Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: yesterday}, now, "", market.ErrValidation},
		{"second reschedule", with(market.VisitConfirmed, dayAfter, true), Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: tomorrow}, now, "", market.ErrInvalidState},
		{"reschedule confirmed", with(market.VisitConfirmed, tomorrow, false), Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: dayAfter}, now, "", market.ErrInvalidState},
		{"answer own reschedule", with(market.VisitRescheduled, dayAfter, true), Move{Action: ActionConfirm, ActorRef: testutil.Owner, Slot: dayAfter}, now, "", market.ErrInvalidState},
		{"complete early", with(market.VisitConfirmed, tomorrow, false), Move{Action: ActionComplete, ActorRef: testutil.Owner}, now, "", market.ErrInvalidState},
		{"complete after slot", with(market.VisitConfirmed, tomorrow, false), Move{Action: ActionComplete, ActorRef: testutil.Owner}, now.AddDate(0, 0, 2), market.VisitCompleted, nil},
		{"complete pending", base, Move{Action: ActionComplete, ActorRef: testutil.Owner}, now.AddDate(0, 0, 2), "", market.ErrInvalidState},
		{"terminal", with(market.VisitCancelled, market.Slot{}, false), Move{Action: ActionReject, ActorRef: testutil.Owner}, now, "", market.ErrInvalidState},
		{"unknown action", base, Move{Action: "postpone", ActorRef: testutil.Owner}, now, "", market.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Transition(tt.visit, tt.move, tt.at, time.UTC)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.visit, next, "failed moves leave the visit unchanged")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, next.Status)
		})
	}
}

// Once confirmed, the owner's slot stands; only completion or cancellation remain.
func TestConfirmedVisitCannotBeRescheduled(t *testing.T) {
	s, env := setupScheduler(t)
	ctx := context.Background()
	v := request(t, s)

	confirmed, err := s.Respond(ctx, v.ID, Move{Action: ActionConfirm, ActorRef: testutil.Owner, Slot: tomorrow})
	require.NoError(t, err)

	_, err = s.Respond(ctx, v.ID, Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: dayAfter})
	assert.ErrorIs(t, err, market.ErrInvalidState)

	got, err := s.Get(ctx, v.ID, testutil.Student)
	require.NoError(t, err)
	assert.Equal(t, market.VisitConfirmed, got.Status)
	assert.Equal(t, tomorrow, got.Confirmed)
	assert.False(t, got.Rescheduled)
	assert.Equal(t, confirmed.Version, got.Version)
	assert.Equal(t, []string{"visit.requested", "visit.confirmed"}, env.Recorder.Types())
}

// A rescheduled visit cancelled by its requester is terminal; the owner can
// no longer respond.
func TestRescheduleThenCancel(t *testing.T) {
	s, env := setupScheduler(t)
	ctx := context.Background()
	v := request(t, s)

	rescheduled, err := s.Respond(ctx, v.ID, Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: dayAfter, Notes: "busy tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, market.VisitRescheduled, rescheduled.Status)
	assert.Equal(t, dayAfter, rescheduled.Confirmed)
	assert.Equal(t, "busy tomorrow", rescheduled.OwnerNotes)

	cancelled, err := s.Cancel(ctx, v.ID, testutil.Student)
	require.NoError(t, err)
	assert.Equal(t, market.VisitCancelled, cancelled.Status)

	_, err = s.Respond(ctx, v.ID, Move{Action: ActionConfirm, ActorRef: testutil.Owner, Slot: dayAfter})
	assert.ErrorIs(t, err, market.ErrInvalidState)

	assert.Equal(t, []string{"visit.requested", "visit.rescheduled", "visit.cancelled"}, env.Recorder.Types())
}

func TestAnswerReschedule(t *testing.T) {
	s, env := setupScheduler(t)
	ctx := context.Background()

	v := request(t, s)
	_, err := s.AnswerReschedule(ctx, v.ID, testutil.Student, true)
	assert.ErrorIs(t, err, market.ErrInvalidState, "nothing to answer yet")

	_, err = s.Respond(ctx, v.ID, Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: dayAfter})
	require.NoError(t, err)

	_, err = s.AnswerReschedule(ctx, v.ID, testutil.Owner, true)
	assert.ErrorIs(t, err, market.ErrAuthorization)

	confirmed, err := s.AnswerReschedule(ctx, v.ID, testutil.Student, true)
	require.NoError(t, err)
	assert.Equal(t, market.VisitConfirmed, confirmed.Status)
	assert.Equal(t, dayAfter, confirmed.EffectiveSlot())

	_, err = s.Respond(ctx, v.ID, Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: tomorrow})
	assert.ErrorIs(t, err, market.ErrInvalidState, "one reschedule round")

	declined := request(t, s)
	_, err = s.Respond(ctx, declined.ID, Move{Action: ActionReschedule, ActorRef: testutil.Owner, Slot: market.Slot{Date: "2025-03-20", Time: "11:00"}})
	require.NoError(t, err)
	got, err := s.AnswerReschedule(ctx, declined.ID, testutil.Student, false)
	require.NoError(t, err)
	assert.Equal(t, market.VisitCancelled, got.Status)

	env.Clock.Set(time.Date(2025, 3, 12, 17, 0, 0, 0, time.UTC))
	done, err := s.Respond(ctx, v.ID, Move{Action: ActionComplete, ActorRef: testutil.Owner})
	require.NoError(t, err)
	assert.Equal(t, market.VisitCompleted, done.Status)
}

func TestCancel(t *testing.T) {
	s, env := setupScheduler(t)
	ctx := context.Background()

	v := request(t, s)
	_, err := s.Cancel(ctx, v.ID, testutil.Student2)
	assert.ErrorIs(t, err, market.ErrAuthorization)

	env.Clock.Set(time.Date(2025, 3, 11, 10, 30, 0, 0, time.UTC))
	_, err = s.Cancel(ctx, v.ID, testutil.Owner)
	assert.ErrorIs(t, err, market.ErrInvalidState, "slot has started")

	env.Clock.Set(testutil.Start)
	got, err := s.Cancel(ctx, v.ID, testutil.Owner)
	require.NoError(t, err)
	assert.Equal(t, market.VisitCancelled, got.Status)
}

func TestLocalTimezone(t *testing.T) {
	env := testutil.NewEnv(t)
	ist := time.FixedZone("IST", 5*3600+1800)
	s := NewScheduler(env.Client, env.Store, env.Clock, env.Recorder, ist)

	// 09:00 UTC is 14:30 IST, so 14:00 today has already passed.
	_, err := s.Request(context.Background(), testutil.Student, testutil.Property, testutil.Owner,
		market.Slot{Date: "2025-03-10", Time: "14:00"}, "")
	assert.ErrorIs(t, err, market.ErrValidation)

	_, err = s.Request(context.Background(), testutil.Student, testutil.Property, testutil.Owner,
		market.Slot{Date: "2025-03-10", Time: "15:00"}, "")
	assert.NoError(t, err)
}

func TestVisibility(t *testing.T) {
	s, _ := setupScheduler(t)
	ctx := context.Background()
	v := request(t, s)

	_, err := s.Get(ctx, v.ID, testutil.Student2)
	assert.ErrorIs(t, err, market.ErrAuthorization)

	got, err := s.Get(ctx, v.ID, testutil.Owner)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	_, err = s.Get(ctx, "missing", testutil.Owner)
	assert.ErrorIs(t, err, market.ErrNotFound)

	for _, actor := range []string{testutil.Student, testutil.Owner} {
		list, err := s.ListByActor(ctx, actor)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
	list, err := s.ListByActor(ctx, testutil.Student2)
	require.NoError(t, err)
	assert.Empty(t, list)
}
