package watch

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/booking"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/testutil"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// syncBuffer is written by the stream goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFilter(t *testing.T) {
	e := &market.Event{Type: "visit.requested", Kind: market.KindVisit, ActorRef: "student-1", Recipients: []string{"owner-1"}}

	assert.True(t, Filter{}.matches(e))
	assert.True(t, Filter{ActorRef: "student-1"}.matches(e))
	assert.True(t, Filter{ActorRef: "owner-1"}.matches(e))
	assert.False(t, Filter{ActorRef: "owner-2"}.matches(e))
	assert.True(t, Filter{Kind: market.KindVisit}.matches(e))
	assert.False(t, Filter{Kind: market.KindBooking, ActorRef: "owner-1"}.matches(e))
}

func TestStreamEvents(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	for _, format := range []OutputFormat{OutputFormatDefault, OutputFormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			env := testutil.NewEnv(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			out := &syncBuffer{}
			done := make(chan error, 1)
			go func() {
				done <- StreamEvents(ctx, env.Client, format, Filter{ActorRef: testutil.Owner}, time.UTC, out, &bytes.Buffer{})
			}()

			publish := func(e *market.Event) {
				require.NoError(t, env.Client.PublishEvent(context.Background(), e))
			}
			// The subscription may not be live yet; keep publishing until one lands.
			require.Eventually(t, func() bool {
				publish(&market.Event{Type: "booking.created", Kind: market.KindBooking, EntityID: "b-1", Recipients: []string{testutil.Owner}})
				return strings.Contains(out.String(), "booking.created")
			}, 2*time.Second, 20*time.Millisecond)

			publish(&market.Event{Type: "visit.requested", Kind: market.KindVisit, EntityID: "v-other", Recipients: []string{testutil.OtherOwner}})
			publish(&market.Event{Type: "visit.cancelled", Kind: market.KindVisit, EntityID: "v-1", ActorRef: testutil.Owner})
			require.Eventually(t, func() bool {
				return strings.Contains(out.String(), "visit.cancelled")
			}, 2*time.Second, 20*time.Millisecond)

			cancel()
			require.NoError(t, <-done)
			assert.NotContains(t, out.String(), "v-other")
			if format == OutputFormatJSON {
				assert.Contains(t, out.String(), `"entity_id":"v-1"`)
			}
		})
	}

	env := testutil.NewEnv(t)
	err := StreamEvents(context.Background(), env.Client, OutputFormat("xml"), Filter{}, time.UTC, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown output format")
}

func TestPollForBookingStatus(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ledger := booking.NewLedger(env.Client, env.Store, env.Clock, env.Recorder, 0, time.UTC)

	b, err := ledger.Create(ctx, testutil.Student, booking.CreateInput{
		RoomRef:        testutil.Room,
		MoveInDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		DurationMonths: 3,
	})
	require.NoError(t, err)

	t.Run("returns once the status is reached", func(t *testing.T) {
		go func() {
			time.Sleep(300 * time.Millisecond)
			ledger.OwnerRespond(ctx, b.ID, testutil.Owner, booking.DecisionConfirm)
		}()
		got, err := PollForBookingStatus(ctx, env.Client, b.ID, market.BookingConfirmed, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, market.BookingConfirmed, got.Status)
	})

	t.Run("times out", func(t *testing.T) {
		_, err := PollForBookingStatus(ctx, env.Client, b.ID, market.BookingActive, 300*time.Millisecond)
		assert.ErrorContains(t, err, "timeout waiting for booking")
	})

	t.Run("stops at a terminal status", func(t *testing.T) {
		_, err := ledger.Cancel(ctx, b.ID, testutil.Student)
		require.NoError(t, err)
		_, err = PollForBookingStatus(ctx, env.Client, b.ID, market.BookingActive, 2*time.Second)
		assert.ErrorContains(t, err, "can no longer become active")
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := PollForBookingStatus(ctx, env.Client, "missing", market.BookingConfirmed, time.Second)
		assert.ErrorIs(t, err, market.ErrNotFound)
	})
}
