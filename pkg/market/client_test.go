package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestListing(initiator string, max int) *Listing {
	return &Listing{
		ID:              uuid.New().String(),
		PropertyRef:     "prop-1",
		InitiatorRef:    initiator,
		MaxParticipants: max,
		Participants:    []Participant{{UserRef: initiator, JoinedAtMs: testNow.UnixMilli()}},
		Status:          ListingActive,
		CostSharing:     CostSharing{RentPerPerson: 6000, DepositPerPerson: 3000},
		AvailableFrom:   testNow,
		HouseRules:      []string{"no smoking"},
		CreatedAtMs:     testNow.UnixMilli(),
		UpdatedAtMs:     testNow.UnixMilli(),
	}
}

func newTestApplication(listingID, applicant string) *Application {
	return &Application{
		ID:           uuid.New().String(),
		ListingRef:   listingID,
		ApplicantRef: applicant,
		Status:       ApplicationPending,
		Message:      "hi",
		AppliedAtMs:  testNow.UnixMilli(),
		UpdatedAtMs:  testNow.UnixMilli(),
	}
}

func newTestBooking(total int64) *Booking {
	moveIn := testNow.AddDate(0, 0, 5)
	return &Booking{
		ID:              uuid.New().String(),
		RoomRef:         "room-1",
		PropertyRef:     "prop-1",
		StudentRef:      "student-1",
		OwnerRef:        "owner-1",
		Status:          BookingPending,
		MoveInDate:      moveIn,
		MoveOutDate:     moveIn.AddDate(0, 6, 0),
		DurationMonths:  6,
		MonthlyRent:     total,
		TotalAmount:     total,
		PaymentStatus:   PaymentPending,
		CreatedAtMs:     testNow.UnixMilli(),
		UpdatedAtMs:     testNow.UnixMilli(),
		SecurityDeposit: 0,
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestCreateAndGetListing(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 3)
	require.NoError(t, client.CreateListing(ctx, l))
	assert.Equal(t, int64(1), l.Version)

	got, err := client.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, ListingActive, got.Status)
	assert.Equal(t, 3, got.MaxParticipants)
	assert.Equal(t, []string{"no smoking"}, got.HouseRules)
	assert.Equal(t, int64(6000), got.CostSharing.RentPerPerson)
	assert.True(t, got.AvailableFrom.Equal(testNow))
	assert.True(t, got.AvailableTill.IsZero())
	require.Len(t, got.Participants, 1)
	assert.Equal(t, "alice", got.Participants[0].UserRef)

	assert.True(t, mr.Exists(ListingKey("test-instance", l.ID)))
	open, err := client.OpenListingIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{l.ID}, open)
	mine, err := client.ActorEntityIDs(ctx, KindListing, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{l.ID}, mine)
}

func TestCreateListingValidation(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 1)
	err := client.CreateListing(ctx, l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_participants must be >= 2")

	l = newTestListing("alice", 2)
	l.Participants = nil
	err = client.CreateListing(ctx, l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initiator must be the only participant")
}

func TestGetListingNotFound(t *testing.T) {
	client, _ := setupTestClient(t)

	_, err := client.GetListing(context.Background(), uuid.New().String())
	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestApplicationPendingGuard(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 3)
	require.NoError(t, client.CreateListing(ctx, l))
	listingID := l.ID
	first := newTestApplication(listingID, "bob")
	require.NoError(t, client.CreateApplication(ctx, first))
	assert.True(t, mr.Exists(PendingApplicationKey("test-instance", listingID, "bob")))

	second := newTestApplication(listingID, "bob")
	err := client.CreateApplication(ctx, second)
	assert.ErrorIs(t, err, ErrConflict)

	// A terminal transition frees the pair for a new application
	first.Status = ApplicationWithdrawn
	require.NoError(t, client.UpdateApplication(ctx, first))
	assert.Equal(t, int64(2), first.Version)
	assert.False(t, mr.Exists(PendingApplicationKey("test-instance", listingID, "bob")))

	require.NoError(t, client.CreateApplication(ctx, second))

	ids, err := client.ListingApplicationIDs(ctx, listingID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestCreateApplicationNeedsActiveListing(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("missing listing", func(t *testing.T) {
		err := client.CreateApplication(ctx, newTestApplication(uuid.New().String(), "bob"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	for _, status := range []ListingStatus{ListingClosed, ListingExpired} {
		t.Run(string(status), func(t *testing.T) {
			l := newTestListing("alice", 3)
			require.NoError(t, client.CreateListing(ctx, l))
			_, _, err := client.SetListingStatus(ctx, l.ID, status, testNow)
			require.NoError(t, err)

			a := newTestApplication(l.ID, "bob")
			err = client.CreateApplication(ctx, a)
			assert.ErrorIs(t, err, ErrConflict)
			assert.Contains(t, err.Error(), string(status))

			assert.False(t, mr.Exists(ApplicationKey("test-instance", a.ID)))
			assert.False(t, mr.Exists(PendingApplicationKey("test-instance", l.ID, "bob")))
			ids, err := client.ListingApplicationIDs(ctx, l.ID)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestUpdateApplicationStaleVersion(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 3)
	require.NoError(t, client.CreateListing(ctx, l))
	a := newTestApplication(l.ID, "bob")
	require.NoError(t, client.CreateApplication(ctx, a))

	stale := *a
	a.Status = ApplicationRejected
	require.NoError(t, client.UpdateApplication(ctx, a))

	stale.Status = ApplicationWithdrawn
	err := client.UpdateApplication(ctx, &stale)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := client.GetApplication(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ApplicationRejected, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateMissingEntity(t *testing.T) {
	client, _ := setupTestClient(t)

	a := newTestApplication(uuid.New().String(), "bob")
	a.Version = 1
	err := client.UpdateApplication(context.Background(), a)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReserveCommitRelease(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 2)
	require.NoError(t, client.CreateListing(ctx, l))

	r, err := client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
	require.NoError(t, err)

	// The only open slot is held, so a second reservation fails
	_, err = client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	require.NoError(t, client.ReleaseSlot(ctx, r))

	r, err = client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
	require.NoError(t, err)
	full, err := client.CommitSlot(ctx, r, "bob", testNow, nil)
	require.NoError(t, err)
	assert.True(t, full)

	got, err := client.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ListingFull, got.Status)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "bob", got.Participants[1].UserRef)

	_, err = client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	bobs, err := client.ActorEntityIDs(ctx, KindListing, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{l.ID}, bobs)
}

func TestReservationExpiry(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 2)
	require.NoError(t, client.CreateListing(ctx, l))

	r, err := client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
	require.NoError(t, err)

	later := testNow.Add(6 * time.Second)

	// Expired reservations no longer count against capacity
	r2, err := client.ReserveSlot(ctx, l.ID, later, 5*time.Second)
	require.NoError(t, err)

	// and cannot be committed
	_, err = client.CommitSlot(ctx, r, "bob", later, nil)
	assert.ErrorIs(t, err, ErrReservationExpired)

	full, err := client.CommitSlot(ctx, r2, "carol", later, nil)
	require.NoError(t, err)
	assert.True(t, full)
}

func TestReapReservations(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 4)
	require.NoError(t, client.CreateListing(ctx, l))

	_, err := client.ReserveSlot(ctx, l.ID, testNow, time.Second)
	require.NoError(t, err)
	_, err = client.ReserveSlot(ctx, l.ID, testNow, time.Minute)
	require.NoError(t, err)

	n, err := client.ReapReservations(ctx, l.ID, testNow.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCommitWithCompanion(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 3)
	require.NoError(t, client.CreateListing(ctx, l))
	a := newTestApplication(l.ID, "bob")
	require.NoError(t, client.CreateApplication(ctx, a))

	t.Run("stale companion aborts the commit", func(t *testing.T) {
		r, err := client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
		require.NoError(t, err)

		stale := *a
		stale.Version = 7
		stale.Status = ApplicationAccepted
		_, err = client.CommitSlot(ctx, r, "bob", testNow, client.ApplicationCompanion(&stale))
		assert.ErrorIs(t, err, ErrConflict)

		got, err := client.GetListing(ctx, l.ID)
		require.NoError(t, err)
		assert.Len(t, got.Participants, 1)
	})

	t.Run("participant and application change together", func(t *testing.T) {
		r, err := client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
		require.NoError(t, err)

		accepted := *a
		accepted.Status = ApplicationAccepted
		accepted.RespondedAtMs = testNow.UnixMilli()
		full, err := client.CommitSlot(ctx, r, "bob", testNow, client.ApplicationCompanion(&accepted))
		require.NoError(t, err)
		assert.False(t, full)

		got, err := client.GetApplication(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, ApplicationAccepted, got.Status)
		assert.Equal(t, int64(2), got.Version)
		assert.False(t, mr.Exists(PendingApplicationKey("test-instance", l.ID, "bob")))

		listing, err := client.GetListing(ctx, l.ID)
		require.NoError(t, err)
		assert.True(t, listing.HasParticipant("bob"))
		assert.Equal(t, ListingActive, listing.Status)
	})

	t.Run("duplicate participant is rejected", func(t *testing.T) {
		r, err := client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
		require.NoError(t, err)
		_, err = client.CommitSlot(ctx, r, "bob", testNow, nil)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestConcurrentReservationsNeverOverfill(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 3)
	require.NoError(t, client.CreateListing(ctx, l))

	const contenders = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := client.ReserveSlot(ctx, l.ID, testNow, 5*time.Second)
			if err != nil {
				assert.ErrorIs(t, err, ErrSlotUnavailable)
				return
			}
			_, err = client.CommitSlot(ctx, r, uuid.New().String(), testNow, nil)
			if assert.NoError(t, err) {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, committed)
	got, err := client.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 3)
	assert.Equal(t, ListingFull, got.Status)
}

func TestSetListingStatus(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	l := newTestListing("alice", 3)
	require.NoError(t, client.CreateListing(ctx, l))
	_, err := client.ReserveSlot(ctx, l.ID, testNow, time.Minute)
	require.NoError(t, err)

	prev, changed, err := client.SetListingStatus(ctx, l.ID, ListingExpired, testNow)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, ListingActive, prev)

	open, err := client.OpenListingIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// Expired listings may still be closed
	_, changed, err = client.SetListingStatus(ctx, l.ID, ListingClosed, testNow)
	require.NoError(t, err)
	assert.True(t, changed)

	_, changed, err = client.SetListingStatus(ctx, l.ID, ListingClosed, testNow)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = client.SetListingStatus(ctx, l.ID, ListingExpired, testNow)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, _, err = client.SetListingStatus(ctx, l.ID, ListingActive, testNow)
	assert.Error(t, err)

	_, err = client.ReserveSlot(ctx, l.ID, testNow, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRecordPayment(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	b := newTestBooking(10000)
	require.NoError(t, client.CreateBooking(ctx, b))

	res, err := client.RecordPayment(ctx, b.ID, "pay_1", 4000, testNow)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(4000), res.AmountPaid)
	assert.Equal(t, PaymentPartial, res.PaymentStatus)
	assert.Equal(t, BookingPending, res.BookingStatus)

	// Replaying the same external reference changes nothing
	res, err = client.RecordPayment(ctx, b.ID, "pay_1", 4000, testNow)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(4000), res.AmountPaid)

	res, err = client.RecordPayment(ctx, b.ID, "pay_2", 6000, testNow)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, res.PaymentStatus)

	got, err := client.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, int64(10000), got.AmountPaid)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)

	_, err = client.RecordPayment(ctx, uuid.New().String(), "pay_3", 1, testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBookingKeepsPaymentAxis(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	b := newTestBooking(10000)
	require.NoError(t, client.CreateBooking(ctx, b))

	_, err := client.RecordPayment(ctx, b.ID, "pay_1", 10000, testNow)
	require.NoError(t, err)

	// b still carries the pre-payment view of the payment axis
	b.Status = BookingConfirmed
	require.NoError(t, client.UpdateBooking(ctx, b, BookingPending))

	got, err := client.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingConfirmed, got.Status)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)

	pending, err := client.BookingIDsByStatus(ctx, BookingPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	confirmed, err := client.BookingIDsByStatus(ctx, BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, confirmed)
}

func TestCancelRequiresCurrentAmountPaid(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	b := newTestBooking(10000)
	require.NoError(t, client.CreateBooking(ctx, b))
	_, err := client.RecordPayment(ctx, b.ID, "pay_1", 2500, testNow)
	require.NoError(t, err)

	stale := *b
	stale.Status = BookingCancelled
	err = client.UpdateBooking(ctx, &stale, BookingPending)
	assert.ErrorIs(t, err, ErrConflict)

	fresh, err := client.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingPending, fresh.Status)

	fresh.Status = BookingCancelled
	require.NoError(t, client.UpdateBooking(ctx, fresh, BookingPending))

	res, err := client.RecordPayment(ctx, b.ID, "pay_2", 1000, testNow)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, BookingCancelled, res.BookingStatus)
	assert.Equal(t, int64(3500), res.AmountPaid)
}

func TestNegotiationSeedsOneBooking(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	first := newTestBooking(9000)
	first.NegotiationRef = "neg-1"
	require.NoError(t, client.CreateBooking(ctx, first))

	second := newTestBooking(9000)
	second.NegotiationRef = "neg-1"
	err := client.CreateBooking(ctx, second)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestOpenNegotiationGuard(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	n := &Negotiation{
		ID:              uuid.New().String(),
		RoomRef:         "room-1",
		ProposerRef:     "student-1",
		CounterpartyRef: "owner-1",
		OriginalPrice:   10000,
		ProposedPrice:   8000,
		Status:          NegotiationPending,
		Turn:            TurnCounterparty,
	}
	require.NoError(t, client.CreateNegotiation(ctx, n))

	dup := *n
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, client.CreateNegotiation(ctx, &dup), ErrConflict)

	counter := int64(9000)
	n.CounterOffer = &counter
	n.Status = NegotiationCountered
	n.Turn = TurnProposer
	require.NoError(t, client.UpdateNegotiation(ctx, n))
	assert.ErrorIs(t, client.CreateNegotiation(ctx, &dup), ErrConflict)

	n.Status = NegotiationWithdrawn
	n.Turn = TurnNone
	require.NoError(t, client.UpdateNegotiation(ctx, n))
	require.NoError(t, client.CreateNegotiation(ctx, &dup))

	got, err := client.GetNegotiation(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CounterOffer)
	assert.Equal(t, int64(9000), *got.CounterOffer)
	assert.Nil(t, got.FinalPrice)
	assert.Equal(t, int64(3), got.Version)

	ids, err := client.ActorEntityIDs(ctx, KindNegotiation, "owner-1")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestVisitRoundTrip(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	v := &VisitRequest{
		ID:           uuid.New().String(),
		PropertyRef:  "prop-1",
		RequesterRef: "student-1",
		RecipientRef: "owner-1",
		Status:       VisitPending,
		Preferred:    Slot{Date: "2025-03-12", Time: "10:30"},
	}
	require.NoError(t, client.CreateVisit(ctx, v))

	v.Status = VisitConfirmed
	v.Confirmed = Slot{Date: "2025-03-12", Time: "11:00"}
	require.NoError(t, client.UpdateVisit(ctx, v))

	got, err := client.GetVisit(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, VisitConfirmed, got.Status)
	assert.Equal(t, "11:00", got.EffectiveSlot().Time)
	assert.False(t, got.Rescheduled)
}

func TestReferenceData(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.PutActor(ctx, &Actor{ID: "s1", Name: "Asha", Role: RoleStudent, EmailVerified: true}))
	a, err := client.GetActor(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, a.EmailVerified)
	assert.False(t, a.Verified())

	assert.Error(t, client.PutActor(ctx, &Actor{ID: "x", Role: "landlord"}))

	require.NoError(t, client.PutRoom(ctx, &Room{ID: "r1", PropertyRef: "p1", OwnerRef: "o1", MonthlyRent: 12000, SecurityDeposit: 5000}))
	r, err := client.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), r.MonthlyRent)

	_, err = client.GetProperty(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestPaymentOrders(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	o := &PaymentOrder{ID: "order_1", BookingRef: "b1", StudentRef: "s1", Amount: 5000, Currency: "INR", Status: OrderCreated}
	require.NoError(t, client.CreatePaymentOrder(ctx, o))
	assert.ErrorIs(t, client.CreatePaymentOrder(ctx, o), ErrConflict)

	o.Status = OrderPaid
	o.PaymentID = "pay_1"
	require.NoError(t, client.UpdatePaymentOrder(ctx, o))

	got, err := client.GetPaymentOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, OrderPaid, got.Status)
	assert.Equal(t, "pay_1", got.PaymentID)
}

func TestSubscribeEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := client.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.PublishEvent(ctx, &Event{
		Type:     "booking.confirmed",
		Kind:     KindBooking,
		EntityID: "b1",
		Data:     map[string]interface{}{"status": "confirmed"},
	}))

	select {
	case e := <-sub.Events():
		assert.Equal(t, "booking.confirmed", e.Type)
		assert.Equal(t, KindBooking, e.Kind)
		assert.Equal(t, "confirmed", e.Data["status"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}

func TestInstanceNamespacing(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	a, err := NewClient(&redis.Options{Addr: mr.Addr()}, "alpha")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewClient(&redis.Options{Addr: mr.Addr()}, "beta")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	l := newTestListing("alice", 2)
	require.NoError(t, a.CreateListing(ctx, l))

	_, err = b.GetListing(ctx, l.ID)
	assert.True(t, IsNotFound(err))
	assert.True(t, mr.Exists("nest:alpha:listing:"+l.ID))
}
