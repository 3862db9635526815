package market

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used for visit slots and API dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wall-clock format used for visit slots.
const TimeLayout = "15:04"

// ListingStatus is the lifecycle state of a room-sharing listing.
type ListingStatus string

const (
	// ListingActive accepts applications and has at least one open slot
	ListingActive ListingStatus = "active"

	// ListingFull has every slot taken; listings never reopen from full
	ListingFull ListingStatus = "full"

	// ListingClosed was soft-closed by its initiator (terminal)
	ListingClosed ListingStatus = "closed"

	// ListingExpired passed its availability window or was expired by the initiator
	ListingExpired ListingStatus = "expired"
)

// Validate checks if the ListingStatus is a valid enum value.
func (s ListingStatus) Validate() error {
	switch s {
	case ListingActive, ListingFull, ListingClosed, ListingExpired:
		return nil
	default:
		return fmt.Errorf("unknown listing status: %q", s)
	}
}

// ApplicationStatus is the lifecycle state of an application to join a listing.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// Validate checks if the ApplicationStatus is a valid enum value.
func (s ApplicationStatus) Validate() error {
	switch s {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected, ApplicationWithdrawn:
		return nil
	default:
		return fmt.Errorf("unknown application status: %q", s)
	}
}

// IsTerminal reports whether no further transition is permitted.
func (s ApplicationStatus) IsTerminal() bool {
	return s != ApplicationPending
}

// NegotiationStatus is the lifecycle state of a price negotiation.
type NegotiationStatus string

const (
	NegotiationPending   NegotiationStatus = "pending"
	NegotiationCountered NegotiationStatus = "countered"
	NegotiationAccepted  NegotiationStatus = "accepted"
	NegotiationRejected  NegotiationStatus = "rejected"
	NegotiationWithdrawn NegotiationStatus = "withdrawn"
)

// Validate checks if the NegotiationStatus is a valid enum value.
func (s NegotiationStatus) Validate() error {
	switch s {
	case NegotiationPending, NegotiationCountered, NegotiationAccepted,
		NegotiationRejected, NegotiationWithdrawn:
		return nil
	default:
		return fmt.Errorf("unknown negotiation status: %q", s)
	}
}

// IsTerminal reports whether no further transition is permitted.
func (s NegotiationStatus) IsTerminal() bool {
	return s == NegotiationAccepted || s == NegotiationRejected || s == NegotiationWithdrawn
}

// Turn records which party of a negotiation may move next.
type Turn string

const (
	TurnProposer     Turn = "proposer"
	TurnCounterparty Turn = "counterparty"
	TurnNone         Turn = ""
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Validate checks if the BookingStatus is a valid enum value.
func (s BookingStatus) Validate() error {
	switch s {
	case BookingPending, BookingConfirmed, BookingActive, BookingCancelled, BookingCompleted:
		return nil
	default:
		return fmt.Errorf("unknown booking status: %q", s)
	}
}

// IsTerminal reports whether no further transition is permitted.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// PaymentStatus is the payment axis of a booking, advanced only by the payment authority.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// Validate checks if the PaymentStatus is a valid enum value.
func (s PaymentStatus) Validate() error {
	switch s {
	case PaymentPending, PaymentPartial, PaymentPaid:
		return nil
	default:
		return fmt.Errorf("unknown payment status: %q", s)
	}
}

// VisitStatus is the lifecycle state of a visit request.
type VisitStatus string

const (
	VisitPending     VisitStatus = "pending"
	VisitConfirmed   VisitStatus = "confirmed"
	VisitRejected    VisitStatus = "rejected"
	VisitRescheduled VisitStatus = "rescheduled"
	VisitCancelled   VisitStatus = "cancelled"
	VisitCompleted   VisitStatus = "completed"
)

// Validate checks if the VisitStatus is a valid enum value.
func (s VisitStatus) Validate() error {
	switch s {
	case VisitPending, VisitConfirmed, VisitRejected, VisitRescheduled, VisitCancelled, VisitCompleted:
		return nil
	default:
		return fmt.Errorf("unknown visit status: %q", s)
	}
}

// IsTerminal reports whether no further transition is permitted.
func (s VisitStatus) IsTerminal() bool {
	return s == VisitRejected || s == VisitCancelled || s == VisitCompleted
}

// Participant is one occupant of a listing slot.
type Participant struct {
	UserRef    string `json:"user_ref"`
	JoinedAtMs int64  `json:"joined_at_ms"`
}

// Requirements filters who may co-rent a listing.
type Requirements struct {
	Gender      string   `json:"gender,omitempty"` // "male", "female" or empty for any
	Lifestyle   []string `json:"lifestyle,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
	AgeMin      int      `json:"age_min,omitempty"`
	AgeMax      int      `json:"age_max,omitempty"`
}

// CostSharing splits the rent and deposit between participants.
type CostSharing struct {
	RentPerPerson    int64 `json:"rent_per_person"`
	DepositPerPerson int64 `json:"deposit_per_person"`
}

// Listing is an offer to co-rent a property with a fixed number of slots.
// Participants are stored in a sorted set beside the listing hash, never inline.
type Listing struct {
	ID              string        `json:"id"`
	PropertyRef     string        `json:"property_ref"`
	InitiatorRef    string        `json:"initiator_ref"`
	MaxParticipants int           `json:"max_participants"`
	Participants    []Participant `json:"participants"`
	Status          ListingStatus `json:"status"`
	Requirements    Requirements  `json:"requirements"`
	CostSharing     CostSharing   `json:"cost_sharing"`
	AvailableFrom   time.Time     `json:"available_from"`
	AvailableTill   time.Time     `json:"available_till,omitempty"`
	HouseRules      []string      `json:"house_rules"`
	CreatedAtMs     int64         `json:"created_at_ms"`
	UpdatedAtMs     int64         `json:"updated_at_ms"`
	Version         int64         `json:"version"`
}

// HasParticipant reports whether userRef already occupies a slot.
func (l *Listing) HasParticipant(userRef string) bool {
	for _, p := range l.Participants {
		if p.UserRef == userRef {
			return true
		}
	}
	return false
}

// OpenSlots returns the number of slots not yet committed.
func (l *Listing) OpenSlots() int {
	return l.MaxParticipants - len(l.Participants)
}

// Validate checks the listing's structural invariants.
func (l *Listing) Validate() error {
	if !isValidUUID(l.ID) {
		return fmt.Errorf("invalid listing ID: not a valid UUID")
	}
	if l.PropertyRef == "" {
		return fmt.Errorf("property_ref cannot be empty")
	}
	if l.InitiatorRef == "" {
		return fmt.Errorf("initiator_ref cannot be empty")
	}
	if l.MaxParticipants < 2 {
		return fmt.Errorf("max_participants must be >= 2, got %d", l.MaxParticipants)
	}
	if len(l.Participants) > l.MaxParticipants {
		return fmt.Errorf("participants (%d) exceed max_participants (%d)", len(l.Participants), l.MaxParticipants)
	}
	if err := l.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	return nil
}

// Application is a request to join a listing.
type Application struct {
	ID               string            `json:"id"`
	ListingRef       string            `json:"listing_ref"`
	ApplicantRef     string            `json:"applicant_ref"`
	Status           ApplicationStatus `json:"status"`
	Message          string            `json:"message"`
	AppliedAtMs      int64             `json:"applied_at_ms"`
	RespondedAtMs    int64             `json:"responded_at_ms,omitempty"`
	ResponderMessage string            `json:"responder_message,omitempty"`
	UpdatedAtMs      int64             `json:"updated_at_ms"`
	Version          int64             `json:"version"`
}

// Validate checks the application's structural invariants.
func (a *Application) Validate() error {
	if !isValidUUID(a.ID) {
		return fmt.Errorf("invalid application ID: not a valid UUID")
	}
	if !isValidUUID(a.ListingRef) {
		return fmt.Errorf("invalid listing_ref: not a valid UUID")
	}
	if a.ApplicantRef == "" {
		return fmt.Errorf("applicant_ref cannot be empty")
	}
	return a.Status.Validate()
}

// Negotiation is a turn-based price proposal on one room.
type Negotiation struct {
	ID              string            `json:"id"`
	RoomRef         string            `json:"room_ref"`
	ProposerRef     string            `json:"proposer_ref"`
	CounterpartyRef string            `json:"counterparty_ref"`
	OriginalPrice   int64             `json:"original_price"`
	ProposedPrice   int64             `json:"proposed_price"`
	CounterOffer    *int64            `json:"counter_offer,omitempty"`
	FinalPrice      *int64            `json:"final_price,omitempty"`
	Status          NegotiationStatus `json:"status"`
	Turn            Turn              `json:"turn"`
	Message         string            `json:"message,omitempty"`
	ResponseMessage string            `json:"response_message,omitempty"`
	CreatedAtMs     int64             `json:"created_at_ms"`
	UpdatedAtMs     int64             `json:"updated_at_ms"`
	Version         int64             `json:"version"`
}

// Validate checks the negotiation's structural invariants.
func (n *Negotiation) Validate() error {
	if !isValidUUID(n.ID) {
		return fmt.Errorf("invalid negotiation ID: not a valid UUID")
	}
	if n.RoomRef == "" || n.ProposerRef == "" || n.CounterpartyRef == "" {
		return fmt.Errorf("room_ref, proposer_ref and counterparty_ref are required")
	}
	if n.ProposedPrice <= 0 || n.ProposedPrice >= n.OriginalPrice {
		return fmt.Errorf("proposed_price must be in (0, %d), got %d", n.OriginalPrice, n.ProposedPrice)
	}
	return n.Status.Validate()
}

// Booking is a tenancy commitment with independent lifecycle and payment axes.
type Booking struct {
	ID                  string        `json:"id"`
	RoomRef             string        `json:"room_ref"`
	PropertyRef         string        `json:"property_ref"`
	StudentRef          string        `json:"student_ref"`
	OwnerRef            string        `json:"owner_ref"`
	Status              BookingStatus `json:"status"`
	MoveInDate          time.Time     `json:"move_in_date"`
	MoveOutDate         time.Time     `json:"move_out_date"`
	DurationMonths      int           `json:"duration_months"`
	MonthlyRent         int64         `json:"monthly_rent"`
	SecurityDeposit     int64         `json:"security_deposit"`
	ProratedMaintenance int64         `json:"prorated_maintenance"`
	TotalAmount         int64         `json:"total_amount"`
	AmountPaid          int64         `json:"amount_paid"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	NegotiationRef      string        `json:"negotiation_ref,omitempty"`
	CancelledBy         string        `json:"cancelled_by,omitempty"`
	CreatedAtMs         int64         `json:"created_at_ms"`
	UpdatedAtMs         int64         `json:"updated_at_ms"`
	Version             int64         `json:"version"`
}

// Validate checks the booking's structural invariants.
func (b *Booking) Validate() error {
	if !isValidUUID(b.ID) {
		return fmt.Errorf("invalid booking ID: not a valid UUID")
	}
	if b.RoomRef == "" || b.StudentRef == "" || b.OwnerRef == "" {
		return fmt.Errorf("room_ref, student_ref and owner_ref are required")
	}
	if b.DurationMonths < 1 {
		return fmt.Errorf("duration_months must be >= 1, got %d", b.DurationMonths)
	}
	if !b.MoveOutDate.After(b.MoveInDate) {
		return fmt.Errorf("move_out_date must be after move_in_date")
	}
	if err := b.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	return b.PaymentStatus.Validate()
}

// Slot is a calendar date plus wall-clock time, as entered by users.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// IsZero reports whether the slot is unset.
func (s Slot) IsZero() bool {
	return s.Date == "" && s.Time == ""
}

// At resolves the slot to an instant in loc.
func (s Slot) At(loc *time.Location) (time.Time, error) {
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s.Date)
	}
	if _, err := time.Parse(TimeLayout, s.Time); err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (expected HH:MM)", s.Time)
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, loc)
}

// VisitRequest is a request to view a property.
type VisitRequest struct {
	ID           string      `json:"id"`
	PropertyRef  string      `json:"property_ref"`
	RequesterRef string      `json:"requester_ref"`
	RecipientRef string      `json:"recipient_ref"`
	Status       VisitStatus `json:"status"`
	Preferred    Slot        `json:"preferred"`
	Confirmed    Slot        `json:"confirmed,omitempty"`
	Message      string      `json:"message,omitempty"`
	OwnerNotes   string      `json:"owner_notes,omitempty"`
	Rescheduled  bool        `json:"rescheduled"` // a reschedule round has been spent
	CreatedAtMs  int64       `json:"created_at_ms"`
	UpdatedAtMs  int64       `json:"updated_at_ms"`
	Version      int64       `json:"version"`
}

// EffectiveSlot is the confirmed slot when set, otherwise the preferred one.
func (v *VisitRequest) EffectiveSlot() Slot {
	if !v.Confirmed.IsZero() {
		return v.Confirmed
	}
	return v.Preferred
}

// Validate checks the visit's structural invariants.
func (v *VisitRequest) Validate() error {
	if !isValidUUID(v.ID) {
		return fmt.Errorf("invalid visit ID: not a valid UUID")
	}
	if v.PropertyRef == "" || v.RequesterRef == "" || v.RecipientRef == "" {
		return fmt.Errorf("property_ref, requester_ref and recipient_ref are required")
	}
	return v.Status.Validate()
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
