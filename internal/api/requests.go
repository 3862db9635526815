package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

type requestValidator struct {
	validate *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error {
	return rv.validate.Struct(i)
}

// bind decodes the JSON body into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return market.Validationf("malformed request body")
	}
	return c.Validate(req)
}

// parseDate reads a YYYY-MM-DD calendar date in loc. Empty yields zero.
func parseDate(field, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(market.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, market.Validationf("%s must be a YYYY-MM-DD date, got %q", field, value)
	}
	return t, nil
}

type requirementsRequest struct {
	Gender      string   `json:"gender" validate:"omitempty,oneof=any male female"`
	Lifestyle   []string `json:"lifestyle"`
	Preferences []string `json:"preferences"`
	AgeMin      int      `json:"ageMin" validate:"gte=0"`
	AgeMax      int      `json:"ageMax" validate:"gte=0"`
}

type costSharingRequest struct {
	RentPerPerson    int64 `json:"rentPerPerson" validate:"gte=0"`
	DepositPerPerson int64 `json:"depositPerPerson" validate:"gte=0"`
}

type createListingRequest struct {
	PropertyID      string              `json:"propertyId" validate:"required"`
	MaxParticipants int                 `json:"maxParticipants" validate:"required,gte=2"`
	Requirements    requirementsRequest `json:"requirements"`
	CostSharing     costSharingRequest  `json:"costSharing"`
	AvailableFrom   string              `json:"availableFrom"`
	AvailableTill   string              `json:"availableTill"`
	HouseRules      []string            `json:"houseRules"`
}

type applyRequest struct {
	Message string `json:"message" validate:"max=1000"`
}

type respondToApplicationRequest struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	Status        string `json:"status" validate:"required,oneof=accepted rejected"`
	Message       string `json:"message" validate:"max=1000"`
}

type proposeRequest struct {
	RoomID        string `json:"roomId" validate:"required"`
	ProposedPrice int64  `json:"proposedPrice" validate:"required,gt=0"`
	Message       string `json:"message" validate:"max=1000"`
}

type respondToNegotiationRequest struct {
	Action       string `json:"action" validate:"required,oneof=accept reject counter withdraw"`
	CounterPrice int64  `json:"counterPrice" validate:"gte=0"`
	Message      string `json:"message" validate:"max=1000"`
}

type createBookingRequest struct {
	RoomID        string `json:"roomId" validate:"required"`
	MoveInDate    string `json:"moveInDate" validate:"required"`
	Duration      int    `json:"duration" validate:"required,gte=1"`
	NegotiationID string `json:"negotiationId"`
}

type respondToBookingRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm reject"`
}

type createOrderRequest struct {
	BookingID string `json:"bookingId" validate:"required"`
	Amount    int64  `json:"amount" validate:"gte=0"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

type requestVisitRequest struct {
	PropertyID    string `json:"propertyId" validate:"required"`
	RecipientID   string `json:"recipientId" validate:"required"`
	PreferredDate string `json:"preferredDate" validate:"required"`
	PreferredTime string `json:"preferredTime" validate:"required"`
	Message       string `json:"message" validate:"max=1000"`
}

type respondToVisitRequest struct {
	Action  string `json:"action" validate:"required,oneof=confirm reject reschedule complete"`
	NewDate string `json:"newDate"`
	NewTime string `json:"newTime"`
	Message string `json:"message" validate:"max=1000"`
}

type rescheduleResponseRequest struct {
	Action string `json:"action" validate:"required,oneof=accept decline"`
}
