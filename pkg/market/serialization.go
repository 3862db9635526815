package market

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Nested fields
// (requirements, cost sharing, house rules) are JSON-encoded into single hash
// fields. Calendar dates are RFC3339; audit stamps are Unix milliseconds.
// Participants are not part of the listing hash; they live in their own ZSET.

// ListingToHash converts a Listing struct to a Redis hash format.
func ListingToHash(l *Listing) (map[string]interface{}, error) {
	requirementsJSON, err := json.Marshal(l.Requirements)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal requirements: %w", err)
	}
	costJSON, err := json.Marshal(l.CostSharing)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cost_sharing: %w", err)
	}
	rules := l.HouseRules
	if rules == nil {
		rules = []string{}
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal house_rules: %w", err)
	}

	return map[string]interface{}{
		"id":               l.ID,
		"property_ref":     l.PropertyRef,
		"initiator_ref":    l.InitiatorRef,
		"max_participants": l.MaxParticipants,
		"status":           string(l.Status),
		"requirements":     string(requirementsJSON),
		"cost_sharing":     string(costJSON),
		"available_from":   formatTime(l.AvailableFrom),
		"available_till":   formatTime(l.AvailableTill),
		"house_rules":      string(rulesJSON),
		"created_at_ms":    l.CreatedAtMs,
		"updated_at_ms":    l.UpdatedAtMs,
		"version":          l.Version,
	}, nil
}

// HashToListing converts a Redis hash to a Listing struct. Participants are
// filled in separately by the client.
func HashToListing(hash map[string]string) (*Listing, error) {
	maxParticipants, err := strconv.Atoi(hash["max_participants"])
	if err != nil {
		return nil, fmt.Errorf("invalid max_participants field: %w", err)
	}
	version, err := parseVersion(hash)
	if err != nil {
		return nil, err
	}

	l := &Listing{
		ID:              hash["id"],
		PropertyRef:     hash["property_ref"],
		InitiatorRef:    hash["initiator_ref"],
		MaxParticipants: maxParticipants,
		Participants:    []Participant{},
		Status:          ListingStatus(hash["status"]),
		HouseRules:      []string{},
		CreatedAtMs:     parseMs(hash["created_at_ms"]),
		UpdatedAtMs:     parseMs(hash["updated_at_ms"]),
		Version:         version,
	}

	if v := hash["requirements"]; v != "" {
		if err := json.Unmarshal([]byte(v), &l.Requirements); err != nil {
			return nil, fmt.Errorf("failed to unmarshal requirements: %w", err)
		}
	}
	if v := hash["cost_sharing"]; v != "" {
		if err := json.Unmarshal([]byte(v), &l.CostSharing); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cost_sharing: %w", err)
		}
	}
	if v := hash["house_rules"]; v != "" {
		if err := json.Unmarshal([]byte(v), &l.HouseRules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal house_rules: %w", err)
		}
	}
	if l.AvailableFrom, err = parseTime(hash["available_from"]); err != nil {
		return nil, fmt.Errorf("invalid available_from field: %w", err)
	}
	if l.AvailableTill, err = parseTime(hash["available_till"]); err != nil {
		return nil, fmt.Errorf("invalid available_till field: %w", err)
	}

	return l, nil
}

// ApplicationToHash converts an Application struct to a Redis hash format.
func ApplicationToHash(a *Application) map[string]interface{} {
	return map[string]interface{}{
		"id":                a.ID,
		"listing_ref":       a.ListingRef,
		"applicant_ref":     a.ApplicantRef,
		"status":            string(a.Status),
		"message":           a.Message,
		"applied_at_ms":     a.AppliedAtMs,
		"responded_at_ms":   a.RespondedAtMs,
		"responder_message": a.ResponderMessage,
		"updated_at_ms":     a.UpdatedAtMs,
		"version":           a.Version,
	}
}

// HashToApplication converts a Redis hash to an Application struct.
func HashToApplication(hash map[string]string) (*Application, error) {
	version, err := parseVersion(hash)
	if err != nil {
		return nil, err
	}

	return &Application{
		ID:               hash["id"],
		ListingRef:       hash["listing_ref"],
		ApplicantRef:     hash["applicant_ref"],
		Status:           ApplicationStatus(hash["status"]),
		Message:          hash["message"],
		AppliedAtMs:      parseMs(hash["applied_at_ms"]),
		RespondedAtMs:    parseMs(hash["responded_at_ms"]),
		ResponderMessage: hash["responder_message"],
		UpdatedAtMs:      parseMs(hash["updated_at_ms"]),
		Version:          version,
	}, nil
}

// NegotiationToHash converts a Negotiation struct to a Redis hash format.
// Absent prices are stored as empty strings.
func NegotiationToHash(n *Negotiation) map[string]interface{} {
	return map[string]interface{}{
		"id":               n.ID,
		"room_ref":         n.RoomRef,
		"proposer_ref":     n.ProposerRef,
		"counterparty_ref": n.CounterpartyRef,
		"original_price":   n.OriginalPrice,
		"proposed_price":   n.ProposedPrice,
		"counter_offer":    formatOptional(n.CounterOffer),
		"final_price":      formatOptional(n.FinalPrice),
		"status":           string(n.Status),
		"turn":             string(n.Turn),
		"message":          n.Message,
		"response_message": n.ResponseMessage,
		"created_at_ms":    n.CreatedAtMs,
		"updated_at_ms":    n.UpdatedAtMs,
		"version":          n.Version,
	}
}

// HashToNegotiation converts a Redis hash to a Negotiation struct.
func HashToNegotiation(hash map[string]string) (*Negotiation, error) {
	version, err := parseVersion(hash)
	if err != nil {
		return nil, err
	}
	original, err := strconv.ParseInt(hash["original_price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid original_price field: %w", err)
	}
	proposed, err := strconv.ParseInt(hash["proposed_price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid proposed_price field: %w", err)
	}
	counter, err := parseOptional(hash["counter_offer"])
	if err != nil {
		return nil, fmt.Errorf("invalid counter_offer field: %w", err)
	}
	final, err := parseOptional(hash["final_price"])
	if err != nil {
		return nil, fmt.Errorf("invalid final_price field: %w", err)
	}

	return &Negotiation{
		ID:              hash["id"],
		RoomRef:         hash["room_ref"],
		ProposerRef:     hash["proposer_ref"],
		CounterpartyRef: hash["counterparty_ref"],
		OriginalPrice:   original,
		ProposedPrice:   proposed,
		CounterOffer:    counter,
		FinalPrice:      final,
		Status:          NegotiationStatus(hash["status"]),
		Turn:            Turn(hash["turn"]),
		Message:         hash["message"],
		ResponseMessage: hash["response_message"],
		CreatedAtMs:     parseMs(hash["created_at_ms"]),
		UpdatedAtMs:     parseMs(hash["updated_at_ms"]),
		Version:         version,
	}, nil
}

// BookingToHash converts a Booking struct to a Redis hash format.
func BookingToHash(b *Booking) map[string]interface{} {
	hash := bookingLifecycleFields(b)
	hash["id"] = b.ID
	hash["room_ref"] = b.RoomRef
	hash["property_ref"] = b.PropertyRef
	hash["student_ref"] = b.StudentRef
	hash["owner_ref"] = b.OwnerRef
	hash["move_in_date"] = formatTime(b.MoveInDate)
	hash["move_out_date"] = formatTime(b.MoveOutDate)
	hash["duration_months"] = b.DurationMonths
	hash["monthly_rent"] = b.MonthlyRent
	hash["security_deposit"] = b.SecurityDeposit
	hash["prorated_maintenance"] = b.ProratedMaintenance
	hash["total_amount"] = b.TotalAmount
	hash["amount_paid"] = b.AmountPaid
	hash["payment_status"] = string(b.PaymentStatus)
	hash["negotiation_ref"] = b.NegotiationRef
	hash["created_at_ms"] = b.CreatedAtMs
	hash["version"] = b.Version
	return hash
}

// bookingLifecycleFields are the only booking fields a lifecycle transition
// rewrites. The payment axis is owned by the payment script.
func bookingLifecycleFields(b *Booking) map[string]interface{} {
	return map[string]interface{}{
		"status":        string(b.Status),
		"cancelled_by":  b.CancelledBy,
		"updated_at_ms": b.UpdatedAtMs,
	}
}

// HashToBooking converts a Redis hash to a Booking struct.
func HashToBooking(hash map[string]string) (*Booking, error) {
	version, err := parseVersion(hash)
	if err != nil {
		return nil, err
	}
	duration, err := strconv.Atoi(hash["duration_months"])
	if err != nil {
		return nil, fmt.Errorf("invalid duration_months field: %w", err)
	}
	moveIn, err := parseTime(hash["move_in_date"])
	if err != nil {
		return nil, fmt.Errorf("invalid move_in_date field: %w", err)
	}
	moveOut, err := parseTime(hash["move_out_date"])
	if err != nil {
		return nil, fmt.Errorf("invalid move_out_date field: %w", err)
	}

	return &Booking{
		ID:                  hash["id"],
		RoomRef:             hash["room_ref"],
		PropertyRef:         hash["property_ref"],
		StudentRef:          hash["student_ref"],
		OwnerRef:            hash["owner_ref"],
		Status:              BookingStatus(hash["status"]),
		MoveInDate:          moveIn,
		MoveOutDate:         moveOut,
		DurationMonths:      duration,
		MonthlyRent:         parseMs(hash["monthly_rent"]),
		SecurityDeposit:     parseMs(hash["security_deposit"]),
		ProratedMaintenance: parseMs(hash["prorated_maintenance"]),
		TotalAmount:         parseMs(hash["total_amount"]),
		AmountPaid:          parseMs(hash["amount_paid"]),
		PaymentStatus:       PaymentStatus(hash["payment_status"]),
		NegotiationRef:      hash["negotiation_ref"],
		CancelledBy:         hash["cancelled_by"],
		CreatedAtMs:         parseMs(hash["created_at_ms"]),
		UpdatedAtMs:         parseMs(hash["updated_at_ms"]),
		Version:             version,
	}, nil
}

// VisitToHash converts a VisitRequest struct to a Redis hash format.
func VisitToHash(v *VisitRequest) map[string]interface{} {
	return map[string]interface{}{
		"id":             v.ID,
		"property_ref":   v.PropertyRef,
		"requester_ref":  v.RequesterRef,
		"recipient_ref":  v.RecipientRef,
		"status":         string(v.Status),
		"preferred_date": v.Preferred.Date,
		"preferred_time": v.Preferred.Time,
		"confirmed_date": v.Confirmed.Date,
		"confirmed_time": v.Confirmed.Time,
		"message":        v.Message,
		"owner_notes":    v.OwnerNotes,
		"rescheduled":    strconv.FormatBool(v.Rescheduled),
		"created_at_ms":  v.CreatedAtMs,
		"updated_at_ms":  v.UpdatedAtMs,
		"version":        v.Version,
	}
}

// HashToVisit converts a Redis hash to a VisitRequest struct.
func HashToVisit(hash map[string]string) (*VisitRequest, error) {
	version, err := parseVersion(hash)
	if err != nil {
		return nil, err
	}

	return &VisitRequest{
		ID:           hash["id"],
		PropertyRef:  hash["property_ref"],
		RequesterRef: hash["requester_ref"],
		RecipientRef: hash["recipient_ref"],
		Status:       VisitStatus(hash["status"]),
		Preferred:    Slot{Date: hash["preferred_date"], Time: hash["preferred_time"]},
		Confirmed:    Slot{Date: hash["confirmed_date"], Time: hash["confirmed_time"]},
		Message:      hash["message"],
		OwnerNotes:   hash["owner_notes"],
		Rescheduled:  hash["rescheduled"] == "true",
		CreatedAtMs:  parseMs(hash["created_at_ms"]),
		UpdatedAtMs:  parseMs(hash["updated_at_ms"]),
		Version:      version,
	}, nil
}

// fieldArgs flattens a hash into sorted field/value pairs for script ARGV.
// The version field is always excluded; scripts own it.
func fieldArgs(hash map[string]interface{}) []interface{} {
	fields := make([]string, 0, len(hash))
	for k := range hash {
		if k == "version" {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range fields {
		args = append(args, k, hash[k])
	}
	return args
}

func parseVersion(hash map[string]string) (int64, error) {
	version, err := strconv.ParseInt(hash["version"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version field: %w", err)
	}
	return version, nil
}

// parseMs parses an integer field, treating missing or malformed values as zero.
func parseMs(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatOptional(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func parseOptional(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
