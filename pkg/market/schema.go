package market

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several marketplaces (or test runs) can share one Redis server.
//
// Key pattern: nest:{instance_name}:{entity}:{id}
// Channel pattern: nest:{instance_name}:events

// ListingKey returns the Redis key for a listing hash.
// Pattern: nest:{instance_name}:listing:{listing_id}
func ListingKey(instanceName, listingID string) string {
	return fmt.Sprintf("nest:%s:listing:%s", instanceName, listingID)
}

// ListingParticipantsKey returns the ZSET of participants (score = joined ms).
// Pattern: nest:{instance_name}:listing:{listing_id}:participants
func ListingParticipantsKey(instanceName, listingID string) string {
	return fmt.Sprintf("nest:%s:listing:%s:participants", instanceName, listingID)
}

// ListingReservationsKey returns the hash of outstanding slot reservations (token → expiry ms).
// Pattern: nest:{instance_name}:listing:{listing_id}:reservations
func ListingReservationsKey(instanceName, listingID string) string {
	return fmt.Sprintf("nest:%s:listing:%s:reservations", instanceName, listingID)
}

// ListingApplicationsKey returns the SET of application IDs filed against a listing.
// Pattern: nest:{instance_name}:listing:{listing_id}:applications
func ListingApplicationsKey(instanceName, listingID string) string {
	return fmt.Sprintf("nest:%s:listing:%s:applications", instanceName, listingID)
}

// PendingApplicationKey guards at most one pending application per listing and applicant.
// Pattern: nest:{instance_name}:listing:{listing_id}:pending:{applicant_ref}
func PendingApplicationKey(instanceName, listingID, applicantRef string) string {
	return fmt.Sprintf("nest:%s:listing:%s:pending:%s", instanceName, listingID, applicantRef)
}

// OpenListingsKey returns the SET of listings that are active or full.
// Pattern: nest:{instance_name}:listings:open
func OpenListingsKey(instanceName string) string {
	return fmt.Sprintf("nest:%s:listings:open", instanceName)
}

// ApplicationKey returns the Redis key for an application hash.
// Pattern: nest:{instance_name}:application:{application_id}
func ApplicationKey(instanceName, applicationID string) string {
	return fmt.Sprintf("nest:%s:application:%s", instanceName, applicationID)
}

// NegotiationKey returns the Redis key for a negotiation hash.
// Pattern: nest:{instance_name}:negotiation:{negotiation_id}
func NegotiationKey(instanceName, negotiationID string) string {
	return fmt.Sprintf("nest:%s:negotiation:%s", instanceName, negotiationID)
}

// OpenNegotiationKey guards one open negotiation per room and proposer.
// Pattern: nest:{instance_name}:negotiation_open:{room_ref}:{proposer_ref}
func OpenNegotiationKey(instanceName, roomRef, proposerRef string) string {
	return fmt.Sprintf("nest:%s:negotiation_open:%s:%s", instanceName, roomRef, proposerRef)
}

// NegotiationBookingKey records the single booking seeded by an accepted negotiation.
// Pattern: nest:{instance_name}:negotiation:{negotiation_id}:booking
func NegotiationBookingKey(instanceName, negotiationID string) string {
	return fmt.Sprintf("nest:%s:negotiation:%s:booking", instanceName, negotiationID)
}

// BookingKey returns the Redis key for a booking hash.
// Pattern: nest:{instance_name}:booking:{booking_id}
func BookingKey(instanceName, bookingID string) string {
	return fmt.Sprintf("nest:%s:booking:%s", instanceName, bookingID)
}

// BookingPaymentsKey returns the hash of applied payments (external ref → amount).
// Pattern: nest:{instance_name}:booking:{booking_id}:payments
func BookingPaymentsKey(instanceName, bookingID string) string {
	return fmt.Sprintf("nest:%s:booking:%s:payments", instanceName, bookingID)
}

// BookingStatusKey returns the SET index of bookings in a lifecycle status.
// Pattern: nest:{instance_name}:bookings:status:{status}
func BookingStatusKey(instanceName string, status BookingStatus) string {
	return fmt.Sprintf("nest:%s:bookings:status:%s", instanceName, status)
}

// VisitKey returns the Redis key for a visit request hash.
// Pattern: nest:{instance_name}:visit:{visit_id}
func VisitKey(instanceName, visitID string) string {
	return fmt.Sprintf("nest:%s:visit:%s", instanceName, visitID)
}

// ByActorKey returns the SET index of one entity kind touching an actor.
// Pattern: nest:{instance_name}:{kind}s:by_actor:{actor_ref}
func ByActorKey(instanceName string, kind EntityKind, actorRef string) string {
	return fmt.Sprintf("nest:%s:%ss:by_actor:%s", instanceName, kind, actorRef)
}

// ActorKey returns the Redis key for an actor reference hash.
// Pattern: nest:{instance_name}:actor:{actor_id}
func ActorKey(instanceName, actorID string) string {
	return fmt.Sprintf("nest:%s:actor:%s", instanceName, actorID)
}

// PropertyKey returns the Redis key for a property reference hash.
// Pattern: nest:{instance_name}:property:{property_id}
func PropertyKey(instanceName, propertyID string) string {
	return fmt.Sprintf("nest:%s:property:%s", instanceName, propertyID)
}

// RoomKey returns the Redis key for a room reference hash.
// Pattern: nest:{instance_name}:room:{room_id}
func RoomKey(instanceName, roomID string) string {
	return fmt.Sprintf("nest:%s:room:%s", instanceName, roomID)
}

// PaymentOrderKey returns the Redis key for a payment order hash.
// Pattern: nest:{instance_name}:payment_order:{order_id}
func PaymentOrderKey(instanceName, orderID string) string {
	return fmt.Sprintf("nest:%s:payment_order:%s", instanceName, orderID)
}

// EventsChannel returns the Pub/Sub channel carrying every transition event.
// Pattern: nest:{instance_name}:events
func EventsChannel(instanceName string) string {
	return fmt.Sprintf("nest:%s:events", instanceName)
}

// EntityKind names an entity type in events and index keys.
type EntityKind string

const (
	KindListing     EntityKind = "listing"
	KindApplication EntityKind = "application"
	KindNegotiation EntityKind = "negotiation"
	KindBooking     EntityKind = "booking"
	KindVisit       EntityKind = "visit"
)
