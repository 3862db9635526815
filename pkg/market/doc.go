// Package market provides type-safe Go definitions and the Redis schema for the
// StudentNest coordination engine.
//
// # Overview
//
// The marketplace state is the shared workspace where the room-sharing,
// negotiation, booking and visit engines record their entities. Every entity is
// a Redis hash carrying a monotonically increasing version; every transition is
// a compare-and-swap on that version executed inside a Lua script, so each
// entity's history is linearizable on its own.
//
// # Slot Accounting
//
// Room-sharing listings are the one place where two requests can race for a
// shared resource. Participants live in a ZSET (score = join time, member = user
// reference) next to the listing hash, and outstanding slot reservations live in
// a hash of token → expiry. ReserveSlot, CommitSlot and ReleaseSlot each run as a
// single script, which makes the participant count the serialization point for
// the listing.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name:
//
//	nest:{instance}:listing:{id}
//	nest:{instance}:listing:{id}:participants
//	nest:{instance}:listing:{id}:reservations
//	nest:{instance}:listing:{id}:applications
//	nest:{instance}:application:{id}
//	nest:{instance}:negotiation:{id}
//	nest:{instance}:booking:{id}
//	nest:{instance}:booking:{id}:payments
//	nest:{instance}:visit:{id}
//	nest:{instance}:events
//
// # Usage Example
//
//	client, err := market.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := client.ReserveSlot(ctx, listingID, time.Now(), 5*time.Second)
//	if errors.Is(err, market.ErrSlotUnavailable) {
//		// listing is full
//	}
package market
