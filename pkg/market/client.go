package market

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the marketplace state.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new market client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: marketplace instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the namespace this client writes under.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// RedisClient exposes the underlying connection for SCAN-based tooling.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// createOp describes an atomic insert of one entity hash.
type createOp struct {
	kind    EntityKind
	key     string
	member  string
	guards  []string
	indexes []string
	hash    map[string]interface{}
	// guardMsg is returned (as a conflict) when a guard key is already taken
	guardMsg string
}

func (c *Client) create(ctx context.Context, op createOp) error {
	keys := make([]string, 0, 1+len(op.guards)+len(op.indexes))
	keys = append(keys, op.key)
	keys = append(keys, op.guards...)
	keys = append(keys, op.indexes...)

	args := []interface{}{op.member, len(op.guards)}
	args = append(args, fieldArgs(op.hash)...)

	code, err := createScript.Run(ctx, c.rdb, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", op.kind, err)
	}

	switch code {
	case 1:
		return nil
	case 0:
		return Conflictf("%s %s already exists", op.kind, op.member)
	default:
		return Conflictf("%s", op.guardMsg)
	}
}

// casOp describes a versioned update of one entity hash.
type casOp struct {
	kind     EntityKind
	key      string
	member   string
	expected int64
	hash     map[string]interface{}
	moves    [][2]string
	deletes  []string
	// guards are fields whose stored value must still match
	guards map[string]string
}

// cas applies op and returns the entity's new version.
func (c *Client) cas(ctx context.Context, op casOp) (int64, error) {
	keys := make([]string, 0, 1+2*len(op.moves)+len(op.deletes))
	keys = append(keys, op.key)
	for _, mv := range op.moves {
		keys = append(keys, mv[0], mv[1])
	}
	keys = append(keys, op.deletes...)

	guardFields := make([]string, 0, len(op.guards))
	for f := range op.guards {
		guardFields = append(guardFields, f)
	}
	sort.Strings(guardFields)

	args := []interface{}{strconv.FormatInt(op.expected, 10), op.member, len(op.moves), len(guardFields)}
	for _, f := range guardFields {
		args = append(args, f, op.guards[f])
	}
	args = append(args, fieldArgs(op.hash)...)

	version, err := casScript.Run(ctx, c.rdb, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to update %s in Redis: %w", op.kind, err)
	}

	switch {
	case version > 0:
		return version, nil
	case version == 0:
		return 0, Conflictf("%s %s was modified concurrently", op.kind, op.member)
	case version == -2:
		return 0, Conflictf("%s %s changed underneath the update", op.kind, op.member)
	default:
		return 0, NotFoundf("%s %s", op.kind, op.member)
	}
}

// getHash reads an entity hash, returning ErrNotFound when the key is absent.
func (c *Client) getHash(ctx context.Context, kind EntityKind, key, id string) (map[string]string, error) {
	hash, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from Redis: %w", kind, err)
	}
	if len(hash) == 0 {
		return nil, NotFoundf("%s %s", kind, id)
	}
	return hash, nil
}

// members returns the sorted members of an index set.
func (c *Client) members(ctx context.Context, key string) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", key, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// CreateListing writes a new listing with its initiator as the first participant.
// The listing must carry exactly one participant, the initiator.
func (c *Client) CreateListing(ctx context.Context, l *Listing) error {
	l.Version = 1
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid listing: %w", err)
	}
	if len(l.Participants) != 1 || l.Participants[0].UserRef != l.InitiatorRef {
		return fmt.Errorf("invalid listing: initiator must be the only participant")
	}

	hash, err := ListingToHash(l)
	if err != nil {
		return fmt.Errorf("failed to serialize listing: %w", err)
	}

	key := ListingKey(c.instanceName, l.ID)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, hash)
		pipe.ZAdd(ctx, ListingParticipantsKey(c.instanceName, l.ID), redis.Z{
			Score:  float64(l.Participants[0].JoinedAtMs),
			Member: l.InitiatorRef,
		})
		pipe.SAdd(ctx, ByActorKey(c.instanceName, KindListing, l.InitiatorRef), l.ID)
		pipe.SAdd(ctx, OpenListingsKey(c.instanceName), l.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write listing to Redis: %w", err)
	}
	return nil
}

// GetListing retrieves a listing with its participants in join order.
func (c *Client) GetListing(ctx context.Context, listingID string) (*Listing, error) {
	var hashCmd *redis.MapStringStringCmd
	var partCmd *redis.ZSliceCmd
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		hashCmd = pipe.HGetAll(ctx, ListingKey(c.instanceName, listingID))
		partCmd = pipe.ZRangeWithScores(ctx, ListingParticipantsKey(c.instanceName, listingID), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read listing from Redis: %w", err)
	}

	hash := hashCmd.Val()
	if len(hash) == 0 {
		return nil, NotFoundf("listing %s", listingID)
	}
	l, err := HashToListing(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize listing: %w", err)
	}
	for _, z := range partCmd.Val() {
		l.Participants = append(l.Participants, Participant{
			UserRef:    z.Member.(string),
			JoinedAtMs: int64(z.Score),
		})
	}
	return l, nil
}

// OpenListingIDs returns the IDs of listings that are active or full.
func (c *Client) OpenListingIDs(ctx context.Context) ([]string, error) {
	return c.members(ctx, OpenListingsKey(c.instanceName))
}

// CreateApplication writes a pending application. At most one pending
// application may exist per listing and applicant, and the listing must be
// active when the write lands.
func (c *Client) CreateApplication(ctx context.Context, a *Application) error {
	a.Version = 1
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid application: %w", err)
	}
	keys := []string{
		ApplicationKey(c.instanceName, a.ID),
		ListingKey(c.instanceName, a.ListingRef),
		PendingApplicationKey(c.instanceName, a.ListingRef, a.ApplicantRef),
		ListingApplicationsKey(c.instanceName, a.ListingRef),
		ByActorKey(c.instanceName, KindApplication, a.ApplicantRef),
	}
	args := []interface{}{a.ID}
	args = append(args, fieldArgs(ApplicationToHash(a))...)

	res, err := createApplicationScript.Run(ctx, c.rdb, keys, args...).Slice()
	if err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", KindApplication, err)
	}
	if len(res) != 2 {
		return fmt.Errorf("unexpected application reply: %v", res)
	}
	code, _ := res[0].(int64)
	status, _ := res[1].(string)

	switch code {
	case 1:
		return nil
	case 0:
		return Conflictf("%s %s already exists", KindApplication, a.ID)
	case -1:
		return NotFoundf("listing %s", a.ListingRef)
	case -2:
		return Conflictf("a pending application for this listing already exists")
	default:
		return Conflictf("listing %s is %s and not accepting applications", a.ListingRef, status)
	}
}

// GetApplication retrieves an application by ID.
func (c *Client) GetApplication(ctx context.Context, applicationID string) (*Application, error) {
	hash, err := c.getHash(ctx, KindApplication, ApplicationKey(c.instanceName, applicationID), applicationID)
	if err != nil {
		return nil, err
	}
	a, err := HashToApplication(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize application: %w", err)
	}
	return a, nil
}

// UpdateApplication writes a transitioned application if its stored version
// still equals a.Version. On success a.Version is advanced.
func (c *Client) UpdateApplication(ctx context.Context, a *Application) error {
	op := casOp{
		kind:     KindApplication,
		key:      ApplicationKey(c.instanceName, a.ID),
		member:   a.ID,
		expected: a.Version,
		hash:     ApplicationToHash(a),
	}
	if a.Status != ApplicationPending {
		op.deletes = []string{PendingApplicationKey(c.instanceName, a.ListingRef, a.ApplicantRef)}
	}
	version, err := c.cas(ctx, op)
	if err != nil {
		return err
	}
	a.Version = version
	return nil
}

// ListingApplicationIDs returns the IDs of every application filed against a listing.
func (c *Client) ListingApplicationIDs(ctx context.Context, listingID string) ([]string, error) {
	return c.members(ctx, ListingApplicationsKey(c.instanceName, listingID))
}

// CreateNegotiation writes a new negotiation. Only one open negotiation may
// exist per room and proposer.
func (c *Client) CreateNegotiation(ctx context.Context, n *Negotiation) error {
	n.Version = 1
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid negotiation: %w", err)
	}
	return c.create(ctx, createOp{
		kind:   KindNegotiation,
		key:    NegotiationKey(c.instanceName, n.ID),
		member: n.ID,
		guards: []string{OpenNegotiationKey(c.instanceName, n.RoomRef, n.ProposerRef)},
		indexes: []string{
			ByActorKey(c.instanceName, KindNegotiation, n.ProposerRef),
			ByActorKey(c.instanceName, KindNegotiation, n.CounterpartyRef),
		},
		hash:     NegotiationToHash(n),
		guardMsg: "an open negotiation for this room already exists",
	})
}

// GetNegotiation retrieves a negotiation by ID.
func (c *Client) GetNegotiation(ctx context.Context, negotiationID string) (*Negotiation, error) {
	hash, err := c.getHash(ctx, KindNegotiation, NegotiationKey(c.instanceName, negotiationID), negotiationID)
	if err != nil {
		return nil, err
	}
	n, err := HashToNegotiation(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize negotiation: %w", err)
	}
	return n, nil
}

// UpdateNegotiation writes a transitioned negotiation under CAS on n.Version.
// Reaching a terminal status frees the room+proposer slot for a new proposal.
func (c *Client) UpdateNegotiation(ctx context.Context, n *Negotiation) error {
	op := casOp{
		kind:     KindNegotiation,
		key:      NegotiationKey(c.instanceName, n.ID),
		member:   n.ID,
		expected: n.Version,
		hash:     NegotiationToHash(n),
	}
	if n.Status.IsTerminal() {
		op.deletes = []string{OpenNegotiationKey(c.instanceName, n.RoomRef, n.ProposerRef)}
	}
	version, err := c.cas(ctx, op)
	if err != nil {
		return err
	}
	n.Version = version
	return nil
}

// CreateBooking writes a new booking. A negotiation may seed at most one booking.
func (c *Client) CreateBooking(ctx context.Context, b *Booking) error {
	b.Version = 1
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid booking: %w", err)
	}
	op := createOp{
		kind:   KindBooking,
		key:    BookingKey(c.instanceName, b.ID),
		member: b.ID,
		indexes: []string{
			ByActorKey(c.instanceName, KindBooking, b.StudentRef),
			ByActorKey(c.instanceName, KindBooking, b.OwnerRef),
			BookingStatusKey(c.instanceName, b.Status),
		},
		hash:     BookingToHash(b),
		guardMsg: "negotiation has already been used for a booking",
	}
	if b.NegotiationRef != "" {
		op.guards = []string{NegotiationBookingKey(c.instanceName, b.NegotiationRef)}
	}
	return c.create(ctx, op)
}

// GetBooking retrieves a booking by ID.
func (c *Client) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	hash, err := c.getHash(ctx, KindBooking, BookingKey(c.instanceName, bookingID), bookingID)
	if err != nil {
		return nil, err
	}
	b, err := HashToBooking(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize booking: %w", err)
	}
	return b, nil
}

// UpdateBooking writes a lifecycle transition under CAS on b.Version, moving
// the booking between status indexes. Payment fields are never written here.
// A transition into cancelled also requires amount_paid to still equal
// b.AmountPaid, so the caller's refund decision covers every payment applied
// before the cancellation; later payments see the cancelled status.
func (c *Client) UpdateBooking(ctx context.Context, b *Booking, from BookingStatus) error {
	op := casOp{
		kind:     KindBooking,
		key:      BookingKey(c.instanceName, b.ID),
		member:   b.ID,
		expected: b.Version,
		hash:     bookingLifecycleFields(b),
	}
	if b.Status == BookingCancelled {
		op.guards = map[string]string{"amount_paid": strconv.FormatInt(b.AmountPaid, 10)}
	}
	if from != b.Status {
		op.moves = [][2]string{{
			BookingStatusKey(c.instanceName, from),
			BookingStatusKey(c.instanceName, b.Status),
		}}
	}
	version, err := c.cas(ctx, op)
	if err != nil {
		return err
	}
	b.Version = version
	return nil
}

// BookingIDsByStatus returns the IDs of bookings currently in status.
func (c *Client) BookingIDsByStatus(ctx context.Context, status BookingStatus) ([]string, error) {
	return c.members(ctx, BookingStatusKey(c.instanceName, status))
}

// CreateVisit writes a new visit request.
func (c *Client) CreateVisit(ctx context.Context, v *VisitRequest) error {
	v.Version = 1
	if err := v.Validate(); err != nil {
		return fmt.Errorf("invalid visit request: %w", err)
	}
	return c.create(ctx, createOp{
		kind:   KindVisit,
		key:    VisitKey(c.instanceName, v.ID),
		member: v.ID,
		indexes: []string{
			ByActorKey(c.instanceName, KindVisit, v.RequesterRef),
			ByActorKey(c.instanceName, KindVisit, v.RecipientRef),
		},
		hash: VisitToHash(v),
	})
}

// GetVisit retrieves a visit request by ID.
func (c *Client) GetVisit(ctx context.Context, visitID string) (*VisitRequest, error) {
	hash, err := c.getHash(ctx, KindVisit, VisitKey(c.instanceName, visitID), visitID)
	if err != nil {
		return nil, err
	}
	v, err := HashToVisit(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize visit request: %w", err)
	}
	return v, nil
}

// UpdateVisit writes a transitioned visit request under CAS on v.Version.
func (c *Client) UpdateVisit(ctx context.Context, v *VisitRequest) error {
	version, err := c.cas(ctx, casOp{
		kind:     KindVisit,
		key:      VisitKey(c.instanceName, v.ID),
		member:   v.ID,
		expected: v.Version,
		hash:     VisitToHash(v),
	})
	if err != nil {
		return err
	}
	v.Version = version
	return nil
}

// ActorEntityIDs returns the IDs of entities of kind that involve actorRef.
func (c *Client) ActorEntityIDs(ctx context.Context, kind EntityKind, actorRef string) ([]string, error) {
	return c.members(ctx, ByActorKey(c.instanceName, kind, actorRef))
}

// PutActor upserts an actor reference record.
func (c *Client) PutActor(ctx context.Context, a *Actor) error {
	if err := a.Role.Validate(); err != nil {
		return fmt.Errorf("invalid actor %s: %w", a.ID, err)
	}
	if err := c.rdb.HSet(ctx, ActorKey(c.instanceName, a.ID), ActorToHash(a)).Err(); err != nil {
		return fmt.Errorf("failed to write actor to Redis: %w", err)
	}
	return nil
}

// GetActor retrieves an actor reference record.
func (c *Client) GetActor(ctx context.Context, actorID string) (*Actor, error) {
	hash, err := c.getHash(ctx, "actor", ActorKey(c.instanceName, actorID), actorID)
	if err != nil {
		return nil, err
	}
	return HashToActor(hash), nil
}

// PutProperty upserts a property reference record.
func (c *Client) PutProperty(ctx context.Context, p *Property) error {
	if p.ID == "" || p.OwnerRef == "" {
		return fmt.Errorf("invalid property: id and owner_ref are required")
	}
	if err := c.rdb.HSet(ctx, PropertyKey(c.instanceName, p.ID), PropertyToHash(p)).Err(); err != nil {
		return fmt.Errorf("failed to write property to Redis: %w", err)
	}
	return nil
}

// GetProperty retrieves a property reference record.
func (c *Client) GetProperty(ctx context.Context, propertyID string) (*Property, error) {
	hash, err := c.getHash(ctx, "property", PropertyKey(c.instanceName, propertyID), propertyID)
	if err != nil {
		return nil, err
	}
	return HashToProperty(hash), nil
}

// PutRoom upserts a room reference record.
func (c *Client) PutRoom(ctx context.Context, r *Room) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid room: %w", err)
	}
	if err := c.rdb.HSet(ctx, RoomKey(c.instanceName, r.ID), RoomToHash(r)).Err(); err != nil {
		return fmt.Errorf("failed to write room to Redis: %w", err)
	}
	return nil
}

// GetRoom retrieves a room reference record.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	hash, err := c.getHash(ctx, "room", RoomKey(c.instanceName, roomID), roomID)
	if err != nil {
		return nil, err
	}
	r, err := HashToRoom(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize room: %w", err)
	}
	return r, nil
}
