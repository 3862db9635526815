// Package directory is the engine's read-only view of reference data owned
// by other services: actors (identity, role, verification) and the room
// catalog (properties, rooms, listed prices).
package directory

import (
	"context"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Actors resolves actor references.
type Actors interface {
	Actor(ctx context.Context, actorRef string) (*market.Actor, error)
}

// Catalog resolves properties and rooms.
type Catalog interface {
	Property(ctx context.Context, propertyRef string) (*market.Property, error)
	Room(ctx context.Context, roomRef string) (*market.Room, error)
}

// Store serves both interfaces from the marketplace Redis.
type Store struct {
	client *market.Client
}

// NewStore creates a Store backed by client.
func NewStore(client *market.Client) *Store {
	return &Store{client: client}
}

// Actor returns the actor or an error wrapping market.ErrNotFound.
func (s *Store) Actor(ctx context.Context, actorRef string) (*market.Actor, error) {
	return s.client.GetActor(ctx, actorRef)
}

// Property returns the property or an error wrapping market.ErrNotFound.
func (s *Store) Property(ctx context.Context, propertyRef string) (*market.Property, error) {
	return s.client.GetProperty(ctx, propertyRef)
}

// Room returns the room or an error wrapping market.ErrNotFound.
func (s *Store) Room(ctx context.Context, roomRef string) (*market.Room, error) {
	return s.client.GetRoom(ctx, roomRef)
}
