package report

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// GetBooking writes a single booking as pretty-printed JSON.
func GetBooking(ctx context.Context, client *market.Client, bookingID string, w io.Writer) error {
	if err := validateID(bookingID); err != nil {
		return err
	}
	b, err := client.GetBooking(ctx, bookingID)
	if err != nil {
		return wrapGetError(market.KindBooking, bookingID, err)
	}
	return FormatSingleJSON(w, b)
}

// GetListing writes a single listing as pretty-printed JSON.
func GetListing(ctx context.Context, client *market.Client, listingID string, w io.Writer) error {
	if err := validateID(listingID); err != nil {
		return err
	}
	l, err := client.GetListing(ctx, listingID)
	if err != nil {
		return wrapGetError(market.KindListing, listingID, err)
	}
	return FormatSingleJSON(w, l)
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid ID format: must be a valid UUID")
	}
	return nil
}

func wrapGetError(kind market.EntityKind, id string, err error) error {
	if market.IsNotFound(err) {
		return &EntityNotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("failed to fetch %s: %w", kind, err)
}

// EntityNotFoundError lets callers tell a missing entity from other failures.
type EntityNotFoundError struct {
	Kind market.EntityKind
	ID   string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.Kind, e.ID)
}

// IsNotFound returns true if the error is an EntityNotFoundError.
func IsNotFound(err error) bool {
	var nf *EntityNotFoundError
	return errors.As(err, &nf)
}
