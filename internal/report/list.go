// Package report renders marketplace entities for operators: tables for
// people and JSONL for tools like jq.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// OutputFormat specifies how to format list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table with truncated IDs
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete entities as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for list commands.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64  // created at or after, 0 = no filter
	UntilTimestampMs int64  // created at or before, 0 = no filter
	Status           string // exact status, empty = no filter
	ActorRef         string // a party to the entity, empty = no filter
}

func (fc *FilterCriteria) matches(createdAtMs int64, status string, parties ...string) bool {
	if fc == nil {
		return true
	}
	if fc.SinceTimestampMs > 0 && createdAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && createdAtMs > fc.UntilTimestampMs {
		return false
	}
	if fc.Status != "" && status != fc.Status {
		return false
	}
	if fc.ActorRef != "" {
		for _, p := range parties {
			if p == fc.ActorRef {
				return true
			}
		}
		return false
	}
	return true
}

// scanIDs returns the IDs of every entity hash of one kind. Uses SCAN so the
// server is never blocked; child keys such as booking:{id}:payments are skipped.
func scanIDs(ctx context.Context, client *market.Client, kind market.EntityKind) ([]string, error) {
	prefix := fmt.Sprintf("nest:%s:%s:", client.InstanceName(), kind)
	iter := client.RedisClient().Scan(ctx, 0, prefix+"*", 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), prefix)
		if id == "" || strings.Contains(id, ":") {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s keys: %w", kind, err)
	}
	return ids, nil
}

// ListBookings writes every booking matching filters, oldest first.
// Malformed bookings are skipped with a warning on stderr.
func ListBookings(ctx context.Context, client *market.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	ids, err := scanIDs(ctx, client, market.KindBooking)
	if err != nil {
		return err
	}

	var bookings []*market.Booking
	for _, id := range ids {
		b, err := client.GetBooking(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Skipping malformed booking: id=%s (error: %v)\n", id, err)
			continue
		}
		if !filters.matches(b.CreatedAtMs, string(b.Status), b.StudentRef, b.OwnerRef) {
			continue
		}
		bookings = append(bookings, b)
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAtMs < bookings[j].CreatedAtMs
	})

	switch format {
	case OutputFormatDefault:
		FormatBookingsTable(w, bookings, client.InstanceName(), time.Now())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, bookings); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// ListListings writes every room-sharing listing matching filters, oldest first.
func ListListings(ctx context.Context, client *market.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	ids, err := scanIDs(ctx, client, market.KindListing)
	if err != nil {
		return err
	}

	var listings []*market.Listing
	for _, id := range ids {
		l, err := client.GetListing(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Skipping malformed listing: id=%s (error: %v)\n", id, err)
			continue
		}
		parties := make([]string, 0, len(l.Participants))
		for _, p := range l.Participants {
			parties = append(parties, p.UserRef)
		}
		if !filters.matches(l.CreatedAtMs, string(l.Status), parties...) {
			continue
		}
		listings = append(listings, l)
	}

	sort.Slice(listings, func(i, j int) bool {
		return listings[i].CreatedAtMs < listings[j].CreatedAtMs
	})

	switch format {
	case OutputFormatDefault:
		FormatListingsTable(w, listings, client.InstanceName(), time.Now())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, listings); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}
