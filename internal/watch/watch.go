// Package watch follows marketplace activity for nestctl: the live event
// stream and polling a booking until it reaches a status.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/printer"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// OutputFormat specifies how streamed events are written.
type OutputFormat string

const (
	// OutputFormatDefault writes one coloured line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes events as line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// Filter limits the stream. Empty fields match everything.
type Filter struct {
	ActorRef string // actor or recipient of the event
	Kind     market.EntityKind
}

func (f Filter) matches(e *market.Event) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.ActorRef == "" || e.ActorRef == f.ActorRef {
		return true
	}
	for _, r := range e.Recipients {
		if r == f.ActorRef {
			return true
		}
	}
	return false
}

// StreamEvents writes transition events to w until ctx is cancelled.
// Malformed messages are reported to errW and skipped.
func StreamEvents(ctx context.Context, client *market.Client, format OutputFormat, filter Filter, loc *time.Location, w, errW io.Writer) error {
	if format != OutputFormatDefault && format != OutputFormatJSON {
		return fmt.Errorf("unknown output format: %s", format)
	}

	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if ok {
				fmt.Fprintf(errW, "⚠️  %v\n", err)
			}
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !filter.matches(e) {
				continue
			}
			if format == OutputFormatJSON {
				data, err := json.Marshal(e)
				if err != nil {
					return fmt.Errorf("failed to marshal event: %w", err)
				}
				fmt.Fprintf(w, "%s\n", data)
				continue
			}
			printer.Event(w, e, loc)
		}
	}
}

// PollForBookingStatus polls a booking until it reaches status.
// Polls every 200ms for the specified timeout duration.
func PollForBookingStatus(ctx context.Context, client *market.Client, bookingID string, status market.BookingStatus, timeout time.Duration) (*market.Booking, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for booking %s to become %s after %v", bookingID, status, timeout)

		case <-ticker.C:
			b, err := client.GetBooking(ctx, bookingID)
			if err != nil {
				return nil, fmt.Errorf("failed to query booking: %w", err)
			}
			if b.Status == status {
				return b, nil
			}
			if b.Status.IsTerminal() {
				return b, fmt.Errorf("booking %s is %s and can no longer become %s", bookingID, b.Status, status)
			}
		}
	}
}
