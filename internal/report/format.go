package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// FormatBookingsTable writes bookings as a table and returns how many it wrote.
func FormatBookingsTable(w io.Writer, bookings []*market.Booking, instanceName string, now time.Time) int {
	if len(bookings) == 0 {
		fmt.Fprintf(w, "No bookings found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Bookings for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-10s %-10s %-8s %-14s %-14s %-11s %10s %10s %s\n",
		"ID", "STATUS", "PAYMENT", "STUDENT", "ROOM", "MOVE-IN", "TOTAL", "PAID", "AGE")
	fmt.Fprintf(w, "%-10s %-10s %-8s %-14s %-14s %-11s %10s %10s %s\n",
		"----------", "----------", "--------", "--------------", "--------------", "-----------", "----------", "----------", "--------")

	for _, b := range bookings {
		fmt.Fprintf(w, "%-10s %-10s %-8s %-14s %-14s %-11s %10d %10d %s\n",
			formatID(b.ID),
			b.Status,
			b.PaymentStatus,
			truncate(b.StudentRef, 14),
			truncate(b.RoomRef, 14),
			b.MoveInDate.Format(market.DateLayout),
			b.TotalAmount,
			b.AmountPaid,
			formatAge(b.CreatedAtMs, now),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(bookings), plural(len(bookings), "booking"))
	return len(bookings)
}

// FormatListingsTable writes listings as a table and returns how many it wrote.
func FormatListingsTable(w io.Writer, listings []*market.Listing, instanceName string, now time.Time) int {
	if len(listings) == 0 {
		fmt.Fprintf(w, "No listings found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Listings for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-10s %-8s %-14s %-14s %-6s %-11s %s\n",
		"ID", "STATUS", "INITIATOR", "PROPERTY", "SLOTS", "UNTIL", "AGE")
	fmt.Fprintf(w, "%-10s %-8s %-14s %-14s %-6s %-11s %s\n",
		"----------", "--------", "--------------", "--------------", "------", "-----------", "--------")

	for _, l := range listings {
		until := "-"
		if !l.AvailableTill.IsZero() {
			until = l.AvailableTill.Format(market.DateLayout)
		}
		fmt.Fprintf(w, "%-10s %-8s %-14s %-14s %-6s %-11s %s\n",
			formatID(l.ID),
			l.Status,
			truncate(l.InitiatorRef, 14),
			truncate(l.PropertyRef, 14),
			fmt.Sprintf("%d/%d", len(l.Participants), l.MaxParticipants),
			until,
			formatAge(l.CreatedAtMs, now),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(listings), plural(len(listings), "listing"))
	return len(listings)
}

// FormatJSONL writes items as line-delimited JSON, one compact object per line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal entity to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one entity as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entity to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// formatID truncates IDs to their first 8 characters.
func formatID(id string) string {
	return truncate(id, 8)
}

func truncate(s string, n int) string {
	if s == "" {
		return "-"
	}
	if len(s) > n {
		if n <= 3 {
			return s[:n]
		}
		return s[:n-3] + "..."
	}
	return s
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}

// formatAge renders a millisecond timestamp relative to now: "2m ago", "1h ago".
func formatAge(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
