package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/printer"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/report"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/resolver"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/timespec"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/watch"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// inspectFlags are shared by the bookings and listings commands.
type inspectFlags struct {
	output string
	since  string
	until  string
	status string
	actor  string
}

func (f *inspectFlags) register(cmd *cobra.Command, noun string) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	cmd.Flags().StringVar(&f.since, "since", "", fmt.Sprintf("Show %s created after time (duration, date or RFC3339)", noun))
	cmd.Flags().StringVar(&f.until, "until", "", fmt.Sprintf("Show %s created before time (duration, date or RFC3339)", noun))
	cmd.Flags().StringVar(&f.status, "status", "", "Filter by status (exact match)")
	cmd.Flags().StringVar(&f.actor, "actor", "", "Filter by party (student, owner or participant ID)")
}

var (
	bookingFlags    inspectFlags
	listingFlags    inspectFlags
	bookingWaitFor  string
	bookingWaitTime time.Duration
)

var bookingsCmd = &cobra.Command{
	Use:   "bookings [BOOKING_ID]",
	Short: "Inspect bookings with filtering",
	Long: `Inspect bookings in list or get mode.

List Mode (no BOOKING_ID):
  Displays bookings matching filters as a table or JSONL stream.

Get Mode (with BOOKING_ID):
  Displays the complete booking as pretty-printed JSON.
  Supports short IDs (e.g., "3f2a1c" instead of the full UUID).
  With --wait-for, first waits until the booking reaches that status.

Examples:
  # Confirmed bookings created in the last week
  nestctl bookings --status=confirmed --since=7d

  # Outstanding balances, via jq
  nestctl bookings -o jsonl | jq 'select(.amount_paid < .total_amount) | .id'

  # Wait for an owner to confirm
  nestctl bookings 3f2a1c --wait-for=confirmed --timeout=5m`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBookings,
}

var listingsCmd = &cobra.Command{
	Use:   "listings [LISTING_ID]",
	Short: "Inspect room-sharing listings with filtering",
	Long: `Inspect room-sharing listings in list or get mode.

List Mode (no LISTING_ID):
  Displays listings matching filters as a table or JSONL stream.

Get Mode (with LISTING_ID):
  Displays the complete listing, participants included, as JSON.

Examples:
  nestctl listings --status=active
  nestctl listings --actor=student-1 -o jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runListings,
}

func init() {
	bookingFlags.register(bookingsCmd, "bookings")
	bookingsCmd.Flags().StringVar(&bookingWaitFor, "wait-for", "", "Get mode: wait until the booking reaches this status")
	bookingsCmd.Flags().DurationVar(&bookingWaitTime, "timeout", time.Minute, "Maximum time to wait with --wait-for")
	listingFlags.register(listingsCmd, "listings")

	rootCmd.AddCommand(bookingsCmd)
	rootCmd.AddCommand(listingsCmd)
}

func runBookings(cmd *cobra.Command, args []string) error {
	return inspect(cmd, args, market.KindBooking, &bookingFlags)
}

func runListings(cmd *cobra.Command, args []string) error {
	return inspect(cmd, args, market.KindListing, &listingFlags)
}

func inspect(cmd *cobra.Command, args []string, kind market.EntityKind, flags *inspectFlags) error {
	ctx := context.Background()
	isGetMode := len(args) > 0

	var outputFormat report.OutputFormat
	if !isGetMode {
		switch flags.output {
		case "default":
			outputFormat = report.OutputFormatDefault
		case "jsonl":
			outputFormat = report.OutputFormatJSONL
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", flags.output),
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()

	if !isGetMode {
		sinceMS, untilMS, err := timespec.ParseRange(flags.since, flags.until, time.Now(), cfg.Location())
		if err != nil {
			return printer.Error(
				"invalid time filter",
				err.Error(),
				[]string{"Use a duration like '1h30m' or '7d', a date like '2025-10-29', or RFC3339 like '2025-10-29T13:00:00Z'"},
			)
		}
		filters := &report.FilterCriteria{
			SinceTimestampMs: sinceMS,
			UntilTimestampMs: untilMS,
			Status:           flags.status,
			ActorRef:         flags.actor,
		}
		if kind == market.KindBooking {
			err = report.ListBookings(ctx, client, outputFormat, filters, out)
		} else {
			err = report.ListListings(ctx, client, outputFormat, filters, out)
		}
		if err != nil {
			return fmt.Errorf("failed to list %ss: %w", kind, err)
		}
		return nil
	}

	shortID := args[0]
	fullID, err := resolver.ResolveID(ctx, client, kind, shortID)
	if err != nil {
		if resolver.IsNotFoundError(err) {
			return printer.Error(
				fmt.Sprintf("%s with ID '%s' not found", kind, shortID),
				fmt.Sprintf("No %s with that ID exists on instance '%s'.", kind, cfg.Instance),
				[]string{fmt.Sprintf("List them:\n  nestctl %ss", kind)},
			)
		}
		if resolver.IsAmbiguousError(err) {
			fmt.Fprintln(os.Stderr, resolver.FormatAmbiguousError(err.(*resolver.AmbiguousError)))
			return fmt.Errorf("ambiguous short ID")
		}
		return fmt.Errorf("failed to resolve %s ID: %w", kind, err)
	}

	if kind == market.KindBooking && bookingWaitFor != "" {
		status := market.BookingStatus(bookingWaitFor)
		if err := status.Validate(); err != nil {
			return printer.Error("invalid --wait-for", err.Error(), []string{"Valid statuses: pending, confirmed, active, cancelled, completed"})
		}
		printer.Step("Waiting up to %s for booking %s to become %s...\n", bookingWaitTime, fullID, status)
		if _, err := watch.PollForBookingStatus(ctx, client, fullID, status, bookingWaitTime); err != nil {
			return printer.Error("booking did not reach "+string(status), err.Error(), nil)
		}
	}

	if kind == market.KindBooking {
		err = report.GetBooking(ctx, client, fullID, out)
	} else {
		err = report.GetListing(ctx, client, fullID, out)
	}
	if err != nil {
		if report.IsNotFound(err) {
			return printer.Error(
				err.Error(),
				fmt.Sprintf("The %s was resolved but could not be fetched.", kind),
				[]string{"This might indicate a race condition. Try again."},
			)
		}
		return fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return nil
}
