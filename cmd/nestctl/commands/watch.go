package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/printer"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/watch"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

var (
	watchOutputFormat string
	watchActor        string
	watchKind         string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream marketplace transitions as they happen",
	Long: `Stream the transition events nestd publishes: applications, listings,
negotiations, bookings, payments and visits.

Events are best-effort; anything published while nothing is watching is
not replayed.

Output Formats:
  default - One coloured line per event
  json    - Line-delimited JSON for programmatic processing

Examples:
  nestctl watch
  nestctl watch --actor=owner-1 --kind=visit
  nestctl watch --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchActor, "actor", "", "Only events by or addressed to this actor")
	watchCmd.Flags().StringVar(&watchKind, "kind", "", "Only events about this entity kind (listing, application, negotiation, booking, visit)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if outputFormat == watch.OutputFormatDefault {
		printer.Step("Watching instance '%s' (Ctrl-C to stop)\n", cfg.Instance)
	}
	filter := watch.Filter{ActorRef: watchActor, Kind: market.EntityKind(watchKind)}
	return watch.StreamEvents(ctx, client, outputFormat, filter, cfg.Location(), cmd.OutOrStdout(), os.Stderr)
}
