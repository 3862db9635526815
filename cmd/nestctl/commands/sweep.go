package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/app"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/notify"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/printer"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one maintenance sweep",
	Long: `Run the sweep nestd performs on every tick, once:

  • expire listings past their availability window
  • reap abandoned slot reservations
  • activate bookings whose move-in date has arrived
  • complete bookings whose move-out date has passed

Transitions are published like nestd's and printed here.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	recorder := &notify.Recorder{}
	publisher := notify.NewPublisher(client, 0)
	engines, err := app.Build(cfg, client, clock.Real(), notify.Fanout{recorder, publisher})
	if err != nil {
		return err
	}

	printer.Step("Sweeping instance '%s'...\n", cfg.Instance)
	res, err := engines.Sweeper.RunOnce(ctx)
	publisher.Wait()

	for _, e := range recorder.Events() {
		printer.Event(os.Stdout, e, cfg.Location())
	}
	if err != nil {
		return printer.Error("sweep incomplete", err.Error(), []string{"Run the sweep again; completed transitions are not repeated"})
	}

	printer.Success("%d listings expired, %d reservations reaped, %d bookings activated, %d bookings completed\n",
		res.Listings.Expired, res.Listings.Reaped, res.Bookings.Activated, res.Bookings.Completed)
	return nil
}
