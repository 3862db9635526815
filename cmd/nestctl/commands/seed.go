package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/printer"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load actors, properties and rooms from a catalog file",
	Long: `Load reference data into the instance. Existing records with the same
IDs are overwritten; nothing is deleted.

Examples:
  nestctl seed -f catalog.yml
  nestctl --name staging seed -f catalog.yml`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "catalog.yml", "Catalog file to load")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	seed, err := directory.LoadSeed(seedFile)
	if err != nil {
		return printer.Error(
			"invalid catalog",
			err.Error(),
			[]string{"Generate a starter catalog:\n  nestctl init"},
		)
	}

	if len(seed.Actors)+len(seed.Properties)+len(seed.Rooms) == 0 {
		printer.Warning("Catalog %s is empty, nothing to seed\n", seedFile)
		return nil
	}

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := seed.Apply(ctx, client); err != nil {
		return fmt.Errorf("failed to apply catalog: %w", err)
	}

	printer.Success("Seeded instance '%s': %d actors, %d properties, %d rooms\n",
		cfg.Instance, len(seed.Actors), len(seed.Properties), len(seed.Rooms))
	return nil
}
