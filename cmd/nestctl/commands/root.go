package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/app"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/config"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/printer"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

var (
	version string
	commit  string
	date    string

	configPath   string
	instanceName string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nestctl",
	Short: "nestctl - operate a StudentNest marketplace instance",
	Long: `nestctl seeds reference data, runs maintenance sweeps and inspects
the room-sharing listings, bookings and transition events of a StudentNest
instance stored in Redis.

Configuration comes from nest.yml (--config), .env and the environment.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Formatted errors are printed by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to nest.yml (defaults plus environment if omitted)")
	rootCmd.PersistentFlags().StringVarP(&instanceName, "name", "n", "", "Target instance name (overrides config)")
}

// loadConfig loads .env and nest.yml, then applies --name.
func loadConfig() (*config.NestConfig, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, printer.Error("failed to load .env", err.Error(), nil)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{"Check nest.yml or pass another file:\n  nestctl --config path/to/nest.yml"},
		)
	}
	if instanceName != "" {
		cfg.Instance = instanceName
		if err := cfg.Validate(); err != nil {
			return nil, printer.Error("invalid instance name", err.Error(), nil)
		}
	}
	return cfg, nil
}

// connect loads the configuration and opens the market client.
func connect(ctx context.Context) (*config.NestConfig, *market.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := app.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, printer.ErrorWithContext(
			"Redis connection failed",
			err.Error(),
			map[string]string{"Instance": cfg.Instance, "Redis": cfg.Redis.URL},
			[]string{
				"Check that Redis is running",
				fmt.Sprintf("Point nestctl at it:\n  export %s=redis://host:6379/0", config.EnvRedisURL),
			},
		)
	}
	return cfg, client, nil
}
