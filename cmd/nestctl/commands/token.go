package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/api"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/config"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/printer"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token ACTOR_ID",
	Short: "Mint a bearer token for a seeded actor",
	Long: `Mint an HS256 bearer token for an actor, signed with auth.jwt_secret.
Intended for development and support; production tokens come from the
identity service.

Example:
  curl -H "Authorization: Bearer $(nestctl token student-1)" localhost:8080/bookings`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.token_ttl)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.Auth.JWTSecret == "" {
		return printer.Error(
			"no signing secret",
			"auth.jwt_secret is not configured.",
			[]string{fmt.Sprintf("Set it in nest.yml or export %s", config.EnvJWTSecret)},
		)
	}

	actor, err := directory.NewStore(client).Actor(ctx, args[0])
	if err != nil {
		if market.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("actor '%s' not found", args[0]),
				fmt.Sprintf("Instance '%s' has no such actor.", cfg.Instance),
				[]string{"Seed reference data first:\n  nestctl seed -f catalog.yml"},
			)
		}
		return err
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.TokenTTL()
	}
	token, err := api.IssueToken(cfg.Auth.JWTSecret, actor, ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
