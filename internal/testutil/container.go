//go:build integration

package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/notify"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// StartRedis starts a redis:7-alpine container for the test and returns its URL.
// The container is terminated on cleanup.
func StartRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

// NewRedisEnv is NewEnv against a real Redis: Lua scripts run with real
// atomicity and key expiry. Redis is left nil.
func NewRedisEnv(t *testing.T) *Env {
	t.Helper()

	opts, err := redis.ParseURL(StartRedis(t))
	require.NoError(t, err)

	client, err := market.NewClient(opts, "it-"+uuid.New().String()[:8])
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, Fixtures().Apply(context.Background(), client))

	return &Env{
		Client:   client,
		Store:    directory.NewStore(client),
		Clock:    clock.Fake(Start),
		Recorder: &notify.Recorder{},
	}
}
