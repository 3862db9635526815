package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/config"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/notify"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/testutil"
)

func loadConfig(t *testing.T, redisURL, keySecret string) *config.NestConfig {
	cfg := &config.NestConfig{
		Instance: "app-test",
		Redis:    config.RedisConfig{URL: redisURL},
		Payments: config.PaymentsConfig{KeySecret: keySecret},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestConnect(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)
	ctx := context.Background()

	client, err := Connect(ctx, loadConfig(t, "redis://"+mr.Addr()+"/0", ""))
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "app-test", client.InstanceName())

	_, err = Connect(ctx, loadConfig(t, "http://"+mr.Addr(), ""))
	assert.ErrorContains(t, err, "invalid redis url")

	mr.SetError("LOADING")
	_, err = Connect(ctx, loadConfig(t, "redis://"+mr.Addr()+"/0", ""))
	assert.ErrorContains(t, err, "redis not accessible")
}

func TestBuild(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	t.Run("without payment secret", func(t *testing.T) {
		e, err := Build(loadConfig(t, "redis://unused:6379", ""), env.Client, env.Clock, notify.Discard{})
		require.NoError(t, err)
		assert.Nil(t, e.Payments)

		res, err := e.Sweeper.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, res)
	})

	t.Run("engines share the store", func(t *testing.T) {
		rec := &notify.Recorder{}
		e, err := Build(loadConfig(t, "redis://unused:6379", "secret"), env.Client, clock.Fake(testutil.Start), rec)
		require.NoError(t, err)
		require.NotNil(t, e.Payments)

		owner, err := e.Directory.Actor(ctx, testutil.Owner)
		require.NoError(t, err)
		assert.Equal(t, testutil.Owner, owner.ID)

		n, err := e.Negotiations.Propose(ctx, testutil.Student, testutil.Room, 9000, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"negotiation.proposed"}, rec.Types())

		_, err = e.Negotiations.Get(ctx, n.ID, testutil.Owner)
		assert.NoError(t, err)
	})
}
