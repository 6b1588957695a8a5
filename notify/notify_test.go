package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TravBots/hammer-tracker/config"
	"github.com/TravBots/hammer-tracker/notify"
	"github.com/TravBots/hammer-tracker/observability"
	"github.com/TravBots/hammer-tracker/tracker"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client, *notify.Publisher) {
	t.Helper()

	mr := miniredis.RunT(t)

	rdb, err := notify.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second})
	require.NoError(t, err)

	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb, notify.NewPublisher(rdb, "raid", time.Hour, observability.Discard())
}

func outcome() *tracker.Outcome {
	return &tracker.Outcome{
		Report: tracker.RateReport{
			IngestID:  "ingest-1",
			GuildID:   "111",
			ChannelID: "chan-1",
			Entries: []tracker.PlayerRate{
				{Rank: 1, Name: "Alice", Current: tracker.Measured(500), Week: tracker.Unavailable(), Total: 1600},
			},
		},
		Text:     "**Raiding Rates**",
		Inserted: 1,
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()

	_, _, pub := setup(t)

	assert.Equal(t, "raid:reports:111", pub.ReportsChannel("111"))
	assert.Equal(t, "raid:latest:111", pub.LatestKey("111"))
}

func TestPublishStoresLatestWithTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, _, pub := setup(t)

	require.NoError(t, pub.Publish(ctx, "111", outcome()))

	assert.True(t, mr.Exists("raid:latest:111"))
	assert.Equal(t, time.Hour, mr.TTL("raid:latest:111"))

	msg, err := pub.Latest(ctx, "111")
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "111", msg.GuildID)
	assert.Equal(t, "chan-1", msg.ChannelID)
	assert.Equal(t, "**Raiding Rates**", msg.Text)
	require.Len(t, msg.Report.Entries, 1)
	assert.Equal(t, tracker.Measured(500), msg.Report.Entries[0].Current)
	assert.Equal(t, tracker.Unavailable(), msg.Report.Entries[0].Week)

	mr.FastForward(2 * time.Hour)

	msg, err = pub.Latest(ctx, "111")
	require.NoError(t, err)
	assert.Nil(t, msg, "the cached report expires")
}

func TestPublishBroadcasts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, rdb, pub := setup(t)

	sub := rdb.Subscribe(ctx, pub.ReportsChannel("111"))
	t.Cleanup(func() { _ = sub.Close() })

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, "111", outcome()))

	select {
	case m := <-sub.Channel():
		var msg notify.Message
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &msg))
		assert.Equal(t, "ingest-1", msg.Report.IngestID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestLatestWithoutReport(t *testing.T) {
	t.Parallel()

	_, _, pub := setup(t)

	msg, err := pub.Latest(context.Background(), "222")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestLatestCorruptPayload(t *testing.T) {
	t.Parallel()

	mr, _, pub := setup(t)
	require.NoError(t, mr.Set("raid:latest:111", "not json"))

	_, err := pub.Latest(context.Background(), "111")
	assert.Error(t, err)
}

func TestNewClientUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := notify.NewClient(context.Background(), config.RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond})
	assert.Error(t, err)
}
