package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-referral/internal/domain/referral"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/x?sslmode=disable", migrateURL("postgres://u:p@db:5432/x?sslmode=disable"))
	assert.Equal(t, "pgx5://db/x", migrateURL("postgresql://db/x"))
	assert.Equal(t, "pgx5://db/x", migrateURL("pgx5://db/x"))
}

func testDatabase(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, Migrate(url, nil))
	return url
}

func TestStateStore_RoundTrip(t *testing.T) {
	url := testDatabase(t)
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	store := NewStateStore(pool, "test-"+time.Now().Format("150405.000000"), nil)
	defer store.Delete(ctx)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, referral.ErrStateNotFound)

	require.NoError(t, store.Save(ctx, []byte(`{"notesGenerated":true}`)))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"notesGenerated":true}`, string(got))

	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, referral.ErrStateNotFound)
}

type recordingPublisher struct {
	mu   sync.Mutex
	fail bool
	sent map[string]int
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	if p.sent == nil {
		p.sent = map[string]int{}
	}
	p.sent[topic]++
	return nil
}

func TestOutbox_RelayAndDeadLetter(t *testing.T) {
	url := testDatabase(t)
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `DELETE FROM outbox`)
	require.NoError(t, err)

	sink := NewOutboxSink(pool, "referral.events", nil)
	evt, err := referral.NewEvent("ref-1", referral.EventReferralCreated, referral.ReferralCreatedData{ReferralID: "ref-1"})
	require.NoError(t, err)
	require.NoError(t, sink.Publish(ctx, evt))
	require.NoError(t, sink.Publish(ctx, evt))

	pub := &recordingPublisher{fail: true}
	cfg := DefaultOutboxConfig()
	cfg.MaxRetries = 1
	relay := NewOutbox(pool, pub, cfg, nil)

	n, err := relay.RelayBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stats, err := relay.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(1), stats.Failed)

	pub.fail = false
	moved, err := relay.MoveToDeadLetter(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)
	assert.Equal(t, 1, pub.sent["referral.events.dlq"])

	evt2, err := referral.NewEvent("ref-2", referral.EventReferralCompleted, referral.ReferralCompletedData{ReferralID: "ref-2"})
	require.NoError(t, err)
	require.NoError(t, sink.Publish(ctx, evt2))
	n, err = relay.RelayBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, pub.sent["referral.events"])
}

func TestEventLog_AppendAndRead(t *testing.T) {
	url := testDatabase(t)
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	log := NewEventLog(pool, nil)
	id := "ref-" + time.Now().Format("150405.000000")
	defer pool.Exec(ctx, `DELETE FROM referral_events WHERE aggregate_id = $1`, id)

	created, err := referral.NewEvent(id, referral.EventReferralCreated, referral.ReferralCreatedData{ReferralID: id})
	require.NoError(t, err)
	completed, err := referral.NewEvent(id, referral.EventReferralCompleted, referral.ReferralCompletedData{ReferralID: id})
	require.NoError(t, err)

	require.NoError(t, log.Publish(ctx, created))
	require.NoError(t, log.Publish(ctx, completed))
	require.NoError(t, log.Publish(ctx, created))

	events, err := log.GetEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, created.ID, events[0].ID)
	assert.Equal(t, referral.EventReferralCompleted, events[1].EventType)
}
