package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReaper struct {
	mu         sync.Mutex
	stale      []string
	scanErr    error
	deleteErr  map[string]error
	notEmpty   map[string]bool
	deleted    []string
	lastCutoff time.Time
	lastLimit  int
}

func (f *fakeReaper) FindStaleEmpty(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCutoff = cutoff
	f.lastLimit = limit
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return append([]string(nil), f.stale...), nil
}

func (f *fakeReaper) DeleteIfEmpty(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return false, err
	}
	if f.notEmpty[id] {
		return false, nil
	}
	f.deleted = append(f.deleted, id)
	return true, nil
}

func newTestJanitor(store ConversationReaper, cfg Config) *Janitor {
	return New(store, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSweepReclaimsStaleConversations(t *testing.T) {
	store := &fakeReaper{stale: []string{"a-b", "c-d-7"}}
	j := newTestJanitor(store, Config{TTL: time.Hour, BatchSize: 50})

	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return frozen }

	j.sweep(context.Background())

	assert.Equal(t, []string{"a-b", "c-d-7"}, store.deleted)
	assert.Equal(t, frozen.Add(-time.Hour), store.lastCutoff)
	assert.Equal(t, 50, store.lastLimit)
}

func TestSweepSkipsConversationsThatWentActive(t *testing.T) {
	store := &fakeReaper{
		stale:    []string{"a-b", "c-d"},
		notEmpty: map[string]bool{"a-b": true},
	}
	j := newTestJanitor(store, Config{})

	j.sweep(context.Background())

	assert.Equal(t, []string{"c-d"}, store.deleted,
		"a conversation that received a message between scan and delete stays")
}

func TestSweepContinuesPastDeleteErrors(t *testing.T) {
	store := &fakeReaper{
		stale:     []string{"a-b", "c-d", "e-f"},
		deleteErr: map[string]error{"c-d": errors.New("deadlock")},
	}
	j := newTestJanitor(store, Config{})

	j.sweep(context.Background())

	assert.Equal(t, []string{"a-b", "e-f"}, store.deleted)
}

func TestSweepScanErrorDeletesNothing(t *testing.T) {
	store := &fakeReaper{scanErr: errors.New("connection refused")}
	j := newTestJanitor(store, Config{})

	j.sweep(context.Background())

	assert.Empty(t, store.deleted)
}

func TestSweepStopsWhenContextCancelled(t *testing.T) {
	store := &fakeReaper{stale: []string{"a-b", "c-d"}}
	j := newTestJanitor(store, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	j.sweep(ctx)

	assert.Empty(t, store.deleted)
}

func TestStartStop(t *testing.T) {
	store := &fakeReaper{}
	j := newTestJanitor(store, Config{Interval: 10 * time.Millisecond})

	j.Start(context.Background())
	j.Start(context.Background()) // second call is a no-op

	time.Sleep(35 * time.Millisecond)
	j.Stop()
	j.Stop() // stopping twice must not panic

	store.mu.Lock()
	limit := store.lastLimit
	store.mu.Unlock()
	require.Equal(t, 100, limit, "the loop ran at least one sweep with the default batch size")
}

func TestConfigDefaults(t *testing.T) {
	j := newTestJanitor(&fakeReaper{}, Config{})
	assert.Equal(t, 10*time.Minute, j.interval)
	assert.Equal(t, time.Hour, j.ttl)
	assert.Equal(t, 100, j.batchSize)
}
