package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ConversationReaper is the slice of conversation storage the janitor needs.
type ConversationReaper interface {
	FindStaleEmpty(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	DeleteIfEmpty(ctx context.Context, id string) (bool, error)
}

// Janitor periodically reclaims conversations that never received a first
// message within the TTL. Every sweep re-checks emptiness inside the delete
// transaction, so a conversation that went active between scan and delete is
// left alone.
type Janitor struct {
	store     ConversationReaper
	interval  time.Duration
	ttl       time.Duration
	batchSize int
	logger    *slog.Logger
	stopCh    chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
	now       func() time.Time
}

// Config holds janitor configuration. TTL is deliberately explicit
// configuration rather than a constant.
type Config struct {
	Interval  time.Duration
	TTL       time.Duration
	BatchSize int
}

// New creates a janitor.
func New(store ConversationReaper, cfg Config, logger *slog.Logger) *Janitor {
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}

	return &Janitor{
		store:     store,
		interval:  cfg.Interval,
		ttl:       cfg.TTL,
		batchSize: cfg.BatchSize,
		logger:    logger,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start launches the sweep loop.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true

	ctx, j.cancel = context.WithCancel(ctx)
	j.mu.Unlock()

	j.logger.Info("conversation janitor started", "interval", j.interval, "ttl", j.ttl)

	j.wg.Add(1)
	go j.run(ctx)
}

// Stop halts the loop and cancels any in-flight sweep.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	cancel := j.cancel
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("conversation janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-j.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweep reclaims one batch of stale empty conversations. Errors are logged
// and swallowed so the loop continues on the next tick.
func (j *Janitor) sweep(ctx context.Context) {
	cutoff := j.now().UTC().Add(-j.ttl)

	ids, err := j.store.FindStaleEmpty(ctx, cutoff, j.batchSize)
	if err != nil {
		j.logger.Error("scanning for stale conversations", "error", err)
		return
	}
	if len(ids) == 0 {
		j.logger.Debug("no stale empty conversations")
		return
	}

	deleted := 0
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ok, err := j.store.DeleteIfEmpty(ctx, id)
		if err != nil {
			j.logger.Error("deleting stale conversation", "conversation_id", id, "error", err)
			continue
		}
		if ok {
			deleted++
		}
	}

	j.logger.Info("reclaimed stale empty conversations", "scanned", len(ids), "deleted", deleted)
}
