package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/internal/infrastructure/replication"
	"github.com/fiberdash/backend/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
	Online(name string) bool
}

// ReplicatorConfig controls how frequently the queue is drained.
type ReplicatorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// MaxAge discards pending writes older than this; a session record that
	// waited longer than its own lifetime has nothing left to restore.
	MaxAge time.Duration
}

// Replicator replays queued session writes against backends that were
// unreachable when the write happened.
type Replicator struct {
	store    *replication.Store
	monitor  ConnectionHealth
	backends map[string]repository.SessionBackend
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ReplicatorConfig
}

func NewReplicator(
	store *replication.Store,
	monitor ConnectionHealth,
	backends []repository.SessionBackend,
	logger *zap.Logger,
	cfg ReplicatorConfig,
) *Replicator {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 8 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	byName := make(map[string]repository.SessionBackend, len(backends))
	for _, backend := range backends {
		byName[backend.Name()] = backend
	}

	r := &Replicator{
		store:    store,
		monitor:  monitor,
		backends: byName,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := r.Drain(ctx); err != nil {
			r.logger.Error("replication drain failed", zap.Error(err))
		}
	})

	return r
}

// Start launches the cron scheduler.
func (r *Replicator) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("session replicator started")
}

// Stop gracefully stops the scheduler.
func (r *Replicator) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("session replicator stopped")
}

// Drain replays pending writes whose target backend is reachable again.
func (r *Replicator) Drain(ctx context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}
	if r.monitor != nil && !r.monitor.IsOnline() {
		r.logger.Debug("skipping replication drain (offline)")
		return nil
	}

	if err := r.store.Cleanup(time.Now().Add(-r.cfg.MaxAge)); err != nil {
		r.logger.Warn("queue cleanup failed", zap.Error(err))
	}

	items, err := r.store.GetBatch(r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if r.monitor != nil && !r.monitor.Online(item.Backend) {
			continue
		}

		if err := r.replay(ctx, item); err != nil {
			r.logger.Error("failed to replay session write",
				zap.String("item_id", item.ID),
				zap.String("backend", item.Backend),
				zap.String("session_id", item.SessionID),
				zap.Error(err))

			item.Retries++
			if item.Retries >= r.cfg.MaxRetries {
				r.logger.Warn("dropping pending write (max retries reached)",
					zap.String("item_id", item.ID))
				_ = r.store.Remove(item)
				continue
			}

			if err := r.store.Remove(item); err != nil {
				r.logger.Warn("failed to remove pending write", zap.Error(err))
			}
			if err := r.store.Requeue(item); err != nil {
				r.logger.Error("failed to requeue pending write", zap.Error(err))
			}
			continue
		}

		if err := r.store.Remove(item); err != nil {
			r.logger.Warn("failed to purge replayed write", zap.Error(err))
		}
	}
	return nil
}

// Enqueue persists a pending write for a later drain.
func (r *Replicator) Enqueue(item replication.Item) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("replicator not configured")
	}
	return r.store.Enqueue(item)
}

// Size returns the number of pending writes.
func (r *Replicator) Size() int {
	if r == nil || r.store == nil {
		return 0
	}
	size, err := r.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (r *Replicator) replay(ctx context.Context, item replication.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backend, ok := r.backends[item.Backend]
	if !ok {
		return fmt.Errorf("unknown backend %s", item.Backend)
	}

	switch item.Operation {
	case replication.OperationSave:
		var record domain.SessionRecord
		if err := json.Unmarshal(item.Data, &record); err != nil {
			return err
		}
		return backend.Save(ctx, &record)
	case replication.OperationDelete:
		return backend.Delete(ctx, item.SessionID)
	default:
		return fmt.Errorf("unsupported operation %s", item.Operation)
	}
}
