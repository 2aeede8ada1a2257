package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fiberdash/backend/internal/infrastructure/replication"
)

// Backend names reported by Online. They match the Name() of the
// corresponding session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Monitor struct {
	pg    *pgxpool.Pool
	redis *redislib.Client
	queue *replication.Store

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	logger   *zap.Logger
}

func New(pg *pgxpool.Pool, redis *redislib.Client, queue *replication.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		queue:    queue,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL || m.status.Redis
}

// Online reports whether one named backend is reachable. Unknown names are
// treated as online so client-bound media never block a replay attempt.
func (m *Monitor) Online(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch name {
	case BackendPostgres:
		return m.status.PostgreSQL
	case BackendRedis:
		return m.status.Redis
	default:
		return true
	}
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh()
	for {
		select {
		case <-ticker.C:
			m.refresh()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) refresh() {
	queueOK, pending := m.checkQueue()
	status := Status{
		PostgreSQL:    m.checkPostgres(),
		Redis:         m.checkRedis(),
		Queue:         queueOK,
		PendingWrites: pending,
		LastCheck:     time.Now(),
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) checkPostgres() bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) checkRedis() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) checkQueue() (bool, int) {
	if m.queue == nil {
		return false, 0
	}
	size, err := m.queue.Size()
	if err != nil {
		m.logger.Warn("replication queue size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
