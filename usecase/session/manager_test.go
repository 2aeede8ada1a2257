package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/httpcontext"
	"github.com/fiberdash/backend/repository"
)

// fakeBackend is an in-memory SessionBackend with a toggleable outage.
type fakeBackend struct {
	mu      sync.Mutex
	name    string
	tier    domain.BackendTier
	down    bool
	records map[string]*domain.SessionRecord
	last    string

	saves   int
	deletes int
}

func newFakeBackend(name string, tier domain.BackendTier) *fakeBackend {
	return &fakeBackend{
		name:    name,
		tier:    tier,
		records: make(map[string]*domain.SessionRecord),
	}
}

func (f *fakeBackend) Name() string             { return f.name }
func (f *fakeBackend) Tier() domain.BackendTier { return f.tier }

func (f *fakeBackend) Save(ctx context.Context, record *domain.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return domain.Unavailable(f.name, errors.New("backend offline"))
	}
	clone := *record
	f.records[record.SessionID] = &clone
	f.last = record.SessionID
	f.saves++
	return nil
}

func (f *fakeBackend) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, domain.Unavailable(f.name, errors.New("backend offline"))
	}
	if sessionID == "" {
		sessionID = f.last
	}
	record, ok := f.records[sessionID]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (f *fakeBackend) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return domain.Unavailable(f.name, errors.New("backend offline"))
	}
	delete(f.records, sessionID)
	f.deletes++
	return nil
}

func (f *fakeBackend) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, domain.Unavailable(f.name, errors.New("backend offline"))
	}
	removed := 0
	for id, record := range f.records {
		if record.SignedOut || !now.Before(record.ExpiresAt) {
			delete(f.records, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeBackend) has(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[sessionID]
	return ok
}

func (f *fakeBackend) get(sessionID string) *domain.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[sessionID]
}

// fakeIndexBackend adds per-user enumeration ordered oldest first.
type fakeIndexBackend struct {
	*fakeBackend
}

func (f *fakeIndexBackend) ActiveIDs(ctx context.Context, username string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, domain.Unavailable(f.name, errors.New("backend offline"))
	}
	var active []*domain.SessionRecord
	for _, record := range f.records {
		if record.Username == username && !record.SignedOut {
			active = append(active, record)
		}
	}
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[j].CreatedAt.Before(active[i].CreatedAt) {
				active[i], active[j] = active[j], active[i]
			}
		}
	}
	ids := make([]string, 0, len(active))
	for _, record := range active {
		ids = append(ids, record.SessionID)
	}
	return ids, nil
}

func (f *fakeIndexBackend) ActiveCount(ctx context.Context, username string) (int, error) {
	ids, err := f.ActiveIDs(ctx, username)
	return len(ids), err
}

func (f *fakeIndexBackend) DeleteAllForUser(ctx context.Context, username string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, record := range f.records {
		if record.Username == username && !record.SignedOut {
			record.SignedOut = true
			n++
		}
	}
	return n, nil
}

// fakeHintBackend pretends to be a reference-only medium.
type fakeHintBackend struct {
	*fakeBackend
	hint string
}

func (f *fakeHintBackend) SessionHint(ctx context.Context) string { return f.hint }

func (f *fakeHintBackend) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	return nil, nil
}

func (f *fakeHintBackend) Delete(ctx context.Context, sessionID string) error {
	if f.hint == sessionID {
		f.hint = ""
	}
	return f.fakeBackend.Delete(ctx, sessionID)
}

type fakeAudits struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *fakeAudits) Append(ctx context.Context, event domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudits) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEvent(nil), a.events...), nil
}

func (a *fakeAudits) named(name string) []domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEvent
	for _, event := range a.events {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out
}

type queuedWrite struct {
	backend   string
	sessionID string
	delete    bool
}

type fakeQueue struct {
	mu     sync.Mutex
	writes []queuedWrite
}

func (q *fakeQueue) QueueSave(ctx context.Context, backend string, record *domain.SessionRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writes = append(q.writes, queuedWrite{backend: backend, sessionID: record.SessionID})
	return nil
}

func (q *fakeQueue) QueueDelete(ctx context.Context, backend string, sessionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writes = append(q.writes, queuedWrite{backend: backend, sessionID: sessionID, delete: true})
	return nil
}

func (q *fakeQueue) saved(backend string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []string
	for _, w := range q.writes {
		if w.backend == backend && !w.delete {
			ids = append(ids, w.sessionID)
		}
	}
	return ids
}

type fixture struct {
	manager *Manager
	db      *fakeIndexBackend
	cache   *fakeBackend
	cookie  *fakeBackend
	queue   *fakeQueue
	audits  *fakeAudits
	clock   time.Time
}

func alice() domain.Identity {
	return domain.Identity{Username: "alice", Email: "alice@fiberdash.example", Role: "engineer"}
}

func testManager(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		db:     &fakeIndexBackend{fakeBackend: newFakeBackend("postgres", domain.TierHigh)},
		cache:  newFakeBackend("redis", domain.TierHigh),
		cookie: newFakeBackend("cookie", domain.TierMedium),
		queue:  &fakeQueue{},
		audits: &fakeAudits{},
		clock:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.manager = New([]repository.SessionBackend{f.db, f.cache, f.cookie}, f.queue, f.audits, cfg, zap.NewNop())
	f.manager.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func TestCreateWritesEveryBackend(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "fp-1")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.GreaterOrEqual(t, len(record.SessionID), 32)
	assert.Equal(t, f.clock.Add(time.Hour), record.ExpiresAt)
	assert.True(t, f.db.has(record.SessionID))
	assert.True(t, f.cache.has(record.SessionID))
	assert.True(t, f.cookie.has(record.SessionID))
	assert.Empty(t, f.queue.writes)
}

func TestCreateAllBackendsDown(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})
	f.db.down = true
	f.cache.down = true
	f.cookie.down = true

	record, err := f.manager.Create(context.Background(), alice(), "")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, domain.ErrAllBackendsUnavailable)
}

func TestCreateQueuesFailedPersistedWrites(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})
	f.cache.down = true

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	assert.True(t, f.db.has(record.SessionID))
	assert.False(t, f.cache.has(record.SessionID))
	assert.Equal(t, []string{record.SessionID}, f.queue.saved("redis"))
	assert.Empty(t, f.queue.saved("cookie"))
}

func TestCreateRejectsPartialIdentity(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	_, err := f.manager.Create(context.Background(), domain.Identity{Username: "alice"}, "")
	assert.ErrorIs(t, err, domain.ErrMissingIdentity)
}

func TestLoadFallsThroughAndHeals(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	// Primary stores lose the record; only the cookie copy survives.
	require.NoError(t, f.db.Delete(context.Background(), record.SessionID))
	require.NoError(t, f.cache.Delete(context.Background(), record.SessionID))

	loaded, err := f.manager.Load(context.Background(), record.SessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.SessionID, loaded.SessionID)
	assert.Equal(t, "alice", loaded.Username)

	// Self-healing: the winning copy was written back upstream.
	assert.True(t, f.db.has(record.SessionID))
	assert.True(t, f.cache.has(record.SessionID))
}

func TestLoadDuringOutageQueuesHeal(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	f.db.down = true

	loaded, err := f.manager.Load(context.Background(), record.SessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	// The database missed the heal write; it must be queued for replay.
	assert.Equal(t, []string{record.SessionID}, f.queue.saved("postgres"))
}

func TestLoadPurgesInvalidCopies(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	// Corrupt the database copy into an expired one.
	stale := *record
	stale.ExpiresAt = f.clock.Add(-time.Minute)
	f.db.records[record.SessionID] = &stale

	loaded, err := f.manager.Load(context.Background(), record.SessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded, "valid cache copy should win")

	healed := f.db.get(record.SessionID)
	require.NotNil(t, healed, "invalid copy should be replaced by the healed one")
	assert.True(t, f.clock.Before(healed.ExpiresAt))
}

func TestLoadAbsentIsNotAnError(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Load(context.Background(), "no-such-session")
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestRefreshExtendsActiveSession(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	f.advance(59 * time.Minute)
	ok, err := f.manager.Refresh(context.Background(), record.SessionID, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	refreshed := f.db.get(record.SessionID)
	require.NotNil(t, refreshed)
	assert.Equal(t, f.clock.Add(time.Hour), refreshed.ExpiresAt)
	assert.Equal(t, f.clock, refreshed.LastActivityAt)
}

func TestRefreshNeverResurrects(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	f.advance(61 * time.Minute)
	ok, err := f.manager.Refresh(context.Background(), record.SessionID, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := f.manager.Load(context.Background(), record.SessionID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	f.advance(time.Hour)
	loaded, err := f.manager.Load(context.Background(), record.SessionID)
	require.NoError(t, err)
	assert.Nil(t, loaded, "now == ExpiresAt must count as expired")
}

func TestEndTombstonesEverywhere(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	require.NoError(t, f.manager.End(context.Background(), record.SessionID))

	dbCopy := f.db.get(record.SessionID)
	require.NotNil(t, dbCopy)
	assert.True(t, dbCopy.SignedOut)
	assert.False(t, f.cookie.has(record.SessionID), "client-bound copy should be dropped")

	loaded, err := f.manager.Load(context.Background(), record.SessionID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// A clock rollback must not revive a signed-out session.
	f.clock = f.clock.Add(-2 * time.Hour)
	loaded, err = f.manager.Load(context.Background(), record.SessionID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestEndQueuesTombstoneDuringOutage(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	f.cache.down = true
	require.NoError(t, f.manager.End(context.Background(), record.SessionID))

	assert.Contains(t, f.queue.saved("redis"), record.SessionID)
}

func TestEndOtherSessionStaysRevoked(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	first, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)
	f.advance(time.Minute)
	second, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	// The client is bound to the second session; the first is revoked while
	// its old cookie copy lingers on another device.
	require.NoError(t, f.manager.End(context.Background(), first.SessionID))

	gone, err := f.manager.Load(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Nil(t, gone, "stale client copy must not outlive the revocation")

	dbCopy := f.db.get(first.SessionID)
	require.NotNil(t, dbCopy)
	assert.True(t, dbCopy.SignedOut, "tombstone must not be healed over")

	kept, err := f.manager.Load(context.Background(), second.SessionID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "alice", kept.Username)
}

func TestLoadDropsReplayedClientCopyAfterEnd(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)
	require.NoError(t, f.manager.End(context.Background(), record.SessionID))

	// The client replays its pre-logout cookie copy.
	live := *record
	f.cookie.records[record.SessionID] = &live

	loaded, err := f.manager.Load(context.Background(), record.SessionID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.False(t, f.cookie.has(record.SessionID), "replayed copy should be dropped")

	dbCopy := f.db.get(record.SessionID)
	require.NotNil(t, dbCopy)
	assert.True(t, dbCopy.SignedOut)
}

func TestEndClearsSessionReference(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	hintBackend := &fakeHintBackend{
		fakeBackend: newFakeBackend("urlparam", domain.TierLow),
		hint:        record.SessionID,
	}
	f.manager.backends = append(f.manager.backends, hintBackend)

	require.NoError(t, f.manager.End(context.Background(), record.SessionID))
	assert.Empty(t, hintBackend.hint, "dangling reference should be cleared")
}

func TestEndUnknownSessionSkipsAudit(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	require.NoError(t, f.manager.End(context.Background(), "no-such-session"))
	assert.Empty(t, f.audits.named(domain.AuditSessionRevoked))

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)
	require.NoError(t, f.manager.End(context.Background(), record.SessionID))

	revoked := f.audits.named(domain.AuditSessionRevoked)
	require.Len(t, revoked, 1)
	assert.Equal(t, "alice", revoked[0].Username)
}

func TestEndAllForUserKeepsCurrent(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	first, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)
	f.advance(time.Minute)
	second, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	ended, err := f.manager.EndAllForUser(context.Background(), "alice", second.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, ended)

	gone, err := f.manager.Load(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := f.manager.Load(context.Background(), second.SessionID)
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestSessionCapEvictsOldest(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour, MaxSessionsPerUser: 2})

	first, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)
	f.advance(time.Minute)
	second, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)
	f.advance(time.Minute)
	third, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	gone, err := f.manager.Load(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Nil(t, gone, "oldest session should be evicted")

	for _, id := range []string{second.SessionID, third.SessionID} {
		kept, err := f.manager.Load(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, kept)
	}
}

func TestFingerprintStrictRejects(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour, FingerprintMode: FingerprintStrict})

	record, err := f.manager.Create(context.Background(), alice(), "fp-original")
	require.NoError(t, err)

	ctx := httpcontext.WithFingerprint(context.Background(), "fp-hijacker")
	loaded, err := f.manager.Load(ctx, record.SessionID)
	assert.Nil(t, loaded)
	assert.ErrorIs(t, err, domain.ErrFingerprintMismatch)
}

func TestFingerprintLenientContinues(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour, FingerprintMode: FingerprintLenient})

	record, err := f.manager.Create(context.Background(), alice(), "fp-original")
	require.NoError(t, err)

	ctx := httpcontext.WithFingerprint(context.Background(), "fp-other")
	loaded, err := f.manager.Load(ctx, record.SessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.SessionID, loaded.SessionID)
}

func TestHintResolution(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)

	hintBackend := &fakeHintBackend{
		fakeBackend: newFakeBackend("urlparam", domain.TierLow),
		hint:        record.SessionID,
	}
	f.manager.backends = append(f.manager.backends, hintBackend)

	loaded, err := f.manager.Load(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.SessionID, loaded.SessionID)
}

func TestCleanupSweepsAllBackends(t *testing.T) {
	f := testManager(t, Config{Timeout: time.Hour})

	record, err := f.manager.Create(context.Background(), alice(), "")
	require.NoError(t, err)
	require.NoError(t, f.manager.End(context.Background(), record.SessionID))

	f.advance(2 * time.Hour)
	removed, err := f.manager.Cleanup(context.Background(), f.clock)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 2)
	assert.False(t, f.db.has(record.SessionID))
}
