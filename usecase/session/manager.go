package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/fingerprint"
	"github.com/fiberdash/backend/pkg/httpcontext"
	"github.com/fiberdash/backend/repository"
	"github.com/fiberdash/backend/usecase"
)

// Fingerprint enforcement modes. The mode is a single manager-wide switch;
// backends never apply their own fingerprint policy.
const (
	FingerprintOff     = "off"
	FingerprintLenient = "lenient"
	FingerprintStrict  = "strict"
)

// Config tunes the continuity manager.
type Config struct {
	// Timeout is the idle lifetime granted at creation and on refresh.
	Timeout time.Duration
	// MaxSessionsPerUser caps concurrent sessions; 0 disables the cap.
	MaxSessionsPerUser int
	// FingerprintMode is one of off, lenient, strict.
	FingerprintMode string
}

// Manager keeps one logical session alive across several storage backends.
// Backends are held in priority order: the first valid record wins a read,
// and winners are copied back into higher-priority backends that missed.
type Manager struct {
	backends []repository.SessionBackend
	queue    usecase.ReplicationQueue
	audits   repository.AuditRepository
	cfg      Config
	logger   *zap.Logger

	now   func() time.Time
	newID func() (string, error)
}

// New builds a manager over backends listed most-preferred first.
// queue and audits may be nil; the manager then skips replication
// queueing and audit logging respectively.
func New(backends []repository.SessionBackend, queue usecase.ReplicationQueue, audits repository.AuditRepository, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 7 * time.Hour
	}
	if cfg.FingerprintMode == "" {
		cfg.FingerprintMode = FingerprintLenient
	}
	return &Manager{
		backends: backends,
		queue:    queue,
		audits:   audits,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    newSessionID,
	}
}

// errSessionRevoked reports that a persisted tombstone blocked a load.
// It never escapes the manager; Load translates it into absence.
var errSessionRevoked = errors.New("session revoked")

// newSessionID returns 192 bits of crypto randomness, URL-safe encoded.
func newSessionID() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Create registers a fresh session for the identity and writes it to every
// backend it can reach. The session exists as long as at least one backend
// accepted it; failed writes to persisted backends are queued for replay.
func (m *Manager) Create(ctx context.Context, identity domain.Identity, fp string) (*domain.SessionRecord, error) {
	if identity.Username == "" || identity.Email == "" || identity.Role == "" {
		return nil, domain.ErrMissingIdentity
	}

	if err := m.enforceSessionCap(ctx, identity.Username); err != nil {
		return nil, err
	}

	id, err := m.newID()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "generate session id", err)
	}

	now := m.now()
	record := &domain.SessionRecord{
		SessionID:      id,
		Username:       identity.Username,
		Email:          identity.Email,
		Role:           identity.Role,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.cfg.Timeout),
		Fingerprint:    fp,
	}

	if m.saveEverywhere(ctx, record) == 0 {
		return nil, domain.ErrAllBackendsUnavailable
	}

	m.audit(ctx, record.SessionID, record.Username, domain.AuditSessionCreated, "", false)
	return record, nil
}

// Load resolves the current session. hint may be empty; the manager then
// asks reference-only backends for one. Backends are consulted in priority
// order and the first record passing domain.Validate wins. Invalid records
// are deleted from the backend that produced them. Absence is (nil, nil).
func (m *Manager) Load(ctx context.Context, hint string) (*domain.SessionRecord, error) {
	if hint == "" {
		hint = m.resolveHint(ctx)
	}
	now := m.now()

	record, winner, err := m.scan(ctx, hint, now)
	if errors.Is(err, errSessionRevoked) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record != nil && hint == "" && winner > 0 {
		// A client-held copy surfaced the session ID without a lookup key.
		// Rescan with it: a server-side copy should win when one exists, so
		// healthy backends are not rewritten on every request.
		better, betterIdx, err := m.scan(ctx, record.SessionID, now)
		if errors.Is(err, errSessionRevoked) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if better != nil {
			record, winner = better, betterIdx
		}
	}
	if record == nil {
		return nil, nil
	}

	m.heal(ctx, record, winner)
	return record, nil
}

// scan walks the backends in priority order and returns the first valid
// record together with the index of the backend that produced it.
func (m *Manager) scan(ctx context.Context, hint string, now time.Time) (*domain.SessionRecord, int, error) {
	for i, backend := range m.backends {
		record, err := backend.Load(ctx, hint)
		if err != nil {
			m.logger.Warn("session load failed, trying next backend",
				zap.String("backend", backend.Name()),
				zap.Error(err))
			continue
		}
		if record == nil {
			continue
		}
		// Client-bound media ignore the lookup key; a copy for some other
		// session is not a miss and not ours to purge.
		if hint != "" && record.SessionID != hint {
			continue
		}

		if err := domain.Validate(record, now); err != nil {
			m.logger.Debug("discarding invalid session copy",
				zap.String("backend", backend.Name()),
				zap.String("session_id", record.SessionID),
				zap.Error(err))
			if record.SignedOut && backend.Tier() == domain.TierHigh {
				// A persisted tombstone is the newest write for this session
				// and overrules every lower-priority copy: stop the scan so a
				// stale client-held copy cannot win and be healed back over
				// the revocation. The tombstone itself stays for the sweeper;
				// deleting it early would reopen the clock-rollback hole.
				m.dropClientCopies(ctx, record.SessionID)
				return nil, 0, errSessionRevoked
			}
			if delErr := backend.Delete(ctx, record.SessionID); delErr != nil {
				m.logger.Warn("failed to purge invalid session copy",
					zap.String("backend", backend.Name()),
					zap.Error(delErr))
			}
			continue
		}

		if err := m.checkFingerprint(ctx, record, backend.Name()); err != nil {
			return nil, 0, err
		}
		return record, i, nil
	}
	return nil, 0, nil
}

// Refresh extends a still-valid session and rewrites it everywhere.
// It reports false for sessions that are gone, expired, or signed out;
// a refresh never resurrects a dead session.
func (m *Manager) Refresh(ctx context.Context, sessionID string, extension time.Duration) (bool, error) {
	if extension <= 0 {
		extension = m.cfg.Timeout
	}

	record, err := m.Load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	record.Extend(m.now(), extension)
	if m.saveEverywhere(ctx, record) == 0 {
		return false, domain.ErrAllBackendsUnavailable
	}

	m.audit(ctx, record.SessionID, record.Username, domain.AuditSessionRefreshed, "", false)
	return true, nil
}

// End signs the session out. Persisted backends get a tombstone so stale
// copies cannot outlive the logout; client-bound media holding this session
// drop their copy outright.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	tomb := m.tombstone(ctx, sessionID)
	for _, backend := range m.backends {
		if backend.Tier() != domain.TierHigh {
			continue
		}
		if err := backend.Save(ctx, tomb); err != nil {
			m.logger.Warn("tombstone write failed",
				zap.String("backend", backend.Name()),
				zap.Error(err))
			m.queueSave(ctx, backend, tomb)
		}
	}
	m.dropClientCopies(ctx, sessionID)

	if tomb.Username == "" {
		// No backend could still attribute the session; an audit row with an
		// empty username would be noise rather than a trail.
		m.logger.Debug("skipping revocation audit for unattributable session",
			zap.String("session_id", sessionID))
		return nil
	}
	m.audit(ctx, sessionID, tomb.Username, domain.AuditSessionRevoked, "", false)
	return nil
}

// dropClientCopies removes the session from client-bound media that still
// hold it. Such media can only address the current client, so a copy of a
// different session is left alone; touching it would clobber the caller's
// own session while ending another one.
func (m *Manager) dropClientCopies(ctx context.Context, sessionID string) {
	for _, backend := range m.backends {
		if backend.Tier() == domain.TierHigh {
			continue
		}
		if source, ok := backend.(repository.HintSource); ok {
			// Reference-only media never load a record, but a dangling
			// reference to a dead session should still be cleared.
			if source.SessionHint(ctx) != sessionID {
				continue
			}
		} else {
			current, err := backend.Load(ctx, "")
			if err != nil || current == nil || current.SessionID != sessionID {
				continue
			}
		}
		if err := backend.Delete(ctx, sessionID); err != nil {
			m.logger.Warn("failed to drop client session copy",
				zap.String("backend", backend.Name()),
				zap.Error(err))
		}
	}
}

// EndAllForUser revokes every active session of a user except keep
// (pass "" to revoke all). Returns how many sessions were ended.
func (m *Manager) EndAllForUser(ctx context.Context, username string, keep string) (int, error) {
	index := m.index()
	if index == nil {
		return 0, domain.ErrBackendUnavailable
	}

	ids, err := index.ActiveIDs(ctx, username)
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, id := range ids {
		if id == keep {
			continue
		}
		if err := m.End(ctx, id); err != nil {
			m.logger.Warn("failed to end session",
				zap.String("session_id", id),
				zap.Error(err))
			continue
		}
		ended++
	}
	return ended, nil
}

// ActiveSessions lists the IDs of a user's live sessions, oldest first.
func (m *Manager) ActiveSessions(ctx context.Context, username string) ([]string, error) {
	index := m.index()
	if index == nil {
		return nil, domain.ErrBackendUnavailable
	}
	return index.ActiveIDs(ctx, username)
}

// Cleanup sweeps expired and signed-out records from every backend.
// The count is advisory; correctness never depends on sweeping because
// Validate rejects stale records at read time anyway.
func (m *Manager) Cleanup(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = m.now()
	}
	total := 0
	for _, backend := range m.backends {
		n, err := backend.SweepExpired(ctx, now)
		if err != nil {
			m.logger.Warn("sweep failed",
				zap.String("backend", backend.Name()),
				zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}

// saveEverywhere writes the record to every backend, queueing failed writes
// to persisted backends for later replay. Returns how many backends accepted.
func (m *Manager) saveEverywhere(ctx context.Context, record *domain.SessionRecord) int {
	saved := 0
	for _, backend := range m.backends {
		if err := backend.Save(ctx, record); err != nil {
			m.logger.Warn("session write failed",
				zap.String("backend", backend.Name()),
				zap.String("session_id", record.SessionID),
				zap.Error(err))
			m.queueSave(ctx, backend, record)
			continue
		}
		saved++
	}
	return saved
}

// heal copies the winning record back into every higher-priority backend
// that failed to produce it.
func (m *Manager) heal(ctx context.Context, record *domain.SessionRecord, winner int) {
	for _, backend := range m.backends[:winner] {
		if err := backend.Save(ctx, record); err != nil {
			m.logger.Warn("session heal write failed",
				zap.String("backend", backend.Name()),
				zap.Error(err))
			m.queueSave(ctx, backend, record)
			continue
		}
		m.logger.Info("session copy restored",
			zap.String("backend", backend.Name()),
			zap.String("session_id", record.SessionID))
	}
}

// queueSave schedules a replay for persisted backends only. Client-bound
// media cannot be written outside their request, so replaying is pointless.
func (m *Manager) queueSave(ctx context.Context, backend repository.SessionBackend, record *domain.SessionRecord) {
	if m.queue == nil || backend.Tier() != domain.TierHigh {
		return
	}
	if err := m.queue.QueueSave(ctx, backend.Name(), record); err != nil {
		m.logger.Error("failed to queue session write for replay",
			zap.String("backend", backend.Name()),
			zap.Error(err))
	}
}

// checkFingerprint applies the configured policy against the fingerprint
// observed for the current request. A mismatch is suspicious but ambiguous
// (proxies rotate IPs, browsers update), so the default is log-and-continue.
func (m *Manager) checkFingerprint(ctx context.Context, record *domain.SessionRecord, backendName string) error {
	if m.cfg.FingerprintMode == FingerprintOff {
		return nil
	}
	observed := httpcontext.FingerprintFrom(ctx)
	if observed == "" || fingerprint.Matches(record.Fingerprint, observed) {
		return nil
	}

	m.audit(ctx, record.SessionID, record.Username, domain.AuditFingerprintMismatch, backendName, true)
	if m.cfg.FingerprintMode == FingerprintStrict {
		m.logger.Warn("rejecting session on fingerprint mismatch",
			zap.String("session_id", record.SessionID),
			zap.String("backend", backendName))
		return domain.ErrFingerprintMismatch
	}
	m.logger.Warn("session fingerprint mismatch, continuing",
		zap.String("session_id", record.SessionID),
		zap.String("backend", backendName))
	return nil
}

// resolveHint asks reference-only backends for a session ID.
func (m *Manager) resolveHint(ctx context.Context) string {
	for _, backend := range m.backends {
		source, ok := backend.(repository.HintSource)
		if !ok {
			continue
		}
		if hint := source.SessionHint(ctx); hint != "" {
			return hint
		}
	}
	return ""
}

// tombstone builds the signed-out record written during End. When a live
// copy is still loadable its identity is preserved for the audit trail.
func (m *Manager) tombstone(ctx context.Context, sessionID string) *domain.SessionRecord {
	now := m.now()
	for _, backend := range m.backends {
		record, err := backend.Load(ctx, sessionID)
		if err != nil || record == nil || record.SessionID != sessionID {
			continue
		}
		record.SignedOut = true
		record.LastActivityAt = now
		return record
	}
	return &domain.SessionRecord{
		SessionID:      sessionID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now,
		SignedOut:      true,
	}
}

// enforceSessionCap evicts the oldest sessions until the user is under the
// configured limit. Without an index backend the cap is skipped.
func (m *Manager) enforceSessionCap(ctx context.Context, username string) error {
	if m.cfg.MaxSessionsPerUser <= 0 {
		return nil
	}
	index := m.index()
	if index == nil {
		return nil
	}

	ids, err := index.ActiveIDs(ctx, username)
	if err != nil {
		m.logger.Warn("session cap check skipped",
			zap.String("username", username),
			zap.Error(err))
		return nil
	}
	for len(ids) >= m.cfg.MaxSessionsPerUser {
		oldest := ids[0]
		ids = ids[1:]
		m.logger.Info("evicting oldest session over cap",
			zap.String("username", username),
			zap.String("session_id", oldest))
		if err := m.End(ctx, oldest); err != nil {
			return err
		}
	}
	return nil
}

// index returns the highest-priority backend able to enumerate per-user sessions.
func (m *Manager) index() repository.SessionIndex {
	for _, backend := range m.backends {
		if index, ok := backend.(repository.SessionIndex); ok {
			return index
		}
	}
	return nil
}

func (m *Manager) audit(ctx context.Context, sessionID, username, name, backendName string, suspicious bool) {
	if m.audits == nil {
		return
	}
	event := domain.AuditEvent{
		SessionID:  sessionID,
		Username:   username,
		Name:       name,
		Backend:    backendName,
		Suspicious: suspicious,
	}
	event.Touch()
	if err := m.audits.Append(ctx, event); err != nil {
		m.logger.Debug("audit append failed", zap.Error(err))
	}
}
