package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/repository"
)

const (
	backendName  = "redis"
	keyPrefix    = "session:"
	minRecordTTL = time.Minute
)

type sessionBackend struct {
	client *redislib.Client
}

// NewSessionBackend creates the Redis-backed session store. Records are JSON
// payloads that expire with the session, so the cache cleans up after itself;
// signed-out tombstones keep their TTL until the original expiry so a lagging
// reader can never resurrect a revoked session from this backend.
func NewSessionBackend(client *redislib.Client) repository.SessionBackend {
	return &sessionBackend{client: client}
}

func (b *sessionBackend) Name() string             { return backendName }
func (b *sessionBackend) Tier() domain.BackendTier { return domain.TierHigh }

func (b *sessionBackend) Save(ctx context.Context, record *domain.SessionRecord) error {
	if record == nil || record.SessionID == "" {
		return domain.Rejected(backendName, domain.ErrInvalidPayload)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return domain.Rejected(backendName, err)
	}

	ttl := time.Until(record.ExpiresAt)
	if ttl < minRecordTTL {
		// Keep even near-expired writes (including tombstones) around long
		// enough for other backends to observe them.
		ttl = minRecordTTL
	}

	if err := b.client.Set(ctx, key(record.SessionID), payload, ttl).Err(); err != nil {
		return domain.Unavailable(backendName, err)
	}
	return nil
}

func (b *sessionBackend) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	if sessionID == "" {
		return nil, nil
	}

	data, err := b.client.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, nil
		}
		return nil, domain.Unavailable(backendName, err)
	}

	var record domain.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt payload is as good as absent; drop it so the next load
		// does not trip over it again.
		_ = b.client.Del(ctx, key(sessionID)).Err()
		return nil, nil
	}
	return &record, nil
}

func (b *sessionBackend) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := b.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return domain.Unavailable(backendName, err)
	}
	return nil
}

// SweepExpired scans for stale records. TTLs remove most of them on their
// own; the scan catches tombstones and records whose stored expiry passed
// ahead of the key TTL.
func (b *sessionBackend) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := b.client.Scan(ctx, cursor, keyPrefix+"*", 256).Result()
		if err != nil {
			return removed, domain.Unavailable(backendName, err)
		}

		for _, k := range keys {
			data, err := b.client.Get(ctx, k).Bytes()
			if err != nil {
				continue
			}
			var record domain.SessionRecord
			if err := json.Unmarshal(data, &record); err != nil {
				_ = b.client.Del(ctx, k).Err()
				removed++
				continue
			}
			if record.SignedOut || !now.Before(record.ExpiresAt) {
				if err := b.client.Del(ctx, k).Err(); err == nil {
					removed++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}
