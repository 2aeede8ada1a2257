package domain

import (
	"errors"
	"testing"
	"time"
)

func baseRecord(now time.Time) SessionRecord {
	return SessionRecord{
		SessionID:      "sid-1",
		Username:       "alice",
		Email:          "a@x.com",
		Role:           "User",
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Hour),
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*SessionRecord)
		at     time.Time
		want   error
	}{
		{name: "fresh record is valid", mutate: func(*SessionRecord) {}, at: now, want: nil},
		{
			name:   "valid just before expiry",
			mutate: func(*SessionRecord) {},
			at:     now.Add(time.Hour - time.Second),
			want:   nil,
		},
		{
			name:   "invalid exactly at expiry",
			mutate: func(*SessionRecord) {},
			at:     now.Add(time.Hour),
			want:   ErrSessionExpired,
		},
		{
			name:   "invalid after expiry",
			mutate: func(*SessionRecord) {},
			at:     now.Add(61 * time.Minute),
			want:   ErrSessionExpired,
		},
		{
			name:   "signed out beats unexpired",
			mutate: func(s *SessionRecord) { s.SignedOut = true },
			at:     now,
			want:   ErrSessionSignedOut,
		},
		{
			name:   "signed out beats clock rollback",
			mutate: func(s *SessionRecord) { s.SignedOut = true },
			at:     now.Add(-time.Hour),
			want:   ErrSessionSignedOut,
		},
		{
			name:   "missing username",
			mutate: func(s *SessionRecord) { s.Username = "" },
			at:     now,
			want:   ErrMissingIdentity,
		},
		{
			name:   "missing email",
			mutate: func(s *SessionRecord) { s.Email = "" },
			at:     now,
			want:   ErrMissingIdentity,
		},
		{
			name:   "missing role",
			mutate: func(s *SessionRecord) { s.Role = "" },
			at:     now,
			want:   ErrMissingIdentity,
		},
		{
			name:   "missing session id",
			mutate: func(s *SessionRecord) { s.SessionID = "" },
			at:     now,
			want:   ErrMissingIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord(now)
			tt.mutate(&rec)

			err := Validate(&rec, tt.at)
			if !errors.Is(err, tt.want) && err != tt.want {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
			if got := rec.IsValid(tt.at); got != (tt.want == nil) {
				t.Fatalf("IsValid() = %v, want %v", got, tt.want == nil)
			}
		})
	}
}

func TestValidateNilRecord(t *testing.T) {
	if err := Validate(nil, time.Now()); err != ErrSessionNotFound {
		t.Fatalf("Validate(nil) = %v, want ErrSessionNotFound", err)
	}
	var rec *SessionRecord
	if rec.IsValid(time.Now()) {
		t.Fatal("nil record must never be valid")
	}
}

func TestExtend(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rec := baseRecord(now)

	later := now.Add(30 * time.Minute)
	rec.Extend(later, 7*time.Hour)

	if !rec.ExpiresAt.Equal(later.Add(7 * time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want %v", rec.ExpiresAt, later.Add(7*time.Hour))
	}
	if !rec.LastActivityAt.Equal(later) {
		t.Fatalf("LastActivityAt = %v, want %v", rec.LastActivityAt, later)
	}
	if !rec.CreatedAt.Equal(now) {
		t.Fatal("Extend must not touch CreatedAt")
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	rec := baseRecord(time.Now())
	id := rec.Identity()
	if id.Username != "alice" || id.Email != "a@x.com" || id.Role != "User" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}
