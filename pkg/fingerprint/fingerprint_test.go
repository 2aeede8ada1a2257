package fingerprint

import (
	"testing"
	"time"
)

func TestComputeIsStableWithinADay(t *testing.T) {
	morning := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 5, 2, 22, 30, 0, 0, time.UTC)

	a := Compute("Mozilla/5.0", "10.1.2.3:55120", morning)
	b := Compute("Mozilla/5.0", "10.1.2.3:41988", evening)

	if a != b {
		t.Fatalf("fingerprint changed within the same day: %s vs %s", a, b)
	}
	if len(a) != digestLen {
		t.Fatalf("unexpected digest length %d", len(a))
	}
}

func TestComputeRotatesDaily(t *testing.T) {
	day1 := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	if Compute("Mozilla/5.0", "10.1.2.3", day1) == Compute("Mozilla/5.0", "10.1.2.3", day2) {
		t.Fatal("fingerprint must rotate with the day stamp")
	}
}

func TestComputeDistinguishesClients(t *testing.T) {
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	if Compute("Firefox", "10.1.2.3", now) == Compute("Chrome", "10.1.2.3", now) {
		t.Fatal("different user agents must fingerprint differently")
	}
	if Compute("Firefox", "10.1.2.3", now) == Compute("Firefox", "10.9.9.9", now) {
		t.Fatal("different addresses must fingerprint differently")
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		observed string
		want     bool
	}{
		{"equal values match", "abc123", "abc123", true},
		{"different values mismatch", "abc123", "def456", false},
		{"empty stored always matches", "", "def456", true},
		{"empty observed against stored mismatches", "abc123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.stored, tt.observed); got != tt.want {
				t.Fatalf("Matches(%q, %q) = %v, want %v", tt.stored, tt.observed, got, tt.want)
			}
		})
	}
}
