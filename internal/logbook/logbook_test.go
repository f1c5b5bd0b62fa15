package logbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestRecordAttemptAssignsSequentialIDsAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attempts.json")
	s := NewStore(path, testLogger())

	id1 := s.RecordAttempt(Attempt{Outcome: OutcomeAirborne})
	id2 := s.RecordAttempt(Attempt{Outcome: OutcomeRejected})
	if id1 != 1 || id2 != 2 {
		t.Fatalf("expected sequential ids 1,2, got %d,%d", id1, id2)
	}

	recent := s.GetRecent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(recent))
	}
	if recent[0].Timestamp == "" {
		t.Fatal("expected a UTC timestamp to be stamped")
	}

	reloaded := NewStore(path, testLogger())
	if len(reloaded.GetRecent(10)) != 2 {
		t.Fatal("expected persisted attempts to survive reload")
	}
	id3 := reloaded.RecordAttempt(Attempt{Outcome: OutcomeAborted})
	if id3 != 3 {
		t.Fatalf("expected next id to continue from persisted max, got %d", id3)
	}
}

func TestRecordAttemptTruncatesToMaxAttempts(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "attempts.json"), testLogger())
	for i := 0; i < maxAttempts+10; i++ {
		s.RecordAttempt(Attempt{Outcome: OutcomeAirborne})
	}
	recent := s.GetRecent(1000)
	if len(recent) != maxAttempts {
		t.Fatalf("expected truncation to %d, got %d", maxAttempts, len(recent))
	}
	if recent[len(recent)-1].ID != maxAttempts+10 {
		t.Fatalf("expected most recent id retained, got %d", recent[len(recent)-1].ID)
	}
}

func TestGetRecentBoundsToAvailableCount(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "attempts.json"), testLogger())
	s.RecordAttempt(Attempt{})
	if got := s.GetRecent(5); len(got) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(got))
	}
}

func TestResetArchivesThenClears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attempts.json")
	s := NewStore(path, testLogger())
	s.RecordAttempt(Attempt{Outcome: OutcomeAirborne})

	s.Reset("20260101T000000Z")

	if len(s.GetRecent(10)) != 0 {
		t.Fatal("expected attempts cleared after reset")
	}
	archived := filepath.Join(dir, "archive", "20260101T000000Z-attempts.json")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("expected archived file at %s: %v", archived, err)
	}

	reloaded := NewStore(path, testLogger())
	if len(reloaded.GetRecent(10)) != 0 {
		t.Fatal("expected persisted attempts empty after reset")
	}
	id := reloaded.RecordAttempt(Attempt{Outcome: OutcomeAborted})
	if id != 1 {
		t.Fatalf("expected id sequence to restart from the now-empty file, got %d", id)
	}
}
