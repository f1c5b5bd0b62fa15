package learning

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// TestReinforcementScenarioS6 reproduces spec scenario S6 exactly.
func TestReinforcementScenarioS6(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "learnings.json"), testLogger())
	s.learnings = []Learning{{
		ID:          1,
		Timestamp:   time.Now().UTC(),
		Observation: "Rotate elevator too aggressive",
		Confidence:  60,
		Category:    CategoryElevator,
	}}
	s.nextID = 2

	s.ApplyAdvisorResponse("LEARNING: [80%] Rotate elevator is too aggressive", 0)

	all := s.All()
	if len(all) != 1 {
		t.Fatalf("expected reinforcement not a new entry, got %d learnings", len(all))
	}
	l := all[0]
	if l.Observation != "Rotate elevator is too aggressive" {
		t.Fatalf("expected observation text replaced, got %q", l.Observation)
	}
	if l.Reinforcements != 1 {
		t.Fatalf("expected reinforcements=1, got %d", l.Reinforcements)
	}
	if l.Confidence != 70 {
		t.Fatalf("expected confidence 70, got %d", l.Confidence)
	}
}

func TestNewObservationAppendedWhenDissimilar(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "learnings.json"), testLogger())
	s.ApplyAdvisorResponse("LEARNING: [55%] Taxi rudder steering gain is too low for sharp turns", 0)
	all := s.All()
	if len(all) != 1 {
		t.Fatalf("expected one new learning, got %d", len(all))
	}
	if all[0].Confidence != 55 {
		t.Fatalf("expected parsed confidence 55, got %d", all[0].Confidence)
	}
	if all[0].Category != CategoryRudder {
		t.Fatalf("expected rudder category, got %v", all[0].Category)
	}
}

func TestLearningDefaultsConfidenceWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "learnings.json"), testLogger())
	s.ApplyAdvisorResponse("LEARNING: Climb throttle setting feels low for density altitude", 0)
	all := s.All()
	if len(all) != 1 || all[0].Confidence != 50 {
		t.Fatalf("expected default confidence 50, got %+v", all)
	}
}

func TestLearningRejectsShortObservation(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "learnings.json"), testLogger())
	s.ApplyAdvisorResponse("LEARNING: [90%] too short", 0)
	if len(s.All()) != 0 {
		t.Fatal("expected short observation rejected")
	}
}

func TestResetArchivesThenClears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "learnings.json")
	s := NewStore(path, testLogger())
	s.ApplyAdvisorResponse("LEARNING: [55%] Taxi rudder steering gain is too low for sharp turns", 0)
	if len(s.All()) != 1 {
		t.Fatalf("expected one learning before reset, got %d", len(s.All()))
	}

	s.Reset("20260101T000000Z")

	if len(s.All()) != 0 {
		t.Fatalf("expected learnings cleared after reset, got %d", len(s.All()))
	}
	archived := filepath.Join(dir, "archive", "20260101T000000Z-learnings.json")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("expected archived file at %s: %v", archived, err)
	}

	reloaded := NewStore(path, testLogger())
	if len(reloaded.All()) != 0 {
		t.Fatalf("expected persisted file empty after reset, got %d", len(reloaded.All()))
	}
}

func TestForgetRemovesByID(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "learnings.json"), testLogger())
	s.ApplyAdvisorResponse("LEARNING: [50%] Taxi rudder steering gain is too low for turns", 0)
	id := s.All()[0].ID

	s.ApplyAdvisorResponse("FORGET: #"+strconv.Itoa(id), 0)
	if len(s.All()) != 0 {
		t.Fatal("expected learning removed by FORGET")
	}
}
