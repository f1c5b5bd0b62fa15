// Package learning implements the advisor learning store (spec.md §4.12):
// free-text "LEARNING: [NN%] ..." and "FORGET: #id" lines are parsed out
// of advisor responses, reinforced against existing entries by
// word-overlap similarity, or appended as new observations.
package learning

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/metrics"
	"github.com/windward/autoflight/internal/store"
)

const maxLearnings = 100

// reinforcementThreshold is the word-overlap similarity above which a new
// observation reinforces an existing one instead of being appended
// (spec.md §4.12, scenario S6).
const reinforcementThreshold = 0.7

// Category buckets a learning by keyword (spec.md §3).
type Category string

const (
	CategoryElevator Category = "elevator"
	CategoryAileron  Category = "aileron"
	CategoryRudder   Category = "rudder"
	CategoryThrottle Category = "throttle"
	CategorySpeed    Category = "speed"
	CategoryControl  Category = "control"
	CategoryPhase    Category = "phase"
	CategoryGeneral  Category = "general"
)

var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryElevator, []string{"elevator", "pitch"}},
	{CategoryAileron, []string{"aileron", "bank", "roll angle"}},
	{CategoryRudder, []string{"rudder", "yaw"}},
	{CategoryThrottle, []string{"throttle", "power"}},
	{CategorySpeed, []string{"speed", "airspeed", "vr", "velocity"}},
	{CategoryControl, []string{"control", "gain", "steering"}},
	{CategoryPhase, []string{"phase", "taxi", "climb", "rotate", "liftoff"}},
}

func categorize(observation string) Category {
	lower := strings.ToLower(observation)
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(lower, kw) {
				return ck.category
			}
		}
	}
	return CategoryGeneral
}

// Learning is one stored observation (spec.md §3 "Learning").
type Learning struct {
	ID             int       `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Observation    string    `json:"observation"`
	Confidence     int       `json:"confidence"`
	Reinforcements int       `json:"reinforcements"`
	Category       Category  `json:"category"`
	Attempt        int       `json:"attempt,omitempty"`
}

// Store owns the bounded, persisted learning log.
type Store struct {
	mu        sync.Mutex
	path      string
	logger    *logrus.Logger
	learnings []Learning
	nextID    int
}

// NewStore loads any persisted learnings from path.
func NewStore(path string, logger *logrus.Logger) *Store {
	s := &Store{path: path, logger: logger, nextID: 1}
	store.LoadJSON(path, &s.learnings, logger)
	for _, l := range s.learnings {
		if l.ID >= s.nextID {
			s.nextID = l.ID + 1
		}
	}
	metrics.UpdateLearningCount(len(s.learnings))
	return s
}

// Reset archives the current learning log under stamp, then clears it.
// The ID sequence is not reset, so a restored archive never collides with
// freshly created learnings.
func (s *Store) Reset(stamp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	store.Archive(s.path, stamp, s.logger)
	s.learnings = nil
	store.SaveJSON(s.path, &s.learnings, s.logger)
	metrics.UpdateLearningCount(0)
}

// All returns a copy of the current learning log.
func (s *Store) All() []Learning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Learning, len(s.learnings))
	copy(out, s.learnings)
	return out
}

// learningLinePattern matches `LEARNING: [NN%] observation text`; the
// percent clause is optional (spec.md §4.12 "defaulting to 50 if
// absent").
var learningLinePattern = regexp.MustCompile(`(?m)^LEARNING:\s*(?:\[(\d+)%\]\s*)?(.+)$`)

// forgetLinePattern matches `FORGET: #id`.
var forgetLinePattern = regexp.MustCompile(`(?m)^FORGET:\s*#(\d+)`)

// ApplyAdvisorResponse parses LEARNING and FORGET lines out of text and
// applies every LEARNING line first, then every FORGET line.
func (s *Store) ApplyAdvisorResponse(text string, attempt int) {
	for _, m := range learningLinePattern.FindAllStringSubmatch(text, -1) {
		confidence := 50
		if m[1] != "" {
			if v, err := strconv.Atoi(m[1]); err == nil {
				confidence = v
			}
		}
		confidence = clampInt(confidence, 10, 99)

		observation := strings.TrimSpace(m[2])
		if len(observation) < 10 {
			continue
		}

		s.applyLearning(observation, confidence, attempt)
	}

	for _, m := range forgetLinePattern.FindAllStringSubmatch(text, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		s.forget(id)
	}
}

func (s *Store) applyLearning(observation string, confidence, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newWords := wordSet(observation)
	for i := range s.learnings {
		existing := &s.learnings[i]
		if similarity(wordSet(existing.Observation), newWords) > reinforcementThreshold {
			existing.Observation = observation
			existing.Reinforcements++
			existing.Confidence = clampInt(existing.Confidence+10, 10, 99)
			existing.Timestamp = time.Now().UTC()
			store.SaveJSON(s.path, &s.learnings, s.logger)
			metrics.UpdateLearningCount(len(s.learnings))
			return
		}
	}

	l := Learning{
		ID:          s.nextID,
		Timestamp:   time.Now().UTC(),
		Observation: observation,
		Confidence:  confidence,
		Category:    categorize(observation),
		Attempt:     attempt,
	}
	s.nextID++
	s.learnings = append(s.learnings, l)
	if len(s.learnings) > maxLearnings {
		s.learnings = s.learnings[len(s.learnings)-maxLearnings:]
	}
	store.SaveJSON(s.path, &s.learnings, s.logger)
	metrics.UpdateLearningCount(len(s.learnings))
}

func (s *Store) forget(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.learnings {
		if l.ID == id {
			s.learnings = append(s.learnings[:i], s.learnings[i+1:]...)
			store.SaveJSON(s.path, &s.learnings, s.logger)
			metrics.UpdateLearningCount(len(s.learnings))
			return
		}
	}
}

// wordSet splits observation on whitespace, lowercased, into a set of
// words (duplicates collapsed): spec.md §9 open question (c) leaves
// set-versus-bag unspecified; a set is chosen here so repeated filler
// words in one observation do not inflate the overlap ratio.
func wordSet(observation string) map[string]bool {
	words := strings.Fields(strings.ToLower(observation))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// similarity computes overlap / newWordCount, per spec.md §4.12.
func similarity(existing, newWords map[string]bool) float64 {
	if len(newWords) == 0 {
		return 0
	}
	overlap := 0
	for w := range newWords {
		if existing[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(newWords))
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
