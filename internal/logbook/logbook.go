// Package logbook implements the attempt logger (spec.md §4.11): each
// takeoff attempt is assigned a sequential id and a UTC timestamp,
// appended, truncated to the most recent 50, and atomically persisted.
package logbook

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/geo"
	"github.com/windward/autoflight/internal/simlink"
	"github.com/windward/autoflight/internal/store"
	"github.com/windward/autoflight/internal/tuning"
)

const maxAttempts = 50

// timelineSampleInterval is the sparseness of the optional per-second
// timeline (spec.md §3 "an optional sparse timeline of per-second
// snapshots").
const timelineSampleInterval = time.Second

// Outcome categorizes how a takeoff attempt concluded.
type Outcome string

const (
	OutcomeInProgress Outcome = "IN_PROGRESS"
	OutcomeAirborne   Outcome = "AIRBORNE"
	OutcomeRejected   Outcome = "REJECTED"
	OutcomeAborted    Outcome = "ABORTED"
)

// TimelinePoint is one sparse per-second snapshot within an attempt's
// telemetry rollup.
type TimelinePoint struct {
	ElapsedSec float64 `json:"elapsedSec"`
	Phase      string  `json:"phase"`
	AltitudeFt float64 `json:"altitudeFt"`
	IAS        float64 `json:"ias"`
	VS         float64 `json:"vs"`
}

// TelemetryRollup summarizes the frames and commands observed during an
// attempt (spec.md §3 "TakeoffAttempt").
type TelemetryRollup struct {
	MaxIAS          float64         `json:"maxIas"`
	MaxGroundSpd    float64         `json:"maxGroundSpd"`
	MaxBank         float64         `json:"maxBank"`
	MaxPitch        float64         `json:"maxPitch"`
	MinPitch        float64         `json:"minPitch"`
	MaxAltGainFt    float64         `json:"maxAltGainFt"`
	MaxHeadingErr   float64         `json:"maxHeadingErrorDeg"`
	RotateIAS       float64         `json:"rotateIas"`
	LiftoffIAS      float64         `json:"liftoffIas"`
	MaxVS           float64         `json:"maxVs"`
	MinVS           float64         `json:"minVs"`
	DurationSec     float64         `json:"durationSec"`
	MaxElevatorCmd  float64         `json:"maxElevatorCmd"`
	MaxAileronCmd   float64         `json:"maxAileronCmd"`
	MaxRudderCmd    float64         `json:"maxRudderCmd"`
	FrameCount      int             `json:"frameCount"`
	Timeline        []TimelinePoint `json:"timeline,omitempty"`
}

// RollupAccumulator builds a TelemetryRollup over the life of a single
// takeoff attempt: the evaluator calls Observe once per tick and
// ObserveCommand once per emitted command, then reads Rollup when the
// attempt concludes.
type RollupAccumulator struct {
	startAlt     float64
	haveStartAlt bool
	startTime    time.Time
	haveStart    bool
	lastSample   time.Time

	targetHeading    float64
	hasTargetHeading bool

	rollup TelemetryRollup
}

// NewRollupAccumulator starts a rollup; targetHeadingDeg/hasTarget feed
// the max-heading-error term via geo.AngleError against the aircraft's
// true heading.
func NewRollupAccumulator(targetHeadingDeg float64, hasTarget bool) *RollupAccumulator {
	return &RollupAccumulator{targetHeading: targetHeadingDeg, hasTargetHeading: hasTarget}
}

// Observe folds one telemetry frame, tagged with the phase name and its
// elapsed time since the attempt began, into the rollup.
func (r *RollupAccumulator) Observe(f simlink.Frame, elapsed time.Duration, phaseName string) {
	if !r.haveStart {
		r.startTime = f.Timestamp
		r.haveStart = true
	}
	if !r.haveStartAlt {
		r.startAlt = f.AltitudeMSL
		r.haveStartAlt = true
	}

	r.rollup.FrameCount++
	r.rollup.DurationSec = elapsed.Seconds()

	if f.IndicatedAirspeed > r.rollup.MaxIAS {
		r.rollup.MaxIAS = f.IndicatedAirspeed
	}
	if f.GroundSpeed > r.rollup.MaxGroundSpd {
		r.rollup.MaxGroundSpd = f.GroundSpeed
	}
	if absf(f.Bank) > r.rollup.MaxBank {
		r.rollup.MaxBank = absf(f.Bank)
	}
	if f.Pitch > r.rollup.MaxPitch {
		r.rollup.MaxPitch = f.Pitch
	}
	if r.rollup.FrameCount == 1 || f.Pitch < r.rollup.MinPitch {
		r.rollup.MinPitch = f.Pitch
	}
	if f.VerticalSpeed > r.rollup.MaxVS {
		r.rollup.MaxVS = f.VerticalSpeed
	}
	if r.rollup.FrameCount == 1 || f.VerticalSpeed < r.rollup.MinVS {
		r.rollup.MinVS = f.VerticalSpeed
	}
	if gain := f.AltitudeMSL - r.startAlt; gain > r.rollup.MaxAltGainFt {
		r.rollup.MaxAltGainFt = gain
	}
	if r.hasTargetHeading {
		if e := absf(geo.AngleError(r.targetHeading, f.HeadingTrue)); e > r.rollup.MaxHeadingErr {
			r.rollup.MaxHeadingErr = e
		}
	}
	switch phaseName {
	case "ROTATE":
		if r.rollup.RotateIAS == 0 {
			r.rollup.RotateIAS = f.IndicatedAirspeed
		}
	case "LIFTOFF":
		if r.rollup.LiftoffIAS == 0 {
			r.rollup.LiftoffIAS = f.IndicatedAirspeed
		}
	}

	if f.Timestamp.Sub(r.lastSample) >= timelineSampleInterval {
		r.lastSample = f.Timestamp
		r.rollup.Timeline = append(r.rollup.Timeline, TimelinePoint{
			ElapsedSec: elapsed.Seconds(),
			Phase:      phaseName,
			AltitudeFt: f.AltitudeMSL,
			IAS:        f.IndicatedAirspeed,
			VS:         f.VerticalSpeed,
		})
	}
}

// ObserveCommand folds one emitted command's magnitude into the rollup's
// max-command-magnitude tracking.
func (r *RollupAccumulator) ObserveCommand(name string, value float64) {
	v := absf(value)
	switch name {
	case "AXIS_ELEVATOR_SET":
		if v > r.rollup.MaxElevatorCmd {
			r.rollup.MaxElevatorCmd = v
		}
	case "AXIS_AILERONS_SET":
		if v > r.rollup.MaxAileronCmd {
			r.rollup.MaxAileronCmd = v
		}
	case "AXIS_RUDDER_SET":
		if v > r.rollup.MaxRudderCmd {
			r.rollup.MaxRudderCmd = v
		}
	}
}

// Rollup returns the accumulated telemetry rollup.
func (r *RollupAccumulator) Rollup() TelemetryRollup {
	return r.rollup
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Attempt is one recorded takeoff attempt (spec.md §3 "TakeoffAttempt").
type Attempt struct {
	ID            int               `json:"id"`
	Timestamp     string            `json:"timestamp"` // UTC ISO-8601
	Outcome       Outcome           `json:"outcome"`
	PhasesReached []string          `json:"phasesReached"`
	Tuning        tuning.Parameters `json:"tuning"`
	Telemetry     TelemetryRollup   `json:"telemetry"`
}

// Store owns the bounded, persisted attempt log.
type Store struct {
	mu       sync.Mutex
	path     string
	logger   *logrus.Logger
	attempts []Attempt
	nextID   int
}

// NewStore loads any persisted attempt log from path.
func NewStore(path string, logger *logrus.Logger) *Store {
	s := &Store{path: path, logger: logger, nextID: 1}
	store.LoadJSON(path, &s.attempts, logger)
	for _, a := range s.attempts {
		if a.ID >= s.nextID {
			s.nextID = a.ID + 1
		}
	}
	return s
}

// Reset archives the current attempt log under stamp, then clears it
// (spec.md §6 "reset learnings (archives then empties all three
// stores)").
func (s *Store) Reset(stamp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	store.Archive(s.path, stamp, s.logger)
	s.attempts = nil
	store.SaveJSON(s.path, &s.attempts, s.logger)
}

// RecordAttempt assigns the next sequential id and current UTC
// timestamp, appends, truncates to the most recent maxAttempts, and
// persists. Returns the id assigned.
func (s *Store) RecordAttempt(a Attempt) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextID
	s.nextID++
	a.Timestamp = time.Now().UTC().Format(time.RFC3339)

	s.attempts = append(s.attempts, a)
	if len(s.attempts) > maxAttempts {
		s.attempts = s.attempts[len(s.attempts)-maxAttempts:]
	}
	store.SaveJSON(s.path, &s.attempts, s.logger)
	return a.ID
}

// GetRecent returns the last n attempts (or fewer, if the log is
// shorter), most recent last.
func (s *Store) GetRecent(n int) []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.attempts) {
		n = len(s.attempts)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Attempt, n)
	copy(out, s.attempts[len(s.attempts)-n:])
	return out
}
