// Package tuning holds the named scalar parameters C7's rule engine reads
// on every evaluation (spec.md §3 "TuningParameters", §4.13).
package tuning

import (
	"encoding/json"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/store"
)

// Parameters is the recognized set of tuning scalars, grouped by phase as
// spec.md §3 lists them.
type Parameters struct {
	// Taxi
	TaxiThrottleMin       float64 `json:"taxiThrottleMin"`
	TaxiThrottleMax       float64 `json:"taxiThrottleMax"`
	TaxiTargetGS          float64 `json:"taxiTargetGS"`
	TaxiHdgErrorThreshold float64 `json:"taxiHdgErrorThreshold"`
	RudderBias            float64 `json:"rudderBias"`
	SteerGainBase         float64 `json:"steerGainBase"`
	SteerGainDecay        float64 `json:"steerGainDecay"`
	TaxiRudderMaxLow      float64 `json:"taxiRudderMaxLow"`
	SteerDeadband         float64 `json:"steerDeadband"`

	// Roll
	RollThrottle float64 `json:"rollThrottle"`
	VrSpeed      float64 `json:"vrSpeed"`

	// Rotate
	RotateElevator  float64 `json:"rotateElevator"`
	RotateRampRate  float64 `json:"rotateRampRate"`
	RotateThrottle  float64 `json:"rotateThrottle"`
	RotateTimeout   float64 `json:"rotateTimeout"`

	// Liftoff
	LiftoffElevator     float64 `json:"liftoffElevator"`
	LiftoffAileronGain  float64 `json:"liftoffAileronGain"`
	LiftoffAileronMax   float64 `json:"liftoffAileronMax"`
	LiftoffBankThreshold float64 `json:"liftoffBankThreshold"`
	LiftoffVsThreshold  float64 `json:"liftoffVsThreshold"`
	LiftoffClimbAgl     float64 `json:"liftoffClimbAgl"`
	LiftoffThrottle     float64 `json:"liftoffThrottle"`

	// Initial climb
	ClimbElevator      float64 `json:"climbElevator"`
	ClimbAileronGain   float64 `json:"climbAileronGain"`
	ClimbAileronMax    float64 `json:"climbAileronMax"`
	ClimbBankThreshold float64 `json:"climbBankThreshold"`
	HandoffSpeedMargin float64 `json:"handoffSpeedMargin"`
	HandoffAgl         float64 `json:"handoffAgl"`
	ClimbPhaseThrottle float64 `json:"climbPhaseThrottle"`

	// Departure/climb
	DepartureVS    float64 `json:"departureVS"`
	DepartureSpeed float64 `json:"departureSpeed"`
	ClimbThrottle  float64 `json:"climbThrottle"`
	ClimbVS        float64 `json:"climbVS"`
}

// Defaults returns the hard-coded baseline parameters the store
// initializes from on process start (spec.md §3 lifecycle).
func Defaults() Parameters {
	return Parameters{
		TaxiThrottleMin:       18,
		TaxiThrottleMax:       35,
		TaxiTargetGS:          12,
		TaxiHdgErrorThreshold: 15,
		RudderBias:            0,
		SteerGainBase:         1.2,
		SteerGainDecay:        0.03,
		TaxiRudderMaxLow:      60,
		SteerDeadband:         2,

		RollThrottle: 85,
		VrSpeed:      55,

		RotateElevator: -12,
		RotateRampRate: 6,
		RotateThrottle: 95,
		RotateTimeout:  8,

		LiftoffElevator:      -8,
		LiftoffAileronGain:   0.8,
		LiftoffAileronMax:    20,
		LiftoffBankThreshold: 3,
		LiftoffVsThreshold:   300,
		LiftoffClimbAgl:      50,
		LiftoffThrottle:      100,

		ClimbElevator:      -5,
		ClimbAileronGain:   0.6,
		ClimbAileronMax:    15,
		ClimbBankThreshold: 5,
		HandoffSpeedMargin: 20,
		HandoffAgl:         1000,
		ClimbPhaseThrottle: 100,

		DepartureVS:    1500,
		DepartureSpeed: 160,
		ClimbThrottle:  90,
		ClimbVS:        1200,
	}
}

// PartialUpdate carries an advisor- or operator-driven overlay keyed by
// parameter JSON name: only the names present are merged, each through
// the explicit fieldSetters table (spec.md §9 "Dynamic config merge");
// names not in that table are logged and discarded by SetTuning.
type PartialUpdate map[string]float64

// Store owns the merged TuningParameters record: defaults overlaid with
// whatever advice has since been applied, persisted on every mutation.
type Store struct {
	mu     sync.RWMutex
	params Parameters
	path   string
	logger *logrus.Logger
}

// NewStore creates a tuning store seeded from Defaults(), then loads any
// persisted overlay from path.
func NewStore(path string, logger *logrus.Logger) *Store {
	s := &Store{
		params: Defaults(),
		path:   path,
		logger: logger,
	}
	store.LoadJSON(path, &s.params, logger)
	return s
}

// GetTuning returns the current merged parameters.
func (s *Store) GetTuning() Parameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Reset archives the current tuning record under stamp, then restores
// the hard-coded defaults (spec.md §6 "reset learnings (archives then
// empties all three stores)").
func (s *Store) Reset(stamp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	store.Archive(s.path, stamp, s.logger)
	s.params = Defaults()
	store.SaveJSON(s.path, &s.params, s.logger)
}

// SetTuning performs a shallow merge of partial into the current record,
// by explicit field name, and persists. Unknown names are logged and
// discarded (spec.md §9).
func (s *Store) SetTuning(partial PartialUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	applyPartial(&s.params, partial, s.logger)
	store.SaveJSON(s.path, &s.params, s.logger)
}

// tuningBlockPattern matches a `TUNING_JSON: { ... }` block in advisor
// response text (spec.md §4.13). The JSON object itself may span multiple
// lines, so the capture is greedy up to the last closing brace.
var tuningBlockPattern = regexp.MustCompile(`(?s)TUNING_JSON:\s*(\{.*\})`)

// ApplyAdvisorResponse parses a TUNING_JSON block out of an advisor's
// free-text response and merges it. A malformed block is logged and
// ignored entirely — spec.md §4.13 requires it never be partially
// applied.
func (s *Store) ApplyAdvisorResponse(text string) {
	match := tuningBlockPattern.FindStringSubmatch(text)
	if match == nil {
		return
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(match[1]), &raw); err != nil {
		s.logger.WithField("error", err).Warn("malformed TUNING_JSON block discarded")
		return
	}

	s.SetTuning(PartialUpdate(raw))
}

func applyPartial(p *Parameters, partial PartialUpdate, logger *logrus.Logger) {
	for name, value := range partial {
		field, ok := fieldSetters[name]
		if !ok {
			logger.WithField("param", name).Warn("unknown tuning parameter discarded")
			continue
		}
		field(p, value)
	}
}

// fieldSetters is the explicit field-by-field merge table spec.md §9 calls
// for in place of a loose reflective overlay.
var fieldSetters = map[string]func(*Parameters, float64){
	"taxiThrottleMin":       func(p *Parameters, v float64) { p.TaxiThrottleMin = v },
	"taxiThrottleMax":       func(p *Parameters, v float64) { p.TaxiThrottleMax = v },
	"taxiTargetGS":          func(p *Parameters, v float64) { p.TaxiTargetGS = v },
	"taxiHdgErrorThreshold": func(p *Parameters, v float64) { p.TaxiHdgErrorThreshold = v },
	"rudderBias":            func(p *Parameters, v float64) { p.RudderBias = v },
	"steerGainBase":         func(p *Parameters, v float64) { p.SteerGainBase = v },
	"steerGainDecay":        func(p *Parameters, v float64) { p.SteerGainDecay = v },
	"taxiRudderMaxLow":      func(p *Parameters, v float64) { p.TaxiRudderMaxLow = v },
	"steerDeadband":         func(p *Parameters, v float64) { p.SteerDeadband = v },

	"rollThrottle": func(p *Parameters, v float64) { p.RollThrottle = v },
	"vrSpeed":      func(p *Parameters, v float64) { p.VrSpeed = v },

	"rotateElevator": func(p *Parameters, v float64) { p.RotateElevator = v },
	"rotateRampRate": func(p *Parameters, v float64) { p.RotateRampRate = v },
	"rotateThrottle": func(p *Parameters, v float64) { p.RotateThrottle = v },
	"rotateTimeout":  func(p *Parameters, v float64) { p.RotateTimeout = v },

	"liftoffElevator":      func(p *Parameters, v float64) { p.LiftoffElevator = v },
	"liftoffAileronGain":   func(p *Parameters, v float64) { p.LiftoffAileronGain = v },
	"liftoffAileronMax":    func(p *Parameters, v float64) { p.LiftoffAileronMax = v },
	"liftoffBankThreshold": func(p *Parameters, v float64) { p.LiftoffBankThreshold = v },
	"liftoffVsThreshold":   func(p *Parameters, v float64) { p.LiftoffVsThreshold = v },
	"liftoffClimbAgl":      func(p *Parameters, v float64) { p.LiftoffClimbAgl = v },
	"liftoffThrottle":      func(p *Parameters, v float64) { p.LiftoffThrottle = v },

	"climbElevator":      func(p *Parameters, v float64) { p.ClimbElevator = v },
	"climbAileronGain":   func(p *Parameters, v float64) { p.ClimbAileronGain = v },
	"climbAileronMax":    func(p *Parameters, v float64) { p.ClimbAileronMax = v },
	"climbBankThreshold": func(p *Parameters, v float64) { p.ClimbBankThreshold = v },
	"handoffSpeedMargin": func(p *Parameters, v float64) { p.HandoffSpeedMargin = v },
	"handoffAgl":         func(p *Parameters, v float64) { p.HandoffAgl = v },
	"climbPhaseThrottle": func(p *Parameters, v float64) { p.ClimbPhaseThrottle = v },

	"departureVS":    func(p *Parameters, v float64) { p.DepartureVS = v },
	"departureSpeed": func(p *Parameters, v float64) { p.DepartureSpeed = v },
	"climbThrottle":  func(p *Parameters, v float64) { p.ClimbThrottle = v },
	"climbVS":        func(p *Parameters, v float64) { p.ClimbVS = v },
}
