// Package phase implements the flight-phase state machine (spec.md §4.6):
// a pure function of the current phase, the latest telemetry frame, and a
// small amount of internal clock state (rotate timeout, climb handoff).
package phase

import (
	"math"
	"time"

	"github.com/windward/autoflight/internal/simlink"
	"github.com/windward/autoflight/internal/tuning"
)

// climbCruiseBandFt is the |altitude-target| window the CLIMB -> CRUISE
// transition requires to hold continuously (spec.md §4.6).
const climbCruiseBandFt = 200.0

// climbCruiseDwell is how long the altitude must stay inside the band
// before CLIMB -> CRUISE fires.
const climbCruiseDwell = 5 * time.Second

// Phase is one state of the flight-phase machine.
type Phase int

const (
	Inactive Phase = iota
	Parked
	BeforeRoll
	Roll
	Rotate
	Liftoff
	InitialClimb
	Departure
	Climb
	Cruise
	Descent
	Approach
	Landing
)

func (p Phase) String() string {
	switch p {
	case Inactive:
		return "INACTIVE"
	case Parked:
		return "PARKED"
	case BeforeRoll:
		return "BEFORE_ROLL"
	case Roll:
		return "ROLL"
	case Rotate:
		return "ROTATE"
	case Liftoff:
		return "LIFTOFF"
	case InitialClimb:
		return "INITIAL_CLIMB"
	case Departure:
		return "DEPARTURE"
	case Climb:
		return "CLIMB"
	case Cruise:
		return "CRUISE"
	case Descent:
		return "DESCENT"
	case Approach:
		return "APPROACH"
	case Landing:
		return "LANDING"
	default:
		return "UNKNOWN"
	}
}

// Machine holds the phase plus the small amount of clock state transitions
// need (phase-entry time, rejected-takeoff timeout, climb-band dwell,
// cruise altitude target), so Advance can remain a function of (state,
// frame, clock).
type Machine struct {
	current Phase

	// phaseEnteredAt is when the current phase was entered; the rule
	// engine reads it (via PhaseEnteredAt) to compute the ROTATE
	// elevator ramp, and Advance reads it for the ROTATE reject timeout.
	phaseEnteredAt time.Time

	// climbBandEnteredAt is when the aircraft most recently entered the
	// CLIMB -> CRUISE altitude band; zero while outside the band. The
	// band must hold continuously for climbCruiseDwell before CRUISE
	// triggers.
	climbBandEnteredAt time.Time

	// axisCenteringEmitted is set once the rule engine has emitted the
	// BEFORE_ROLL axis-centering commands, letting BEFORE_ROLL -> ROLL
	// fire (spec.md §4.6).
	axisCenteringEmitted bool

	// takeoffRequested latches an operator-issued "request takeoff"
	// signal that forces PARKED -> BEFORE_ROLL regardless of throttle.
	takeoffRequested bool

	cruiseAltMSL float64
}

// NewMachine starts a phase machine in Inactive.
func NewMachine() *Machine {
	return &Machine{current: Inactive}
}

// Current returns the current phase.
func (m *Machine) Current() Phase {
	return m.current
}

// PhaseEnteredAt returns when the current phase was entered, used by the
// rule engine to compute phase-relative ramps (e.g. the ROTATE elevator
// ramp of spec.md §4.7).
func (m *Machine) PhaseEnteredAt() time.Time {
	return m.phaseEnteredAt
}

// CruiseAltitude returns the operator-configured target cruise altitude
// MSL, consumed by the rule engine's DEPARTURE autopilot handoff.
func (m *Machine) CruiseAltitude() float64 {
	return m.cruiseAltMSL
}

// Reset forces the machine back to Inactive, used by the evaluation tick's
// disable() operation (spec.md §4.14).
func (m *Machine) Reset() {
	m.current = Inactive
	m.phaseEnteredAt = time.Time{}
	m.climbBandEnteredAt = time.Time{}
	m.axisCenteringEmitted = false
	m.takeoffRequested = false
}

// SetCruiseAltitude records the operator-configured target cruise
// altitude MSL used to trigger the Climb -> Cruise transition.
func (m *Machine) SetCruiseAltitude(altMSL float64) {
	m.cruiseAltMSL = altMSL
}

// RequestTakeoff latches an operator "request takeoff" signal, forcing
// PARKED -> BEFORE_ROLL on the next Advance regardless of throttle
// (spec.md §4.6).
func (m *Machine) RequestTakeoff() {
	m.takeoffRequested = true
}

// MarkAxisCentered records that the rule engine has issued the BEFORE_ROLL
// axis-centering commands at least once, letting BEFORE_ROLL -> ROLL fire
// on the next Advance (spec.md §4.6).
func (m *Machine) MarkAxisCentered() {
	m.axisCenteringEmitted = true
}

// Activate moves Inactive -> Parked, the entry point once the evaluation
// tick is enabled (Evaluator.Enable calls it).
func (m *Machine) Activate() {
	if m.current == Inactive {
		m.current = Parked
	}
}

// Advance evaluates one telemetry frame against the current phase and
// tuning parameters and returns the (possibly unchanged) next phase.
func (m *Machine) Advance(f simlink.Frame, t tuning.Parameters, now time.Time) Phase {
	before := m.current

	switch m.current {
	case Inactive:
		// No-op until Activate is called explicitly by the evaluation tick.
		return m.current

	case Parked:
		if !f.OnGround() {
			m.current = InitialClimb
			break
		}
		if f.Throttle >= t.TaxiThrottleMin || m.takeoffRequested {
			m.current = BeforeRoll
			m.takeoffRequested = false
		}

	case BeforeRoll:
		if m.axisCenteringEmitted {
			m.current = Roll
			m.axisCenteringEmitted = false
		}

	case Roll:
		if f.IndicatedAirspeed >= t.VrSpeed {
			m.current = Rotate
		} else if !f.OnGround() {
			// Became airborne without crossing Vr as measured (e.g. gust);
			// treat as liftoff directly.
			m.current = Liftoff
		}

	case Rotate:
		if !f.OnGround() {
			m.current = Liftoff
			break
		}
		if now.Sub(m.phaseEnteredAt).Seconds() > t.RotateTimeout {
			// Rejected takeoff: rotation never left the ground within the
			// timeout. Revert to Roll so the rule engine re-applies
			// roll-phase steering/throttle and the ATC controller can
			// decide whether to re-clear or direct a return to parking.
			m.current = Roll
		}

	case Liftoff:
		if f.VerticalSpeed > t.LiftoffVsThreshold && f.AltitudeAGL >= t.LiftoffClimbAgl {
			m.current = InitialClimb
		}

	case InitialClimb:
		if f.AltitudeAGL >= t.HandoffAgl && f.IndicatedAirspeed >= t.DepartureSpeed-t.HandoffSpeedMargin {
			m.current = Departure
		}

	case Departure:
		if f.VerticalSpeed >= t.DepartureVS || f.AltitudeAGL >= t.HandoffAgl*2 {
			m.current = Climb
		}

	case Climb:
		if m.cruiseAltMSL > 0 && math.Abs(f.AltitudeMSL-m.cruiseAltMSL) < climbCruiseBandFt {
			if m.climbBandEnteredAt.IsZero() {
				m.climbBandEnteredAt = now
			}
			if now.Sub(m.climbBandEnteredAt) >= climbCruiseDwell {
				m.current = Cruise
			}
		} else {
			m.climbBandEnteredAt = time.Time{}
		}

	case Cruise:
		if m.cruiseAltMSL > 0 && f.AltitudeMSL < m.cruiseAltMSL-500 && f.VerticalSpeed < -200 {
			m.current = Descent
		}

	case Descent:
		if f.AltitudeAGL < 3000 {
			m.current = Approach
		}

	case Approach:
		if f.OnGround() {
			m.current = Landing
		}

	case Landing:
		if f.GroundSpeed < 5 {
			m.current = Parked
		}
	}

	if m.current != before {
		m.phaseEnteredAt = now
		if m.current != Climb {
			m.climbBandEnteredAt = time.Time{}
		}
	}

	return m.current
}
