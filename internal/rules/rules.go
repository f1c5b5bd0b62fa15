// Package rules implements the per-phase rule engine (spec.md §4.7): given
// the current flight phase, the latest telemetry frame, and the active
// tuning parameters, it decides what commands to issue, then applies a
// safety overlay before anything reaches the dispatcher. Grounded on
// Valkyrie's DecisionEngine.Decide/applySafetyLimits pattern.
package rules

import (
	"math"
	"time"

	"github.com/windward/autoflight/internal/dispatch"
	"github.com/windward/autoflight/internal/geo"
	"github.com/windward/autoflight/internal/metrics"
	"github.com/windward/autoflight/internal/phase"
	"github.com/windward/autoflight/internal/simlink"
	"github.com/windward/autoflight/internal/tuning"
)

// axisCenteringValue is the small, never-exact-zero value commanded on
// elevator/aileron so the held-axis loop retains authority over the
// joystick (spec.md §4.7 ROLL, BEFORE_ROLL axis centering).
const axisCenteringValue = 0.1

// departureHandoffWindow bounds how long after entering DEPARTURE the
// autopilot-handoff sequence is still emitted. decideForPhase suppresses
// departureCommands once PhaseElapsed exceeds it, so the handoff fires
// once per attempt rather than every tick for the phase's whole duration
// (spec.md §4.7 "DEPARTURE (autopilot handoff)" is a single-shot sequence).
const departureHandoffWindow = 200 * time.Millisecond

// Context carries the per-tick data the rule engine needs beyond phase,
// frame, and tuning: how long the current phase has been held (for the
// ROTATE elevator ramp), the ATC controller's active taxi waypoint and
// cleared runway heading (for the taxi and steering rules), and the
// operator-configured cruise altitude (for the DEPARTURE autopilot
// handoff). Built fresh by the evaluation tick each frame (spec.md §4.14).
type Context struct {
	PhaseElapsed time.Duration

	CruiseAltitudeMSL float64

	TargetRunwayHeading float64
	HasRunwayHeading    bool

	TaxiWaypointLat float64
	TaxiWaypointLon float64
	HasTaxiWaypoint bool
}

// safety clamp bounds, spec.md §4.7 "Safety overlay".
const (
	elevatorClampMin = -90.0
	elevatorClampMax = 90.0
	aileronClampMin  = -80.0
	aileronClampMax  = 80.0
	rudderClampMin   = -100.0
	rudderClampMax   = 100.0
	throttleClampMin = 0.0
	throttleClampMax = 100.0

	minEmitInterval = 200 * time.Millisecond
)

// Decision is one evaluation tick's output: the commands to dispatch plus
// whether the safety overlay intervened.
type Decision struct {
	Commands     []dispatch.Command
	SafetyActive bool
	SafetyReason string
}

// Engine evaluates phase + frame + tuning into dispatchable commands.
// It is not safe for concurrent use; the evaluation tick owns it
// exclusively (spec.md §3 "Ownership summary").
type Engine struct {
	lastEmit map[string]time.Time
	lastVal  map[string]float64
}

// NewEngine creates a rule engine with an empty emission-throttle table.
func NewEngine() *Engine {
	return &Engine{
		lastEmit: make(map[string]time.Time),
		lastVal:  make(map[string]float64),
	}
}

// Reset clears the per-axis emission-throttle table, used on disable().
func (e *Engine) Reset() {
	e.lastEmit = make(map[string]time.Time)
	e.lastVal = make(map[string]float64)
}

// Evaluate runs the phase-specific rule, applies the safety clamp, then
// throttles repeated identical emissions to at most once per
// minEmitInterval per command name.
func (e *Engine) Evaluate(p phase.Phase, f simlink.Frame, t tuning.Parameters, now time.Time, rc Context) Decision {
	raw := decideForPhase(p, f, t, rc)
	clamped, safetyActive, safetyReason := applySafetyClamp(raw)
	filtered := e.throttle(clamped, now)
	return Decision{Commands: filtered, SafetyActive: safetyActive, SafetyReason: safetyReason}
}

func decideForPhase(p phase.Phase, f simlink.Frame, t tuning.Parameters, rc Context) []dispatch.Command {
	switch p {
	case phase.Parked:
		if rc.HasTaxiWaypoint {
			return taxiCommands(f, t, rc)
		}
		return nil

	case phase.BeforeRoll:
		if rc.HasTaxiWaypoint {
			return taxiCommands(f, t, rc)
		}
		return axisCenteringCommands()

	case phase.Roll:
		return rollCommands(f, t, rc)

	case phase.Rotate:
		return rotateCommands(f, t, rc)

	case phase.Liftoff:
		return liftoffCommands(f, t)

	case phase.InitialClimb:
		return initialClimbCommands(f, t)

	case phase.Departure:
		if rc.PhaseElapsed > departureHandoffWindow {
			return nil
		}
		return departureCommands(f, t, rc)

	case phase.Climb:
		return climbCommands(t)

	default:
		// Cruise, Descent, Approach, Landing: autopilot has been handed
		// control in Departure; the rule engine issues no further direct
		// axis commands.
		return nil
	}
}

// steeringRudder computes the proportional steering term shared by ROLL,
// ROTATE, and the taxi rule (spec.md §4.7 ROLL): rudderBias + Kp *
// angleError, Kp decaying with ground speed, clamped at low ground speed,
// and deadbanded to zero when the error is small.
func steeringRudder(angleErr, groundSpeed float64, t tuning.Parameters) float64 {
	if math.Abs(angleErr) < t.SteerDeadband {
		return 0
	}
	kp := math.Max(0, t.SteerGainBase-t.SteerGainDecay*groundSpeed)
	rudder := t.RudderBias + kp*angleErr
	return clampf(rudder, -t.TaxiRudderMaxLow, t.TaxiRudderMaxLow)
}

// axisCenteringCommands emits the small, never-exact-zero elevator/aileron
// values BEFORE_ROLL needs to seed the held-axis table before ROLL begins
// (spec.md §4.6 "axis centering").
func axisCenteringCommands() []dispatch.Command {
	return []dispatch.Command{
		dispatch.Valued("AXIS_ELEVATOR_SET", axisCenteringValue),
		dispatch.Valued("AXIS_AILERONS_SET", axisCenteringValue),
	}
}

// taxiCommands implements the "Taxi (under ATC control)" rule: steer
// toward the next unreached waypoint on the ATC-cleared route and command
// throttle proportionally toward taxiTargetGS (spec.md §4.7).
func taxiCommands(f simlink.Frame, t tuning.Parameters, rc Context) []dispatch.Command {
	desiredHeading := geo.Bearing(f.Latitude, f.Longitude, rc.TaxiWaypointLat, rc.TaxiWaypointLon)
	angleErr := geo.AngleError(desiredHeading, f.HeadingTrue)
	rudder := steeringRudder(angleErr, f.GroundSpeed, t)

	throttle := clampf(t.TaxiTargetGS-f.GroundSpeed+t.TaxiThrottleMin, t.TaxiThrottleMin, t.TaxiThrottleMax)
	if math.Abs(angleErr) > t.TaxiHdgErrorThreshold {
		throttle = t.TaxiThrottleMin
	}

	return []dispatch.Command{
		dispatch.Valued("THROTTLE_SET", throttle),
		dispatch.Valued("AXIS_RUDDER_SET", rudder),
	}
}

func rollCommands(f simlink.Frame, t tuning.Parameters, rc Context) []dispatch.Command {
	angleErr := 0.0
	if rc.HasRunwayHeading {
		angleErr = geo.AngleError(rc.TargetRunwayHeading, f.HeadingTrue)
	}
	rudder := steeringRudder(angleErr, f.GroundSpeed, t)
	return []dispatch.Command{
		dispatch.Valued("THROTTLE_SET", t.RollThrottle),
		dispatch.Valued("AXIS_RUDDER_SET", rudder),
		dispatch.Valued("AXIS_ELEVATOR_SET", axisCenteringValue),
		dispatch.Valued("AXIS_AILERONS_SET", axisCenteringValue),
	}
}

// rotateCommands ramps the elevator from near-zero toward rotateElevator
// over time rather than commanding the full deflection immediately, and
// maintains the same rudder steering as ROLL (spec.md §4.7 ROTATE).
func rotateCommands(f simlink.Frame, t tuning.Parameters, rc Context) []dispatch.Command {
	elevator := math.Max(t.RotateElevator, -rc.PhaseElapsed.Seconds()*t.RotateRampRate)

	angleErr := 0.0
	if rc.HasRunwayHeading {
		angleErr = geo.AngleError(rc.TargetRunwayHeading, f.HeadingTrue)
	}
	rudder := steeringRudder(angleErr, f.GroundSpeed, t)

	return []dispatch.Command{
		dispatch.Valued("THROTTLE_SET", t.RotateThrottle),
		dispatch.Valued("AXIS_ELEVATOR_SET", elevator),
		dispatch.Valued("AXIS_RUDDER_SET", rudder),
	}
}

func liftoffCommands(f simlink.Frame, t tuning.Parameters) []dispatch.Command {
	aileron := 0.0
	if math.Abs(f.Bank) > t.LiftoffBankThreshold {
		aileron = clampf(-f.Bank*t.LiftoffAileronGain, -t.LiftoffAileronMax, t.LiftoffAileronMax)
	}
	return []dispatch.Command{
		dispatch.Valued("THROTTLE_SET", t.LiftoffThrottle),
		dispatch.Valued("AXIS_ELEVATOR_SET", t.LiftoffElevator),
		dispatch.Valued("AXIS_AILERONS_SET", aileron),
	}
}

func initialClimbCommands(f simlink.Frame, t tuning.Parameters) []dispatch.Command {
	aileron := 0.0
	if math.Abs(f.Bank) > t.ClimbBankThreshold {
		aileron = clampf(-f.Bank*t.ClimbAileronGain, -t.ClimbAileronMax, t.ClimbAileronMax)
	}
	return []dispatch.Command{
		dispatch.Valued("THROTTLE_SET", t.ClimbPhaseThrottle),
		dispatch.Valued("AXIS_ELEVATOR_SET", t.ClimbElevator),
		dispatch.Valued("AXIS_AILERONS_SET", aileron),
	}
}

// departureCommands hands control to the autopilot: releases the held
// manual axes, engages heading/VS/airspeed hold, retracts flaps, and sets
// the cruise altitude target (spec.md §4.7 "DEPARTURE (autopilot
// handoff)"). decideForPhase only calls this within
// departureHandoffWindow of phase entry, making the sequence single-shot.
func departureCommands(f simlink.Frame, t tuning.Parameters, rc Context) []dispatch.Command {
	return []dispatch.Command{
		dispatch.Valued("AXIS_ELEVATOR_SET", 0),
		dispatch.Valued("AXIS_AILERONS_SET", 0),
		dispatch.Valued("AXIS_RUDDER_SET", 0),
		dispatch.Discrete("AP_MASTER"),
		dispatch.Discrete("AP_HDG_HOLD"),
		dispatch.Valued("HEADING_BUG_SET", f.HeadingTrue),
		dispatch.Valued("AP_VS_VAR_SET", t.DepartureVS),
		dispatch.Discrete("AP_VS_HOLD"),
		dispatch.Valued("AP_SPD_VAR_SET", t.DepartureSpeed),
		dispatch.Discrete("AP_AIRSPEED_HOLD"),
		dispatch.Valued("FLAPS_SET", 0),
		dispatch.Valued("AP_ALT_VAR_SET", rc.CruiseAltitudeMSL),
		dispatch.Valued("THROTTLE_SET", t.ClimbThrottle),
	}
}

func climbCommands(t tuning.Parameters) []dispatch.Command {
	return []dispatch.Command{
		dispatch.Valued("AP_VS_VAR_SET", t.ClimbVS),
		dispatch.Valued("THROTTLE_SET", t.ClimbThrottle),
	}
}

// applySafetyClamp enforces the hard axis bounds regardless of phase
// logic (spec.md §4.7, scenario S5: an elevator command of -120 is
// clamped to -90 and reported as a safety intervention).
func applySafetyClamp(cmds []dispatch.Command) ([]dispatch.Command, bool, string) {
	active := false
	reason := ""
	out := make([]dispatch.Command, len(cmds))
	for i, c := range cmds {
		out[i] = c
		if !c.Valued {
			continue
		}
		switch c.Name {
		case "AXIS_ELEVATOR_SET":
			clamped := clampf(c.Value, elevatorClampMin, elevatorClampMax)
			out[i] = dispatch.ValuedClamped(c.Name, clamped)
			if clamped != c.Value {
				active = true
				reason = "elevator command saturated at safety clamp"
				metrics.RecordSafetyClamp("elevator")
			}
		case "AXIS_AILERONS_SET":
			clamped := clampf(c.Value, aileronClampMin, aileronClampMax)
			out[i] = dispatch.ValuedClamped(c.Name, clamped)
			if clamped != c.Value {
				active = true
				reason = "aileron command saturated at safety clamp"
				metrics.RecordSafetyClamp("aileron")
			}
		case "AXIS_RUDDER_SET":
			clamped := clampf(c.Value, rudderClampMin, rudderClampMax)
			out[i] = dispatch.ValuedClamped(c.Name, clamped)
			if clamped != c.Value {
				active = true
				reason = "rudder command saturated at safety clamp"
				metrics.RecordSafetyClamp("rudder")
			}
		case "THROTTLE_SET":
			clamped := clampf(c.Value, throttleClampMin, throttleClampMax)
			out[i] = dispatch.ValuedClamped(c.Name, clamped)
			if clamped != c.Value {
				active = true
				reason = "throttle command saturated at safety clamp"
				metrics.RecordSafetyClamp("throttle")
			}
		case "AP_ALT_VAR_SET":
			clamped := clampf(c.Value, 0, 45000)
			out[i] = dispatch.ValuedClamped(c.Name, clamped)
			if clamped != c.Value {
				active = true
				reason = "autopilot altitude saturated at safety clamp"
				metrics.RecordSafetyClamp("ap_altitude")
			}
		case "AP_VS_VAR_SET":
			clamped := clampf(c.Value, -6000, 6000)
			out[i] = dispatch.ValuedClamped(c.Name, clamped)
			if clamped != c.Value {
				active = true
				reason = "autopilot vertical speed saturated at safety clamp"
				metrics.RecordSafetyClamp("ap_vertical_speed")
			}
		}
	}
	return out, active, reason
}

// throttle drops a command if an identical value was already emitted for
// that name within minEmitInterval (spec.md §4.8 "per-axis minimum
// interval"), to keep the dispatcher log and simulator link from being
// flooded with no-op repeats every evaluation tick.
func (e *Engine) throttle(cmds []dispatch.Command, now time.Time) []dispatch.Command {
	out := make([]dispatch.Command, 0, len(cmds))
	for _, c := range cmds {
		key := c.Name
		last, seen := e.lastEmit[key]
		sameValue := e.lastVal[key] == c.Value
		if seen && sameValue && now.Sub(last) < minEmitInterval {
			metrics.RecordCommandThrottled()
			continue
		}
		e.lastEmit[key] = now
		e.lastVal[key] = c.Value
		out = append(out, c)
	}
	return out
}

func clampf(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
