// Package dispatch owns the mapping from named commands to simulator
// events, the scaling/validation rules of spec.md §4.4, and the held-axis
// table that the 60 Hz retransmission loop reads.
package dispatch

import (
	"fmt"
	"math"

	"github.com/windward/autoflight/internal/apperr"
)

// Axis identifies a held-axis channel.
type Axis string

const (
	AxisElevator Axis = "elevator"
	AxisAileron  Axis = "aileron"
	AxisThrottle Axis = "throttle"
)

// ScaleKind determines how a command's scalar value is mapped to the
// simulator's native integer range.
type ScaleKind int

const (
	scalePercent ScaleKind = iota // 0-100% -> 0..16383
	scaleBipolar                 // -50..+50 -> -16383..+16383
	scalePassthrough
)

const simUnitMax = 16383

// commandSpec describes one recognized command name.
type commandSpec struct {
	eventName string
	scale     ScaleKind
	axis      Axis // "" if this command does not hold an axis
}

// registry is the command-name to event/scale mapping. It does not own the
// eventId<->string mapping itself — that setup-time table belongs to the
// simulator collaborator (spec.md §6) — only the scaling/validation rule.
var registry = map[string]commandSpec{
	"THROTTLE_SET":       {eventName: "THROTTLE_SET", scale: scalePercent, axis: AxisThrottle},
	"MIXTURE_SET":        {eventName: "MIXTURE_SET", scale: scalePercent},
	"PROP_PITCH_SET":     {eventName: "PROP_PITCH_SET", scale: scalePercent},
	"AXIS_ELEVATOR_SET":  {eventName: "AXIS_ELEVATOR_SET", scale: scaleBipolar, axis: AxisElevator},
	"AXIS_RUDDER_SET":    {eventName: "AXIS_RUDDER_SET", scale: scaleBipolar},
	"AXIS_AILERONS_SET":  {eventName: "AXIS_AILERONS_SET", scale: scaleBipolar, axis: AxisAileron},
	"AP_MASTER":          {eventName: "AP_MASTER", scale: scalePassthrough},
	"AP_HDG_HOLD":        {eventName: "AP_PANEL_HEADING_HOLD", scale: scalePassthrough},
	"AP_VS_HOLD":         {eventName: "AP_PANEL_VS_HOLD", scale: scalePassthrough},
	"AP_AIRSPEED_HOLD":   {eventName: "AP_PANEL_SPEED_HOLD", scale: scalePassthrough},
	"AP_NAV_HOLD":        {eventName: "AP_NAV1_HOLD", scale: scalePassthrough},
	"AP_APR_HOLD":        {eventName: "AP_APR_HOLD", scale: scalePassthrough},
	"HEADING_BUG_SET":    {eventName: "HEADING_BUG_SET", scale: scalePassthrough},
	"AP_ALT_VAR_SET":     {eventName: "AP_ALT_VAR_SET_ENGLISH", scale: scalePassthrough},
	"AP_VS_VAR_SET":      {eventName: "AP_VS_VAR_SET_ENGLISH", scale: scalePassthrough},
	"AP_SPD_VAR_SET":     {eventName: "AP_SPD_VAR_SET", scale: scalePassthrough},
	"FLAPS_DOWN":         {eventName: "FLAPS_DOWN", scale: scalePassthrough},
	"FLAPS_UP":           {eventName: "FLAPS_UP", scale: scalePassthrough},
	"FLAPS_SET":          {eventName: "FLAPS_SET", scale: scalePassthrough},
	"PARKING_BRAKES":     {eventName: "PARKING_BRAKES", scale: scalePassthrough},
}

// Command is the tagged-variant command type of spec.md §3: either a
// Discrete named command, or a Valued command carrying a scalar.
//
// PreValidated marks a value that has already passed the rule engine's
// wider safety clamp (spec.md §4.7, ±90 for elevator versus the
// dispatcher's own ±50 argument boundary for directly-issued commands);
// Execute skips its own boundary check for such commands since the
// safety overlay is the authoritative bound for rule-originated values.
type Command struct {
	Name         string
	Valued       bool
	Value        float64
	PreValidated bool
}

// Discrete builds a discrete command (no scalar payload).
func Discrete(name string) Command { return Command{Name: name} }

// Valued builds a command carrying a scalar payload, subject to the
// dispatcher's own argument-boundary validation.
func Valued(name string, value float64) Command { return Command{Name: name, Valued: true, Value: value} }

// ValuedClamped builds a Valued command that has already been bounded by
// the rule engine's safety overlay and so bypasses the dispatcher's
// narrower argument-boundary check.
func ValuedClamped(name string, value float64) Command {
	return Command{Name: name, Valued: true, Value: value, PreValidated: true}
}

// scaledValue maps a command's scalar to the simulator's native integer
// range per spec.md §4.4.
func scaledValue(spec commandSpec, value float64) int {
	switch spec.scale {
	case scalePercent:
		return int(math.Round(value / 100.0 * simUnitMax))
	case scaleBipolar:
		return int(math.Round(value / 50.0 * simUnitMax))
	default:
		return int(math.Round(value))
	}
}

// validate enforces the boundary rules of spec.md §4.4. Returns a
// KindInvalidArgument error on failure.
func validate(name string, value float64) error {
	switch name {
	case "AP_ALT_VAR_SET":
		if value < 0 || value > 45000 {
			return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("altitude %v out of range [0,45000]", value))
		}
	case "AP_VS_VAR_SET":
		if value < -6000 || value > 6000 {
			return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("vertical speed %v out of range [-6000,6000]", value))
		}
	case "AP_SPD_VAR_SET":
		if value < 40 || value > 500 {
			return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("speed %v out of range [40,500]", value))
		}
	case "HEADING_BUG_SET":
		if value < 0 || value > 360 {
			return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("heading %v out of range [0,360]", value))
		}
	case "THROTTLE_SET":
		if value < 0 || value > 100 {
			return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("throttle %v out of range [0,100]", value))
		}
	case "MIXTURE_SET":
		if value < 0 || value > 100 {
			return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("mixture %v out of range [0,100]", value))
		}
	case "AXIS_ELEVATOR_SET":
		if value < -50 || value > 50 {
			return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("elevator %v out of range [-50,50]", value))
		}
	}
	return nil
}
