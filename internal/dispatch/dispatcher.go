package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/apperr"
	"github.com/windward/autoflight/internal/simlink"
)

// LogEntry is one executed-command diagnostic record (spec.md §4.8).
type LogEntry struct {
	Time        time.Time
	Type        string
	Value       float64
	Description string
}

const commandLogSize = 30

// Dispatcher validates, scales, and transmits simulator events. It is the
// sole owner of the held-axis table (spec.md §3 "Ownership summary").
type Dispatcher struct {
	mu       sync.Mutex
	sim      simlink.Simulator
	logger   *logrus.Logger
	held     map[Axis]float64
	cmdLog   []LogEntry
}

// NewDispatcher creates a Dispatcher writing to sim.
func NewDispatcher(sim simlink.Simulator, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		sim:    sim,
		logger: logger,
		held:   make(map[Axis]float64),
	}
}

// Execute validates, scales, and transmits cmd. Valued axis commands are
// also written into the held-axis table (or cleared, on explicit zero).
// A SimulatorUnavailable failure is dropped silently (logged, swallowed)
// per spec.md §7: the engine continues so it recovers when the simulator
// returns.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) error {
	spec, ok := registry[cmd.Name]
	if !ok {
		return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("unknown command %q", cmd.Name))
	}

	if cmd.Valued && !cmd.PreValidated {
		if err := validate(cmd.Name, cmd.Value); err != nil {
			d.logger.WithFields(logrus.Fields{"command": cmd.Name, "value": cmd.Value}).Warn("command rejected: invalid argument")
			return err
		}
	}

	scaled := 0
	if cmd.Valued {
		scaled = scaledValue(spec, cmd.Value)
	}

	err := d.sim.TransmitClientEvent(ctx, spec.eventName, scaled)
	if err != nil {
		if apperr.Is(err, apperr.KindSimulatorUnavailable) {
			d.logger.WithFields(logrus.Fields{"command": cmd.Name}).Debug("simulator unavailable, command dropped")
			return nil
		}
		return err
	}

	if cmd.Valued && spec.axis != "" {
		d.updateHeldAxis(spec.axis, cmd.Value)
	}

	d.appendLog(LogEntry{
		Time:        time.Now(),
		Type:        cmd.Name,
		Value:       cmd.Value,
		Description: fmt.Sprintf("%s -> %d", cmd.Name, scaled),
	})
	return nil
}

func (d *Dispatcher) updateHeldAxis(axis Axis, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if value == 0 {
		delete(d.held, axis)
		return
	}
	d.held[axis] = value
}

func (d *Dispatcher) appendLog(entry LogEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmdLog = append(d.cmdLog, entry)
	if len(d.cmdLog) > commandLogSize {
		d.cmdLog = d.cmdLog[len(d.cmdLog)-commandLogSize:]
	}
}

// RecentLog returns a copy of the last commandLogSize executed commands.
func (d *Dispatcher) RecentLog() []LogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]LogEntry, len(d.cmdLog))
	copy(out, d.cmdLog)
	return out
}

// HeldAxes returns a snapshot of the current held-axis table.
func (d *Dispatcher) HeldAxes() map[Axis]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[Axis]float64, len(d.held))
	for k, v := range d.held {
		out[k] = v
	}
	return out
}

// ReleaseAll transmits explicit zero on every held axis and clears the
// table, used by the evaluation tick's disable() operation.
func (d *Dispatcher) ReleaseAll(ctx context.Context) {
	d.mu.Lock()
	axes := make([]Axis, 0, len(d.held))
	for a := range d.held {
		axes = append(axes, a)
	}
	d.mu.Unlock()

	for _, a := range axes {
		name := axisCommandName(a)
		if name == "" {
			continue
		}
		_ = d.Execute(ctx, Valued(name, 0))
	}

	d.mu.Lock()
	d.held = make(map[Axis]float64)
	d.mu.Unlock()
}

func axisCommandName(a Axis) string {
	switch a {
	case AxisElevator:
		return "AXIS_ELEVATOR_SET"
	case AxisAileron:
		return "AXIS_AILERONS_SET"
	case AxisThrottle:
		return "THROTTLE_SET"
	default:
		return ""
	}
}
