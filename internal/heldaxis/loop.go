// Package heldaxis runs the 60 Hz timer that fights joystick
// spring-centering by continuously retransmitting every entry of the
// dispatcher's held-axis table (spec.md §4.5).
package heldaxis

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/dispatch"
)

const retransmitHz = 60

// axisCommandName mirrors dispatch's private mapping; held axes only ever
// come from these three channels (spec.md §3).
var axisCommandName = map[dispatch.Axis]string{
	dispatch.AxisElevator: "AXIS_ELEVATOR_SET",
	dispatch.AxisAileron:  "AXIS_AILERONS_SET",
	dispatch.AxisThrottle: "THROTTLE_SET",
}

// Loop retransmits held axis values at retransmitHz until Stop is called.
type Loop struct {
	dispatcher *dispatch.Dispatcher
	logger     *logrus.Logger
	ticker     *time.Ticker
	stop       chan struct{}
	done       chan struct{}
}

// NewLoop creates a held-axis retransmission loop.
func NewLoop(d *dispatch.Dispatcher, logger *logrus.Logger) *Loop {
	return &Loop{
		dispatcher: d,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run blocks, retransmitting at 60 Hz, until ctx is cancelled or Stop is
// called. It is meant to be launched with `go loop.Run(ctx)` for the life
// of the process.
func (l *Loop) Run(ctx context.Context) {
	l.ticker = time.NewTicker(time.Second / retransmitHz)
	defer l.ticker.Stop()
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-l.ticker.C:
			l.retransmitOnce(ctx)
		}
	}
}

func (l *Loop) retransmitOnce(ctx context.Context) {
	held := l.dispatcher.HeldAxes()
	for axis, value := range held {
		name, ok := axisCommandName[axis]
		if !ok {
			continue
		}
		if err := l.dispatcher.Execute(ctx, dispatch.ValuedClamped(name, value)); err != nil {
			l.logger.WithFields(logrus.Fields{"axis": axis, "error": err}).Debug("held-axis retransmit failed")
		}
	}
}

// Stop requests the loop terminate and waits for it to finish.
func (l *Loop) Stop() {
	close(l.stop)
	<-l.done
}
