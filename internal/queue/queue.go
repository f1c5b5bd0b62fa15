// Package queue implements the command queue (spec.md §4.8): discrete
// autopilot commands are rate-limited to 2 per second and FIFO-buffered
// across the limit rather than dropped, while axis and throttle commands
// bypass the queue entirely so the held-axis loop and rule engine always
// win priority over queued, non-time-critical autopilot toggles.
package queue

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/windward/autoflight/internal/dispatch"
	"github.com/windward/autoflight/internal/metrics"
)

const discreteRateLimit = 2 // per second, spec.md §4.8

// maxPendingDiscrete bounds the FIFO so a sustained burst of discrete
// commands cannot grow the queue without limit; once full, the oldest
// pending command is dropped (logged, metered) to make room for the
// newest.
const maxPendingDiscrete = 64

// axisCommands bypass the rate limiter and the FIFO entirely.
var axisCommands = map[string]bool{
	"AXIS_ELEVATOR_SET": true,
	"AXIS_RUDDER_SET":   true,
	"AXIS_AILERONS_SET": true,
	"THROTTLE_SET":      true,
}

// Queue rate-limits discrete command submission, preserving FIFO order
// for anything that arrives faster than the limit allows, and forwards
// everything to a Dispatcher.
type Queue struct {
	dispatcher *dispatch.Dispatcher
	limiter    *rate.Limiter
	logger     *logrus.Logger

	mu      sync.Mutex
	pending []dispatch.Command
	wake    chan struct{}
}

// New creates a command queue writing through to dispatcher.
func New(dispatcher *dispatch.Dispatcher, logger *logrus.Logger) *Queue {
	return &Queue{
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(rate.Limit(discreteRateLimit), discreteRateLimit),
		logger:     logger,
		wake:       make(chan struct{}, 1),
	}
}

// Submit dispatches cmd, rate-limiting discrete commands to
// discreteRateLimit per second. Axis/throttle commands always go through
// immediately. A discrete command submitted while the rate limit is
// exhausted is appended to the FIFO for Run to drain in order, so a
// burst of operator clicks is delayed rather than lost; only once
// maxPendingDiscrete commands are pending is the oldest one dropped
// (spec.md §5 ordering guarantee: discrete AP commands preserve FIFO
// order across consumers).
func (q *Queue) Submit(ctx context.Context, cmd dispatch.Command) error {
	if axisCommands[cmd.Name] {
		err := q.dispatcher.Execute(ctx, cmd)
		if err == nil {
			metrics.RecordCommandDispatched(cmd.Name)
		}
		return err
	}

	if q.limiter.Allow() {
		err := q.dispatcher.Execute(ctx, cmd)
		if err == nil {
			metrics.RecordCommandDispatched(cmd.Name)
		}
		return err
	}

	q.enqueue(cmd)
	return nil
}

// SubmitAll submits a batch of commands in order, stopping at the first
// error from an axis/throttle command (FIFO-enqueued discretes never
// error synchronously).
func (q *Queue) SubmitAll(ctx context.Context, cmds []dispatch.Command) error {
	for _, c := range cmds {
		if err := q.Submit(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until a discrete-command submission slot is available or
// ctx is cancelled. Callers that must not be FIFO-delayed (e.g. an
// operator-issued clearance) use this instead of Submit.
func (q *Queue) Wait(ctx context.Context) error {
	return q.limiter.Wait(ctx)
}

// Run drains the pending FIFO in order as the rate limiter permits,
// dispatching each command through the wrapped Dispatcher. It blocks for
// the life of the process; launch with `go queue.Run(ctx)` alongside the
// held-axis loop.
func (q *Queue) Run(ctx context.Context) {
	for {
		cmd, ok := q.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		if err := q.limiter.Wait(ctx); err != nil {
			return
		}
		if err := q.dispatcher.Execute(ctx, cmd); err != nil {
			q.logger.WithFields(logrus.Fields{"command": cmd.Name, "error": err}).Warn("queued command dispatch failed")
			continue
		}
		metrics.RecordCommandDispatched(cmd.Name)
	}
}

func (q *Queue) enqueue(cmd dispatch.Command) {
	q.mu.Lock()
	if len(q.pending) >= maxPendingDiscrete {
		dropped := q.pending[0]
		q.pending = q.pending[1:]
		q.logger.WithField("command", dropped.Name).Warn("discrete command dropped: pending queue full")
		metrics.RecordQueueDrop()
	}
	q.pending = append(q.pending, cmd)
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.UpdateQueueDepth(depth)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) dequeue() (dispatch.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return dispatch.Command{}, false
	}
	cmd := q.pending[0]
	q.pending = q.pending[1:]
	metrics.UpdateQueueDepth(len(q.pending))
	return cmd, true
}
