// Package evaluator implements the evaluation tick (spec.md §4.14): the
// single top-level procedure invoked on every telemetry frame that
// advances the flight-phase machine, evaluates the rule engine, updates
// the ATC controller's position, and publishes a broadcast record. It is
// the sole owner of the tick; the rule engine, phase machine, and ATC
// controller are only ever mutated from here (spec.md §9 "Cyclic-ish
// ownership").
package evaluator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/atc"
	"github.com/windward/autoflight/internal/broadcast"
	"github.com/windward/autoflight/internal/dispatch"
	"github.com/windward/autoflight/internal/logbook"
	"github.com/windward/autoflight/internal/metrics"
	"github.com/windward/autoflight/internal/phase"
	"github.com/windward/autoflight/internal/queue"
	"github.com/windward/autoflight/internal/rules"
	"github.com/windward/autoflight/internal/simlink"
	"github.com/windward/autoflight/internal/store"
	"github.com/windward/autoflight/internal/tuning"
)

// attemptTracker accumulates a TakeoffAttempt's telemetry rollup and
// phase history from ROLL entry until the attempt concludes (spec.md
// §4.11).
type attemptTracker struct {
	startTime     time.Time
	phasesReached []string
	rollup        *logbook.RollupAccumulator
}

// persistedState is the `rule-engine-state.json` record of spec.md §6.
type persistedState struct {
	Enabled   bool    `json:"enabled"`
	CruiseAlt float64 `json:"cruiseAlt"`
}

// Evaluator is the top-level per-frame tick.
type Evaluator struct {
	mu sync.Mutex

	phaseMachine *phase.Machine
	ruleEngine   *rules.Engine
	atcCtrl      *atc.Controller
	dispatcher   *dispatch.Dispatcher
	cmdQueue     *queue.Queue
	tuningStore  *tuning.Store
	logbookStore *logbook.Store
	streamer     *broadcast.Streamer
	logger       *logrus.Logger

	statePath string
	state     persistedState

	lastCommand string
	attempt     *attemptTracker
}

// New creates an evaluation tick wired to its collaborators. The
// persisted enable/cruise-altitude state is loaded from statePath so a
// process restart resumes the last mode (spec.md §4.14).
func New(
	phaseMachine *phase.Machine,
	ruleEngine *rules.Engine,
	atcCtrl *atc.Controller,
	dispatcher *dispatch.Dispatcher,
	cmdQueue *queue.Queue,
	tuningStore *tuning.Store,
	logbookStore *logbook.Store,
	streamer *broadcast.Streamer,
	statePath string,
	logger *logrus.Logger,
) *Evaluator {
	e := &Evaluator{
		phaseMachine: phaseMachine,
		ruleEngine:   ruleEngine,
		atcCtrl:      atcCtrl,
		dispatcher:   dispatcher,
		cmdQueue:     cmdQueue,
		tuningStore:  tuningStore,
		logbookStore: logbookStore,
		streamer:     streamer,
		logger:       logger,
		statePath:    statePath,
	}
	store.LoadJSON(statePath, &e.state, logger)
	return e
}

// Enabled reports whether the engine is currently enabled.
func (e *Evaluator) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Enabled
}

// Enable resets the rule engine's emission-throttle table, moves the
// phase machine from Inactive to Parked, then marks the engine enabled
// and persists that decision. Commands still pending in the command
// queue and the dispatcher's command log are left as they are.
func (e *Evaluator) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ruleEngine.Reset()
	e.phaseMachine.Activate()
	e.state.Enabled = true
	e.persist()
}

// Disable transmits explicit zero on every held axis, releases the
// parking brakes, clears the held-axis table, and marks the engine
// disabled (spec.md §4.14).
func (e *Evaluator) Disable(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishAttempt(logbook.OutcomeAborted)
	e.dispatcher.ReleaseAll(ctx)
	_ = e.dispatcher.Execute(ctx, dispatch.Discrete("PARKING_BRAKES"))
	e.phaseMachine.Reset()
	e.state.Enabled = false
	e.persist()
}

// SetCruiseAltitude sets the target cruise altitude (MSL) used by the
// phase machine's Climb -> Cruise transition, and persists it.
func (e *Evaluator) SetCruiseAltitude(altMSL float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phaseMachine.SetCruiseAltitude(altMSL)
	e.state.CruiseAlt = altMSL
	e.persist()
}

// RequestTakeoff latches an operator-issued "request takeoff" signal,
// forcing PARKED -> BEFORE_ROLL on the next Tick regardless of throttle
// position (spec.md §4.6, operator surface "request takeoff").
func (e *Evaluator) RequestTakeoff() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phaseMachine.RequestTakeoff()
}

func (e *Evaluator) persist() {
	store.SaveJSON(e.statePath, &e.state, e.logger)
}

// Tick runs the full per-frame procedure of spec.md §4.14: if not
// enabled, it returns immediately (step 1); otherwise it advances ATC
// position (step 3), the flight-phase machine (step 4), evaluates rules
// (steps 5-6), dispatches the resulting commands, and publishes a
// broadcast record (step 7).
func (e *Evaluator) Tick(ctx context.Context, f simlink.Frame, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Enabled {
		return
	}

	tickStart := time.Now()
	previousPhase := e.phaseMachine.Current()

	e.atcCtrl.AdvanceWaypoint(f.Latitude, f.Longitude)

	p := e.phaseMachine.Advance(f, e.tuningStore.GetTuning(), now)
	metrics.RecordPhaseTransition(previousPhase.String(), p.String())
	e.atcCtrl.ObservePhase(p)
	e.trackAttempt(previousPhase, p, f, now)

	rc := rules.Context{
		PhaseElapsed:      now.Sub(e.phaseMachine.PhaseEnteredAt()),
		CruiseAltitudeMSL: e.phaseMachine.CruiseAltitude(),
	}
	if hdg, ok := e.atcCtrl.TargetRunwayHeading(); ok {
		rc.TargetRunwayHeading, rc.HasRunwayHeading = hdg, true
	}
	if lat, lon, ok := e.atcCtrl.ActiveWaypoint(); ok {
		rc.TaxiWaypointLat, rc.TaxiWaypointLon, rc.HasTaxiWaypoint = lat, lon, true
	}

	decision := e.ruleEngine.Evaluate(p, f, e.tuningStore.GetTuning(), now, rc)
	for _, cmd := range decision.Commands {
		if err := e.cmdQueue.Submit(ctx, cmd); err != nil {
			e.logger.WithFields(logrus.Fields{"command": cmd.Name, "error": err}).Warn("rule-originated command rejected")
			continue
		}
		e.lastCommand = cmd.Name
		if e.attempt != nil {
			e.attempt.rollup.ObserveCommand(cmd.Name, cmd.Value)
		}
	}
	if p == phase.BeforeRoll && len(decision.Commands) > 0 {
		e.phaseMachine.MarkAxisCentered()
	}
	metrics.UpdateHeldAxesCount(len(e.dispatcher.HeldAxes()))
	metrics.RecordTick(time.Since(tickStart))

	if e.streamer != nil {
		atcPhase := ""
		if e.atcCtrl.Current() != atc.Inactive {
			atcPhase = e.atcCtrl.Current().String()
		}
		e.streamer.Publish(broadcast.Record{
			Phase:        p.String(),
			Axes:         axesAsStrings(e.dispatcher.HeldAxes()),
			LastCommand:  e.lastCommand,
			SafetyActive: decision.SafetyActive,
			SafetyReason: decision.SafetyReason,
			ATCPhase:     atcPhase,
		})
	}
}

// trackAttempt maintains the in-progress TakeoffAttempt rollup (spec.md
// §4.11): a new attempt starts the moment BEFORE_ROLL -> ROLL fires, and
// it concludes as AIRBORNE (LIFTOFF -> INITIAL_CLIMB), REJECTED (ROTATE ->
// ROLL revert), or ABORTED (any other return to PARKED mid-attempt).
func (e *Evaluator) trackAttempt(prev, cur phase.Phase, f simlink.Frame, now time.Time) {
	if cur == phase.Roll && prev == phase.BeforeRoll {
		heading, hasHeading := e.atcCtrl.TargetRunwayHeading()
		e.attempt = &attemptTracker{
			startTime: now,
			rollup:    logbook.NewRollupAccumulator(heading, hasHeading),
		}
	}
	if e.attempt == nil {
		return
	}

	if n := len(e.attempt.phasesReached); n == 0 || e.attempt.phasesReached[n-1] != cur.String() {
		e.attempt.phasesReached = append(e.attempt.phasesReached, cur.String())
	}
	e.attempt.rollup.Observe(f, now.Sub(e.attempt.startTime), cur.String())

	switch {
	case cur == phase.InitialClimb && prev == phase.Liftoff:
		e.finishAttempt(logbook.OutcomeAirborne)
	case cur == phase.Roll && prev == phase.Rotate:
		e.finishAttempt(logbook.OutcomeRejected)
	case cur == phase.Parked && prev != phase.Parked:
		e.finishAttempt(logbook.OutcomeAborted)
	}
}

// finishAttempt records the in-progress attempt (if any) to the logbook
// store under outcome and clears the tracker.
func (e *Evaluator) finishAttempt(outcome logbook.Outcome) {
	if e.attempt == nil {
		return
	}
	if e.logbookStore != nil {
		e.logbookStore.RecordAttempt(logbook.Attempt{
			Outcome:       outcome,
			PhasesReached: e.attempt.phasesReached,
			Tuning:        e.tuningStore.GetTuning(),
			Telemetry:     e.attempt.rollup.Rollup(),
		})
	}
	e.attempt = nil
}

func axesAsStrings(held map[dispatch.Axis]float64) map[string]float64 {
	out := make(map[string]float64, len(held))
	for k, v := range held {
		out[string(k)] = v
	}
	return out
}
