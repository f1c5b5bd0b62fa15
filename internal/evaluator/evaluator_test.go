package evaluator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/atc"
	"github.com/windward/autoflight/internal/dispatch"
	"github.com/windward/autoflight/internal/facility"
	"github.com/windward/autoflight/internal/logbook"
	"github.com/windward/autoflight/internal/phase"
	"github.com/windward/autoflight/internal/queue"
	"github.com/windward/autoflight/internal/rules"
	"github.com/windward/autoflight/internal/simlink"
	"github.com/windward/autoflight/internal/tuning"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type fakeSource struct{}

func (fakeSource) FetchFacilityGraph(ctx context.Context, icao string) (*facility.Graph, error) {
	return nil, nil
}

func newEvaluator(t *testing.T) (*Evaluator, *simlink.MockSimulator) {
	t.Helper()
	dir := t.TempDir()
	sim := simlink.NewMockSimulator(testLogger())
	sim.Connect(context.Background())
	d := dispatch.NewDispatcher(sim, testLogger())
	q := queue.New(d, testLogger())
	ts := tuning.NewStore(filepath.Join(dir, "tuning.json"), testLogger())
	fstore := facility.NewStore(dir, fakeSource{}, testLogger())
	actrl := atc.NewController(fstore, testLogger())
	lb := logbook.NewStore(filepath.Join(dir, "attempts.json"), testLogger())
	e := New(phase.NewMachine(), rules.NewEngine(), actrl, d, q, ts, lb, nil, filepath.Join(dir, "state.json"), testLogger())
	return e, sim
}

func TestTickNoopWhenDisabled(t *testing.T) {
	e, sim := newEvaluator(t)
	e.Tick(context.Background(), simlink.Frame{OnGroundReported: true}, time.Now())
	if len(sim.SentEvents()) != 0 {
		t.Fatalf("expected no commands while disabled, got %+v", sim.SentEvents())
	}
}

func TestEnableThenTickAdvancesPhaseAndDispatches(t *testing.T) {
	e, sim := newEvaluator(t)
	e.Enable()
	if !e.Enabled() {
		t.Fatal("expected enabled")
	}

	f := simlink.Frame{OnGroundReported: true, Throttle: 20}
	e.Tick(context.Background(), f, time.Now())

	if e.phaseMachine.Current() != phase.BeforeRoll {
		t.Fatalf("expected BEFORE_ROLL after throttle applied, got %v", e.phaseMachine.Current())
	}
	if len(sim.SentEvents()) == 0 {
		t.Fatal("expected the tick to dispatch commands to the simulator")
	}
}

func TestDisableReleasesHeldAxes(t *testing.T) {
	e, sim := newEvaluator(t)
	e.Enable()
	e.dispatcher.Execute(context.Background(), dispatch.Valued("AXIS_ELEVATOR_SET", -30))
	if len(e.dispatcher.HeldAxes()) == 0 {
		t.Fatal("expected held axis set before disable")
	}

	e.Disable(context.Background())
	if len(e.dispatcher.HeldAxes()) != 0 {
		t.Fatal("expected held axes cleared after disable")
	}
	if e.Enabled() {
		t.Fatal("expected disabled after Disable()")
	}
	found := false
	for _, ev := range sim.SentEvents() {
		if ev.Name == "AXIS_ELEVATOR_SET" && ev.Value == 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected explicit zero transmitted on disable")
	}
}

func TestEnableDisableStatePersists(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")

	sim := simlink.NewMockSimulator(testLogger())
	sim.Connect(context.Background())
	d := dispatch.NewDispatcher(sim, testLogger())
	q := queue.New(d, testLogger())
	ts := tuning.NewStore(filepath.Join(dir, "tuning.json"), testLogger())
	fstore := facility.NewStore(dir, fakeSource{}, testLogger())
	actrl := atc.NewController(fstore, testLogger())
	lb := logbook.NewStore(filepath.Join(dir, "attempts.json"), testLogger())
	e1 := New(phase.NewMachine(), rules.NewEngine(), actrl, d, q, ts, lb, nil, statePath, testLogger())
	e1.Enable()

	e2 := New(phase.NewMachine(), rules.NewEngine(), actrl, d, q, ts, lb, nil, statePath, testLogger())
	if !e2.Enabled() {
		t.Fatal("expected persisted enabled state to survive reload")
	}
}
