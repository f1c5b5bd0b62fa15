package dispatch

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/simlink"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newConnectedMock(t *testing.T) *simlink.MockSimulator {
	t.Helper()
	m := simlink.NewMockSimulator(testLogger())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestExecutePercentScaling(t *testing.T) {
	sim := newConnectedMock(t)
	d := NewDispatcher(sim, testLogger())

	if err := d.Execute(context.Background(), Valued("THROTTLE_SET", 100)); err != nil {
		t.Fatal(err)
	}
	events := sim.SentEvents()
	if len(events) != 1 || events[0].Value != 16383 {
		t.Fatalf("expected scaled value 16383, got %+v", events)
	}
}

func TestExecuteBipolarScaling(t *testing.T) {
	sim := newConnectedMock(t)
	d := NewDispatcher(sim, testLogger())

	if err := d.Execute(context.Background(), Valued("AXIS_ELEVATOR_SET", -50)); err != nil {
		t.Fatal(err)
	}
	events := sim.SentEvents()
	if len(events) != 1 || events[0].Value != -16383 {
		t.Fatalf("expected scaled value -16383, got %+v", events)
	}
}

func TestExecuteRejectsOutOfRange(t *testing.T) {
	sim := newConnectedMock(t)
	d := NewDispatcher(sim, testLogger())

	if err := d.Execute(context.Background(), Valued("AXIS_ELEVATOR_SET", 51)); err == nil {
		t.Fatal("expected validation error one unit past boundary")
	}
	if err := d.Execute(context.Background(), Valued("AXIS_ELEVATOR_SET", 50)); err != nil {
		t.Fatalf("expected boundary value accepted, got %v", err)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	sim := newConnectedMock(t)
	d := NewDispatcher(sim, testLogger())
	if err := d.Execute(context.Background(), Discrete("NOT_A_REAL_COMMAND")); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestHeldAxisSetAndClear(t *testing.T) {
	sim := newConnectedMock(t)
	d := NewDispatcher(sim, testLogger())

	d.Execute(context.Background(), Valued("AXIS_ELEVATOR_SET", -30))
	if v, ok := d.HeldAxes()[AxisElevator]; !ok || v != -30 {
		t.Fatalf("expected held elevator -30, got %v ok=%v", v, ok)
	}

	d.Execute(context.Background(), Valued("AXIS_ELEVATOR_SET", 0))
	if _, ok := d.HeldAxes()[AxisElevator]; ok {
		t.Fatal("expected held elevator cleared after explicit zero")
	}
}

func TestExecuteDropsSilentlyWhenSimulatorDown(t *testing.T) {
	sim := simlink.NewMockSimulator(testLogger()) // never connected
	d := NewDispatcher(sim, testLogger())

	if err := d.Execute(context.Background(), Valued("THROTTLE_SET", 50)); err != nil {
		t.Fatalf("expected nil error (dropped silently), got %v", err)
	}
	if len(d.RecentLog()) != 0 {
		t.Fatal("expected no command log entry for a dropped command")
	}
}

func TestReleaseAllClearsHeldAxes(t *testing.T) {
	sim := newConnectedMock(t)
	d := NewDispatcher(sim, testLogger())
	d.Execute(context.Background(), Valued("AXIS_ELEVATOR_SET", -30))
	d.Execute(context.Background(), Valued("AXIS_AILERONS_SET", 10))

	d.ReleaseAll(context.Background())
	if len(d.HeldAxes()) != 0 {
		t.Fatalf("expected empty held-axis table, got %v", d.HeldAxes())
	}
}
