package simlink

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/apperr"
)

// MockSimulator is an in-process Simulator used for simulation-mode runs
// and tests, following the SimulationMode short-circuit the teacher's
// actuator/simulation adapters use rather than talking to real hardware.
type MockSimulator struct {
	mu        sync.Mutex
	connected bool
	frames    chan Frame
	sent      []SentEvent
	logger    *logrus.Logger
}

// SentEvent records one transmitted client event, for test assertions.
type SentEvent struct {
	Name  string
	Value int
}

// NewMockSimulator creates a disconnected mock simulator.
func NewMockSimulator(logger *logrus.Logger) *MockSimulator {
	return &MockSimulator{
		frames: make(chan Frame, 64),
		logger: logger,
	}
}

func (m *MockSimulator) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	m.logger.Info("mock simulator connected")
	return nil
}

func (m *MockSimulator) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Disconnect marks the link down. The frames channel is not closed and
// stays usable across a later Connect.
func (m *MockSimulator) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockSimulator) Frames() <-chan Frame { return m.frames }

// PushFrame injects a telemetry frame, as if received from the simulator.
func (m *MockSimulator) PushFrame(f Frame) {
	m.frames <- f
}

func (m *MockSimulator) TransmitClientEvent(ctx context.Context, eventName string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperr.New(apperr.KindSimulatorUnavailable, "simulator not connected")
	}
	m.sent = append(m.sent, SentEvent{Name: eventName, Value: value})
	return nil
}

// SentEvents returns a copy of every event transmitted so far.
func (m *MockSimulator) SentEvents() []SentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEvent, len(m.sent))
	copy(out, m.sent)
	return out
}
