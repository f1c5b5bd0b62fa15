package broadcast

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestPublishDeliversToConnectedClient(t *testing.T) {
	s := NewStreamer(testLogger(), nil, "")
	srv := httptest.NewServer(s)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Give the server goroutine a moment to register the client.
	deadline := time.Now().Add(time.Second)
	for s.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.ClientCount() != 1 {
		t.Fatalf("expected 1 registered client, got %d", s.ClientCount())
	}

	s.Publish(Record{Phase: "CRUISE", Axes: map[string]float64{"elevator": -5}})

	var got Record
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Phase != "CRUISE" {
		t.Fatalf("expected phase CRUISE, got %+v", got)
	}
}
