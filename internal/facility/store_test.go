package facility

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeSource struct {
	graph *Graph
	calls int
}

func (f *fakeSource) FetchFacilityGraph(ctx context.Context, icao string) (*Graph, error) {
	f.calls++
	return f.graph, nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return l
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRequestFacilityGraphCachesAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{graph: &Graph{ICAO: "KSEA", Nodes: []Node{{Index: 0}}}}
	s := NewStore(dir, src, testLogger())

	g1 := s.RequestFacilityGraph(context.Background(), "KSEA")
	if g1 == nil {
		t.Fatal("expected graph")
	}
	g2 := s.RequestFacilityGraph(context.Background(), "KSEA")
	if g2 == nil {
		t.Fatal("expected graph on second call")
	}
	if src.calls != 1 {
		t.Fatalf("expected source fetched once, got %d calls", src.calls)
	}
}

func TestRequestFacilityGraphNilOnFailure(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil, testLogger())
	if g := s.RequestFacilityGraph(context.Background(), "ZZZZ"); g != nil {
		t.Fatalf("expected nil graph, got %+v", g)
	}
}

func TestDeleteCachedGraph(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{graph: &Graph{ICAO: "KPDX", Nodes: []Node{{Index: 0}}}}
	s := NewStore(dir, src, testLogger())
	s.RequestFacilityGraph(context.Background(), "KPDX")
	s.DeleteCachedGraph("KPDX")

	s2 := NewStore(dir, src, testLogger())
	s2.RequestFacilityGraph(context.Background(), "KPDX")
	if src.calls != 2 {
		t.Fatalf("expected re-fetch after delete, calls=%d", src.calls)
	}
}
