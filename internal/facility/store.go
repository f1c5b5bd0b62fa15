package facility

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/windward/autoflight/internal/store"
)

// Source fetches a fresh facility graph for an ICAO from the navigation
// database collaborator. Implemented by internal/navdb.Client.
type Source interface {
	FetchFacilityGraph(ctx context.Context, icao string) (*Graph, error)
}

// Store caches FacilityGraph values to disk keyed by ICAO
// (atc-cache/{ICAO}.json), returning the cached copy when present and
// falling back to Source otherwise.
type Store struct {
	mu       sync.Mutex
	cacheDir string
	source   Source
	logger   *logrus.Logger

	memCache map[string]*Graph
	fetch    singleflight.Group
}

// NewStore creates a facility graph store rooted at cacheDir.
func NewStore(cacheDir string, source Source, logger *logrus.Logger) *Store {
	return &Store{
		cacheDir: cacheDir,
		source:   source,
		logger:   logger,
		memCache: make(map[string]*Graph),
	}
}

func (s *Store) pathFor(icao string) string {
	return filepath.Join(s.cacheDir, icao+".json")
}

// RequestFacilityGraph returns the graph for icao, or nil if it cannot be
// resolved. Callers must treat nil as "no route available" rather than
// failing hard (spec §4.2). Concurrent requests for the same icao share a
// single disk-read/network-fetch via singleflight, so two callers racing
// on an uncached ICAO don't issue duplicate navdb fetches or duplicate
// cache-file writes.
func (s *Store) RequestFacilityGraph(ctx context.Context, icao string) *Graph {
	s.mu.Lock()
	if g, ok := s.memCache[icao]; ok {
		s.mu.Unlock()
		return g
	}
	s.mu.Unlock()

	v, _, _ := s.fetch.Do(icao, func() (interface{}, error) {
		return s.loadOrFetch(ctx, icao), nil
	})
	g, _ := v.(*Graph)
	return g
}

func (s *Store) loadOrFetch(ctx context.Context, icao string) *Graph {
	s.mu.Lock()
	if g, ok := s.memCache[icao]; ok {
		s.mu.Unlock()
		return g
	}
	s.mu.Unlock()

	var cached Graph
	path := s.pathFor(icao)
	if _, err := os.Stat(path); err == nil {
		store.LoadJSON(path, &cached, s.logger)
		if cached.ICAO == icao && len(cached.Nodes) > 0 {
			cached.Finalize()
			s.mu.Lock()
			s.memCache[icao] = &cached
			s.mu.Unlock()
			return &cached
		}
	}

	if s.source == nil {
		return nil
	}
	g, err := s.source.FetchFacilityGraph(ctx, icao)
	if err != nil || g == nil {
		s.logger.WithFields(logrus.Fields{"icao": icao, "error": err}).Warn("facility graph fetch failed")
		return nil
	}
	g.Finalize()
	store.SaveJSON(path, g, s.logger)

	s.mu.Lock()
	s.memCache[icao] = g
	s.mu.Unlock()
	return g
}

// DeleteCachedGraph removes the on-disk and in-memory entry for icao.
func (s *Store) DeleteCachedGraph(icao string) {
	s.mu.Lock()
	delete(s.memCache, icao)
	s.mu.Unlock()
	_ = os.Remove(s.pathFor(icao))
}
