// Package router implements A* shortest-path taxi routing over a facility
// graph, grounded on the priority-queue idiom of container/heap.
package router

import (
	"container/heap"
	"fmt"
	"strconv"
	"strings"

	"github.com/windward/autoflight/internal/facility"
	"github.com/windward/autoflight/internal/geo"
)

// Route is an ordered taxi route from a start node to a goal node.
type Route struct {
	NodeIndices  []int
	Taxiways     []string
	Instruction  string
	DistanceFt   float64
	Waypoints    [][2]float64 // [lat, lon] per node in NodeIndices order
}

// FindNearestNode returns the node index closest to (lat, lon) by
// haversine distance, and that distance in feet.
func FindNearestNode(g *facility.Graph, lat, lon float64) (index int, distanceFt float64) {
	best := -1
	bestDist := 0.0
	for i, n := range g.Nodes {
		d := geo.HaversineDistance(lat, lon, n.Lat, n.Lon).Ft
		if i == 0 || d < bestDist {
			best = n.Index
			bestDist = d
		}
	}
	return best, bestDist
}

// FindRunwayNode resolves the node to route to for a given runway ident:
// prefers a RUNWAY_HOLD node associated with the runway, falls back to
// RUNWAY_THRESHOLD, finally the runway's own node index. Returns -1 if the
// runway is unknown.
func FindRunwayNode(g *facility.Graph, runwayIdent string) int {
	ident := strings.ToUpper(strings.TrimSpace(runwayIdent))
	entry, ok := g.RunwayByIdent(ident)
	if !ok {
		return -1
	}
	if nodeExists(g, entry.HoldNodeIdx) {
		return entry.HoldNodeIdx
	}
	if nodeExists(g, entry.ThresholdNodeIdx) {
		return entry.ThresholdNodeIdx
	}
	if nodeExists(g, entry.NodeIndex) {
		return entry.NodeIndex
	}
	return -1
}

func nodeExists(g *facility.Graph, idx int) bool {
	_, ok := g.NodeByIndex(idx)
	return ok
}

// pqItem is one entry in the A* open set.
type pqItem struct {
	node     int
	priority float64 // g-score + heuristic
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// AStarRoute finds the minimum-distance path from startIdx to goalIdx over
// g, using edge distance_ft as cost and straight-line haversine distance to
// the goal as an admissible heuristic.
func AStarRoute(g *facility.Graph, startIdx, goalIdx int) (*Route, error) {
	if startIdx < 0 || goalIdx < 0 {
		return nil, fmt.Errorf("astar: invalid node index (start=%d goal=%d)", startIdx, goalIdx)
	}
	startNode, ok := g.NodeByIndex(startIdx)
	if !ok {
		return nil, fmt.Errorf("astar: unknown start node %d", startIdx)
	}
	goalNode, ok := g.NodeByIndex(goalIdx)
	if !ok {
		return nil, fmt.Errorf("astar: unknown goal node %d", goalIdx)
	}

	if startIdx == goalIdx {
		return &Route{
			NodeIndices: []int{startIdx},
			Taxiways:    nil,
			DistanceFt:  0,
			Waypoints:   [][2]float64{{startNode.Lat, startNode.Lon}},
		}, nil
	}

	heuristic := func(idx int) float64 {
		n, ok := g.NodeByIndex(idx)
		if !ok {
			return 0
		}
		return geo.HaversineDistance(n.Lat, n.Lon, goalNode.Lat, goalNode.Lon).Ft
	}

	gScore := map[int]float64{startIdx: 0}
	cameFrom := map[int]int{}
	open := &priorityQueue{{node: startIdx, priority: heuristic(startIdx)}}
	heap.Init(open)
	closed := map[int]bool{}

	for open.Len() > 0 {
		current := heap.Pop(open).(*pqItem)
		if closed[current.node] {
			continue
		}
		if current.node == goalIdx {
			return buildRoute(g, cameFrom, startIdx, goalIdx)
		}
		closed[current.node] = true

		for _, edge := range g.Neighbors(current.node) {
			if closed[edge.To] {
				continue
			}
			tentativeG := gScore[current.node] + edge.DistanceFt
			if existing, ok := gScore[edge.To]; !ok || tentativeG < existing {
				gScore[edge.To] = tentativeG
				cameFrom[edge.To] = current.node
				heap.Push(open, &pqItem{node: edge.To, priority: tentativeG + heuristic(edge.To)})
			}
		}
	}

	return nil, fmt.Errorf("astar: no route from node %d to node %d", startIdx, goalIdx)
}

func buildRoute(g *facility.Graph, cameFrom map[int]int, startIdx, goalIdx int) (*Route, error) {
	path := []int{goalIdx}
	cur := goalIdx
	for cur != startIdx {
		prev, ok := cameFrom[cur]
		if !ok {
			return nil, fmt.Errorf("astar: broken path reconstruction at node %d", cur)
		}
		path = append(path, prev)
		cur = prev
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	var distance float64
	var taxiways []string
	seen := map[string]bool{}
	waypoints := make([][2]float64, 0, len(path))

	for i, idx := range path {
		n, _ := g.NodeByIndex(idx)
		waypoints = append(waypoints, [2]float64{n.Lat, n.Lon})
		if i == 0 {
			continue
		}
		prevIdx := path[i-1]
		for _, edge := range g.Neighbors(prevIdx) {
			if edge.To == idx {
				distance += edge.DistanceFt
				if edge.Taxiway != "" && !seen[edge.Taxiway] {
					seen[edge.Taxiway] = true
					taxiways = append(taxiways, edge.Taxiway)
				}
				break
			}
		}
	}

	return &Route{
		NodeIndices: path,
		Taxiways:    taxiways,
		DistanceFt:  distance,
		Waypoints:   waypoints,
		Instruction: buildInstruction(g, goalIdx, taxiways),
	}, nil
}

func buildInstruction(g *facility.Graph, goalIdx int, taxiways []string) string {
	ident := runwayIdentForNode(g, goalIdx)
	if ident == "" {
		ident = strconv.Itoa(goalIdx)
	}
	if len(taxiways) == 0 {
		return fmt.Sprintf("taxi to runway %s", ident)
	}
	return fmt.Sprintf("taxi to runway %s via %s", ident, strings.Join(taxiways, ", "))
}

func runwayIdentForNode(g *facility.Graph, idx int) string {
	for _, r := range g.Runways {
		if r.HoldNodeIdx == idx || r.ThresholdNodeIdx == idx || r.NodeIndex == idx {
			return r.Ident
		}
	}
	return ""
}
