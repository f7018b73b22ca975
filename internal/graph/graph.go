// Package graph turns trail-section segments into the node/edge topology used by
// the map widgets. Only the endpoints of each section become nodes; intermediate
// vertices are ignored.
package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// EdgeID is the id of the trail section an edge was built from
type EdgeID int64

// Segment is one trail section as seen by the builder
type Segment struct {
	ID       EdgeID
	Length   *float64
	Geometry []Point
}

// Edge is a trail section reduced to its two endpoint keys
type Edge struct {
	ID      EdgeID     `json:"id"`
	Length  float64    `json:"length"`
	NodesID [2]NodeKey `json:"nodes_id"`
}

// Graph is the adjacency structure consumed by the map UI.
// Nodes[a][b] holds the id of the edge joining a and b.
type Graph struct {
	Nodes map[NodeKey]map[NodeKey]EdgeID
	Edges map[EdgeID]Edge
}

// InvalidGeometryError is returned when a segment has fewer than two points
type InvalidGeometryError struct {
	SegmentID EdgeID
	Points    int
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("trail section %d: geometry has %d point(s), at least 2 required", e.SegmentID, e.Points)
}

// New returns an empty graph
func New() *Graph {
	return &Graph{
		Nodes: make(map[NodeKey]map[NodeKey]EdgeID),
		Edges: make(map[EdgeID]Edge),
	}
}

// BuildGraph builds the topology graph for segments, in order. A nil allocator
// means a fresh one is used. A later segment joining the same pair of nodes
// replaces the earlier adjacency entry, but both remain in Edges.
func BuildGraph(segments []Segment, keys *KeyAllocator) (*Graph, error) {
	if keys == nil {
		keys = NewKeyAllocator()
	}

	g := New()
	for _, s := range segments {
		if len(s.Geometry) < 2 {
			return nil, &InvalidGeometryError{SegmentID: s.ID, Points: len(s.Geometry)}
		}

		start := keys.Key(s.Geometry[0])
		end := keys.Key(s.Geometry[len(s.Geometry)-1])

		g.Edges[s.ID] = Edge{
			ID:      s.ID,
			Length:  sanitizeLength(s.Length),
			NodesID: [2]NodeKey{start, end},
		}
		g.link(start, end, s.ID)
		g.link(end, start, s.ID)
	}

	return g, nil
}

func (g *Graph) link(from, to NodeKey, id EdgeID) {
	adj, ok := g.Nodes[from]
	if !ok {
		adj = make(map[NodeKey]EdgeID)
		g.Nodes[from] = adj
	}
	adj[to] = id
}

// sanitizeLength coerces missing or non-finite lengths to zero
func sanitizeLength(l *float64) float64 {
	if l == nil || math.IsNaN(*l) || math.IsInf(*l, 0) {
		return 0.0
	}
	return *l
}

// MarshalJSON encodes the graph with string keys, the shape the map widgets expect
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := struct {
		Edges map[string]Edge              `json:"edges"`
		Nodes map[string]map[string]EdgeID `json:"nodes"`
	}{
		Edges: make(map[string]Edge, len(g.Edges)),
		Nodes: make(map[string]map[string]EdgeID, len(g.Nodes)),
	}

	for id, e := range g.Edges {
		out.Edges[strconv.FormatInt(int64(id), 10)] = e
	}
	for from, adj := range g.Nodes {
		m := make(map[string]EdgeID, len(adj))
		for to, id := range adj {
			m[strconv.Itoa(int(to))] = id
		}
		out.Nodes[strconv.Itoa(int(from))] = m
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes the string-keyed form produced by MarshalJSON
func (g *Graph) UnmarshalJSON(data []byte) error {
	var in struct {
		Edges map[string]Edge              `json:"edges"`
		Nodes map[string]map[string]EdgeID `json:"nodes"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*g = *New()
	for k, e := range in.Edges {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid edge id %q: %w", k, err)
		}
		g.Edges[EdgeID(id)] = e
	}
	for k, adj := range in.Nodes {
		from, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("invalid node key %q: %w", k, err)
		}
		for k2, id := range adj {
			to, err := strconv.Atoi(k2)
			if err != nil {
				return fmt.Errorf("invalid node key %q: %w", k2, err)
			}
			g.link(NodeKey(from), NodeKey(to), id)
		}
	}

	return nil
}
