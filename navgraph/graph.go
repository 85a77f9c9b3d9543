package navgraph

import (
	"fmt"
	"math"
)

// Point is a 2-D coordinate in graph units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vertex is a waypoint. Index is its position in the source vertex list.
type Vertex struct {
	Index int            `json:"index"`
	Pos   Point          `json:"pos"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Name returns the vertex's name attribute, or "" when unnamed.
func (v Vertex) Name() string {
	if s, ok := v.Attrs["name"].(string); ok {
		return s
	}
	return ""
}

func (v Vertex) IsCharger() bool {
	b, _ := v.Attrs["is_charger"].(bool)
	return b
}

// LaneKey identifies a directed lane by its endpoints.
type LaneKey struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (k LaneKey) String() string { return fmt.Sprintf("%d->%d", k.Start, k.End) }

// Lane is a directed edge between two vertices.
type Lane struct {
	Start  int            `json:"start"`
	End    int            `json:"end"`
	Attrs  map[string]any `json:"attrs,omitempty"`
	Length float64        `json:"length"`
}

func (l Lane) Key() LaneKey { return LaneKey{Start: l.Start, End: l.End} }

type edge struct {
	to     int
	length float64
}

// Graph is an immutable navigation graph. It is safe for concurrent reads.
type Graph struct {
	level    string
	vertices []Vertex
	lanes    []Lane
	adj      [][]edge
}

// New validates the vertices and lanes and builds the adjacency list.
// Lane lengths are computed from vertex coordinates; any Length already set is ignored.
func New(level string, vertices []Vertex, lanes []Lane) (*Graph, error) {
	g := &Graph{
		level:    level,
		vertices: make([]Vertex, len(vertices)),
		lanes:    make([]Lane, len(lanes)),
		adj:      make([][]edge, len(vertices)),
	}
	for i, v := range vertices {
		v.Index = i
		g.vertices[i] = v
	}
	for i, l := range lanes {
		if !g.valid(l.Start) || !g.valid(l.End) {
			return nil, &LoadError{Source: level, Err: fmt.Errorf("lane %d references unknown vertex (%d -> %d)", i, l.Start, l.End)}
		}
		l.Length = distance(g.vertices[l.Start].Pos, g.vertices[l.End].Pos)
		g.lanes[i] = l
		g.adj[l.Start] = append(g.adj[l.Start], edge{to: l.End, length: l.Length})
	}
	return g, nil
}

func (g *Graph) valid(idx int) bool { return idx >= 0 && idx < len(g.vertices) }

// Level returns the name of the level the graph was loaded from.
func (g *Graph) Level() string { return g.level }

func (g *Graph) NumVertices() int { return len(g.vertices) }

// HasVertex reports whether idx is a valid vertex index.
func (g *Graph) HasVertex(idx int) bool { return g.valid(idx) }

// Vertices returns a copy of the vertex list.
func (g *Graph) Vertices() []Vertex {
	out := make([]Vertex, len(g.vertices))
	copy(out, g.vertices)
	return out
}

// Lanes returns a copy of the lane list.
func (g *Graph) Lanes() []Lane {
	out := make([]Lane, len(g.lanes))
	copy(out, g.lanes)
	return out
}

// Vertex returns the vertex at idx.
func (g *Graph) Vertex(idx int) (Vertex, bool) {
	if !g.valid(idx) {
		return Vertex{}, false
	}
	return g.vertices[idx], true
}

// VertexCoords returns the coordinates of idx, or the zero Point for an invalid index.
func (g *Graph) VertexCoords(idx int) Point {
	if !g.valid(idx) {
		return Point{}
	}
	return g.vertices[idx].Pos
}

// VertexName returns the vertex name, falling back to "v<idx>".
func (g *Graph) VertexName(idx int) string {
	if g.valid(idx) {
		if name := g.vertices[idx].Name(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("v%d", idx)
}

// Lane looks up the directed lane start->end.
func (g *Graph) Lane(start, end int) (Lane, bool) {
	for _, l := range g.lanes {
		if l.Start == start && l.End == end {
			return l, true
		}
	}
	return Lane{}, false
}

// Chargers returns every vertex flagged is_charger, in index order.
func (g *Graph) Chargers() []Vertex {
	var out []Vertex
	for _, v := range g.vertices {
		if v.IsCharger() {
			out = append(out, v)
		}
	}
	return out
}

// Distance is the straight-line distance between two vertices.
func (g *Graph) Distance(a, b int) float64 {
	return distance(g.VertexCoords(a), g.VertexCoords(b))
}

// VertexAt returns the first vertex within radius of p.
func (g *Graph) VertexAt(p Point, radius float64) (int, bool) {
	for _, v := range g.vertices {
		if distance(p, v.Pos) <= radius {
			return v.Index, true
		}
	}
	return -1, false
}

// PathLength sums lane lengths along path. It returns +Inf if a step has no lane.
func (g *Graph) PathLength(path []int) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		l, ok := g.Lane(path[i], path[i+1])
		if !ok {
			return math.Inf(1)
		}
		total += l.Length
	}
	return total
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
