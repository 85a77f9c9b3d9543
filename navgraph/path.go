package navgraph

import (
	"container/heap"
	"math"
)

// ShortestPath runs Dijkstra from start to end and returns the vertex sequence.
// It returns [start] when start == end and nil when end is unreachable or either
// index is invalid. Each vertex is settled at most once.
func (g *Graph) ShortestPath(start, end int) []int {
	if !g.valid(start) || !g.valid(end) {
		return nil
	}
	if start == end {
		return []int{start}
	}

	n := len(g.vertices)
	dist := make([]float64, n)
	prev := make([]int, n)
	settled := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[start] = 0

	pq := &queue{{vertex: start, dist: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(item)
		if settled[cur.vertex] || cur.dist > dist[cur.vertex] {
			continue
		}
		settled[cur.vertex] = true
		if cur.vertex == end {
			break
		}
		for _, e := range g.adj[cur.vertex] {
			if settled[e.to] {
				continue
			}
			if alt := cur.dist + e.length; alt < dist[e.to] {
				dist[e.to] = alt
				prev[e.to] = cur.vertex
				heap.Push(pq, item{vertex: e.to, dist: alt})
			}
		}
	}

	if !settled[end] {
		return nil
	}
	var path []int
	for v := end; v != -1; v = prev[v] {
		path = append(path, v)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type item struct {
	vertex int
	dist   float64
}

type queue []item

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].vertex < q[j].vertex
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(item)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
