package engine

import (
	"container/heap"
	"math"
)

// ShortestPath computes the minimum weighted cost and node-by-node path from
// src to dst with every edge weight scaled by the congestion factor. It is a
// single-source-to-target Dijkstra with a lazy-decrease-key min-heap and an
// early exit once dst is finalized.
//
// Unreachable targets return (+Inf, nil, ErrUnreachable); callers treat that
// as "no route", not a fatal condition. Time O((V+E) log V), space O(V+E).
func ShortestPath(g *Graph, factor float64, src, dst NodeID) (float64, []NodeID, error) {
	if factor <= 0 {
		return math.Inf(1), nil, ErrBadCongestionFactor
	}
	if !g.HasNode(src) || !g.HasNode(dst) {
		return math.Inf(1), nil, ErrNodeNotFound
	}
	if src == dst {
		return 0, []NodeID{src}, nil
	}

	dist := map[NodeID]float64{src: 0}
	prev := map[NodeID]NodeID{}
	visited := map[NodeID]bool{}

	pq := &nodeHeap{{node: src, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(heapItem)
		u := item.node
		if visited[u] {
			continue // stale heap entry
		}
		visited[u] = true
		if u == dst {
			return item.dist, rebuildPath(prev, src, dst), nil
		}
		for v, w := range g.Neighbors(u) {
			if visited[v] {
				continue
			}
			nd := item.dist + w*factor
			if cur, ok := dist[v]; ok && nd >= cur {
				continue
			}
			dist[v] = nd
			prev[v] = u
			heap.Push(pq, heapItem{node: v, dist: nd})
		}
	}
	return math.Inf(1), nil, ErrUnreachable
}

func rebuildPath(prev map[NodeID]NodeID, src, dst NodeID) []NodeID {
	path := []NodeID{dst}
	for at := dst; at != src; {
		at = prev[at]
		path = append(path, at)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type heapItem struct {
	node NodeID
	dist float64
}

type nodeHeap []heapItem

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
