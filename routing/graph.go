package routing

import (
	"math"

	"gitlab.com/akita/akita/v3/sim"
)

// A Graph is an adjacency list with link weights.
type Graph [][]edge

type edge struct {
	to     int
	weight float64
}

// BuildGraph connects every pair of nodes that can hear each other at now.
// Every link weighs one hop.
func BuildGraph(topo Topology, now sim.VTimeInSec) Graph {
	n := topo.NodeCount()
	graph := make(Graph, n)

	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if !topo.Connected(a, b, now) {
				continue
			}

			graph[a] = append(graph[a], edge{to: b, weight: 1})
			graph[b] = append(graph[b], edge{to: a, weight: 1})
		}
	}

	return graph
}

// ShortestPaths runs Dijkstra from src and returns the distance and the
// predecessor of every node. Unreachable nodes have an infinite distance and
// a predecessor of -1. Ties are broken by the lower node index.
func (g Graph) ShortestPaths(src int) (dist []float64, prev []int) {
	n := len(g)
	dist = make([]float64, n)
	prev = make([]int, n)
	visited := make([]bool, n)

	for node := range dist {
		dist[node] = math.Inf(1)
		prev[node] = -1
	}
	dist[src] = 0

	for {
		minNode := -1
		minDist := math.Inf(1)
		for node, d := range dist {
			if !visited[node] && d < minDist {
				minDist = d
				minNode = node
			}
		}

		if minNode == -1 {
			break
		}

		for _, e := range g[minNode] {
			if alt := dist[minNode] + e.weight; alt < dist[e.to] {
				dist[e.to] = alt
				prev[e.to] = minNode
			}
		}

		// This node has been visited
		visited[minNode] = true
	}

	return dist, prev
}

// ShortestPath returns the path from src to dst.
func (g Graph) ShortestPath(src, dst int) ([]int, bool) {
	_, prev := g.ShortestPaths(src)
	return reconstructPath(prev, src, dst)
}

func reconstructPath(prev []int, src, dst int) ([]int, bool) {
	if src == dst {
		return []int{src}, true
	}

	if prev[dst] == -1 {
		return nil, false
	}

	path := []int{}
	for node := dst; node != -1; node = prev[node] {
		path = append([]int{node}, path...)
	}

	return path, true
}
