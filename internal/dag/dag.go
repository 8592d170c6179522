// SPDX-License-Identifier: MPL-2.0

// Package dag orders the nodes of a directed graph with Kahn's algorithm.
// Among nodes that are ready at the same time, the one with the lowest
// priority comes first, then the one added first. Feature ordering inserts
// nodes in id order, so insertion order doubles as the lexicographic baseline.
package dag

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrDependencyCycle is the sentinel wrapped by CycleError.
var ErrDependencyCycle = errors.New("dependency cycle")

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle is one closed path through the cycle, e.g. [A B C A].
		Cycle []string
		// Unordered lists every node that could not be placed, in insertion order.
		// It includes nodes that only depend on a cycle.
		Unordered []string
	}

	// Graph is a directed graph for topological sorting.
	// Nodes are identified by string keys. An edge from A to B means A must be
	// placed before B.
	Graph struct {
		// outgoing maps each node to the nodes that must follow it.
		outgoing map[string][]string
		// incoming maps each node to the nodes that must precede it.
		incoming map[string][]string
		// index records insertion order.
		index    map[string]int
		priority map[string]int
		nodes    []string
	}

	readyQueue struct {
		g     *Graph
		nodes []string
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrDependencyCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrDependencyCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		index:    make(map[string]int),
		priority: make(map[string]int),
	}
}

// AddNode adds a node with priority 0. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// SetPriority sets the tie-break priority of a node, adding it if needed.
// Lower values are placed first.
func (g *Graph) SetPriority(name string, priority int) {
	g.AddNode(name)
	g.priority[name] = priority
}

// AddEdge adds a directed edge from -> to, meaning "from" must be placed before "to".
// Both nodes are implicitly added if they don't exist.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.outgoing[from] = append(g.outgoing[from], to)
	g.incoming[to] = append(g.incoming[to], from)
}

// TopologicalSort returns an order in which every edge points forward.
// Returns CycleError if the graph contains a cycle.
// The result is deterministic: whenever several nodes are ready, the lowest
// (priority, insertion index) pair is taken.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = len(g.incoming[node])
	}

	ready := &readyQueue{g: g}
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			ready.nodes = append(ready.nodes, node)
		}
	}
	heap.Init(ready)

	result := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		node := heap.Pop(ready).(string)
		result = append(result, node)

		for _, next := range g.outgoing[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var unordered []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				unordered = append(unordered, node)
			}
		}
		return nil, &CycleError{Cycle: g.findCycle(unordered, inDegree), Unordered: unordered}
	}

	return result, nil
}

// findCycle walks predecessors from the first unordered node. Every unordered
// node has at least one unordered predecessor, so the walk must revisit a node.
func (g *Graph) findCycle(unordered []string, inDegree map[string]int) []string {
	var path []string
	seen := make(map[string]int)
	node := unordered[0]
	for {
		if at, ok := seen[node]; ok {
			cycle := append(path[at:], node)
			slices.Reverse(cycle)
			return cycle
		}
		seen[node] = len(path)
		path = append(path, node)
		for _, prev := range g.incoming[node] {
			if inDegree[prev] > 0 {
				node = prev
				break
			}
		}
	}
}

func (q *readyQueue) Len() int { return len(q.nodes) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.nodes[i], q.nodes[j]
	if pa, pb := q.g.priority[a], q.g.priority[b]; pa != pb {
		return pa < pb
	}
	return q.g.index[a] < q.g.index[b]
}

func (q *readyQueue) Swap(i, j int) { q.nodes[i], q.nodes[j] = q.nodes[j], q.nodes[i] }

func (q *readyQueue) Push(x any) { q.nodes = append(q.nodes, x.(string)) }

func (q *readyQueue) Pop() any {
	old := q.nodes
	n := len(old)
	x := old[n-1]
	q.nodes = old[:n-1]
	return x
}
