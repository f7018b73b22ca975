package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Components returns the connected groups of nodes in the topology. Each group is
// sorted by key and groups are ordered by their smallest key, so the result is
// deterministic for a given graph.
func (g *Graph) Components() [][]NodeKey {
	ug := simple.NewUndirectedGraph()
	for from, adj := range g.Nodes {
		addNode(ug, from)
		for to := range adj {
			addNode(ug, to)
			// gonum's simple graphs reject self edges; a loop doesn't change connectivity anyway
			if from == to {
				continue
			}
			ug.SetEdge(ug.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}

	var groups [][]NodeKey
	for _, cc := range topo.ConnectedComponents(ug) {
		keys := make([]NodeKey, 0, len(cc))
		for _, n := range cc {
			keys = append(keys, NodeKey(n.ID()))
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		groups = append(groups, keys)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	return groups
}

func addNode(ug *simple.UndirectedGraph, k NodeKey) {
	if ug.Node(int64(k)) == nil {
		ug.AddNode(simple.Node(k))
	}
}
