package lineage

import (
	"github.com/pkg/errors"
)

// visit is a pending step of the depth-first walk
type visit struct {
	nodeID int
	// fork tells to start a new track identity before assigning the node
	fork bool
}

// traversal holds the whole state of track id assignment. It is owned by a single AssignTracks call
type traversal struct {
	graph    *Graph
	trackID  int
	visited  map[int]struct{}
	assigned map[int]int
	stack    []visit
}

// AssignTracks walks the graph depth-first from every root (see Roots for order) and returns
// 1-indexed track id for every reachable node.
//
// The first child of a node continues its parent's track, every further child starts a new one.
// Every root but the first starts a new one too. A node reachable through several parents (merge)
// keeps the id assigned on its first visit and is never descended again.
func (graph *Graph) AssignTracks() (map[int]int, error) {
	state := traversal{
		graph:    graph,
		visited:  make(map[int]struct{}, len(graph.nodes)),
		assigned: make(map[int]int, len(graph.nodes)),
	}
	for i, root := range graph.Roots() {
		err := state.walk(root.ID, i > 0)
		if err != nil {
			return nil, err
		}
	}
	// Internal counter is zero based
	for id := range state.assigned {
		state.assigned[id]++
	}
	return state.assigned, nil
}

// walk is an explicit-stack rendition of recursive pre-order DFS.
// Children are pushed in reverse so the first child is visited (and fully descended) first.
func (state *traversal) walk(rootID int, fork bool) error {
	state.stack = append(state.stack[:0], visit{nodeID: rootID, fork: fork})
	for len(state.stack) > 0 {
		top := state.stack[len(state.stack)-1]
		state.stack = state.stack[:len(state.stack)-1]
		if _, ok := state.visited[top.nodeID]; ok {
			// Merge (or cyclic data): already has its track
			continue
		}
		node, ok := state.graph.nodes[top.nodeID]
		if !ok {
			return errors.Wrapf(ErrInvariant, "node %d is referenced but not present in graph", top.nodeID)
		}
		if top.fork {
			state.trackID++
		}
		state.assigned[node.ID] = state.trackID
		state.visited[node.ID] = struct{}{}
		for j := len(node.Children) - 1; j >= 0; j-- {
			state.stack = append(state.stack, visit{nodeID: node.Children[j], fork: j > 0})
		}
	}
	return nil
}
