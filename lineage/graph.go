package lineage

import (
	"github.com/pkg/errors"
)

// Graph is the lineage DAG of detections connected by links
type Graph struct {
	detections map[int]*Detection
	nodes      map[int]*Node
}

// NewGraph creates one node per detection and resolves parent/child lists from links.
// Child order follows link order.
func NewGraph(detections []Detection, links []Link) (*Graph, error) {
	graph := &Graph{
		detections: make(map[int]*Detection, len(detections)),
		nodes:      make(map[int]*Node, len(detections)),
	}
	for i := range detections {
		detection := &detections[i]
		if _, ok := graph.nodes[detection.ID]; ok {
			return nil, errors.Wrapf(ErrBadInput, "duplicate detection id %d", detection.ID)
		}
		graph.detections[detection.ID] = detection
		graph.nodes[detection.ID] = &Node{
			ID:    detection.ID,
			Frame: detection.Frame,
		}
	}
	for _, link := range links {
		source, ok := graph.nodes[link.Source]
		if !ok {
			return nil, errors.Wrapf(ErrBadInput, "link %d -> %d references unknown source detection", link.Source, link.Target)
		}
		target, ok := graph.nodes[link.Target]
		if !ok {
			return nil, errors.Wrapf(ErrBadInput, "link %d -> %d references unknown target detection", link.Source, link.Target)
		}
		source.Children = append(source.Children, target.ID)
		target.Parents = append(target.Parents, source.ID)
	}
	return graph, nil
}

// Len returns number of nodes currently in graph
func (graph *Graph) Len() int {
	return len(graph.nodes)
}

// Node returns node by detection id
func (graph *Graph) Node(id int) (*Node, bool) {
	node, ok := graph.nodes[id]
	return node, ok
}

// Detection returns detection by id
func (graph *Graph) Detection(id int) (*Detection, bool) {
	detection, ok := graph.detections[id]
	return detection, ok
}

// Prune removes nodes with no parents and no children and returns number of removed nodes.
// Relation lists of remaining nodes are untouched.
func (graph *Graph) Prune() int {
	removed := 0
	for id, node := range graph.nodes {
		if node.IsOrphan() {
			delete(graph.nodes, id)
			removed++
		}
	}
	return removed
}

// Roots returns nodes without parents in ascending order of (frame, id)
func (graph *Graph) Roots() []*Node {
	priorityQueue := make(rootHeap, 0)
	for _, node := range graph.nodes {
		if node.IsRoot() {
			priorityQueue.Push(node)
		}
	}
	roots := make([]*Node, 0, priorityQueue.Len())
	for priorityQueue.Len() > 0 {
		roots = append(roots, priorityQueue.Pop())
	}
	return roots
}
