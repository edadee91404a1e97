package lineage

import (
	"github.com/LdDl/cell-tracks/geom"
)

// Detection is a single cell observation ("spot") at one frame.
// Frame is 0-indexed as received from the detection engine.
type Detection struct {
	ID       int
	Label    string
	Frame    int
	Position geom.Point
	// Contour is region of interest relative to Position
	Contour geom.Polygon
	// Attributes are shape descriptors (quality, radius, intensity statistics, ...) carried through opaquely
	Attributes map[string]float64
}

// ROI returns region of interest in absolute coordinates
func (d *Detection) ROI() geom.Polygon {
	return d.Contour.Translate(d.Position)
}

// Link states that Target is the same cell as Source one or more frames later
type Link struct {
	Source int
	Target int
}

// Node is a detection decorated with its resolved relations
type Node struct {
	ID       int
	Frame    int
	Parents  []int
	Children []int
}

// IsOrphan returns true when node is not a part of any track
func (n *Node) IsOrphan() bool {
	return len(n.Parents) == 0 && len(n.Children) == 0
}

// IsRoot returns true when node has no parents
func (n *Node) IsRoot() bool {
	return len(n.Parents) == 0
}
