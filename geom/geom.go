package geom

import (
	"math"
)

// Point is a 2D position in image coordinates
type Point struct {
	X float64
	Y float64
}

// Add returns p shifted by other
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Distance returns Euclidean distance between two points
func Distance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}

type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Polygon is an ordered sequence of vertices. Closing edge is implicit.
type Polygon []Point

// NewPolygonFromFlat builds polygon from interleaved coordinates x1 y1 x2 y2 ...
func NewPolygonFromFlat(coords []float64) (Polygon, bool) {
	if len(coords)%2 != 0 {
		return nil, false
	}
	poly := make(Polygon, len(coords)/2)
	for i := range poly {
		poly[i] = Point{X: coords[2*i], Y: coords[2*i+1]}
	}
	return poly, true
}

// Translate returns a copy of polygon with every vertex shifted by offset.
// Receiver is never modified.
func (poly Polygon) Translate(offset Point) Polygon {
	if poly == nil {
		return nil
	}
	out := make(Polygon, len(poly))
	for i, pt := range poly {
		out[i] = pt.Add(offset)
	}
	return out
}

// Bounds returns axis-aligned bounding box of polygon. Empty polygon gives zero rectangle
func (poly Polygon) Bounds() Rectangle {
	if len(poly) == 0 {
		return Rectangle{}
	}
	minX, minY := poly[0].X, poly[0].Y
	maxX, maxY := poly[0].X, poly[0].Y
	for _, pt := range poly[1:] {
		minX = minFloat64(minX, pt.X)
		minY = minFloat64(minY, pt.Y)
		maxX = maxFloat64(maxX, pt.X)
		maxY = maxFloat64(maxY, pt.Y)
	}
	return Rectangle{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
