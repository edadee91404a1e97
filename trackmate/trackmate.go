package trackmate

import (
	"encoding/xml"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/LdDl/cell-tracks/geom"
	"github.com/LdDl/cell-tracks/lineage"
)

// Spot attribute names having dedicated fields
const (
	AttrID        = "ID"
	AttrName      = "name"
	AttrFrame     = "FRAME"
	AttrPositionX = "POSITION_X"
	AttrPositionY = "POSITION_Y"
)

// Spot is a detection as exported by TrackMate
type Spot struct {
	ID    int
	Name  string
	Frame int
	X     float64
	Y     float64
	// Attributes holds every other numeric attribute of spot
	Attributes map[string]float64
	// Contour is polygon relative to (X, Y). Nil when spot has no ROI
	Contour geom.Polygon
}

// Edge is a link between two spots
type Edge struct {
	Source int
	Target int
}

// Model is a content of TrackMate XML export relevant to lineage reconstruction
type Model struct {
	Spots []Spot
	Edges []Edge
}

type xmlDocument struct {
	Model xmlModel `xml:"Model"`
}

type xmlModel struct {
	Frames []xmlSpotsInFrame `xml:"AllSpots>SpotsInFrame"`
	Tracks []xmlTrack        `xml:"AllTracks>Track"`
}

type xmlSpotsInFrame struct {
	Spots []xmlSpot `xml:"Spot"`
}

type xmlSpot struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Text  string     `xml:",chardata"`
}

type xmlTrack struct {
	Edges []xmlEdge `xml:"Edge"`
}

type xmlEdge struct {
	Source string `xml:"SPOT_SOURCE_ID,attr"`
	Target string `xml:"SPOT_TARGET_ID,attr"`
}

// ReadFile reads TrackMate XML export from file
func ReadFile(path string) (*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open TrackMate file")
	}
	defer file.Close()
	return Read(file)
}

// Read parses spots of all frames and edges of all tracks
func Read(r io.Reader) (*Model, error) {
	doc := xmlDocument{}
	err := xml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, errors.Wrap(err, "Can't decode TrackMate XML")
	}
	model := &Model{}
	for _, frame := range doc.Model.Frames {
		for _, raw := range frame.Spots {
			spot, err := parseSpot(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't parse spot #%d", len(model.Spots))
			}
			model.Spots = append(model.Spots, spot)
		}
	}
	for _, track := range doc.Model.Tracks {
		for _, raw := range track.Edges {
			source, err := parseInt(raw.Source)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't parse edge source %q", raw.Source)
			}
			target, err := parseInt(raw.Target)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't parse edge target %q", raw.Target)
			}
			model.Edges = append(model.Edges, Edge{Source: source, Target: target})
		}
	}
	return model, nil
}

func parseSpot(raw xmlSpot) (Spot, error) {
	spot := Spot{
		Attributes: make(map[string]float64),
	}
	seen := make(map[string]bool, 4)
	for _, attr := range raw.Attrs {
		name := attr.Name.Local
		switch name {
		case AttrName:
			spot.Name = attr.Value
		case AttrID, AttrFrame:
			value, err := parseInt(attr.Value)
			if err != nil {
				return spot, errors.Wrapf(err, "Bad %s", name)
			}
			if name == AttrID {
				spot.ID = value
			} else {
				spot.Frame = value
			}
		case AttrPositionX, AttrPositionY:
			value, err := strconv.ParseFloat(attr.Value, 64)
			if err != nil {
				return spot, errors.Wrapf(err, "Bad %s", name)
			}
			if name == AttrPositionX {
				spot.X = value
			} else {
				spot.Y = value
			}
		default:
			value, err := strconv.ParseFloat(attr.Value, 64)
			if err != nil {
				// Non-numeric attributes are not carried
				continue
			}
			spot.Attributes[name] = value
		}
		seen[name] = true
	}
	for _, required := range []string{AttrID, AttrFrame, AttrPositionX, AttrPositionY} {
		if !seen[required] {
			return spot, errors.Errorf("Missing attribute %s", required)
		}
	}
	contour, err := parseContour(raw.Text)
	if err != nil {
		return spot, errors.Wrapf(err, "Bad ROI of spot %d", spot.ID)
	}
	spot.Contour = contour
	return spot, nil
}

// parseContour parses interleaved relative coordinates "x1 y1 x2 y2 ..."
func parseContour(text string) (geom.Polygon, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, nil
	}
	coords := make([]float64, len(fields))
	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad coordinate #%d", i)
		}
		coords[i] = value
	}
	contour, ok := geom.NewPolygonFromFlat(coords)
	if !ok {
		return nil, errors.Errorf("Odd number of coordinates: %d", len(coords))
	}
	return contour, nil
}

// parseInt accepts both "12" and "12.0"
func parseInt(s string) (int, error) {
	value, err := strconv.Atoi(s)
	if err == nil {
		return value, nil
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errors.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}

// Detections converts spots to lineage input
func (model *Model) Detections() []lineage.Detection {
	detections := make([]lineage.Detection, len(model.Spots))
	for i, spot := range model.Spots {
		detections[i] = lineage.Detection{
			ID:         spot.ID,
			Label:      spot.Name,
			Frame:      spot.Frame,
			Position:   geom.Point{X: spot.X, Y: spot.Y},
			Contour:    spot.Contour,
			Attributes: spot.Attributes,
		}
	}
	return detections
}

// Links converts edges to lineage input
func (model *Model) Links() []lineage.Link {
	links := make([]lineage.Link, len(model.Edges))
	for i, edge := range model.Edges {
		links[i] = lineage.Link{Source: edge.Source, Target: edge.Target}
	}
	return links
}
