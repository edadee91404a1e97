package lineage

import (
	"fmt"
	"strconv"

	"github.com/LdDl/cell-tracks/geom"
)

// KeySeparator joins fields of filename key
const KeySeparator = "-"

// Row is a retained detection with resolved identity
type Row struct {
	DetectionID int
	Label       string
	// TrackID is 1-indexed
	TrackID int
	// FrameID is 1-indexed
	FrameID    int
	Position   geom.Point
	Attributes map[string]float64
	// FilenameKey is zero-padded "frame-track-detection"
	FilenameKey string
	// ROI is absolute coordinates polygon
	ROI geom.Polygon
}

// KeyWidths is a number of digits used to pad each field of filename key
type KeyWidths struct {
	Frame     int
	Track     int
	Detection int
}

// NewKeyWidths returns digit width of the maximum value of every field across rows
func NewKeyWidths(rows []Row) KeyWidths {
	widths := KeyWidths{}
	if len(rows) == 0 {
		return widths
	}
	maxFrame, maxTrack, maxDetection := rows[0].FrameID, rows[0].TrackID, rows[0].DetectionID
	for _, row := range rows[1:] {
		maxFrame = maxInt(maxFrame, row.FrameID)
		maxTrack = maxInt(maxTrack, row.TrackID)
		maxDetection = maxInt(maxDetection, row.DetectionID)
	}
	widths.Frame = len(strconv.Itoa(maxFrame))
	widths.Track = len(strconv.Itoa(maxTrack))
	widths.Detection = len(strconv.Itoa(maxDetection))
	return widths
}

// FilenameKey builds key for given 1-indexed frame, 1-indexed track and detection id
func (widths KeyWidths) FilenameKey(frameID, trackID, detectionID int) string {
	return fmt.Sprintf("%0*d%s%0*d%s%0*d",
		widths.Frame, frameID, KeySeparator,
		widths.Track, trackID, KeySeparator,
		widths.Detection, detectionID,
	)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
