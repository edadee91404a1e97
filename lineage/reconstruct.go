package lineage

import (
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Result is the output of a single reconstruction
type Result struct {
	RunID uuid.UUID
	// Rows are ordered by frame then detection id
	Rows []Row
	// Tracks is number of distinct track ids assigned
	Tracks int
	// Pruned is number of detections not being part of any track
	Pruned int
	// Warnings lists detections dropped from Rows
	Warnings []Warning
}

// Reconstructor builds uniquely identified tracks from raw detections and links.
// It holds no state between calls, so it is safe to share.
type Reconstructor struct {
	logger *log.Logger
}

// NewReconstructorDefault creates Reconstructor writing warnings to the standard logger
func NewReconstructorDefault() *Reconstructor {
	return &Reconstructor{
		logger: log.Default(),
	}
}

// NewReconstructor creates Reconstructor with custom logger. Nil logger means standard one
func NewReconstructor(logger *log.Logger) *Reconstructor {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconstructor{
		logger: logger,
	}
}

// Reconstruct is a shorthand for NewReconstructorDefault().Reconstruct
func Reconstruct(detections []Detection, links []Link) (*Result, error) {
	return NewReconstructorDefault().Reconstruct(detections, links)
}

// Reconstruct builds lineage graph, prunes untracked detections, assigns track ids and
// returns one row per retained detection.
//
// It fails with ErrBadInput when a link references unknown detection. Detections without
// ROI are dropped and reported as warnings.
func (reconstructor *Reconstructor) Reconstruct(detections []Detection, links []Link) (*Result, error) {
	graph, err := NewGraph(detections, links)
	if err != nil {
		return nil, errors.Wrap(err, "Can't build lineage graph")
	}
	result := &Result{
		RunID:  uuid.New(),
		Pruned: graph.Prune(),
	}
	assigned, err := graph.AssignTracks()
	if err != nil {
		return nil, errors.Wrap(err, "Can't assign track ids")
	}

	rows := make([]Row, 0, len(assigned))
	for _, node := range graph.nodes {
		detection := graph.detections[node.ID]
		trackID, ok := assigned[node.ID]
		if !ok {
			result.Warnings = append(result.Warnings, Warning{Kind: WarningUnreachable, DetectionID: node.ID, Frame: node.Frame})
			continue
		}
		rows = append(rows, Row{
			DetectionID: detection.ID,
			Label:       detection.Label,
			TrackID:     trackID,
			FrameID:     detection.Frame + 1,
			Position:    detection.Position,
			Attributes:  detection.Attributes,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FrameID != rows[j].FrameID {
			return rows[i].FrameID < rows[j].FrameID
		}
		return rows[i].DetectionID < rows[j].DetectionID
	})

	tracks := make(map[int]struct{})
	for _, trackID := range assigned {
		tracks[trackID] = struct{}{}
	}
	result.Tracks = len(tracks)

	// Widths are taken over whole dataset, including rows dropped for missing ROI below
	widths := NewKeyWidths(rows)
	result.Rows = make([]Row, 0, len(rows))
	for _, row := range rows {
		detection := graph.detections[row.DetectionID]
		if len(detection.Contour) == 0 {
			result.Warnings = append(result.Warnings, Warning{Kind: WarningMissingROI, DetectionID: detection.ID, Frame: detection.Frame})
			continue
		}
		row.FilenameKey = widths.FilenameKey(row.FrameID, row.TrackID, row.DetectionID)
		row.ROI = detection.ROI()
		result.Rows = append(result.Rows, row)
	}

	sort.Slice(result.Warnings, func(i, j int) bool {
		return result.Warnings[i].DetectionID < result.Warnings[j].DetectionID
	})
	for _, warning := range result.Warnings {
		reconstructor.logger.Printf("[lineage] run %s: %s", result.RunID, warning)
	}
	return result, nil
}
