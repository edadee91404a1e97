package table

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/LdDl/cell-tracks/motion"
)

// Motion feature columns appended to a table
const (
	ColDis     = "Dis"
	ColTrac    = "Trac"
	ColD2T     = "D2T"
	ColVel     = "Vel"
	ColSmoothX = "SmoothX"
	ColSmoothY = "SmoothY"
)

// SampleColumns lists candidate column names for every sample field. First existing one wins
type SampleColumns struct {
	Track []string
	Frame []string
	X     []string
	Y     []string
}

// DefaultSampleColumns accepts both static feature tables and lineage tables
func DefaultSampleColumns() SampleColumns {
	return SampleColumns{
		Track: []string{StaticCellID, ColTrackID},
		Frame: []string{StaticFrameID, ColFrame},
		X:     []string{StaticX, ColPositionX},
		Y:     []string{StaticY, ColPositionY},
	}
}

type sampleIndex struct {
	track, frame, x, y int
}

func (columns SampleColumns) resolve(t *Table) (sampleIndex, error) {
	idx := sampleIndex{}
	var ok bool
	if idx.track, ok = t.Column(columns.Track...); !ok {
		return idx, errors.Errorf("table has no track column among %v", columns.Track)
	}
	if idx.frame, ok = t.Column(columns.Frame...); !ok {
		return idx, errors.Errorf("table has no frame column among %v", columns.Frame)
	}
	if idx.x, ok = t.Column(columns.X...); !ok {
		return idx, errors.Errorf("table has no x column among %v", columns.X)
	}
	if idx.y, ok = t.Column(columns.Y...); !ok {
		return idx, errors.Errorf("table has no y column among %v", columns.Y)
	}
	return idx, nil
}

type sampleKey struct {
	track, frame int
}

// ExtractSamples reads one sample per record. A (track, frame) pair must not repeat
func ExtractSamples(t *Table, columns SampleColumns) ([]motion.Sample, error) {
	idx, err := columns.resolve(t)
	if err != nil {
		return nil, err
	}
	seen := make(map[sampleKey]struct{}, len(t.Records))
	samples := make([]motion.Sample, len(t.Records))
	for row := range t.Records {
		sample := motion.Sample{}
		if sample.TrackID, err = parseInt(t, row, idx.track); err != nil {
			return nil, err
		}
		if sample.FrameID, err = parseInt(t, row, idx.frame); err != nil {
			return nil, err
		}
		if sample.X, err = parseFloat(t, row, idx.x); err != nil {
			return nil, err
		}
		if sample.Y, err = parseFloat(t, row, idx.y); err != nil {
			return nil, err
		}
		key := sampleKey{track: sample.TrackID, frame: sample.FrameID}
		if _, ok := seen[key]; ok {
			return nil, errors.Wrapf(motion.ErrBadInput, "track %d has more than one sample at frame %d", sample.TrackID, sample.FrameID)
		}
		seen[key] = struct{}{}
		samples[row] = sample
	}
	return samples, nil
}

// AppendMotion returns new table with original columns followed by motion feature columns.
// Rows follow features order; records without features are left out.
func AppendMotion(t *Table, features []motion.Features, columns SampleColumns) (*Table, error) {
	idx, err := columns.resolve(t)
	if err != nil {
		return nil, err
	}
	rows := make(map[sampleKey]int, len(t.Records))
	for row := range t.Records {
		track, err := parseInt(t, row, idx.track)
		if err != nil {
			return nil, err
		}
		frame, err := parseInt(t, row, idx.frame)
		if err != nil {
			return nil, err
		}
		rows[sampleKey{track: track, frame: frame}] = row
	}

	smoothed := false
	for i := range features {
		if features[i].Smoothed != nil {
			smoothed = true
			break
		}
	}
	header := make([]string, 0, len(t.Header)+6)
	header = append(header, t.Header...)
	header = append(header, ColDis, ColTrac, ColD2T, ColVel)
	if smoothed {
		header = append(header, ColSmoothX, ColSmoothY)
	}

	out := NewTable(header)
	for _, feature := range features {
		row, ok := rows[sampleKey{track: feature.TrackID, frame: feature.FrameID}]
		if !ok {
			return nil, errors.Errorf("no record for track %d at frame %d", feature.TrackID, feature.FrameID)
		}
		values := make([]string, 0, len(header))
		values = append(values, t.Records[row]...)
		values = append(values,
			formatFloat(feature.DistanceFromStart),
			formatFloat(feature.PathLength),
			formatFloat(feature.Straightness),
			formatFloat(feature.Velocity),
		)
		if smoothed {
			if feature.Smoothed != nil {
				values = append(values, formatFloat(feature.Smoothed.X), formatFloat(feature.Smoothed.Y))
			} else {
				values = append(values, "", "")
			}
		}
		err := out.Append(values)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't append row of track %d", feature.TrackID)
		}
	}
	return out, nil
}

// SummaryTable renders per-track summaries
func SummaryTable(summaries []motion.TrackSummary) *Table {
	t := NewTable([]string{
		StaticCellID, "Frames", "FirstFrame", "LastFrame", ColTrac, ColDis, ColD2T, "MeanVel", "MaxVel", "StdVel",
	})
	for _, s := range summaries {
		t.Records = append(t.Records, []string{
			strconv.Itoa(s.TrackID),
			strconv.Itoa(s.Frames),
			strconv.Itoa(s.FirstFrame),
			strconv.Itoa(s.LastFrame),
			formatFloat(s.PathLength),
			formatFloat(s.Displacement),
			formatFloat(s.Straightness),
			formatFloat(s.MeanVelocity),
			formatFloat(s.MaxVelocity),
			formatFloat(s.VelocityStdDev),
		})
	}
	return t
}
