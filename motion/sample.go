package motion

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/LdDl/cell-tracks/geom"
)

var (
	// ErrBadInput means samples violate the input contract (empty or mixed track group, non-finite position)
	ErrBadInput = errors.New("bad input")
)

// Sample is a position of a tracked cell at one frame
type Sample struct {
	TrackID int
	FrameID int
	X       float64
	Y       float64
}

// Point returns position of sample
func (s Sample) Point() geom.Point {
	return geom.Point{X: s.X, Y: s.Y}
}

// Track is a group of samples sharing one track id, ordered by frame
type Track struct {
	ID      int
	Samples []Sample
}

// GroupByTrack splits samples into tracks ordered by id. Samples of every track are sorted by frame.
// Input is not modified.
func GroupByTrack(samples []Sample) []Track {
	index := make(map[int]int)
	tracks := make([]Track, 0)
	for _, sample := range samples {
		idx, ok := index[sample.TrackID]
		if !ok {
			idx = len(tracks)
			index[sample.TrackID] = idx
			tracks = append(tracks, Track{ID: sample.TrackID})
		}
		tracks[idx].Samples = append(tracks[idx].Samples, sample)
	}
	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].ID < tracks[j].ID
	})
	for i := range tracks {
		sortByFrame(tracks[i].Samples)
	}
	return tracks
}

// FilterMinFrames keeps only samples of tracks having more than minFrames samples.
// Non-positive minFrames keeps everything. Order of kept samples is preserved.
func FilterMinFrames(samples []Sample, minFrames int) []Sample {
	if minFrames <= 0 {
		return samples
	}
	counts := make(map[int]int)
	for _, sample := range samples {
		counts[sample.TrackID]++
	}
	kept := make([]Sample, 0, len(samples))
	for _, sample := range samples {
		if counts[sample.TrackID] > minFrames {
			kept = append(kept, sample)
		}
	}
	return kept
}

func sortByFrame(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].FrameID < samples[j].FrameID
	})
}

// checkTrack validates single track group and returns its copy sorted by frame
func checkTrack(samples []Sample) ([]Sample, error) {
	if len(samples) == 0 {
		return nil, errors.Wrap(ErrBadInput, "empty track group")
	}
	trackID := samples[0].TrackID
	for _, sample := range samples {
		if sample.TrackID != trackID {
			return nil, errors.Wrapf(ErrBadInput, "track group mixes track ids %d and %d", trackID, sample.TrackID)
		}
		if math.IsNaN(sample.X) || math.IsNaN(sample.Y) || math.IsInf(sample.X, 0) || math.IsInf(sample.Y, 0) {
			return nil, errors.Wrapf(ErrBadInput, "track %d has non-finite position at frame %d", trackID, sample.FrameID)
		}
	}
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sortByFrame(sorted)
	return sorted, nil
}
