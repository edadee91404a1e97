package motion

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TrackSummary aggregates motion features over a whole track
type TrackSummary struct {
	TrackID    int
	Frames     int
	FirstFrame int
	LastFrame  int
	// PathLength, Displacement and Straightness are taken at the last sample
	PathLength     float64
	Displacement   float64
	Straightness   float64
	MeanVelocity   float64
	MaxVelocity    float64
	VelocityStdDev float64
}

// Summarize aggregates features per track. Features are expected in Derive's order
// (grouped by track, ascending frame); result is ordered by track id.
func Summarize(features []Features) []TrackSummary {
	summaries := make([]TrackSummary, 0)
	for start := 0; start < len(features); {
		end := start + 1
		for end < len(features) && features[end].TrackID == features[start].TrackID {
			end++
		}
		summaries = append(summaries, summarizeTrack(features[start:end]))
		start = end
	}
	return summaries
}

func summarizeTrack(track []Features) TrackSummary {
	last := track[len(track)-1]
	velocities := make([]float64, len(track))
	for i := range track {
		velocities[i] = track[i].Velocity
	}
	summary := TrackSummary{
		TrackID:      track[0].TrackID,
		Frames:       len(track),
		FirstFrame:   track[0].FrameID,
		LastFrame:    last.FrameID,
		PathLength:   last.PathLength,
		Displacement: last.DistanceFromStart,
		Straightness: last.Straightness,
		MeanVelocity: stat.Mean(velocities, nil),
		MaxVelocity:  floats.Max(velocities),
	}
	// Sample deviation is undefined for a single observation
	if len(velocities) > 1 {
		summary.VelocityStdDev = stat.StdDev(velocities, nil)
	}
	return summary
}
