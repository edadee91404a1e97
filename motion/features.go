package motion

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/LdDl/cell-tracks/geom"
)

const (
	// DefaultFrameRate is a velocity scale used by the imaging setup the pipeline was built for
	DefaultFrameRate = 0.0028
)

// Features are motion descriptors of a sample. Sample's own fields are kept intact
type Features struct {
	Sample
	// DistanceFromStart is displacement from track's first position
	DistanceFromStart float64
	// FrameDelta is displacement from previous sample. Zero for the first one
	FrameDelta float64
	// PathLength is cumulative sum of FrameDelta
	PathLength float64
	// Straightness is DistanceFromStart / PathLength, zero when PathLength is zero
	Straightness float64
	// Velocity is frameRate * FrameDelta / frame gap
	Velocity float64
	// Smoothed is Kalman-filtered position. Filled only when Deriver has smoothing enabled
	Smoothed *geom.Point
}

// Deriver computes per-sample motion features of tracks
type Deriver struct {
	frameRate float64
	smoothing *SmoothOptions
}

// NewDeriverDefault creates Deriver with DefaultFrameRate and no smoothing
func NewDeriverDefault() *Deriver {
	return &Deriver{
		frameRate: DefaultFrameRate,
	}
}

// NewDeriver creates Deriver with given frame rate constant
func NewDeriver(frameRate float64) *Deriver {
	return &Deriver{
		frameRate: frameRate,
	}
}

// WithSmoothing enables Kalman smoothing of positions
func (deriver *Deriver) WithSmoothing(options SmoothOptions) *Deriver {
	deriver.smoothing = &options
	return deriver
}

// FrameRate returns frame rate constant
func (deriver *Deriver) FrameRate() float64 {
	return deriver.frameRate
}

// Derive groups samples by track and computes features of every track.
// Output is ordered by track id then frame id.
func (deriver *Deriver) Derive(samples []Sample) ([]Features, error) {
	out := make([]Features, 0, len(samples))
	for _, track := range GroupByTrack(samples) {
		features, err := deriver.DeriveTrack(track.Samples)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't derive features of track %d", track.ID)
		}
		out = append(out, features...)
	}
	return out, nil
}

// DeriveTrack computes features of a single track group. Samples are sorted by frame before computing,
// input slice is left untouched. Empty group or group mixing track ids is ErrBadInput.
func (deriver *Deriver) DeriveTrack(samples []Sample) ([]Features, error) {
	sorted, err := checkTrack(samples)
	if err != nil {
		return nil, err
	}
	n := len(sorted)
	start := sorted[0].Point()

	deltas := make([]float64, n)
	for i := 1; i < n; i++ {
		deltas[i] = geom.Distance(sorted[i].Point(), sorted[i-1].Point())
	}
	paths := floats.CumSum(make([]float64, n), deltas)

	out := make([]Features, n)
	for i, sample := range sorted {
		feature := Features{
			Sample:            sample,
			DistanceFromStart: geom.Distance(sample.Point(), start),
			FrameDelta:        deltas[i],
			PathLength:        paths[i],
		}
		if feature.PathLength != 0 {
			feature.Straightness = feature.DistanceFromStart / feature.PathLength
		}
		// First sample has no prior one: gap of 1 keeps zero numerator finite
		gap := 1
		if i > 0 {
			gap = sample.FrameID - sorted[i-1].FrameID
		}
		if gap != 0 {
			feature.Velocity = (deriver.frameRate * feature.FrameDelta) / float64(gap)
		}
		out[i] = feature
	}

	if deriver.smoothing != nil {
		smoothed, err := Smooth(sorted, *deriver.smoothing)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't smooth track %d", sorted[0].TrackID)
		}
		for i := range out {
			out[i].Smoothed = &smoothed[i]
		}
	}
	return out, nil
}
