package motion

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"

	"github.com/LdDl/cell-tracks/geom"
)

// SmoothOptions are Kalman filter props for position smoothing
type SmoothOptions struct {
	// Dt is time step between two consecutive frames
	Dt float64
	// ProcessNoise is standard deviation of acceleration
	ProcessNoise float64
	// MeasurementNoise is standard deviation of measured position, same for both axes
	MeasurementNoise float64
}

// DefaultSmoothOptions returns options matching a slowly moving object measured in pixels
func DefaultSmoothOptions() SmoothOptions {
	return SmoothOptions{
		Dt:               1.0,
		ProcessNoise:     2.0,
		MeasurementNoise: 0.1,
	}
}

// Smooth runs 2D constant velocity Kalman filter over a single track and returns filtered
// position for every sample in frame order. First position is taken as is.
// Frame gaps are bridged with extra prediction steps.
func Smooth(samples []Sample, options SmoothOptions) ([]geom.Point, error) {
	sorted, err := checkTrack(samples)
	if err != nil {
		return nil, err
	}
	if options.Dt <= 0 {
		return nil, errors.Wrapf(ErrBadInput, "non-positive time step %f", options.Dt)
	}
	// No control input: cells are not driven by known acceleration
	ux := 0.0
	uy := 0.0
	kf := kalman_filter.NewKalman2D(options.Dt, ux, uy, options.ProcessNoise, options.MeasurementNoise, options.MeasurementNoise, kalman_filter.WithState2D(sorted[0].X, sorted[0].Y))

	out := make([]geom.Point, len(sorted))
	out[0] = sorted[0].Point()
	for i := 1; i < len(sorted); i++ {
		steps := sorted[i].FrameID - sorted[i-1].FrameID
		if steps < 1 {
			steps = 1
		}
		for step := 0; step < steps; step++ {
			kf.Predict()
		}
		err := kf.Update(sorted[i].X, sorted[i].Y)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't update filter at frame %d", sorted[i].FrameID)
		}
		stateX, stateY := kf.GetState()
		out[i] = geom.Point{X: stateX, Y: stateY}
	}
	return out, nil
}
