package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/LdDl/cell-tracks/motion"
)

// Config holds parameters of the pipeline. Every field is optional:
// Get* methods fall back to defaults for fields not specified.
type Config struct {
	// Velocity scale
	FrameRate *float64 `json:"frame_rate,omitempty"`
	// Only tracks with more samples than this get motion features. Zero keeps all
	MinTrackFrames *int `json:"min_track_frames,omitempty"`

	// Kalman smoothing params
	Smooth                 *bool    `json:"smooth,omitempty"`
	SmoothProcessNoise     *float64 `json:"smooth_process_noise,omitempty"`
	SmoothMeasurementNoise *float64 `json:"smooth_measurement_noise,omitempty"`

	// CSV field separator, single character
	CSVComma *string `json:"csv_comma,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns Config with all fields set to nil
func Empty() *Config {
	return &Config{}
}

// Defaults returns Config with every field explicitly set to its default
func Defaults() *Config {
	smooth := motion.DefaultSmoothOptions()
	return &Config{
		FrameRate:              ptrFloat64(motion.DefaultFrameRate),
		MinTrackFrames:         ptrInt(0),
		Smooth:                 ptrBool(false),
		SmoothProcessNoise:     ptrFloat64(smooth.ProcessNoise),
		SmoothMeasurementNoise: ptrFloat64(smooth.MeasurementNoise),
		CSVComma:               ptrString(","),
	}
}

// Load loads Config from a JSON file. File must have .json extension and be under 1MB.
// Fields omitted from the file keep nil and fall back to defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errors.Errorf("config file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "Can't stat config file")
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read config file")
	}
	cfg := Empty()
	err = json.Unmarshal(data, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "Can't parse config JSON")
	}
	err = cfg.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "Invalid configuration")
	}
	return cfg, nil
}

// Validate checks values which are set
func (c *Config) Validate() error {
	if c.FrameRate != nil && *c.FrameRate <= 0 {
		return errors.Errorf("frame_rate must be positive, got %f", *c.FrameRate)
	}
	if c.MinTrackFrames != nil && *c.MinTrackFrames < 0 {
		return errors.Errorf("min_track_frames must be non-negative, got %d", *c.MinTrackFrames)
	}
	if c.SmoothProcessNoise != nil && *c.SmoothProcessNoise <= 0 {
		return errors.Errorf("smooth_process_noise must be positive, got %f", *c.SmoothProcessNoise)
	}
	if c.SmoothMeasurementNoise != nil && *c.SmoothMeasurementNoise <= 0 {
		return errors.Errorf("smooth_measurement_noise must be positive, got %f", *c.SmoothMeasurementNoise)
	}
	if c.CSVComma != nil && utf8.RuneCountInString(*c.CSVComma) != 1 {
		return errors.Errorf("csv_comma must be a single character, got %q", *c.CSVComma)
	}
	return nil
}

// GetFrameRate returns the frame_rate value or the default
func (c *Config) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return motion.DefaultFrameRate
	}
	return *c.FrameRate
}

// GetMinTrackFrames returns the min_track_frames value or the default
func (c *Config) GetMinTrackFrames() int {
	if c.MinTrackFrames == nil {
		return 0
	}
	return *c.MinTrackFrames
}

// GetSmooth returns the smooth value or the default
func (c *Config) GetSmooth() bool {
	if c.Smooth == nil {
		return false
	}
	return *c.Smooth
}

// GetSmoothOptions returns Kalman smoothing options
func (c *Config) GetSmoothOptions() motion.SmoothOptions {
	options := motion.DefaultSmoothOptions()
	if c.SmoothProcessNoise != nil {
		options.ProcessNoise = *c.SmoothProcessNoise
	}
	if c.SmoothMeasurementNoise != nil {
		options.MeasurementNoise = *c.SmoothMeasurementNoise
	}
	return options
}

// GetCSVComma returns the csv_comma value or the default
func (c *Config) GetCSVComma() rune {
	if c.CSVComma == nil {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(*c.CSVComma)
	return r
}

// Deriver creates motion feature deriver configured by c
func (c *Config) Deriver() *motion.Deriver {
	deriver := motion.NewDeriver(c.GetFrameRate())
	if c.GetSmooth() {
		deriver = deriver.WithSmoothing(c.GetSmoothOptions())
	}
	return deriver
}
