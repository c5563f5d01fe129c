package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EdgeMode selects how borders revealed by the corrective warp are resolved.
type EdgeMode string

const (
	EdgePadding EdgeMode = "padding" // replicate border pixels into revealed regions
	EdgeCrop    EdgeMode = "crop"    // crop to the inscribed valid region, rescale back
	EdgeScale   EdgeMode = "scale"   // uniformly upscale the frame to hide borders
)

// Default parameter values. These are the production defaults applied by
// Sanitize whenever a field is missing or out of range.
const (
	DefaultSmoothingRadius        = 30
	DefaultMaxCorrection          = 50.0
	DefaultFeatureCount           = 100
	DefaultQualityLevel           = 0.01
	DefaultMinDistance            = 7.0
	DefaultBlockSize              = 3
	DefaultHarrisK                = 0.04
	DefaultRansacThresholdMin     = 1.0
	DefaultRansacThresholdMax     = 5.0
	DefaultFrameMotionThreshold   = 1.0
	DefaultMaxDisplacement        = 100.0
	DefaultTrackingErrorThreshold = 20.0
	DefaultMinPointSpread         = 20.0
	DefaultMaxCoordinate          = 10000.0
)

// Hard upper bounds used by Sanitize. Values above these are clamped down so
// a malformed parameter set cannot blow the per-frame latency budget.
const (
	MaxSmoothingRadius = 300
	MaxFeatureCount    = 10000
	MaxBlockSize       = 31
	MaxMinDistance     = 1000.0
	MaxMaxCorrection   = 10000.0
	MaxMaxDisplacement = 10000.0
	MaxMaxCoordinate   = 1e6
)

// StabilizerParams is the full tuning surface of the stabilizer. A zero value
// is not directly usable; pass it through Sanitize (or start from
// DefaultParams) before handing it to the core.
type StabilizerParams struct {
	// Trajectory smoothing
	SmoothingRadius int     `json:"smoothing_radius"` // low-pass window half-width (frames)
	MaxCorrection   float64 `json:"max_correction"`   // cap on corrective translation magnitude (pixels)

	// Feature detector
	FeatureCount int     `json:"feature_count"` // max corners detected per frame
	QualityLevel float64 `json:"quality_level"` // corner response threshold relative to the strongest
	MinDistance  float64 `json:"min_distance"`  // minimum spacing between accepted corners (pixels)
	BlockSize    int     `json:"block_size"`    // gradient aggregation window (odd)
	UseHarris    bool    `json:"use_harris"`    // Harris response instead of min-eigenvalue
	K            float64 `json:"k"`             // Harris detector free parameter

	// Robust fit
	RansacThresholdMin float64 `json:"ransac_threshold_min"` // adaptive inlier threshold lower bound (pixels)
	RansacThresholdMax float64 `json:"ransac_threshold_max"` // adaptive inlier threshold upper bound (pixels)

	// Safety bounds
	FrameMotionThreshold   float64 `json:"frame_motion_threshold"`   // below this magnitude a frame counts as static
	MaxDisplacement        float64 `json:"max_displacement"`         // reject fits translating farther than this (pixels)
	TrackingErrorThreshold float64 `json:"tracking_error_threshold"` // discard correspondences with larger residuals
	MinPointSpread         float64 `json:"min_point_spread"`         // reject clustered correspondence sets (pixels)
	MaxCoordinate          float64 `json:"max_coordinate"`           // reject fits whose coordinate terms exceed this

	// Border handling
	EdgeMode EdgeMode `json:"edge_mode"`
}

// DefaultParams returns the production-default parameter set.
func DefaultParams() StabilizerParams {
	return StabilizerParams{
		SmoothingRadius:        DefaultSmoothingRadius,
		MaxCorrection:          DefaultMaxCorrection,
		FeatureCount:           DefaultFeatureCount,
		QualityLevel:           DefaultQualityLevel,
		MinDistance:            DefaultMinDistance,
		BlockSize:              DefaultBlockSize,
		UseHarris:              false,
		K:                      DefaultHarrisK,
		RansacThresholdMin:     DefaultRansacThresholdMin,
		RansacThresholdMax:     DefaultRansacThresholdMax,
		FrameMotionThreshold:   DefaultFrameMotionThreshold,
		MaxDisplacement:        DefaultMaxDisplacement,
		TrackingErrorThreshold: DefaultTrackingErrorThreshold,
		MinPointSpread:         DefaultMinPointSpread,
		MaxCoordinate:          DefaultMaxCoordinate,
		EdgeMode:               EdgePadding,
	}
}

// Sanitize maps an arbitrary parameter set to one that is safe to run with.
// It clamps rather than rejects: every field ends up inside its documented
// range, out-of-range values fall back to defaults or bounds. Sanitize is
// pure and idempotent — sanitizing twice yields the same result.
func Sanitize(p StabilizerParams) StabilizerParams {
	if p.SmoothingRadius <= 0 {
		p.SmoothingRadius = DefaultSmoothingRadius
	} else if p.SmoothingRadius > MaxSmoothingRadius {
		p.SmoothingRadius = MaxSmoothingRadius
	}

	if p.MaxCorrection <= 0 {
		p.MaxCorrection = DefaultMaxCorrection
	} else if p.MaxCorrection > MaxMaxCorrection {
		p.MaxCorrection = MaxMaxCorrection
	}

	if p.FeatureCount <= 0 {
		p.FeatureCount = DefaultFeatureCount
	} else if p.FeatureCount > MaxFeatureCount {
		p.FeatureCount = MaxFeatureCount
	}

	if p.QualityLevel <= 0 {
		p.QualityLevel = DefaultQualityLevel
	} else if p.QualityLevel > 1 {
		p.QualityLevel = 1
	}

	if p.MinDistance <= 0 {
		p.MinDistance = DefaultMinDistance
	} else if p.MinDistance > MaxMinDistance {
		p.MinDistance = MaxMinDistance
	}

	if p.BlockSize <= 0 {
		p.BlockSize = DefaultBlockSize
	} else if p.BlockSize > MaxBlockSize {
		p.BlockSize = MaxBlockSize
	}
	// Gradient windows must be odd so they centre on a pixel.
	if p.BlockSize%2 == 0 {
		p.BlockSize++
	}

	if p.K <= 0 || p.K > 0.5 {
		p.K = DefaultHarrisK
	}

	if p.RansacThresholdMin <= 0 {
		p.RansacThresholdMin = DefaultRansacThresholdMin
	}
	if p.RansacThresholdMax <= p.RansacThresholdMin {
		p.RansacThresholdMax = p.RansacThresholdMin + (DefaultRansacThresholdMax - DefaultRansacThresholdMin)
	}

	if p.FrameMotionThreshold <= 0 {
		p.FrameMotionThreshold = DefaultFrameMotionThreshold
	}

	if p.MaxDisplacement <= 0 {
		p.MaxDisplacement = DefaultMaxDisplacement
	} else if p.MaxDisplacement > MaxMaxDisplacement {
		p.MaxDisplacement = MaxMaxDisplacement
	}

	if p.TrackingErrorThreshold <= 0 {
		p.TrackingErrorThreshold = DefaultTrackingErrorThreshold
	}

	if p.MinPointSpread <= 0 {
		p.MinPointSpread = DefaultMinPointSpread
	}

	if p.MaxCoordinate <= 0 {
		p.MaxCoordinate = DefaultMaxCoordinate
	} else if p.MaxCoordinate > MaxMaxCoordinate {
		p.MaxCoordinate = MaxMaxCoordinate
	}

	switch p.EdgeMode {
	case EdgePadding, EdgeCrop, EdgeScale:
	default:
		p.EdgeMode = EdgePadding
	}

	return p
}

// ParamsFile is the on-disk JSON schema for parameter overrides. Every field
// is optional; fields omitted from the JSON retain their defaults, so partial
// configs are safe. The schema matches StabilizerParams field-for-field.
type ParamsFile struct {
	SmoothingRadius        *int     `json:"smoothing_radius,omitempty"`
	MaxCorrection          *float64 `json:"max_correction,omitempty"`
	FeatureCount           *int     `json:"feature_count,omitempty"`
	QualityLevel           *float64 `json:"quality_level,omitempty"`
	MinDistance            *float64 `json:"min_distance,omitempty"`
	BlockSize              *int     `json:"block_size,omitempty"`
	UseHarris              *bool    `json:"use_harris,omitempty"`
	K                      *float64 `json:"k,omitempty"`
	RansacThresholdMin     *float64 `json:"ransac_threshold_min,omitempty"`
	RansacThresholdMax     *float64 `json:"ransac_threshold_max,omitempty"`
	FrameMotionThreshold   *float64 `json:"frame_motion_threshold,omitempty"`
	MaxDisplacement        *float64 `json:"max_displacement,omitempty"`
	TrackingErrorThreshold *float64 `json:"tracking_error_threshold,omitempty"`
	MinPointSpread         *float64 `json:"min_point_spread,omitempty"`
	MaxCoordinate          *float64 `json:"max_coordinate,omitempty"`
	EdgeMode               *string  `json:"edge_mode,omitempty"`
}

// LoadParamsFile loads a ParamsFile from a JSON file. The path must have a
// .json extension and the file must be under the max file size.
func LoadParamsFile(path string) (*ParamsFile, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("params file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat params file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("params file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}

	f := &ParamsFile{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse params JSON: %w", err)
	}
	return f, nil
}

// Params merges the file's overrides over the defaults and sanitizes the
// result. A nil receiver yields the plain defaults.
func (f *ParamsFile) Params() StabilizerParams {
	p := DefaultParams()
	if f == nil {
		return p
	}
	if f.SmoothingRadius != nil {
		p.SmoothingRadius = *f.SmoothingRadius
	}
	if f.MaxCorrection != nil {
		p.MaxCorrection = *f.MaxCorrection
	}
	if f.FeatureCount != nil {
		p.FeatureCount = *f.FeatureCount
	}
	if f.QualityLevel != nil {
		p.QualityLevel = *f.QualityLevel
	}
	if f.MinDistance != nil {
		p.MinDistance = *f.MinDistance
	}
	if f.BlockSize != nil {
		p.BlockSize = *f.BlockSize
	}
	if f.UseHarris != nil {
		p.UseHarris = *f.UseHarris
	}
	if f.K != nil {
		p.K = *f.K
	}
	if f.RansacThresholdMin != nil {
		p.RansacThresholdMin = *f.RansacThresholdMin
	}
	if f.RansacThresholdMax != nil {
		p.RansacThresholdMax = *f.RansacThresholdMax
	}
	if f.FrameMotionThreshold != nil {
		p.FrameMotionThreshold = *f.FrameMotionThreshold
	}
	if f.MaxDisplacement != nil {
		p.MaxDisplacement = *f.MaxDisplacement
	}
	if f.TrackingErrorThreshold != nil {
		p.TrackingErrorThreshold = *f.TrackingErrorThreshold
	}
	if f.MinPointSpread != nil {
		p.MinPointSpread = *f.MinPointSpread
	}
	if f.MaxCoordinate != nil {
		p.MaxCoordinate = *f.MaxCoordinate
	}
	if f.EdgeMode != nil {
		p.EdgeMode = EdgeMode(*f.EdgeMode)
	}
	return Sanitize(p)
}
