package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSanitizeDefaultsOnNonPositive(t *testing.T) {
	var p StabilizerParams // all zero
	got := Sanitize(p)

	if got.SmoothingRadius <= 0 {
		t.Errorf("SmoothingRadius not positive after Sanitize: %d", got.SmoothingRadius)
	}
	if got.FeatureCount <= 0 {
		t.Errorf("FeatureCount not positive after Sanitize: %d", got.FeatureCount)
	}
	if got.QualityLevel <= 0 || got.QualityLevel > 1 {
		t.Errorf("QualityLevel out of (0,1] after Sanitize: %f", got.QualityLevel)
	}
	if got.MaxCorrection <= 0 {
		t.Errorf("MaxCorrection not positive after Sanitize: %f", got.MaxCorrection)
	}
	if got.RansacThresholdMin >= got.RansacThresholdMax {
		t.Errorf("RANSAC bounds not ordered: min=%f max=%f", got.RansacThresholdMin, got.RansacThresholdMax)
	}
	if got.EdgeMode != EdgePadding {
		t.Errorf("empty EdgeMode should default to padding, got %q", got.EdgeMode)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	cases := []StabilizerParams{
		{},
		{SmoothingRadius: -5, QualityLevel: 7, BlockSize: 4, EdgeMode: "mirror"},
		DefaultParams(),
		{SmoothingRadius: 100000, FeatureCount: 999999, MaxDisplacement: 1e9},
	}
	for i, p := range cases {
		once := Sanitize(p)
		twice := Sanitize(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("case %d: Sanitize not idempotent (-once +twice):\n%s", i, diff)
		}
	}
}

func TestSanitizeClampsRanges(t *testing.T) {
	p := StabilizerParams{
		SmoothingRadius: 100000,
		QualityLevel:    3.5,
		BlockSize:       8,
		FeatureCount:    1 << 20,
		MaxDisplacement: 1e12,
	}
	got := Sanitize(p)

	if got.SmoothingRadius > MaxSmoothingRadius {
		t.Errorf("SmoothingRadius not clamped: %d", got.SmoothingRadius)
	}
	if got.QualityLevel != 1 {
		t.Errorf("QualityLevel > 1 should clamp to 1, got %f", got.QualityLevel)
	}
	if got.BlockSize%2 != 1 {
		t.Errorf("BlockSize should be odd, got %d", got.BlockSize)
	}
	if got.FeatureCount > MaxFeatureCount {
		t.Errorf("FeatureCount not clamped: %d", got.FeatureCount)
	}
	if got.MaxDisplacement > MaxMaxDisplacement {
		t.Errorf("MaxDisplacement not clamped: %f", got.MaxDisplacement)
	}
}

func TestDefaultParamsAreSane(t *testing.T) {
	p := DefaultParams()
	if diff := cmp.Diff(p, Sanitize(p)); diff != "" {
		t.Errorf("DefaultParams changed by Sanitize (-default +sanitized):\n%s", diff)
	}
}

func TestLoadParamsFilePartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.json")
	content := `{"smoothing_radius": 12, "edge_mode": "crop"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadParamsFile(path)
	if err != nil {
		t.Fatalf("LoadParamsFile failed: %v", err)
	}
	p := f.Params()

	if p.SmoothingRadius != 12 {
		t.Errorf("override not applied: SmoothingRadius=%d", p.SmoothingRadius)
	}
	if p.EdgeMode != EdgeCrop {
		t.Errorf("override not applied: EdgeMode=%q", p.EdgeMode)
	}
	// Omitted fields keep defaults.
	if p.FeatureCount != DefaultFeatureCount {
		t.Errorf("omitted field lost default: FeatureCount=%d", p.FeatureCount)
	}
}

func TestLoadParamsFileRejectsNonJSON(t *testing.T) {
	if _, err := LoadParamsFile("params.yaml"); err == nil {
		t.Fatal("expected error for non-JSON extension")
	}
}

func TestNilParamsFileYieldsDefaults(t *testing.T) {
	var f *ParamsFile
	if diff := cmp.Diff(DefaultParams(), f.Params()); diff != "" {
		t.Errorf("nil ParamsFile should yield defaults:\n%s", diff)
	}
}
