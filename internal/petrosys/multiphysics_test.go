package petrosys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGravityMagneticInversion(t *testing.T) {
	gm := NewGravityMagneticInversion(Readings{
		Estimates: map[string]EstimateReading{
			"basement_depth": {
				Value:       found(4500, "m"),
				Uncertainty: found(10, "%"),
				Confidence:  found(75, "%"),
			},
			"sediment_thickness": {Value: found(5000, "m")},
			"density_contrast":   {Value: found(-0.25, "g/cc")},
		},
	})
	assert.Equal(t, 4500.0, gm.BasementDepth.Value.Value)
	assert.Equal(t, 450.0, gm.BasementDepth.Uncertainty.Value)
	assert.Equal(t, StatusDerived, gm.BasementDepth.Uncertainty.Status)
	assert.Equal(t, 75.0, gm.BasementDepth.Confidence.Value)
	assert.Equal(t, -250.0, gm.DensityContrast.Value.Value)
	assert.NotEmpty(t, gm.Issues.Field("gravity_magnetic.sediment_thickness"))
	assert.True(t, gm.Valid)
}

func TestGeologicalAnalogyMeanSimilarity(t *testing.T) {
	ga := NewGeologicalAnalogy(Readings{Labels: []LabelReading{{Name: "Brent field", Value: 78}, {Name: "Troll", Value: 64}}})
	assert.Len(t, ga.Analogs, 2)
	assert.Equal(t, 71.0, ga.Similarity.Value.Value)
	assert.Equal(t, StatusDerived, ga.Similarity.Value.Status)
}

func TestBayesianPosteriorDerived(t *testing.T) {
	bu := NewBayesianUncertainty(values(map[string]Reading{
		"prior":            found(0.2, ""),
		"likelihood_ratio": found(4, ""),
	}))
	assert.Equal(t, 20.0, bu.Prior.Value)
	// prior odds 0.25, times 4 gives odds 1
	assert.Equal(t, 50.0, bu.Posterior.Mean.Value)
	assert.Equal(t, StatusDerived, bu.Posterior.Mean.Status)
}

func TestBayesianStatedPosteriorAsFraction(t *testing.T) {
	bu := NewBayesianUncertainty(Readings{
		Distributions: map[string]DistributionReading{
			"posterior": {Mean: found(0.42, ""), Std: found(0.08, ""), Confidence: found(60, "%")},
		},
		Ranges: map[string]RangeReading{"volume_range": {Low: 300, Best: 200, High: 100, Found: true}},
	})
	assert.Equal(t, 42.0, bu.Posterior.Mean.Value)
	assert.Equal(t, 8.0, bu.Posterior.Std.Value)
	assert.False(t, bu.VolumeRange.Valid)
	assert.False(t, bu.Valid)
}

func TestCorrelationCoefficientBounds(t *testing.T) {
	sc := NewSurfaceSubsurfaceCorrelation(Readings{
		Estimates: map[string]EstimateReading{
			"coefficient":    {Value: found(1.4, "")},
			"spatial_offset": {Value: found(1.2, "km")},
		},
		Categories: map[string][]string{CategorySurfaceIndicator: {"seepage"}},
	})
	assert.Equal(t, 1.0, sc.Coefficient.Value.Value)
	assert.Equal(t, StatusClamped, sc.Coefficient.Value.Status)
	assert.Equal(t, 1200.0, sc.SpatialOffset.Value.Value)
	assert.Equal(t, []string{"seepage"}, sc.Indicators)
	assert.Equal(t, StatusDefault, sc.AnomalyProbability.Status)

	pct := NewSurfaceSubsurfaceCorrelation(Readings{
		Estimates: map[string]EstimateReading{"coefficient": {Value: found(72, "%")}},
	})
	assert.Equal(t, 0.72, pct.Coefficient.Value.Value)
	assert.True(t, pct.Valid)
}
