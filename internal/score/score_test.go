package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"earnings-insights-go/internal/classify"
)

func TestBandValues01(t *testing.T) {
	assert.InDelta(t, 0.264, To01(classify.LabelNegative, 0.8), 1e-9)
	assert.InDelta(t, 0.34+0.5*0.33, To01(classify.LabelNeutral, 0.5), 1e-9)
	assert.InDelta(t, 0.967, To01(classify.LabelPositive, 0.9), 1e-9)
	assert.InDelta(t, 0.9835, To01(classify.LabelPositive, 0.95), 1e-9)
}

func TestBandValuesNeg11(t *testing.T) {
	assert.InDelta(t, -1.0+0.8*0.66, ToNeg11(classify.LabelNegative, 0.8), 1e-9)
	assert.InDelta(t, -0.33+0.5*0.66, ToNeg11(classify.LabelNeutral, 0.5), 1e-9)
	assert.InDelta(t, 0.34+0.9*0.66, ToNeg11(classify.LabelPositive, 0.9), 1e-9)
}

func TestMonotonicWithinBand(t *testing.T) {
	labels := []classify.Label{classify.LabelNegative, classify.LabelNeutral, classify.LabelPositive}
	for _, l := range labels {
		prev01, prevN := To01(l, 0), ToNeg11(l, 0)
		for c := 0.05; c <= 1.0; c += 0.05 {
			v01, vn := To01(l, c), ToNeg11(l, c)
			assert.GreaterOrEqual(t, v01, prev01)
			assert.GreaterOrEqual(t, vn, prevN)
			prev01, prevN = v01, vn
		}
	}
}

func TestClampHoldsForAdversarialConfidence(t *testing.T) {
	for _, conf := range []float64{-5, -0.01, 1.01, 3, 1e9} {
		for _, l := range []classify.Label{classify.LabelUnknown, classify.LabelNegative, classify.LabelNeutral, classify.LabelPositive} {
			v := To01(l, conf)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			v = ToNeg11(l, conf)
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestUnknownFallsIntoLabelZeroBand(t *testing.T) {
	// documented compatibility behavior: unresolved labels score as the
	// most-negative band
	assert.Equal(t, To01(classify.LabelNegative, 0.7), To01(classify.LabelUnknown, 0.7))
	assert.Equal(t, ToNeg11(classify.LabelNegative, 0.7), ToNeg11(classify.LabelUnknown, 0.7))
}
