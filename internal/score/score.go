// Package score maps a (label, confidence) pair onto continuous scalars.
// Each label owns a band of the target interval and confidence slides the
// value toward the top of that band, so the output stays monotonic in
// confidence within a class and continuous across a run.
package score

import "earnings-insights-go/internal/classify"

var bases01 = map[classify.Label]float64{
	classify.LabelNegative: 0.00,
	classify.LabelNeutral:  0.34,
	classify.LabelPositive: 0.67,
}

var basesNeg11 = map[classify.Label]float64{
	classify.LabelNegative: -1.00,
	classify.LabelNeutral:  -0.33,
	classify.LabelPositive: 0.34,
}

// To01 maps onto [0,1]: label 0 covers 0.00..0.33, 1 covers 0.34..0.66,
// 2 covers 0.67..1.00. Unknown labels fall into the label-0 band; see the
// open-question note in DESIGN.md before changing that.
func To01(label classify.Label, confidence float64) float64 {
	base, ok := bases01[label]
	if !ok {
		base = bases01[classify.LabelNegative]
	}
	return clamp(base+confidence*0.33, 0.0, 1.0)
}

// ToNeg11 maps onto [-1,1] with bands -1.00..-0.34, -0.33..+0.33, +0.34..+1.00.
// Unknown labels fall into the label-0 band here too.
func ToNeg11(label classify.Label, confidence float64) float64 {
	base, ok := basesNeg11[label]
	if !ok {
		base = basesNeg11[classify.LabelNegative]
	}
	return clamp(base+confidence*0.66, -1.0, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
