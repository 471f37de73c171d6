package distribution

import "math"

// SanitizeReport describes what Sanitize changed
type SanitizeReport struct {
	Received int `json:"received"`
	Dropped  int `json:"dropped"` // NaN or infinite samples removed
	Clipped  int `json:"clipped"` // negative samples raised to 0
}

// Modified reports whether any sample was dropped or clipped
func (r SanitizeReport) Modified() bool {
	return r.Dropped > 0 || r.Clipped > 0
}

// Sanitize cleans raw sub-model output at the boundary where it is received.
// Non-finite samples are dropped and negative samples are clipped to 0. The
// input slice is not modified.
func Sanitize(raw []float64) ([]float64, SanitizeReport) {
	report := SanitizeReport{Received: len(raw)}
	clean := make([]float64, 0, len(raw))
	for _, s := range raw {
		switch {
		case math.IsNaN(s) || math.IsInf(s, 0):
			report.Dropped++
		case s < 0:
			report.Clipped++
			clean = append(clean, 0)
		default:
			clean = append(clean, s)
		}
	}
	return clean, report
}

// ClipNonNegative returns a copy of samples with negatives replaced by 0 and
// the number of values changed.
func ClipNonNegative(samples []float64) ([]float64, int) {
	out := make([]float64, len(samples))
	clipped := 0
	for i, s := range samples {
		if s < 0 {
			clipped++
			s = 0
		}
		out[i] = s
	}
	return out, clipped
}
