// Package projector derives display values from a scoring result.
package projector

import (
	"github.com/example/survival-check/internal/scorer"
)

// View is the display-ready form of a result.
type View struct {
	Survived           bool    `json:"survived"`
	Prediction         int     `json:"prediction"`
	Label              string  `json:"label"`
	ProbabilityPercent float64 `json:"probability_percent"`
	ConfidencePercent  float64 `json:"confidence_percent"`
	Probability        string  `json:"probability"`
	Confidence         string  `json:"confidence"`
}

// IsSurvived reports whether the verdict is survival.
func IsSurvived(r scorer.Result) bool {
	return r.Prediction == 1
}

// ProbabilityPercent is the survival probability scaled to [0,100].
func ProbabilityPercent(r scorer.Result) float64 {
	return r.SurvivalProbability * 100
}

// ConfidencePercent is the probability of the predicted outcome.
func ConfidencePercent(r scorer.Result) float64 {
	p := ProbabilityPercent(r)
	if IsSurvived(r) {
		return p
	}
	return 100 - p
}

// FormatProbability renders ProbabilityPercent with two decimals.
func FormatProbability(r scorer.Result) string {
	return FormatFixed(ProbabilityPercent(r), 2)
}

// FormatConfidence renders ConfidencePercent with one decimal.
func FormatConfidence(r scorer.Result) string {
	return FormatFixed(ConfidencePercent(r), 1)
}

// Project computes every derived value for r.
func Project(r scorer.Result) View {
	return View{
		Survived:           IsSurvived(r),
		Prediction:         r.Prediction,
		Label:              r.Label,
		ProbabilityPercent: ProbabilityPercent(r),
		ConfidencePercent:  ConfidencePercent(r),
		Probability:        FormatProbability(r),
		Confidence:         FormatConfidence(r),
	}
}
