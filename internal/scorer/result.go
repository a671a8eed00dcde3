package scorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Result is the verdict returned by the scoring service.
type Result struct {
	Prediction          int     `json:"prediction"`
	Label               string  `json:"prediction_label"`
	SurvivalProbability float64 `json:"survival_probability"`
}

type wireResult struct {
	Prediction          *int     `json:"prediction"`
	Label               *string  `json:"prediction_label"`
	SurvivalProbability *float64 `json:"survival_probability"`
}

// DecodeResult parses a success body, requiring every field with its
// declared type and domain.
func DecodeResult(body []byte) (Result, error) {
	var w wireResult
	if err := json.Unmarshal(body, &w); err != nil {
		return Result{}, err
	}

	var missing []string
	if w.Prediction == nil {
		missing = append(missing, "prediction")
	}
	if w.Label == nil {
		missing = append(missing, "prediction_label")
	}
	if w.SurvivalProbability == nil {
		missing = append(missing, "survival_probability")
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("missing fields %v", missing)
	}

	res := Result{
		Prediction:          *w.Prediction,
		Label:               *w.Label,
		SurvivalProbability: *w.SurvivalProbability,
	}
	switch {
	case res.Prediction != 0 && res.Prediction != 1:
		return Result{}, fmt.Errorf("prediction %d is not 0 or 1", res.Prediction)
	case res.Label == "":
		return Result{}, errors.New("prediction_label is empty")
	case math.IsNaN(res.SurvivalProbability) || res.SurvivalProbability < 0 || res.SurvivalProbability > 1:
		return Result{}, fmt.Errorf("survival_probability %v outside [0,1]", res.SurvivalProbability)
	}
	return res, nil
}

type errorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// detailMessage extracts the failure message from an error body. FastAPI
// reports 422s as a list of issues; those are flattened into one line.
func detailMessage(body []byte) (string, bool) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return "", false
	}

	var text string
	if err := json.Unmarshal(env.Detail, &text); err == nil {
		return text, text != ""
	}

	var issues []validationIssue
	if err := json.Unmarshal(env.Detail, &issues); err != nil || len(issues) == 0 {
		return "", false
	}
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		if issue.Msg == "" {
			continue
		}
		if loc := joinLoc(issue.Loc); loc != "" {
			msgs = append(msgs, loc+": "+issue.Msg)
		} else {
			msgs = append(msgs, issue.Msg)
		}
	}
	if len(msgs) == 0 {
		return "", false
	}
	return strings.Join(msgs, "; "), true
}

func joinLoc(loc []any) string {
	parts := make([]string, 0, len(loc))
	for _, part := range loc {
		if s, ok := part.(string); ok && s == "body" {
			continue
		}
		parts = append(parts, fmt.Sprint(part))
	}
	return strings.Join(parts, ".")
}
