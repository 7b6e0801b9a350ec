package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// RawVisitRecord is the untyped field map describing one patient visit,
// as assembled by the visit repository or supplied by a caller.
// Unrecognized fields are ignored by the feature extractor; recognized
// but absent fields fall back to per-feature defaults.
type RawVisitRecord map[string]interface{}

type RiskPrediction struct {
	RiskLevel string  `json:"risk_level"`
	RiskScore float64 `json:"risk_score"`
}

type DepartmentPrediction struct {
	RecommendedDepartment string             `json:"recommended_department"`
	DepartmentScores      map[string]float64 `json:"department_scores"`
}

// Attribution is one explainability entry: a human-readable feature
// label and its signed contribution to the risk margin.
type Attribution struct {
	Label        string  `json:"label"`
	Contribution float64 `json:"contribution"`
}

// ExplainabilityReport lists the top attributions in descending order
// of absolute contribution. It serializes as an ordered JSON object
// (label -> contribution) so downstream consumers see the most
// influential feature first.
type ExplainabilityReport struct {
	Entries []Attribution `json:"-"`
}

func (r ExplainabilityReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range r.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(entry.Contribution, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *ExplainabilityReport) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return json.Unmarshal(data, &r.Entries)
	}
	r.Entries = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var value float64
		if err := dec.Decode(&value); err != nil {
			return err
		}
		r.Entries = append(r.Entries, Attribution{Label: keyTok.(string), Contribution: value})
	}
	_, err = dec.Token()
	return err
}

// PredictionResult is the aggregate inference output for one visit.
// It is built once per call and never mutated afterwards.
type PredictionResult struct {
	VisitID               int64                `json:"visit_id"`
	RiskLevel             string               `json:"risk_level"`
	RiskScore             float64              `json:"risk_score"`
	RecommendedDepartment string               `json:"recommended_department"`
	DepartmentScores      map[string]float64   `json:"department_scores"`
	Explainability        ExplainabilityReport `json:"explainability"`
}

type ProcessVisitRequest struct {
	VisitID int64 `json:"visit_id"`
}

// Event bus envelope
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

type ModelInfo struct {
	Name         string   `json:"name"`
	Classes      []string `json:"classes"`
	FeatureCount int      `json:"feature_count"`
	TreeCount    int      `json:"tree_count"`
}
