package model

import (
	"path/filepath"
)

const (
	RiskArtifact       = "risk_model.json"
	DepartmentArtifact = "dept_model.json"
)

// Bundle is the pair of trained artifacts the service loads once at
// startup and shares, read-only, across all requests.
type Bundle struct {
	Risk       *Ensemble
	Department *Ensemble
}

// LoadBundle loads both artifacts from dir and verifies they agree on
// the feature order. Order drift between the two heads (or between the
// heads and the extractor) would corrupt predictions silently, so it
// is rejected at startup.
func LoadBundle(dir string) (*Bundle, error) {
	risk, err := Load(filepath.Join(dir, RiskArtifact))
	if err != nil {
		return nil, err
	}
	dept, err := Load(filepath.Join(dir, DepartmentArtifact))
	if err != nil {
		return nil, err
	}
	if len(risk.FeatureNames) != len(dept.FeatureNames) {
		return nil, &InferenceError{Model: dept.Name, Reason: "risk and department artifacts disagree on feature count"}
	}
	for i, name := range risk.FeatureNames {
		if dept.FeatureNames[i] != name {
			return nil, &InferenceError{Model: dept.Name, Reason: "risk and department artifacts disagree on feature order"}
		}
	}
	return &Bundle{Risk: risk, Department: dept}, nil
}
