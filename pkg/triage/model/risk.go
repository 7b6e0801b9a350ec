package model

import (
	"github.com/meditriage/platform/pkg/common/models"
	"github.com/meditriage/platform/pkg/triage/deployment"
	"github.com/meditriage/platform/pkg/triage/feature"
)

const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// RiskModel wraps the binary risk ensemble. The positive class
// (Classes[1]) is the high-risk class; the score is its probability.
type RiskModel struct {
	ens        *Ensemble
	thresholds deployment.Thresholds
}

func NewRiskModel(ens *Ensemble, thresholds deployment.Thresholds) (*RiskModel, error) {
	if ens == nil {
		return nil, &InferenceError{Model: "risk", Reason: "artifact not loaded"}
	}
	if ens.Outputs() != 1 {
		return nil, &InferenceError{Model: ens.Name, Reason: "risk model must be binary"}
	}
	return &RiskModel{ens: ens, thresholds: thresholds}, nil
}

func (m *RiskModel) Ensemble() *Ensemble {
	return m.ens
}

// Margin is the raw pre-probability output for the positive class.
func (m *RiskModel) Margin(vec feature.Vector) (float64, error) {
	margins, err := m.ens.Margins(vec.Values)
	if err != nil {
		return 0, err
	}
	return margins[0], nil
}

func (m *RiskModel) Predict(vec feature.Vector) (models.RiskPrediction, error) {
	margin, err := m.Margin(vec)
	if err != nil {
		return models.RiskPrediction{}, err
	}
	score := sigmoid(margin)
	return models.RiskPrediction{
		RiskScore: score,
		RiskLevel: m.levelFor(score),
	}, nil
}

func (m *RiskModel) levelFor(score float64) string {
	switch {
	case score >= m.thresholds.High:
		return RiskHigh
	case score >= m.thresholds.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}
