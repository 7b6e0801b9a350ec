package predictor

import (
	"path/filepath"
	"testing"

	"github.com/meditriage/platform/pkg/common/models"
	"github.com/meditriage/platform/pkg/triage/deployment"
	"github.com/meditriage/platform/pkg/triage/model"
	"github.com/stretchr/testify/require"
)

// Exercises the artifacts shipped in artifacts/models end to end.

func shippedEngine(t *testing.T) *Engine {
	t.Helper()
	bundle, err := model.LoadBundle(filepath.Join("..", "..", "..", "artifacts", "models"))
	require.NoError(t, err)
	engine, err := New(bundle, deployment.Default())
	require.NoError(t, err)
	return engine
}

func TestShippedArtifactsHighAcuityVisit(t *testing.T) {
	engine := shippedEngine(t)

	result, err := engine.Run(9001, models.RawVisitRecord{
		"age":                 67,
		"bp_systolic":         150,
		"bp_diastolic":        95,
		"heart_rate":          118,
		"temperature":         99.1,
		"chest_pain_severity": 8,
		"max_severity":        8,
		"symptom_count":       3,
		"comorbidities_count": 2,
		"cardiac_history":     "yes",
		"diabetes_status":     "type 2",
		"respiratory_history": "no",
		"chronic_conditions":  2,
	})
	require.NoError(t, err)

	require.Equal(t, model.RiskHigh, result.RiskLevel)
	require.InDelta(t, 0.9526, result.RiskScore, 0.001)
	require.Equal(t, "Emergency", result.RecommendedDepartment)

	var sum float64
	for _, score := range result.DepartmentScores {
		sum += score
	}
	require.InDelta(t, 1.0, sum, 1e-6)
	require.NotEmpty(t, result.Explainability.Entries)
}

// Severe chest pain with hypertensive diastolic pressure in an older
// patient, every other field defaulted. This record must come out
// High risk, routed to Emergency, with chest pain leading the report.
func TestShippedArtifactsChestPainRoutesToEmergency(t *testing.T) {
	engine := shippedEngine(t)

	result, err := engine.Run(9003, models.RawVisitRecord{
		"chest_pain_severity": 8,
		"bp_diastolic":        110,
		"age":                 67,
	})
	require.NoError(t, err)

	require.Equal(t, model.RiskHigh, result.RiskLevel)
	require.InDelta(t, 0.9241, result.RiskScore, 0.001)
	require.Equal(t, "Emergency", result.RecommendedDepartment)
	require.Greater(t, result.DepartmentScores["Emergency"], result.DepartmentScores["Cardiology"])

	var sum float64
	for _, score := range result.DepartmentScores {
		sum += score
	}
	require.InDelta(t, 1.0, sum, 1e-6)

	require.NotEmpty(t, result.Explainability.Entries)
	require.Equal(t, "Chest Pain Severity", result.Explainability.Entries[0].Label)
	require.Greater(t, result.Explainability.Entries[0].Contribution, 0.0)
}

func TestShippedArtifactsDefaultVisitIsLowRisk(t *testing.T) {
	engine := shippedEngine(t)

	result, err := engine.Run(9002, models.RawVisitRecord{})
	require.NoError(t, err)

	require.Equal(t, model.RiskLow, result.RiskLevel)
	require.Less(t, result.RiskScore, 0.30)
	require.Equal(t, "General Medicine", result.RecommendedDepartment)
}

func TestShippedArtifactsModelListing(t *testing.T) {
	engine := shippedEngine(t)

	infos := engine.Models()
	require.Len(t, infos, 2)
	require.Equal(t, "triage-risk-v1", infos[0].Name)
	require.Equal(t, "triage-department-v1", infos[1].Name)
	require.Equal(t, 13, infos[0].FeatureCount)
	require.Equal(t, 13, infos[1].FeatureCount)
}
