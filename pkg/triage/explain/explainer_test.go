package explain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meditriage/platform/pkg/triage/deployment"
	"github.com/meditriage/platform/pkg/triage/feature"
	"github.com/meditriage/platform/pkg/triage/model"
)

const riskArtifactJSON = `{
	"name": "risk-test",
	"feature_names": ["chest_pain_severity", "bp_diastolic", "age"],
	"classes": ["low_risk", "high_risk"],
	"base_score": 0.1,
	"trees": [
		{"class": 0, "nodes": [
			{"feature": 0, "threshold": 4, "left": 1, "right": 2, "cover": 100},
			{"feature": -1, "value": -1.0, "cover": 70},
			{"feature": 1, "threshold": 100, "left": 3, "right": 4, "cover": 30},
			{"feature": -1, "value": 1.0, "cover": 10},
			{"feature": -1, "value": 2.5, "cover": 20}
		]},
		{"class": 0, "nodes": [
			{"feature": 2, "threshold": 60, "left": 1, "right": 2, "cover": 100},
			{"feature": -1, "value": -0.4, "cover": 60},
			{"feature": -1, "value": 0.8, "cover": 40}
		]}
	]
}`

func testExplainer(t *testing.T, topK int) (*Explainer, *model.RiskModel) {
	t.Helper()
	ens, err := model.Parse([]byte(riskArtifactJSON))
	require.NoError(t, err)
	risk, err := model.NewRiskModel(ens, deployment.Thresholds{Medium: 0.30, High: 0.60})
	require.NoError(t, err)
	explainer, err := New(risk, deployment.Default().FeatureLabels, topK)
	require.NoError(t, err)
	return explainer, risk
}

func TestAdditiveLawHoldsExactly(t *testing.T) {
	explainer, risk := testExplainer(t, 10)

	samples := [][]float64{
		{8, 110, 67},
		{0, 80, 30},
		{5, 95, 60},
		{3, 120, 80},
	}
	for _, sample := range samples {
		contribs, baseline, err := explainer.Attributions(sample)
		require.NoError(t, err)

		margin, err := risk.Margin(feature.Vector{Values: sample})
		require.NoError(t, err)

		sum := baseline
		for _, c := range contribs {
			sum += c
		}
		assert.InDelta(t, margin, sum, 1e-9, "sample %v", sample)
	}
}

func TestAttributionValues(t *testing.T) {
	explainer, _ := testExplainer(t, 10)

	// Tree 0 expectations: E(leaf)=value, E(node2)=(10*1.0+20*2.5)/30=2.0,
	// E(root)=(70*-1.0+30*2.0)/100=-0.1. Tree 1: E(root)=(60*-0.4+40*0.8)/100=0.08.
	contribs, baseline, err := explainer.Attributions([]float64{8, 110, 67})
	require.NoError(t, err)

	assert.InDelta(t, 0.1+(-0.1)+0.08, baseline, 1e-12)
	// chest pain: E(node2) - E(root) = 2.0 - (-0.1)
	assert.InDelta(t, 2.1, contribs[0], 1e-12)
	// diastolic: leaf 2.5 - E(node2) = 0.5
	assert.InDelta(t, 0.5, contribs[1], 1e-12)
	// age: leaf 0.8 - E(root) = 0.72
	assert.InDelta(t, 0.72, contribs[2], 1e-12)
}

func TestExplainOrdersByAbsoluteMagnitude(t *testing.T) {
	explainer, _ := testExplainer(t, 10)

	report, err := explainer.Explain(feature.Vector{Values: []float64{8, 110, 67}})
	require.NoError(t, err)
	require.Len(t, report.Entries, 3)

	assert.Equal(t, "Chest Pain Severity", report.Entries[0].Label)
	for i := 1; i < len(report.Entries); i++ {
		assert.GreaterOrEqual(t,
			math.Abs(report.Entries[i-1].Contribution),
			math.Abs(report.Entries[i].Contribution))
	}
}

func TestExplainNegativeContributionsRankByMagnitude(t *testing.T) {
	explainer, _ := testExplainer(t, 10)

	// Low-everything sample: chest pain contributes -0.9, strongly negative.
	report, err := explainer.Explain(feature.Vector{Values: []float64{0, 80, 30}})
	require.NoError(t, err)
	require.NotEmpty(t, report.Entries)
	assert.Equal(t, "Chest Pain Severity", report.Entries[0].Label)
	assert.Negative(t, report.Entries[0].Contribution)
}

func TestExplainTruncatesToTopK(t *testing.T) {
	explainer, _ := testExplainer(t, 2)

	report, err := explainer.Explain(feature.Vector{Values: []float64{8, 110, 67}})
	require.NoError(t, err)
	assert.Len(t, report.Entries, 2)
}

func TestExplainRejectsWidthMismatch(t *testing.T) {
	explainer, _ := testExplainer(t, 5)
	_, _, err := explainer.Attributions([]float64{1, 2})
	var infErr *model.InferenceError
	require.ErrorAs(t, err, &infErr)
}
