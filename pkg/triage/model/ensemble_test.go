package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRiskEnsemble is a two-feature binary model:
//
//	tree 0 splits on feature 0 at 4 (-1.0 / +2.0)
//	tree 1 splits on feature 1 at 100 (-0.5 / +1.0)
func testRiskEnsemble(t *testing.T) *Ensemble {
	t.Helper()
	ens := &Ensemble{
		Name:         "risk-test",
		FeatureNames: []string{"chest_pain_severity", "bp_diastolic"},
		Classes:      []string{"low_risk", "high_risk"},
		Trees: []Tree{
			{Class: 0, Nodes: []Node{
				{Feature: 0, Threshold: 4, Left: 1, Right: 2, Cover: 100},
				{Feature: -1, Value: -1.0, Cover: 70},
				{Feature: -1, Value: 2.0, Cover: 30},
			}},
			{Class: 0, Nodes: []Node{
				{Feature: 1, Threshold: 100, Left: 1, Right: 2, Cover: 100},
				{Feature: -1, Value: -0.5, Cover: 80},
				{Feature: -1, Value: 1.0, Cover: 20},
			}},
		},
	}
	require.NoError(t, ens.init())
	return ens
}

func testDepartmentEnsemble(t *testing.T) *Ensemble {
	t.Helper()
	leaf := func(class int, value float64) Tree {
		return Tree{Class: class, Nodes: []Node{{Feature: -1, Value: value, Cover: 10}}}
	}
	ens := &Ensemble{
		Name:         "dept-test",
		FeatureNames: []string{"chest_pain_severity", "bp_diastolic"},
		Classes:      []string{"Cardiology", "Emergency", "General Medicine"},
		Trees: []Tree{
			{Class: 1, Nodes: []Node{
				{Feature: 0, Threshold: 4, Left: 1, Right: 2, Cover: 100},
				{Feature: -1, Value: -0.5, Cover: 70},
				{Feature: -1, Value: 1.5, Cover: 30},
			}},
			leaf(0, 0.2),
			leaf(2, -0.3),
		},
	}
	require.NoError(t, ens.init())
	return ens
}

func TestMarginsBinary(t *testing.T) {
	ens := testRiskEnsemble(t)

	margins, err := ens.Margins([]float64{8, 110})
	require.NoError(t, err)
	require.Len(t, margins, 1)
	assert.InDelta(t, 3.0, margins[0], 1e-12)

	margins, err = ens.Margins([]float64{0, 80})
	require.NoError(t, err)
	assert.InDelta(t, -1.5, margins[0], 1e-12)
}

func TestMarginsRejectsWidthMismatch(t *testing.T) {
	ens := testRiskEnsemble(t)
	_, err := ens.Margins([]float64{1, 2, 3})
	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
}

func TestExpectedMarginsWeightedByCover(t *testing.T) {
	ens := testRiskEnsemble(t)
	// (70*-1.0 + 30*2.0) / 100
	assert.InDelta(t, -0.1, ens.Trees[0].Expected[0], 1e-12)
	// (80*-0.5 + 20*1.0) / 100
	assert.InDelta(t, -0.2, ens.Trees[1].Expected[0], 1e-12)
}

func TestParseRejectsCorruptArtifacts(t *testing.T) {
	_, err := Parse([]byte("not json"))
	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)

	_, err = Parse([]byte(`{"name":"x","feature_names":["a"],"classes":["p","n"],"trees":[]}`))
	require.ErrorAs(t, err, &infErr)

	// Tree targeting an output the model does not have.
	_, err = Parse([]byte(`{
		"name":"x","feature_names":["a"],"classes":["p","n"],
		"trees":[{"class":3,"nodes":[{"feature":-1,"value":1,"cover":1}]}]
	}`))
	require.ErrorAs(t, err, &infErr)
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "risk_model.json"))
	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
}

func TestRiskModelThresholds(t *testing.T) {
	ens := testRiskEnsemble(t)
	risk, err := NewRiskModel(ens, thresholdsForTest())
	require.NoError(t, err)

	pred, err := risk.Predict(vectorFor([]float64{8, 110}))
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, pred.RiskLevel)
	assert.InDelta(t, 0.9526, pred.RiskScore, 1e-4)
	assert.GreaterOrEqual(t, pred.RiskScore, 0.0)
	assert.LessOrEqual(t, pred.RiskScore, 1.0)

	pred, err = risk.Predict(vectorFor([]float64{0, 80}))
	require.NoError(t, err)
	assert.Equal(t, RiskLow, pred.RiskLevel)

	// Margin 0 sits exactly between the cut points.
	pred, err = risk.Predict(vectorFor([]float64{0, 110}))
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, pred.RiskLevel)
}

func TestDepartmentScoresSumToOne(t *testing.T) {
	ens := testDepartmentEnsemble(t)
	dept, err := NewDepartmentModel(ens, []string{"Emergency", "Cardiology", "General Medicine"})
	require.NoError(t, err)

	pred, err := dept.Predict(vectorFor([]float64{8, 110}))
	require.NoError(t, err)

	var sum float64
	for _, p := range pred.DepartmentScores {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Equal(t, "Emergency", pred.RecommendedDepartment)
}

func TestDepartmentTieBreakUsesPriority(t *testing.T) {
	leaf := func(class int) Tree {
		return Tree{Class: class, Nodes: []Node{{Feature: -1, Value: 0.5, Cover: 10}}}
	}
	ens := &Ensemble{
		Name:         "dept-tie",
		FeatureNames: []string{"a"},
		Classes:      []string{"Cardiology", "Emergency", "General Medicine"},
		Trees:        []Tree{leaf(0), leaf(1)},
	}
	require.NoError(t, ens.init())

	// Cardiology and Emergency have identical margins; Emergency ranks
	// higher in the priority ordering and must win deterministically.
	dept, err := NewDepartmentModel(ens, []string{"Emergency", "Cardiology", "General Medicine"})
	require.NoError(t, err)
	pred, err := dept.Predict(vectorFor([]float64{1}))
	require.NoError(t, err)
	assert.Equal(t, "Emergency", pred.RecommendedDepartment)

	// Reversing the priority flips the recommendation.
	dept, err = NewDepartmentModel(ens, []string{"Cardiology", "Emergency", "General Medicine"})
	require.NoError(t, err)
	pred, err = dept.Predict(vectorFor([]float64{1}))
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", pred.RecommendedDepartment)
}

func TestLoadBundleVerifiesFeatureOrder(t *testing.T) {
	dir := t.TempDir()
	risk := testRiskEnsemble(t)
	dept := testDepartmentEnsemble(t)
	writeArtifact(t, filepath.Join(dir, RiskArtifact), risk)
	writeArtifact(t, filepath.Join(dir, DepartmentArtifact), dept)

	bundle, err := LoadBundle(dir)
	require.NoError(t, err)
	assert.Equal(t, bundle.Risk.FeatureNames, bundle.Department.FeatureNames)

	// Swap the department feature order and reload.
	dept.FeatureNames = []string{"bp_diastolic", "chest_pain_severity"}
	writeArtifact(t, filepath.Join(dir, DepartmentArtifact), dept)
	_, err = LoadBundle(dir)
	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
}

func writeArtifact(t *testing.T, path string, ens *Ensemble) {
	t.Helper()
	payload, err := json.Marshal(ens)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0o644))
}
