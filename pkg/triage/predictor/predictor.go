package predictor

import (
	"sync"

	"github.com/meditriage/platform/pkg/common/models"
	"github.com/meditriage/platform/pkg/triage/deployment"
	"github.com/meditriage/platform/pkg/triage/explain"
	"github.com/meditriage/platform/pkg/triage/feature"
	"github.com/meditriage/platform/pkg/triage/model"
)

// Engine composes the feature extractor, the two model heads and the
// explainer into the per-visit prediction pipeline. It holds only
// immutable state and is safe for concurrent use.
type Engine struct {
	extractor *feature.Extractor
	risk      *model.RiskModel
	dept      *model.DepartmentModel
	explainer *explain.Explainer
}

// New wires an engine from a loaded artifact bundle and the deployment
// constants. The extractor order comes from the bundle, so extractor
// output and model input cannot drift.
func New(bundle *model.Bundle, dep deployment.Deployment) (*Engine, error) {
	if bundle == nil {
		return nil, &model.InferenceError{Model: "bundle", Reason: "artifacts not loaded"}
	}
	if err := dep.Validate(); err != nil {
		return nil, err
	}
	extractor, err := feature.NewExtractor(bundle.Risk.FeatureNames)
	if err != nil {
		return nil, err
	}
	risk, err := model.NewRiskModel(bundle.Risk, dep.RiskThresholds)
	if err != nil {
		return nil, err
	}
	dept, err := model.NewDepartmentModel(bundle.Department, dep.DepartmentPriority)
	if err != nil {
		return nil, err
	}
	explainer, err := explain.New(risk, dep.FeatureLabels, dep.ExplainTopK)
	if err != nil {
		return nil, err
	}
	return &Engine{
		extractor: extractor,
		risk:      risk,
		dept:      dept,
		explainer: explainer,
	}, nil
}

// Models describes the loaded heads, for the models listing endpoint.
func (e *Engine) Models() []models.ModelInfo {
	return []models.ModelInfo{
		describe(e.risk.Ensemble()),
		describe(e.dept.Ensemble()),
	}
}

func describe(ens *model.Ensemble) models.ModelInfo {
	return models.ModelInfo{
		Name:         ens.Name,
		Classes:      append([]string(nil), ens.Classes...),
		FeatureCount: ens.Width(),
		TreeCount:    len(ens.Trees),
	}
}

// Run executes the full pipeline for one visit: extract the feature
// vector exactly once, fan the three heads out over it in parallel,
// and merge the outputs. All three heads observe the identical vector,
// so the attribution report is consistent with the reported risk
// score. Errors propagate unchanged; no partial result is returned.
func (e *Engine) Run(visitID int64, record models.RawVisitRecord) (models.PredictionResult, error) {
	vec, err := e.extractor.Extract(record)
	if err != nil {
		return models.PredictionResult{}, err
	}

	var (
		wg       sync.WaitGroup
		riskPred models.RiskPrediction
		deptPred models.DepartmentPrediction
		report   models.ExplainabilityReport
		riskErr  error
		deptErr  error
		explErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		riskPred, riskErr = e.risk.Predict(vec)
	}()
	go func() {
		defer wg.Done()
		deptPred, deptErr = e.dept.Predict(vec)
	}()
	go func() {
		defer wg.Done()
		report, explErr = e.explainer.Explain(vec)
	}()
	wg.Wait()

	for _, err := range []error{riskErr, deptErr, explErr} {
		if err != nil {
			return models.PredictionResult{}, err
		}
	}

	return models.PredictionResult{
		VisitID:               visitID,
		RiskLevel:             riskPred.RiskLevel,
		RiskScore:             riskPred.RiskScore,
		RecommendedDepartment: deptPred.RecommendedDepartment,
		DepartmentScores:      deptPred.DepartmentScores,
		Explainability:        report,
	}, nil
}
