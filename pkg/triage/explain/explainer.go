package explain

import (
	"fmt"
	"math"
	"sort"

	"github.com/meditriage/platform/pkg/common/models"
	"github.com/meditriage/platform/pkg/triage/feature"
	"github.com/meditriage/platform/pkg/triage/model"
)

// Explainer computes additive per-feature attributions for the risk
// model's output on one specific feature vector. Attribution walks
// every decision path in the ensemble, so its cost grows with tree
// count times depth; it is the most expensive step of the pipeline.
type Explainer struct {
	ens    *model.Ensemble
	labels map[string]string
	topK   int
}

func New(risk *model.RiskModel, labels map[string]string, topK int) (*Explainer, error) {
	if risk == nil {
		return nil, &model.InferenceError{Model: "risk", Reason: "artifact not loaded"}
	}
	if topK <= 0 {
		return nil, fmt.Errorf("explain top-k must be positive, got %d", topK)
	}
	return &Explainer{ens: risk.Ensemble(), labels: labels, topK: topK}, nil
}

// Attributions returns the full, untruncated per-feature contribution
// set (in model column order) and the baseline. The additive law holds
// exactly: baseline + sum(contributions) equals the risk model's raw
// margin for this vector.
//
// Each split on the decision path moves the subtree expectation from
// E(parent) to E(child); that delta is attributed to the split
// feature. Per tree the deltas telescope to leaf value minus root
// expectation, so summing over trees reproduces the margin.
func (e *Explainer) Attributions(values []float64) ([]float64, float64, error) {
	if len(values) != e.ens.Width() {
		return nil, 0, &model.InferenceError{
			Model:  e.ens.Name,
			Reason: fmt.Sprintf("feature vector width %d, model expects %d", len(values), e.ens.Width()),
		}
	}

	contribs := make([]float64, e.ens.Width())
	baseline := e.ens.BaseScore
	for _, tree := range e.ens.Trees {
		baseline += tree.Expected[0]
		path := tree.Walk(values)
		for i := 0; i+1 < len(path); i++ {
			parent := path[i]
			child := path[i+1]
			contribs[tree.Nodes[parent].Feature] += tree.Expected[child] - tree.Expected[parent]
		}
	}
	return contribs, baseline, nil
}

// Explain builds the human-readable report: contributions aggregated
// by display label, ordered by descending absolute magnitude and
// truncated to the configured top-K.
func (e *Explainer) Explain(vec feature.Vector) (models.ExplainabilityReport, error) {
	contribs, _, err := e.Attributions(vec.Values)
	if err != nil {
		return models.ExplainabilityReport{}, err
	}

	order := make([]string, 0, len(contribs))
	byLabel := make(map[string]float64, len(contribs))
	for i, name := range e.ens.FeatureNames {
		label := name
		if display, ok := e.labels[name]; ok {
			label = display
		}
		if _, seen := byLabel[label]; !seen {
			order = append(order, label)
		}
		byLabel[label] += contribs[i]
	}

	entries := make([]models.Attribution, 0, len(order))
	for _, label := range order {
		entries = append(entries, models.Attribution{Label: label, Contribution: byLabel[label]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].Contribution) > math.Abs(entries[j].Contribution)
	})
	if len(entries) > e.topK {
		entries = entries[:e.topK]
	}
	return models.ExplainabilityReport{Entries: entries}, nil
}
