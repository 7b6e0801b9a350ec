package model

import (
	"github.com/meditriage/platform/pkg/common/models"
	"github.com/meditriage/platform/pkg/triage/feature"
)

// tieTolerance bounds the probability difference under which two
// departments count as tied and the priority ordering decides.
const tieTolerance = 1e-9

// DepartmentModel wraps the multi-class department ensemble. Ties at
// the maximum score are broken by the deployment priority ordering so
// recommendations are reproducible across runs and hosts.
type DepartmentModel struct {
	ens  *Ensemble
	rank map[string]int
}

func NewDepartmentModel(ens *Ensemble, priority []string) (*DepartmentModel, error) {
	if ens == nil {
		return nil, &InferenceError{Model: "department", Reason: "artifact not loaded"}
	}
	rank := make(map[string]int, len(priority))
	for i, dept := range priority {
		rank[dept] = i
	}
	return &DepartmentModel{ens: ens, rank: rank}, nil
}

func (m *DepartmentModel) Ensemble() *Ensemble {
	return m.ens
}

func (m *DepartmentModel) Predict(vec feature.Vector) (models.DepartmentPrediction, error) {
	margins, err := m.ens.Margins(vec.Values)
	if err != nil {
		return models.DepartmentPrediction{}, err
	}

	var probs []float64
	if m.ens.Outputs() == 1 {
		p := sigmoid(margins[0])
		probs = []float64{1 - p, p}
	} else {
		probs = softmax(margins)
	}

	scores := make(map[string]float64, len(m.ens.Classes))
	best := 0
	for i, class := range m.ens.Classes {
		scores[class] = probs[i]
		if i > 0 && m.beats(class, probs[i], m.ens.Classes[best], probs[best]) {
			best = i
		}
	}

	return models.DepartmentPrediction{
		RecommendedDepartment: m.ens.Classes[best],
		DepartmentScores:      scores,
	}, nil
}

// beats reports whether the challenger should replace the incumbent
// recommendation: strictly higher score wins; within tolerance the
// department earlier in the priority ordering wins.
func (m *DepartmentModel) beats(challenger string, challengerScore float64, incumbent string, incumbentScore float64) bool {
	diff := challengerScore - incumbentScore
	if diff > tieTolerance {
		return true
	}
	if diff < -tieTolerance {
		return false
	}
	ci, cOK := m.rank[challenger]
	ii, iOK := m.rank[incumbent]
	if cOK && iOK {
		return ci < ii
	}
	if cOK != iOK {
		return cOK
	}
	return challenger < incumbent
}
