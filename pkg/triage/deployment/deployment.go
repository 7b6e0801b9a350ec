package deployment

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Thresholds are the fixed cut points mapping a continuous risk score
// onto the discrete risk levels: score < Medium -> Low,
// Medium <= score < High -> Medium, score >= High -> High.
type Thresholds struct {
	Medium float64 `yaml:"medium" json:"medium"`
	High   float64 `yaml:"high" json:"high"`
}

// Deployment carries the deployment-time constants of the triage
// engine. None of these are computed per request; they ship alongside
// the trained model artifacts and may be overridden by a YAML file.
type Deployment struct {
	RiskThresholds     Thresholds        `yaml:"risk_thresholds" json:"risk_thresholds"`
	DepartmentPriority []string          `yaml:"department_priority" json:"department_priority"`
	FeatureLabels      map[string]string `yaml:"feature_labels" json:"feature_labels"`
	ExplainTopK        int               `yaml:"explain_top_k" json:"explain_top_k"`
}

func Load(path string) (Deployment, error) {
	if path == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Default(), err
	}
	dep := Default()
	if err := yaml.Unmarshal(content, &dep); err != nil {
		return Deployment{}, err
	}
	if err := dep.Validate(); err != nil {
		return Deployment{}, err
	}
	return dep, nil
}

func (d Deployment) Validate() error {
	if d.RiskThresholds.Medium <= 0 || d.RiskThresholds.Medium >= 1 {
		return fmt.Errorf("medium risk threshold %v outside (0,1)", d.RiskThresholds.Medium)
	}
	if d.RiskThresholds.High <= d.RiskThresholds.Medium || d.RiskThresholds.High >= 1 {
		return fmt.Errorf("high risk threshold %v must lie in (medium,1)", d.RiskThresholds.High)
	}
	if d.ExplainTopK <= 0 {
		return fmt.Errorf("explain_top_k must be positive, got %d", d.ExplainTopK)
	}
	if len(d.DepartmentPriority) == 0 {
		return fmt.Errorf("department priority ordering is empty")
	}
	seen := make(map[string]struct{}, len(d.DepartmentPriority))
	for _, dept := range d.DepartmentPriority {
		if _, ok := seen[dept]; ok {
			return fmt.Errorf("duplicate department %q in priority ordering", dept)
		}
		seen[dept] = struct{}{}
	}
	return nil
}

// Default returns the constants the models were deployed with. The
// priority ordering is acuity order: when department scores tie, the
// more acute department wins.
func Default() Deployment {
	return Deployment{
		RiskThresholds: Thresholds{Medium: 0.30, High: 0.60},
		DepartmentPriority: []string{
			"Emergency",
			"Cardiology",
			"Neurology",
			"Respiratory",
			"Orthopedics",
			"General Medicine",
		},
		FeatureLabels: map[string]string{
			"age":                 "Age",
			"bp_systolic":         "Systolic Blood Pressure",
			"bp_diastolic":        "Diastolic Blood Pressure",
			"heart_rate":          "Heart Rate",
			"temperature":         "Body Temperature",
			"chest_pain_severity": "Chest Pain Severity",
			"max_severity":        "Maximum Symptom Severity",
			"symptom_count":       "Symptom Count",
			"comorbidities_count": "Comorbidity Count",
			"cardiac_history":     "Cardiac History",
			"diabetes_status":     "Diabetes Status",
			"respiratory_history": "Respiratory History",
			"chronic_conditions":  "Chronic Condition Count",
		},
		ExplainTopK: 5,
	}
}
