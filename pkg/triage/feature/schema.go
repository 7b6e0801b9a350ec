package feature

// FieldSpec declares one recognized raw-record field: the name the
// models were trained on, a human-oriented fallback default used when
// the field is absent, and, for categorical fields, the vocabulary of
// textual values mapped to the numeric codes used at training time.
// A textual value outside the vocabulary is an encoding error, never a
// silent coercion.
type FieldSpec struct {
	Name       string
	Default    float64
	Vocabulary map[string]float64
}

// yesNo is the coding for binary history flags.
var yesNo = map[string]float64{
	"no":   0,
	"none": 0,
	"yes":  1,
}

// Schema enumerates every field the extractor recognizes, with the
// defaults the original training pipeline imputed for missing data.
// The slice order is informational only; the authoritative feature
// order is the feature_names list inside the trained model artifact.
func Schema() []FieldSpec {
	return []FieldSpec{
		{Name: "age", Default: 40},
		{Name: "bp_systolic", Default: 120},
		{Name: "bp_diastolic", Default: 80},
		{Name: "heart_rate", Default: 80},
		{Name: "temperature", Default: 98.6},
		{Name: "chest_pain_severity", Default: 0},
		{Name: "max_severity", Default: 1},
		{Name: "symptom_count", Default: 1},
		{Name: "comorbidities_count", Default: 0},
		{Name: "cardiac_history", Default: 0, Vocabulary: yesNo},
		{Name: "diabetes_status", Default: 0, Vocabulary: map[string]float64{
			"no":     0,
			"none":   0,
			"yes":    1,
			"type 1": 1,
			"type 2": 1,
		}},
		{Name: "respiratory_history", Default: 0, Vocabulary: yesNo},
		{Name: "chronic_conditions", Default: 0},
	}
}

func schemaIndex() map[string]FieldSpec {
	fields := Schema()
	index := make(map[string]FieldSpec, len(fields))
	for _, field := range fields {
		index[field.Name] = field
	}
	return index
}
