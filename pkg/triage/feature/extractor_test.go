package feature

import (
	"errors"
	"testing"

	"github.com/meditriage/platform/pkg/common/models"
)

func trainedOrder() []string {
	return []string{
		"age", "bp_systolic", "bp_diastolic", "heart_rate", "temperature",
		"chest_pain_severity", "max_severity", "symptom_count", "comorbidities_count",
		"cardiac_history", "diabetes_status", "respiratory_history", "chronic_conditions",
	}
}

func TestExtractHonorsTrainedOrder(t *testing.T) {
	extractor, err := NewExtractor(trainedOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vec, err := extractor.Extract(models.RawVisitRecord{
		"age":                 67,
		"bp_diastolic":        110.0,
		"chest_pain_severity": 8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec.Values) != 13 {
		t.Fatalf("expected 13 slots, got %d", len(vec.Values))
	}
	if vec.Names[5] != "chest_pain_severity" || vec.Values[5] != 8 {
		t.Fatalf("chest_pain_severity misplaced: names=%v values=%v", vec.Names, vec.Values)
	}
	if vec.Values[2] != 110 {
		t.Fatalf("expected bp_diastolic 110, got %v", vec.Values[2])
	}
}

func TestExtractDefaultsMissingFields(t *testing.T) {
	extractor, err := NewExtractor(trainedOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vec, err := extractor.Extract(models.RawVisitRecord{})
	if err != nil {
		t.Fatalf("missing fields must default, got error: %v", err)
	}
	if vec.Values[0] != 40 {
		t.Fatalf("expected default age 40, got %v", vec.Values[0])
	}
	if vec.Values[4] != 98.6 {
		t.Fatalf("expected default temperature 98.6, got %v", vec.Values[4])
	}
	if vec.Values[6] != 1 {
		t.Fatalf("expected default max_severity 1, got %v", vec.Values[6])
	}
}

func TestExtractIgnoresExtraFields(t *testing.T) {
	extractor, _ := NewExtractor(trainedOrder())
	vec, err := extractor.Extract(models.RawVisitRecord{
		"chief_complaint": "chest pain",
		"gender":          "F",
		"heart_rate":      128,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec.Values[3] != 128 {
		t.Fatalf("expected heart_rate 128, got %v", vec.Values[3])
	}
}

func TestExtractCodesCategoricalValues(t *testing.T) {
	extractor, _ := NewExtractor(trainedOrder())
	vec, err := extractor.Extract(models.RawVisitRecord{
		"cardiac_history":     "Yes",
		"respiratory_history": "none",
		"diabetes_status":     "Type 2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec.Values[9] != 1 {
		t.Fatalf("expected cardiac_history code 1, got %v", vec.Values[9])
	}
	if vec.Values[11] != 0 {
		t.Fatalf("expected respiratory_history code 0, got %v", vec.Values[11])
	}
	if vec.Values[10] != 1 {
		t.Fatalf("expected diabetes_status code 1, got %v", vec.Values[10])
	}
}

func TestExtractRejectsUnknownCategory(t *testing.T) {
	extractor, _ := NewExtractor(trainedOrder())
	_, err := extractor.Extract(models.RawVisitRecord{
		"cardiac_history": "maybe",
	})
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
	if encErr.Field != "cardiac_history" {
		t.Fatalf("expected field cardiac_history, got %s", encErr.Field)
	}
}

func TestExtractRejectsMalformedValue(t *testing.T) {
	extractor, _ := NewExtractor(trainedOrder())
	_, err := extractor.Extract(models.RawVisitRecord{
		"heart_rate": map[string]interface{}{"value": 80},
	})
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
}

func TestNewExtractorRejectsUnknownFeature(t *testing.T) {
	if _, err := NewExtractor([]string{"age", "shoe_size"}); err == nil {
		t.Fatal("expected error for unrecognized model feature")
	}
}
