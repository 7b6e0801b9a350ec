package feature

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/meditriage/platform/pkg/common/models"
)

// Vector is the fixed-order numeric encoding of one visit record. The
// order is owned by the trained model artifact; the extractor only
// honors it. Vectors are never written after Extract returns, so one
// vector may be read by concurrent model heads without coordination.
type Vector struct {
	Names  []string
	Values []float64
}

// EncodingError reports a raw field the extractor cannot encode:
// a categorical value outside the trained vocabulary or a structurally
// malformed value. It is recoverable by the caller; retrying with the
// same input reproduces it.
type EncodingError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode field %q (value %v): %s", e.Field, e.Value, e.Reason)
}

// Extractor maps raw visit records onto the feature order expected by
// the deployed models. It is pure: same record, same vector.
type Extractor struct {
	order []FieldSpec
}

// NewExtractor builds an extractor for the given trained feature
// order. Every name must be a recognized schema field; an unknown name
// means the deployed artifacts and this binary disagree about the
// schema, which is a startup failure, not a request failure.
func NewExtractor(featureNames []string) (*Extractor, error) {
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("feature order is empty")
	}
	index := schemaIndex()
	order := make([]FieldSpec, 0, len(featureNames))
	for _, name := range featureNames {
		spec, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("model feature %q is not a recognized schema field", name)
		}
		order = append(order, spec)
	}
	return &Extractor{order: order}, nil
}

// FeatureNames returns the extraction order.
func (e *Extractor) FeatureNames() []string {
	names := make([]string, len(e.order))
	for i, spec := range e.order {
		names[i] = spec.Name
	}
	return names
}

// Extract encodes a raw record into the fixed feature order. Missing
// fields take their schema defaults; extra fields are ignored.
func (e *Extractor) Extract(record models.RawVisitRecord) (Vector, error) {
	values := make([]float64, len(e.order))
	names := make([]string, len(e.order))
	for i, spec := range e.order {
		names[i] = spec.Name
		raw, ok := record[spec.Name]
		if !ok || raw == nil {
			values[i] = spec.Default
			continue
		}
		encoded, err := encodeField(spec, raw)
		if err != nil {
			return Vector{}, err
		}
		values[i] = encoded
	}
	return Vector{Names: names, Values: values}, nil
}

func encodeField(spec FieldSpec, raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, &EncodingError{Field: spec.Name, Value: raw, Reason: "not a number"}
		}
		return f, nil
	case string:
		return encodeText(spec, v)
	default:
		return 0, &EncodingError{Field: spec.Name, Value: raw, Reason: fmt.Sprintf("unsupported type %T", raw)}
	}
}

func encodeText(spec FieldSpec, value string) (float64, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if spec.Vocabulary != nil {
		code, ok := spec.Vocabulary[normalized]
		if !ok {
			return 0, &EncodingError{Field: spec.Name, Value: value, Reason: "value outside trained vocabulary"}
		}
		return code, nil
	}
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, &EncodingError{Field: spec.Name, Value: value, Reason: "not numeric"}
	}
	return f, nil
}
