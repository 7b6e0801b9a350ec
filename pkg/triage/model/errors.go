package model

import "fmt"

// InferenceError reports a deployment inconsistency: a missing or
// corrupt model artifact, or a feature vector whose width disagrees
// with the model input width. It is fatal at the process level, not a
// per-request condition.
type InferenceError struct {
	Model  string
	Reason string
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("model %s: %s", e.Model, e.Reason)
}
