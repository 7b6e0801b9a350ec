package model

import (
	"github.com/meditriage/platform/pkg/triage/deployment"
	"github.com/meditriage/platform/pkg/triage/feature"
)

func thresholdsForTest() deployment.Thresholds {
	return deployment.Thresholds{Medium: 0.30, High: 0.60}
}

func vectorFor(values []float64) feature.Vector {
	return feature.Vector{Values: values}
}
