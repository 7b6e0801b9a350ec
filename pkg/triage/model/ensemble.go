package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Node is one split or leaf of a regression tree. Leaves carry the
// margin contribution in Value and are marked with Feature == -1.
// Cover is the training row weight that reached the node; the loader
// uses it to derive per-node expected margins for attribution.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Cover     float64 `json:"cover"`
}

func (n Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is one member of a gradient-boosted ensemble, contributing to
// the margin of a single class.
type Tree struct {
	Class int    `json:"class"`
	Nodes []Node `json:"nodes"`

	// Expected holds the cover-weighted expected margin of the subtree
	// rooted at each node. Populated at load time.
	Expected []float64 `json:"-"`
}

// Walk returns the decision path for a sample as node indices from the
// root to the reached leaf. The caller must have validated the sample
// width against the ensemble.
func (t Tree) Walk(values []float64) []int {
	path := make([]int, 0, 8)
	idx := 0
	for {
		path = append(path, idx)
		node := t.Nodes[idx]
		if node.IsLeaf() {
			return path
		}
		if values[node.Feature] < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// Ensemble is a trained gradient-boosted tree model deserialized from
// a JSON artifact. It is immutable after load and safe for concurrent
// inference.
type Ensemble struct {
	Name         string   `json:"name"`
	FeatureNames []string `json:"feature_names"`
	Classes      []string `json:"classes"`
	BaseScore    float64  `json:"base_score"`
	Trees        []Tree   `json:"trees"`
}

// Load reads and validates a model artifact.
func Load(path string) (*Ensemble, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &InferenceError{Model: path, Reason: fmt.Sprintf("artifact unreadable: %v", err)}
	}
	return Parse(content)
}

// Parse deserializes and validates an artifact payload.
func Parse(content []byte) (*Ensemble, error) {
	var ens Ensemble
	if err := json.Unmarshal(content, &ens); err != nil {
		return nil, &InferenceError{Model: "unknown", Reason: fmt.Sprintf("artifact corrupt: %v", err)}
	}
	if err := ens.init(); err != nil {
		return nil, err
	}
	return &ens, nil
}

// Outputs is the number of margin outputs: one for a binary model,
// one per class otherwise.
func (e *Ensemble) Outputs() int {
	if len(e.Classes) == 2 {
		return 1
	}
	return len(e.Classes)
}

// Width is the expected feature vector length.
func (e *Ensemble) Width() int {
	return len(e.FeatureNames)
}

// Margins computes the raw pre-probability outputs for a sample.
func (e *Ensemble) Margins(values []float64) ([]float64, error) {
	if len(values) != e.Width() {
		return nil, &InferenceError{
			Model:  e.Name,
			Reason: fmt.Sprintf("feature vector width %d, model expects %d", len(values), e.Width()),
		}
	}
	margins := make([]float64, e.Outputs())
	for i := range margins {
		margins[i] = e.BaseScore
	}
	for _, tree := range e.Trees {
		path := tree.Walk(values)
		leaf := tree.Nodes[path[len(path)-1]]
		margins[tree.Class] += leaf.Value
	}
	return margins, nil
}

// init validates the artifact and precomputes per-node expected
// margins used by attribution.
func (e *Ensemble) init() error {
	if e.Width() == 0 {
		return &InferenceError{Model: e.Name, Reason: "artifact lists no features"}
	}
	if len(e.Classes) < 2 {
		return &InferenceError{Model: e.Name, Reason: "artifact lists fewer than two classes"}
	}
	if len(e.Trees) == 0 {
		return &InferenceError{Model: e.Name, Reason: "artifact contains no trees"}
	}
	for i := range e.Trees {
		tree := &e.Trees[i]
		if tree.Class < 0 || tree.Class >= e.Outputs() {
			return &InferenceError{Model: e.Name, Reason: fmt.Sprintf("tree %d targets class %d of %d outputs", i, tree.Class, e.Outputs())}
		}
		if len(tree.Nodes) == 0 {
			return &InferenceError{Model: e.Name, Reason: fmt.Sprintf("tree %d is empty", i)}
		}
		expected, err := expectedMargins(tree.Nodes)
		if err != nil {
			return &InferenceError{Model: e.Name, Reason: fmt.Sprintf("tree %d: %v", i, err)}
		}
		tree.Expected = expected
	}
	return nil
}

// expectedMargins computes, for every node, the cover-weighted mean of
// the leaf values in its subtree. E(leaf) = value; E(split) is the
// cover-weighted mean of its children.
func expectedMargins(nodes []Node) ([]float64, error) {
	expected := make([]float64, len(nodes))
	state := make([]uint8, len(nodes)) // 0 unvisited, 1 in progress, 2 done

	var visit func(idx int) error
	visit = func(idx int) error {
		if idx < 0 || idx >= len(nodes) {
			return fmt.Errorf("child index %d out of range", idx)
		}
		switch state[idx] {
		case 1:
			return fmt.Errorf("cycle through node %d", idx)
		case 2:
			return nil
		}
		state[idx] = 1
		node := nodes[idx]
		if node.IsLeaf() {
			expected[idx] = node.Value
			state[idx] = 2
			return nil
		}
		if err := visit(node.Left); err != nil {
			return err
		}
		if err := visit(node.Right); err != nil {
			return err
		}
		coverL := nodes[node.Left].Cover
		coverR := nodes[node.Right].Cover
		total := coverL + coverR
		if total <= 0 {
			return fmt.Errorf("node %d has non-positive child cover", idx)
		}
		expected[idx] = (coverL*expected[node.Left] + coverR*expected[node.Right]) / total
		state[idx] = 2
		return nil
	}

	if err := visit(0); err != nil {
		return nil, err
	}
	return expected, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// softmax converts class margins to probabilities, shifted by the max
// margin for numerical stability.
func softmax(margins []float64) []float64 {
	max := margins[0]
	for _, m := range margins[1:] {
		if m > max {
			max = m
		}
	}
	probs := make([]float64, len(margins))
	var sum float64
	for i, m := range margins {
		probs[i] = math.Exp(m - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
