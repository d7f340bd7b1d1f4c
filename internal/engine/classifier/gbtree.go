package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/crimson-sun/pilar/internal/errs"
)

// dumpNode is one node of an XGBoost JSON model dump
// (Booster.get_dump(dump_format="json")).
type dumpNode struct {
	NodeID         int        `json:"nodeid"`
	Split          *string    `json:"split,omitempty"`
	SplitCondition float64    `json:"split_condition"`
	Yes            int        `json:"yes"`
	No             int        `json:"no"`
	Missing        *int       `json:"missing,omitempty"`
	Children       []dumpNode `json:"children,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty"`
}

type node struct {
	leaf             bool
	value            float64
	feature          int
	threshold        float32
	yes, no, missing int
}

type tree []node

// eval walks from the root. A feature value below the threshold takes the
// yes branch; NaN takes the missing branch.
func (t tree) eval(vec []float32) float64 {
	i := 0
	for {
		n := &t[i]
		if n.leaf {
			return n.value
		}
		x := vec[n.feature]
		switch {
		case math.IsNaN(float64(x)):
			i = n.missing
		case x < n.threshold:
			i = n.yes
		default:
			i = n.no
		}
	}
}

// ensemble is an additive tree model. Tree k contributes to class
// k mod groups.
type ensemble struct {
	objective  string
	numClass   int
	numFeature int
	maxFeature int
	base       float64
	trees      []tree
}

func newEnsemble(spec Spec) (*ensemble, error) {
	e := &ensemble{objective: spec.Objective, numFeature: spec.NumFeature, maxFeature: -1}
	switch spec.Objective {
	case BinaryLogistic:
		e.numClass = 2
	case MultiSoftprob, MultiSoftmax:
		if spec.NumClass < 2 {
			return nil, fmt.Errorf("classifier: %s needs num_class >= 2, got %d", spec.Objective, spec.NumClass)
		}
		e.numClass = spec.NumClass
	default:
		return nil, fmt.Errorf("classifier: unsupported objective %q", spec.Objective)
	}

	base := 0.5
	if spec.BaseScore != nil {
		base = *spec.BaseScore
	}
	if e.objective == BinaryLogistic {
		if base <= 0 || base >= 1 {
			return nil, fmt.Errorf("classifier: base_score %v outside (0,1) for %s", base, BinaryLogistic)
		}
		e.base = logit(base)
	} else {
		e.base = base
	}

	if len(spec.Trees) == 0 {
		return nil, fmt.Errorf("classifier: gbtree has no trees")
	}
	if g := e.groups(); len(spec.Trees)%g != 0 {
		return nil, fmt.Errorf("classifier: %d trees do not divide into %d class groups", len(spec.Trees), g)
	}
	names := make(map[string]int, len(spec.FeatureNames))
	for i, n := range spec.FeatureNames {
		names[n] = i
	}
	for i, raw := range spec.Trees {
		var root dumpNode
		if err := json.Unmarshal(raw, &root); err != nil {
			return nil, fmt.Errorf("classifier: tree %d: %w", i, err)
		}
		t, err := e.flatten(root, names)
		if err != nil {
			return nil, fmt.Errorf("classifier: tree %d: %w", i, err)
		}
		e.trees = append(e.trees, t)
	}
	if e.numFeature > 0 && e.maxFeature >= e.numFeature {
		return nil, fmt.Errorf("classifier: split on feature %d but num_feature is %d", e.maxFeature, e.numFeature)
	}
	return e, nil
}

// groups is the number of margins the trees accumulate into.
func (e *ensemble) groups() int {
	if e.objective == BinaryLogistic {
		return 1
	}
	return e.numClass
}

// flatten indexes the nested dump by node id and checks that every branch
// points at one of the node's own children, so evaluation terminates.
func (e *ensemble) flatten(root dumpNode, names map[string]int) (tree, error) {
	byID := map[int]dumpNode{}
	var walk func(n dumpNode) error
	walk = func(n dumpNode) error {
		if n.NodeID < 0 {
			return fmt.Errorf("negative node id %d", n.NodeID)
		}
		if _, dup := byID[n.NodeID]; dup {
			return fmt.Errorf("duplicate node id %d", n.NodeID)
		}
		byID[n.NodeID] = n
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	if root.NodeID != 0 {
		return nil, fmt.Errorf("root node id is %d, want 0", root.NodeID)
	}

	size := 0
	for id := range byID {
		size = max(size, id+1)
	}
	t := make(tree, size)
	for id, n := range byID {
		if n.Leaf != nil {
			t[id] = node{leaf: true, value: *n.Leaf}
			continue
		}
		if n.Split == nil {
			return nil, fmt.Errorf("node %d is neither a split nor a leaf", id)
		}
		feat, err := featureIndex(*n.Split, names)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}
		e.maxFeature = max(e.maxFeature, feat)
		missing := n.Yes
		if n.Missing != nil {
			missing = *n.Missing
		}
		children := map[int]bool{}
		for _, c := range n.Children {
			children[c.NodeID] = true
		}
		for _, target := range []int{n.Yes, n.No, missing} {
			if !children[target] {
				return nil, fmt.Errorf("node %d branches to %d, which is not its child", id, target)
			}
		}
		t[id] = node{feature: feat, threshold: float32(n.SplitCondition), yes: n.Yes, no: n.No, missing: missing}
	}
	return t, nil
}

func featureIndex(split string, names map[string]int) (int, error) {
	if i, ok := names[split]; ok {
		return i, nil
	}
	if rest, ok := strings.CutPrefix(split, "f"); ok {
		if i, err := strconv.Atoi(rest); err == nil && i >= 0 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown split feature %q", split)
}

func (e *ensemble) margins(vec []float32) ([]float64, error) {
	if e.numFeature > 0 && len(vec) != e.numFeature {
		return nil, errs.ShapeMismatch("classifier", e.numFeature, len(vec))
	}
	if len(vec) <= e.maxFeature {
		return nil, errs.ShapeMismatch("classifier", e.maxFeature+1, len(vec))
	}
	g := e.groups()
	m := make([]float64, g)
	for i := range m {
		m[i] = e.base
	}
	for k, t := range e.trees {
		m[k%g] += t.eval(vec)
	}
	return m, nil
}

func (e *ensemble) Kind() string           { return TypeGBTree + "/" + e.objective }
func (e *ensemble) NumClasses() int        { return e.numClass }
func (e *ensemble) NumFeatures() int       { return e.numFeature }
func (e *ensemble) HasProbabilities() bool { return e.objective != MultiSoftmax }
func (e *ensemble) Close() error           { return nil }

func (e *ensemble) Predict(vec []float32) (int, error) {
	m, err := e.margins(vec)
	if err != nil {
		return 0, err
	}
	if e.objective == BinaryLogistic {
		if m[0] > 0 {
			return 1, nil
		}
		return 0, nil
	}
	return Argmax(m), nil
}

func (e *ensemble) PredictProbabilities(vec []float32) ([]float64, error) {
	if !e.HasProbabilities() {
		return nil, noProbabilities(e.Kind())
	}
	m, err := e.margins(vec)
	if err != nil {
		return nil, err
	}
	if e.objective == BinaryLogistic {
		p := sigmoid(m[0])
		return []float64{1 - p, p}, nil
	}
	return softmax(m), nil
}
