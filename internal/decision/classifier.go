package decision

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// Model kinds understood by the classifier
const (
	ModelDecisionTree = "decision_tree"
	ModelLogistic     = "logistic"
)

//go:embed models/default_model.json
var defaultModel []byte

// Tree is a binary decision tree in the flat array layout exported by
// scikit-learn's tree_ attribute. Leaves have children_left == -1.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Model is a trained binary classifier over core.FeatureNames
type Model struct {
	Type         string    `json:"type"`
	FeatureNames []string  `json:"feature_names"`
	Tree         *Tree     `json:"tree,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
}

// ParseModel decodes and validates a model
func ParseModel(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadModel reads a model from path
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	m, err := ParseModel(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	return m, nil
}

// DefaultModel returns the decision tree shipped with the binary
func DefaultModel() *Model {
	var m Model
	if err := json.Unmarshal(defaultModel, &m); err != nil {
		panic(fmt.Sprintf("embedded model is corrupt: %v", err))
	}
	if err := m.Validate(); err != nil {
		panic(fmt.Sprintf("embedded model is invalid: %v", err))
	}
	return &m
}

// Validate checks the model against the analysis vector layout
func (m *Model) Validate() error {
	if !slices.Equal(m.FeatureNames, core.FeatureNames) {
		return fmt.Errorf("%w: got %d features, want %d", ErrFeatureMismatch, len(m.FeatureNames), len(core.FeatureNames))
	}

	switch m.Type {
	case ModelDecisionTree:
		if m.Tree == nil {
			return fmt.Errorf("decision tree model has no tree")
		}
		return m.Tree.validate(len(core.FeatureNames))
	case ModelLogistic:
		if len(m.Coefficients) != len(core.FeatureNames) {
			return fmt.Errorf("%w: got %d coefficients, want %d", ErrFeatureMismatch, len(m.Coefficients), len(core.FeatureNames))
		}
		return nil
	default:
		return fmt.Errorf("unsupported model type %q", m.Type)
	}
}

func (t *Tree) validate(features int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("tree arrays differ in length")
	}
	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == -1 {
			if len(t.Value[i]) != 2 {
				return fmt.Errorf("leaf %d must hold two class counts", i)
			}
			continue
		}
		// Children always come after their parent, which also rules out cycles
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d has out of range children", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= features {
			return fmt.Errorf("node %d splits on unknown feature %d", i, t.Feature[i])
		}
	}
	return nil
}

// SpamProbability returns the probability that x is spam
func (m *Model) SpamProbability(x []float64) (float64, error) {
	if len(x) != len(m.FeatureNames) {
		return 0, fmt.Errorf("%w: vector has %d entries, want %d", ErrFeatureMismatch, len(x), len(m.FeatureNames))
	}

	if m.Type == ModelLogistic {
		z := m.Intercept
		for i, c := range m.Coefficients {
			z += c * x[i]
		}
		return 1 / (1 + math.Exp(-z)), nil
	}

	t := m.Tree
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	ham, spam := t.Value[node][0], t.Value[node][1]
	if ham+spam == 0 {
		return 0, nil
	}
	return spam / (ham + spam), nil
}

// Classifier feeds the analysis vector to a trained model
type Classifier struct {
	model *Model
}

// NewClassifier creates a classifier over a validated model
func NewClassifier(model *Model) *Classifier {
	return &Classifier{model: model}
}

// Name implements core.Decider
func (c *Classifier) Name() string {
	return StrategyClassifier
}

// Decide implements core.Decider
func (c *Classifier) Decide(_ context.Context, a *core.MailAnalysis) (*core.Verdict, error) {
	p, err := c.model.SpamProbability(a.ToList())
	if err != nil {
		return nil, fmt.Errorf("failed to classify: %w", err)
	}
	return c.verdict(p), nil
}

// DecideAll implements core.BatchDecider
func (c *Classifier) DecideAll(ctx context.Context, analyses []*core.MailAnalysis) ([]*core.Verdict, error) {
	verdicts := make([]*core.Verdict, len(analyses))
	for i, a := range analyses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := c.Decide(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("failed to classify message %d: %w", i, err)
		}
		verdicts[i] = v
	}
	return verdicts, nil
}

func (c *Classifier) verdict(p float64) *core.Verdict {
	label := core.LabelHam
	if p >= 0.5 {
		label = core.LabelSpam
	}
	return &core.Verdict{
		Label:       label,
		IsSpam:      label == core.LabelSpam,
		Score:       p,
		Confidence:  math.Abs(p-0.5) * 2,
		Explanation: fmt.Sprintf("%s model: spam probability %.2f", c.model.Type, p),
		Strategy:    c.Name(),
		AnalyzedAt:  time.Now(),
	}
}
