package decision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

func TestDefaultModel(t *testing.T) {
	m := DefaultModel()
	assert.Equal(t, ModelDecisionTree, m.Type)
	assert.Equal(t, core.FeatureNames, m.FeatureNames)
}

func TestClassifierDefaultModel(t *testing.T) {
	c := NewClassifier(DefaultModel())
	ctx := context.Background()

	v, err := c.Decide(ctx, trusted(t))
	require.NoError(t, err)
	assert.Equal(t, core.LabelHam, v.Label)
	assert.Less(t, v.Score, 0.5)

	v, err = c.Decide(ctx, &core.MailAnalysis{})
	require.NoError(t, err)
	assert.Equal(t, core.LabelSpam, v.Label)

	script := trusted(t)
	script.Body.ContainsScript = true
	v, err = c.Decide(ctx, script)
	require.NoError(t, err)
	assert.True(t, v.IsSpam)
	assert.Equal(t, StrategyClassifier, v.Strategy)
}

func TestClassifierDecideAllKeepsOrder(t *testing.T) {
	c := NewClassifier(DefaultModel())

	script := trusted(t)
	script.Body.ContainsScript = true
	analyses := []*core.MailAnalysis{trusted(t), script, {}, trusted(t)}

	verdicts, err := c.DecideAll(context.Background(), analyses)
	require.NoError(t, err)
	require.Len(t, verdicts, len(analyses))

	labels := make([]core.Label, len(verdicts))
	for i, v := range verdicts {
		labels[i] = v.Label
	}
	assert.Equal(t, []core.Label{core.LabelHam, core.LabelSpam, core.LabelSpam, core.LabelHam}, labels)

	for i, a := range analyses {
		single, err := c.Decide(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, single.Label, verdicts[i].Label)
	}
}

func TestClassifierDecideAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClassifier(DefaultModel()).DecideAll(ctx, []*core.MailAnalysis{{}})
	assert.ErrorIs(t, err, context.Canceled)
}

func featureNamesJSON(names []string) string {
	return `["` + strings.Join(names, `","`) + `"]`
}

func TestParseLogisticModel(t *testing.T) {
	coefficients := make([]string, len(core.FeatureNames))
	for i := range coefficients {
		coefficients[i] = "0"
	}
	coefficients[core.FeatureScript] = "10"

	src := `{"type":"logistic","feature_names":` + featureNamesJSON(core.FeatureNames) +
		`,"coefficients":[` + strings.Join(coefficients, ",") + `],"intercept":-5}`

	m, err := ParseModel(strings.NewReader(src))
	require.NoError(t, err)

	c := NewClassifier(m)
	v, err := c.Decide(context.Background(), trusted(t))
	require.NoError(t, err)
	assert.Equal(t, core.LabelHam, v.Label)

	script := trusted(t)
	script.Body.ContainsScript = true
	v, err = c.Decide(context.Background(), script)
	require.NoError(t, err)
	assert.Equal(t, core.LabelSpam, v.Label)
	assert.InDelta(t, 0.9933, v.Score, 1e-3)
}

func TestParseModelRejectsMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "fewer features",
			src:  `{"type":"logistic","feature_names":` + featureNamesJSON(core.FeatureNames[:5]) + `,"coefficients":[1,1,1,1,1]}`,
			want: ErrFeatureMismatch,
		},
		{
			name: "reordered features",
			src: `{"type":"logistic","feature_names":` +
				featureNamesJSON(append([]string{core.FeatureNames[1], core.FeatureNames[0]}, core.FeatureNames[2:]...)) + `}`,
			want: ErrFeatureMismatch,
		},
		{
			name: "coefficient count",
			src:  `{"type":"logistic","feature_names":` + featureNamesJSON(core.FeatureNames) + `,"coefficients":[1]}`,
			want: ErrFeatureMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseModelRejectsBrokenTree(t *testing.T) {
	names := featureNamesJSON(core.FeatureNames)
	tests := map[string]string{
		"unknown type": `{"type":"forest","feature_names":` + names + `}`,
		"missing tree": `{"type":"decision_tree","feature_names":` + names + `}`,
		"ragged arrays": `{"type":"decision_tree","feature_names":` + names +
			`,"tree":{"children_left":[1,-1],"children_right":[2],"feature":[0,-2],"threshold":[0.5,-2],"value":[[1,1],[1,0]]}}`,
		"cycle": `{"type":"decision_tree","feature_names":` + names +
			`,"tree":{"children_left":[0],"children_right":[0],"feature":[0],"threshold":[0.5],"value":[[1,1]]}}`,
		"bad feature": `{"type":"decision_tree","feature_names":` + names +
			`,"tree":{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[99,-2,-2],"threshold":[0.5,-2,-2],"value":[[1,1],[1,0],[0,1]]}}`,
		"not json": `{`,
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseModel(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, defaultModel, 0o644))

	m, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, ModelDecisionTree, m.Type)

	_, err = LoadModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
