package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/serverless-macro-go/internal/graph"
)

func newFunction(t *testing.T, props map[string]any) *graph.FunctionResource {
	t.Helper()
	resources := map[string]any{
		"Fn": map[string]any{"Type": "AWS::Lambda::Function", "Properties": props},
	}
	g := graph.Build(resources)
	require.Len(t, g.Functions, 1)
	return g.Functions[0]
}

func TestAddLayer_NoLayersProperty(t *testing.T) {
	fn := newFunction(t, map[string]any{})
	AddLayer(fn, "arn:lib")
	assert.Equal(t, []any{"arn:lib"}, fn.Layers())
}

func TestAddLayer_Idempotent(t *testing.T) {
	fn := newFunction(t, map[string]any{"Layers": []any{"arn:lib"}})
	AddLayer(fn, "arn:lib")
	AddLayer(fn, "arn:lib")
	assert.Equal(t, []any{"arn:lib"}, fn.Layers())
}

func TestAddLayer_IndependentEntries(t *testing.T) {
	fn := newFunction(t, map[string]any{"Layers": []any{"arn:user"}})
	AddLayer(fn, "arn:lib")
	AddLayer(fn, "arn:ext")
	assert.Equal(t, []any{"arn:user", "arn:lib", "arn:ext"}, fn.Layers())
}

func TestAddLayer_ConditionalTree(t *testing.T) {
	fn := newFunction(t, map[string]any{
		"Layers": map[string]any{"Fn::If": []any{"IsProd",
			[]any{"arn:lib"},
			[]any{},
		}},
	})
	AddLayer(fn, "arn:lib")

	want := map[string]any{"Fn::If": []any{"IsProd",
		[]any{"arn:lib"},
		[]any{"arn:lib"},
	}}
	assert.Equal(t, want, fn.Layers())
}

func TestAddLayer_UnrecognizedEncodingSkipped(t *testing.T) {
	original := map[string]any{"Ref": "LayersParam"}
	fn := newFunction(t, map[string]any{"Layers": original})
	AddLayer(fn, "arn:lib")
	assert.Equal(t, any(original), fn.Layers())
}
