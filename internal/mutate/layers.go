// Package mutate holds the idempotent property mutators. Each one adds to a
// function's properties only what is missing, so running the macro over an
// already-transformed template changes nothing.
package mutate

import (
	"github.com/DataDog/serverless-macro-go/internal/cfn"
	"github.com/DataDog/serverless-macro-go/internal/graph"
	"github.com/DataDog/serverless-macro-go/internal/logging"
)

// AddLayer appends arn to the function's layer list unless it is already
// present. Conditional (Fn::If) layer trees are rewritten leaf by leaf,
// preserving the tree shape. An encoding the value model does not recognize
// is left untouched.
func AddLayer(fn *graph.FunctionResource, arn string) {
	raw := fn.Layers()
	if raw == nil {
		fn.SetLayers([]any{arn})
		return
	}

	rewritten, ok := cfn.RewriteLists(cfn.Parse(raw), func(items []any) []any {
		if cfn.ContainsItem(items, arn) {
			return items
		}
		return append(items, arn)
	})
	if !ok {
		logging.Warn("unrecognized Layers encoding, skipping layer injection",
			"function", fn.Key, "layer", arn)
		return
	}
	fn.SetLayers(rewritten.Raw())
}
