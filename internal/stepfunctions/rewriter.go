// Package stepfunctions injects trace-context propagation into state machine
// definitions: Lambda invocation steps get the execution context merged into
// their payload, nested state machine starts get it merged into their input.
// Edits are made in the serialized definition itself so everything around the
// injected fields survives byte for byte.
package stepfunctions

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	lambdaInvokeResource   = "arn:aws:states:::lambda:invoke"
	startExecutionResource = "arn:aws:states:::states:startExecution"

	contextSelector = "$$['Execution', 'State', 'StateMachine']"
	jsonMergeExpr   = "States.JsonMerge($$, $, false)"
)

// RewriteError reports a definition or step shape the rewriter does not
// support. It degrades the transform for one state machine only: the caller
// logs it and keeps the definition untouched.
type RewriteError struct {
	Step   string
	Reason string
}

func (e *RewriteError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("unsupported state machine definition: %s", e.Reason)
	}
	return fmt.Sprintf("unsupported step %q: %s", e.Step, e.Reason)
}

type encoding int

const (
	encodingString encoding = iota
	encodingSub
	encodingSubArray
)

// Rewrite parses the definition out of its wire encoding, injects the trace
// context into every matching step, and re-wraps the result in the identical
// encoding (the bindings slot of an Fn::Sub array form is preserved
// untouched). On a *RewriteError the original value is returned unchanged.
func Rewrite(raw any) (any, error) {
	def, enc, wrapper, err := unwrap(raw)
	if err != nil {
		return raw, err
	}

	states := gjson.Get(def, "States")
	if !states.Exists() {
		return raw, &RewriteError{Reason: "definition has no States object"}
	}
	if !states.IsObject() {
		return raw, &RewriteError{Reason: "States is not an object"}
	}

	out := def
	var stepErr error
	states.ForEach(func(name, step gjson.Result) bool {
		resource := step.Get("Resource").String()
		switch {
		case strings.HasPrefix(resource, lambdaInvokeResource):
			out, stepErr = injectLambdaContext(out, name.String(), step)
		case strings.HasPrefix(resource, startExecutionResource):
			out, stepErr = injectNestedContext(out, name.String(), step)
		}
		return stepErr == nil
	})
	if stepErr != nil {
		return raw, stepErr
	}

	return rewrap(out, enc, wrapper), nil
}

// injectLambdaContext applies the payload truth table to one lambda:invoke
// step. First matching row wins.
func injectLambdaContext(def, name string, step gjson.Result) (string, error) {
	params := step.Get("Parameters")
	if !params.Exists() || !params.IsObject() {
		return def, &RewriteError{Step: name, Reason: "Parameters is not an object"}
	}

	base := "States." + escapeKey(name) + ".Parameters"
	payload := params.Get("Payload")
	payloadPath := params.Get(`Payload\.$`)

	switch {
	case payload.Exists() && !payload.IsObject():
		return def, &RewriteError{Step: name, Reason: "Parameters.Payload is not an object"}

	case payload.Exists():
		for _, key := range []string{"Execution", `Execution\.$`, "State", `State\.$`, "StateMachine", `StateMachine\.$`} {
			if payload.Get(key).Exists() {
				return def, &RewriteError{Step: name, Reason: "Parameters.Payload already carries execution context fields"}
			}
		}
		def, _ = sjson.Set(def, base+`.Payload.Execution\.$`, "$$.Execution")
		def, _ = sjson.Set(def, base+`.Payload.State\.$`, "$$.State")
		def, _ = sjson.Set(def, base+`.Payload.StateMachine\.$`, "$$.StateMachine")
		return def, nil

	case payloadPath.Exists() && payloadPath.String() == "$":
		def, _ = sjson.Set(def, base+`.Payload\.$`, jsonMergeExpr)
		return def, nil

	case payloadPath.Exists():
		return def, &RewriteError{Step: name, Reason: `Parameters["Payload.$"] is customized`}

	default:
		def, _ = sjson.Set(def, base+`.Payload\.$`, contextSelector)
		return def, nil
	}
}

// injectNestedContext applies the input truth table to one
// states:startExecution step.
func injectNestedContext(def, name string, step gjson.Result) (string, error) {
	params := step.Get("Parameters")
	if !params.Exists() || !params.IsObject() {
		return def, &RewriteError{Step: name, Reason: "Parameters is not an object"}
	}

	base := "States." + escapeKey(name) + ".Parameters"
	input := params.Get("Input")

	switch {
	case !input.Exists():
		def, _ = sjson.Set(def, base+`.Input.CONTEXT\.$`, jsonMergeExpr)
		return def, nil

	case !input.IsObject():
		return def, &RewriteError{Step: name, Reason: "Parameters.Input is not an object"}

	case input.Get("CONTEXT").Exists() || input.Get(`CONTEXT\.$`).Exists():
		return def, &RewriteError{Step: name, Reason: "Parameters.Input already carries a CONTEXT field"}

	default:
		def, _ = sjson.Set(def, base+`.Input.CONTEXT\.$`, contextSelector)
		return def, nil
	}
}

// unwrap selects the wire encoding and extracts the serialized definition.
func unwrap(raw any) (string, encoding, []any, error) {
	switch t := raw.(type) {
	case string:
		return t, encodingString, nil, nil
	case map[string]any:
		if len(t) == 1 {
			switch sub := t["Fn::Sub"].(type) {
			case string:
				return sub, encodingSub, nil, nil
			case []any:
				if len(sub) > 0 {
					if def, ok := sub[0].(string); ok {
						return def, encodingSubArray, sub, nil
					}
				}
			}
		}
	}
	return "", 0, nil, &RewriteError{Reason: "unrecognized definition encoding"}
}

// rewrap reconstructs the original wrapper around the rewritten definition.
// For the Fn::Sub array form only the string slot is replaced.
func rewrap(def string, enc encoding, wrapper []any) any {
	switch enc {
	case encodingSub:
		return map[string]any{"Fn::Sub": def}
	case encodingSubArray:
		out := make([]any, len(wrapper))
		copy(out, wrapper)
		out[0] = def
		return map[string]any{"Fn::Sub": out}
	}
	return def
}

// escapeKey escapes gjson/sjson path metacharacters in a step name.
func escapeKey(key string) string {
	replacer := strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`)
	return replacer.Replace(key)
}
