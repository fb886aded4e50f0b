// Package tracing derives the tracing mode from configuration and wires the
// X-Ray permissions and Datadog trace flags onto each function.
package tracing

import (
	"fmt"

	"github.com/DataDog/serverless-macro-go/internal/cfn"
	"github.com/DataDog/serverless-macro-go/internal/graph"
	"github.com/DataDog/serverless-macro-go/internal/mutate"
)

// Mode is the derived tracing mode.
type Mode int

const (
	ModeNone Mode = iota
	ModeXray
	ModeDDTrace
	ModeHybrid
)

const (
	envTraceEnabled    = "DD_TRACE_ENABLED"
	envMergeXrayTraces = "DD_MERGE_XRAY_TRACES"

	xrayPolicyName = "DatadogXrayAccessPolicy"
)

// MissingIamRoleError is fatal for the whole transform: X-Ray tracing cannot
// be enabled safely without amending a role the engine can find.
type MissingIamRoleError struct {
	FunctionKey string
}

func (e *MissingIamRoleError) Error() string {
	return fmt.Sprintf("cannot find the IAM role declaration for function %s; "+
		"declare the execution role in this template (referenced through Fn::GetAtt) "+
		"so X-Ray permissions can be added to it", e.FunctionKey)
}

// ModeFor maps the two tracing flags onto a mode.
func ModeFor(enableXray, enableDDTrace bool) Mode {
	switch {
	case enableXray && enableDDTrace:
		return ModeHybrid
	case enableDDTrace:
		return ModeDDTrace
	case enableXray:
		return ModeXray
	}
	return ModeNone
}

// Apply wires tracing onto one function per the derived mode.
func Apply(g *graph.Graph, fn *graph.FunctionResource, mode Mode) error {
	if mode == ModeXray || mode == ModeHybrid {
		if err := enableXray(g, fn); err != nil {
			return err
		}
	}
	if mode == ModeDDTrace || mode == ModeHybrid {
		// A function-level DD_TRACE_ENABLED override wins.
		mutate.SetEnv(fn, envTraceEnabled, "true")
		mutate.OverwriteEnv(fn, envMergeXrayTraces, fmt.Sprintf("%t", mode == ModeHybrid))
	}
	return nil
}

func enableXray(g *graph.Graph, fn *graph.FunctionResource) error {
	role, err := resolveRole(g, fn)
	if err != nil {
		return err
	}

	statement := cfn.PolicyStatement{
		Effect:   "Allow",
		Action:   []string{"xray:PutTraceSegments", "xray:PutTelemetryRecords"},
		Resource: []any{"*"},
	}

	props := cfn.ResourceProperties(role)
	if policies, ok := props["Policies"].([]any); ok && len(policies) > 0 {
		if first, ok := policies[0].(map[string]any); ok {
			doc, ok := first["PolicyDocument"].(map[string]any)
			if !ok {
				doc = map[string]any{}
				first["PolicyDocument"] = doc
			}
			if !hasXrayStatement(doc) {
				cfn.AppendStatement(doc, statement)
			}
			fn.SetTracingMode("Active")
			return nil
		}
	}

	props["Policies"] = []any{map[string]any{
		"PolicyName":     xrayPolicyName,
		"PolicyDocument": cfn.NewPolicyDocument(statement),
	}}
	fn.SetTracingMode("Active")
	return nil
}

// hasXrayStatement reports whether the document already grants the X-Ray
// write actions, so re-running the transform never stacks duplicates.
func hasXrayStatement(doc map[string]any) bool {
	cfn.NormalizeStatements(doc)
	stmts, _ := doc["Statement"].([]any)
	for _, raw := range stmts {
		stmt, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		actions, ok := stmt["Action"].([]any)
		if !ok {
			continue
		}
		for _, action := range actions {
			if action == "xray:PutTraceSegments" {
				return true
			}
		}
	}
	return false
}

// resolveRole follows the function's Role property to a role declared in the
// same fragment. Only the Fn::GetAtt reference shape is supported; anything
// else leaves the engine unable to amend the role, which is fatal.
func resolveRole(g *graph.Graph, fn *graph.FunctionResource) (map[string]any, error) {
	role := fn.Role()
	getAtt, ok := role.(cfn.GetAtt)
	if !ok {
		return nil, &MissingIamRoleError{FunctionKey: fn.Key}
	}
	resource, ok := g.Resource(getAtt.LogicalID)
	if !ok || cfn.ResourceType(resource) != cfn.TypeIAMRole {
		return nil, &MissingIamRoleError{FunctionKey: fn.Key}
	}
	return resource, nil
}
