// Package graph projects a raw template fragment into the typed resource
// view the rest of the engine works against. Projections keep the backing
// property maps, so every mutation made through the view lands directly in
// the raw fragment.
package graph

import (
	"sort"

	"github.com/DataDog/serverless-macro-go/internal/cfn"
)

// Graph is the typed view over one template fragment. It is built once per
// invocation and owns the projections for its duration; the raw resource map
// is the backing store and is never read back after mutation.
type Graph struct {
	resources map[string]any

	Functions     []*FunctionResource
	StateMachines []*StateMachineResource
}

// Build projects the raw logical-id -> resource map. Iteration order is the
// sorted logical-id order so repeated runs process resources identically.
func Build(resources map[string]any) *Graph {
	g := &Graph{resources: resources}

	keys := make([]string, 0, len(resources))
	for k := range resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		resource, ok := resources[key].(map[string]any)
		if !ok {
			continue
		}
		switch cfn.ResourceType(resource) {
		case cfn.TypeLambdaFunction, cfn.TypeServerlessFunction:
			g.Functions = append(g.Functions, newFunctionResource(key, resource))
		case cfn.TypeStateMachine, cfn.TypeServerlessStateMachine:
			g.StateMachines = append(g.StateMachines, newStateMachineResource(key, resource))
		}
	}
	return g
}

// Resource returns the raw declaration for a logical id.
func (g *Graph) Resource(key string) (map[string]any, bool) {
	resource, ok := g.resources[key].(map[string]any)
	return resource, ok
}

// LogGroups returns every AWS::Logs::LogGroup declared in the fragment.
func (g *Graph) LogGroups() []DeclaredResource {
	return g.declared(cfn.TypeLogGroup)
}

// SubscriptionFilters returns every AWS::Logs::SubscriptionFilter declared in
// the fragment.
func (g *Graph) SubscriptionFilters() []DeclaredResource {
	return g.declared(cfn.TypeSubscriptionFilter)
}

func (g *Graph) declared(resourceType string) []DeclaredResource {
	keys := make([]string, 0, len(g.resources))
	for k := range g.resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []DeclaredResource
	for _, key := range keys {
		resource, ok := g.resources[key].(map[string]any)
		if !ok || cfn.ResourceType(resource) != resourceType {
			continue
		}
		out = append(out, DeclaredResource{Key: key, Properties: cfn.ResourceProperties(resource)})
	}
	return out
}

// DeclaredResource is a template-declared resource the reconciler inspects
// but does not project further.
type DeclaredResource struct {
	Key        string
	Properties map[string]any
}
