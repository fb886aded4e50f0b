package graph

import "github.com/DataDog/serverless-macro-go/internal/cfn"

// Architecture identifiers as they appear in the Architectures property.
const (
	ArchX8664 = "x86_64"
	ArchARM64 = "arm64"
)

// FunctionResource is the typed projection of a Lambda function declaration.
// The properties map is the template's own map; mutators write through it.
type FunctionResource struct {
	Key        string
	properties map[string]any
}

func newFunctionResource(key string, resource map[string]any) *FunctionResource {
	return &FunctionResource{Key: key, properties: cfn.ResourceProperties(resource)}
}

// Properties exposes the backing property map.
func (f *FunctionResource) Properties() map[string]any {
	return f.properties
}

// Runtime returns the declared runtime identifier, empty when the runtime is
// not a plain string (an intrinsic-encoded runtime disables runtime-keyed
// mutators for this function).
func (f *FunctionResource) Runtime() string {
	runtime, _ := f.properties["Runtime"].(string)
	return runtime
}

// Architecture returns the first declared architecture, defaulting to x86_64.
func (f *FunctionResource) Architecture() string {
	archs, ok := f.properties["Architectures"].([]any)
	if !ok || len(archs) == 0 {
		return ArchX8664
	}
	arch, _ := archs[0].(string)
	if arch == "" {
		return ArchX8664
	}
	return arch
}

// Handler returns the declared handler string.
func (f *FunctionResource) Handler() string {
	handler, _ := f.properties["Handler"].(string)
	return handler
}

// SetHandler replaces the handler.
func (f *FunctionResource) SetHandler(handler string) {
	f.properties["Handler"] = handler
}

// FunctionName returns the FunctionName property parsed into the value model,
// or nil when no explicit name is declared.
func (f *FunctionResource) FunctionName() cfn.Value {
	raw, ok := f.properties["FunctionName"]
	if !ok {
		return nil
	}
	return cfn.Parse(raw)
}

// Environment returns the environment variable map, creating the
// Environment.Variables nesting on first use.
func (f *FunctionResource) Environment() map[string]any {
	env, ok := f.properties["Environment"].(map[string]any)
	if !ok {
		env = map[string]any{}
		f.properties["Environment"] = env
	}
	vars, ok := env["Variables"].(map[string]any)
	if !ok {
		vars = map[string]any{}
		env["Variables"] = vars
	}
	return vars
}

// Layers returns the raw Layers property, nil when unset.
func (f *FunctionResource) Layers() any {
	return f.properties["Layers"]
}

// SetLayers replaces the raw Layers property.
func (f *FunctionResource) SetLayers(layers any) {
	f.properties["Layers"] = layers
}

// Tags returns the tag list in template order.
func (f *FunctionResource) Tags() []any {
	tags, _ := f.properties["Tags"].([]any)
	return tags
}

// SetTags replaces the tag list.
func (f *FunctionResource) SetTags(tags []any) {
	f.properties["Tags"] = tags
}

// Role returns the Role property parsed into the value model, or nil when the
// function declares no role.
func (f *FunctionResource) Role() cfn.Value {
	raw, ok := f.properties["Role"]
	if !ok {
		return nil
	}
	return cfn.Parse(raw)
}

// SetTracingMode sets TracingConfig.Mode.
func (f *FunctionResource) SetTracingMode(mode string) {
	f.properties["TracingConfig"] = map[string]any{"Mode": mode}
}
