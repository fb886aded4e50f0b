package graph

import "github.com/DataDog/serverless-macro-go/internal/cfn"

// StateMachineResource is the typed projection of a Step Functions state
// machine declaration.
type StateMachineResource struct {
	Key        string
	properties map[string]any
}

func newStateMachineResource(key string, resource map[string]any) *StateMachineResource {
	return &StateMachineResource{Key: key, properties: cfn.ResourceProperties(resource)}
}

// Properties exposes the backing property map.
func (s *StateMachineResource) Properties() map[string]any {
	return s.properties
}

// Definition returns the raw DefinitionString property in whichever wire
// encoding the template uses (plain string, Fn::Sub string, Fn::Sub array).
func (s *StateMachineResource) Definition() any {
	if def, ok := s.properties["DefinitionString"]; ok {
		return def
	}
	return s.properties["Definition"]
}

// SetDefinition writes the definition back in the same property slot it was
// read from.
func (s *StateMachineResource) SetDefinition(def any) {
	if _, ok := s.properties["DefinitionString"]; ok {
		s.properties["DefinitionString"] = def
		return
	}
	s.properties["Definition"] = def
}

// LoggingConfiguration returns the raw logging configuration, nil when unset.
func (s *StateMachineResource) LoggingConfiguration() any {
	return s.properties["LoggingConfiguration"]
}

// Role returns the RoleArn property parsed into the value model, or nil.
func (s *StateMachineResource) Role() cfn.Value {
	raw, ok := s.properties["RoleArn"]
	if !ok {
		return nil
	}
	return cfn.Parse(raw)
}
