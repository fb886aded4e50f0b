// Package transform drives one macro invocation: it resolves configuration,
// builds the resource graph, and runs the mutation and reconciliation passes
// in order.
package transform

// MacroVersion is stamped onto every transformed function as a tag.
const MacroVersion = "0.12.0"

// Event is the template-transform request the hosting runtime hands the
// engine. The fragment is kept raw so everything outside Resources is echoed
// back untouched.
type Event struct {
	Region                  string         `json:"region"`
	AccountID               string         `json:"accountId"`
	RequestID               string         `json:"requestId"`
	TransformID             string         `json:"transformId"`
	Params                  map[string]any `json:"params"`
	Fragment                map[string]any `json:"fragment"`
	TemplateParameterValues map[string]any `json:"templateParameterValues"`
}

// Resources returns the fragment's resource map, creating it when absent.
func (e *Event) Resources() map[string]any {
	if resources, ok := e.Fragment["Resources"].(map[string]any); ok {
		return resources
	}
	resources := map[string]any{}
	if e.Fragment == nil {
		e.Fragment = map[string]any{}
	}
	e.Fragment["Resources"] = resources
	return resources
}

// Response statuses. There is no partial success: the response carries either
// the fully mutated fragment or one concatenated error message.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Response is the transform result envelope.
type Response struct {
	RequestID    string         `json:"requestId"`
	Status       string         `json:"status"`
	Fragment     map[string]any `json:"fragment"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}
