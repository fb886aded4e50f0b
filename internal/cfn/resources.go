package cfn

// Resource type identifiers the macro recognizes in a template fragment.
const (
	TypeLambdaFunction         = "AWS::Lambda::Function"
	TypeServerlessFunction     = "AWS::Serverless::Function"
	TypeStateMachine           = "AWS::StepFunctions::StateMachine"
	TypeServerlessStateMachine = "AWS::Serverless::StateMachine"
	TypeIAMRole                = "AWS::IAM::Role"
	TypeLogGroup               = "AWS::Logs::LogGroup"
	TypeSubscriptionFilter     = "AWS::Logs::SubscriptionFilter"
)

// ResourceType returns the Type field of a raw resource declaration.
func ResourceType(resource map[string]any) string {
	t, _ := resource["Type"].(string)
	return t
}

// ResourceProperties returns the Properties map of a raw resource
// declaration, creating it when absent so callers can mutate through it.
func ResourceProperties(resource map[string]any) map[string]any {
	if props, ok := resource["Properties"].(map[string]any); ok {
		return props
	}
	props := map[string]any{}
	resource["Properties"] = props
	return props
}
