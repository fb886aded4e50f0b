package cfn

// PolicyStatement is one IAM policy statement.
type PolicyStatement struct {
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource any      `json:"Resource"`
}

// Map returns the statement in template wire form.
func (s PolicyStatement) Map() map[string]any {
	actions := make([]any, len(s.Action))
	for i, a := range s.Action {
		actions[i] = a
	}
	return map[string]any{
		"Effect":   s.Effect,
		"Action":   actions,
		"Resource": s.Resource,
	}
}

// NormalizeStatements rewrites doc's Statement entry to array form in place
// and returns it. Templates legally carry either a single statement object or
// an array; normalizing once here keeps every call site on the array shape.
func NormalizeStatements(doc map[string]any) []any {
	switch stmt := doc["Statement"].(type) {
	case []any:
		return stmt
	case map[string]any:
		normalized := []any{stmt}
		doc["Statement"] = normalized
		return normalized
	case nil:
		normalized := []any{}
		doc["Statement"] = normalized
		return normalized
	}
	return nil
}

// AppendStatement normalizes doc's Statement to array form and appends s.
func AppendStatement(doc map[string]any, s PolicyStatement) {
	stmts := NormalizeStatements(doc)
	doc["Statement"] = append(stmts, s.Map())
}

// NewPolicyDocument builds a version 2012-10-17 policy document containing
// the given statements.
func NewPolicyDocument(statements ...PolicyStatement) map[string]any {
	stmts := make([]any, len(statements))
	for i, s := range statements {
		stmts[i] = s.Map()
	}
	return map[string]any{
		"Version":   "2012-10-17",
		"Statement": stmts,
	}
}
