package cfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatements_SingleObjectBecomesArray(t *testing.T) {
	doc := map[string]any{
		"Version":   "2012-10-17",
		"Statement": map[string]any{"Effect": "Allow", "Action": []any{"s3:GetObject"}, "Resource": "*"},
	}

	stmts := NormalizeStatements(doc)
	require.Len(t, stmts, 1)

	// Normalized in place: the document itself now carries the array form.
	arr, ok := doc["Statement"].([]any)
	require.True(t, ok)
	assert.Equal(t, stmts, arr)
}

func TestNormalizeStatements_ArrayUntouched(t *testing.T) {
	original := []any{map[string]any{"Effect": "Allow"}}
	doc := map[string]any{"Statement": original}

	stmts := NormalizeStatements(doc)
	assert.Equal(t, original, stmts)
}

func TestAppendStatement(t *testing.T) {
	doc := map[string]any{
		"Version":   "2012-10-17",
		"Statement": map[string]any{"Effect": "Allow", "Action": []any{"logs:PutLogEvents"}, "Resource": "*"},
	}

	AppendStatement(doc, PolicyStatement{
		Effect:   "Allow",
		Action:   []string{"xray:PutTraceSegments", "xray:PutTelemetryRecords"},
		Resource: []any{"*"},
	})

	stmts, ok := doc["Statement"].([]any)
	require.True(t, ok)
	require.Len(t, stmts, 2)
	added, ok := stmts[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"xray:PutTraceSegments", "xray:PutTelemetryRecords"}, added["Action"])
}

func TestNewPolicyDocument(t *testing.T) {
	doc := NewPolicyDocument(PolicyStatement{Effect: "Allow", Action: []string{"a:b"}, Resource: "*"})
	assert.Equal(t, "2012-10-17", doc["Version"])
	stmts, ok := doc["Statement"].([]any)
	require.True(t, ok)
	require.Len(t, stmts, 1)
}
