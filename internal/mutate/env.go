package mutate

import "github.com/DataDog/serverless-macro-go/internal/graph"

// EnvLogLevel is the one environment key the macro always overwrites. A log
// level left behind by an earlier macro version must follow the current
// configuration; every other key the user set wins.
const EnvLogLevel = "DD_LOG_LEVEL"

// SetEnv sets key on the function's environment unless the user (or a
// previous macro run) already set it. EnvLogLevel is the documented
// always-overwrite exception.
func SetEnv(fn *graph.FunctionResource, key string, value any) {
	env := fn.Environment()
	if _, exists := env[key]; exists && key != EnvLogLevel {
		return
	}
	env[key] = value
}

// OverwriteEnv sets key unconditionally.
func OverwriteEnv(fn *graph.FunctionResource, key string, value any) {
	fn.Environment()[key] = value
}

// HasEnv reports whether the function already declares key.
func HasEnv(fn *graph.FunctionResource, key string) bool {
	_, exists := fn.Environment()[key]
	return exists
}
