package mutate

import (
	"strings"

	"github.com/DataDog/serverless-macro-go/internal/graph"
)

// Tag keys the macro manages.
const (
	TagService = "service"
	TagEnv     = "env"
	TagVersion = "version"

	// TagMacroVersion marks a function as transformed and records the macro
	// version that did it.
	TagMacroVersion = "dd_sls_macro"
	// TagMacroBy records which tool authored the template.
	TagMacroBy = "dd_sls_macro_by"

	// samCreatedByTag is the marker SAM puts on resources it generates; its
	// presence is how SAM provenance is detected.
	samCreatedByTag = "lambda:createdBy"
)

// TagConfig carries the configured tag values.
type TagConfig struct {
	Service      string
	Env          string
	Version      string
	Extra        string // "key:value,key:value"
	MacroVersion string
}

// AddTags appends the configured tags to the function in fixed order:
// service, env, version, then the extra comma-separated pairs. A key already
// present on the function always wins. The macro-version marker and the
// provenance tag are upserted last regardless of configuration.
func AddTags(fn *graph.FunctionResource, cfg TagConfig) {
	tags := fn.Tags()

	if cfg.Service != "" {
		tags = appendTagIfAbsent(tags, TagService, cfg.Service)
	}
	if cfg.Env != "" {
		tags = appendTagIfAbsent(tags, TagEnv, cfg.Env)
	}
	if cfg.Version != "" {
		tags = appendTagIfAbsent(tags, TagVersion, cfg.Version)
	}

	for _, pair := range strings.Split(cfg.Extra, ",") {
		key, value, ok := strings.Cut(pair, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			// Malformed pairs are dropped, not reported.
			continue
		}
		tags = appendTagIfAbsent(tags, key, value)
	}

	tags = upsertTag(tags, TagMacroVersion, cfg.MacroVersion)
	tags = upsertTag(tags, TagMacroBy, provenance(tags))

	fn.SetTags(tags)
}

func provenance(tags []any) string {
	if _, ok := tagValue(tags, samCreatedByTag); ok {
		return "SAM"
	}
	return "CDK"
}

func tagValue(tags []any, key string) (string, bool) {
	for _, raw := range tags {
		tag, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if k, _ := tag["Key"].(string); k == key {
			v, _ := tag["Value"].(string)
			return v, true
		}
	}
	return "", false
}

func appendTagIfAbsent(tags []any, key, value string) []any {
	if _, exists := tagValue(tags, key); exists {
		return tags
	}
	return append(tags, map[string]any{"Key": key, "Value": value})
}

func upsertTag(tags []any, key, value string) []any {
	for _, raw := range tags {
		tag, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if k, _ := tag["Key"].(string); k == key {
			tag["Value"] = value
			return tags
		}
	}
	return append(tags, map[string]any{"Key": key, "Value": value})
}
