package transform

import (
	"strconv"
	"strings"

	"github.com/DataDog/serverless-macro-go/internal/forwarder"
)

// Config is the fully resolved macro configuration. Resolution precedence,
// highest first: explicit transform parameters, the template's embedded
// Datadog mapping, process environment variables, defaults.
type Config struct {
	Region string

	AddLayers             bool
	APIKey                string
	APIKMSKey             string
	Site                  string
	LogLevel              string
	FlushMetricsToLogs    bool
	EnableEnhancedMetrics bool
	EnableXrayTracing     bool
	EnableDDTracing       bool
	EnableDDLogs          bool
	CaptureLambdaPayload  bool

	Service string
	Env     string
	Version string
	Tags    string

	NodeLayerVersion      int
	PythonLayerVersion    int
	ExtensionLayerVersion int

	ForwarderARN           string
	StackName              string
	MaxSubscriptionFilters int
}

// DefaultConfig returns the macro defaults.
func DefaultConfig() *Config {
	return &Config{
		AddLayers:              true,
		Site:                   "datadoghq.com",
		FlushMetricsToLogs:     true,
		EnableEnhancedMetrics:  true,
		EnableDDTracing:        true,
		EnableDDLogs:           true,
		MaxSubscriptionFilters: forwarder.DefaultMaxSubscriptions,
	}
}

// Environment variable fallbacks, consulted below mappings and parameters.
var envFallbacks = map[string]string{
	"DD_API_KEY":       "apiKey",
	"DD_KMS_API_KEY":   "apiKMSKey",
	"DD_SITE":          "site",
	"DD_LOG_LEVEL":     "logLevel",
	"DD_FORWARDER_ARN": "forwarderArn",
}

// ResolveConfig builds the configuration for one event. env abstracts
// os.Getenv for tests.
func ResolveConfig(event *Event, env func(string) string) *Config {
	cfg := DefaultConfig()
	cfg.Region = event.Region

	for envKey, paramKey := range envFallbacks {
		if value := env(envKey); value != "" {
			cfg.set(paramKey, value)
		}
	}

	if mappings, ok := event.Fragment["Mappings"].(map[string]any); ok {
		if datadog, ok := mappings["Datadog"].(map[string]any); ok {
			if params, ok := datadog["Parameters"].(map[string]any); ok {
				for key, value := range params {
					cfg.set(key, value)
				}
			}
		}
	}

	for key, value := range event.Params {
		cfg.set(key, value)
	}

	return cfg
}

func (c *Config) set(key string, value any) {
	switch key {
	case "addLayers":
		c.AddLayers = toBool(value, c.AddLayers)
	case "apiKey":
		c.APIKey = toString(value)
	case "apiKMSKey":
		c.APIKMSKey = toString(value)
	case "site":
		c.Site = toString(value)
	case "logLevel":
		c.LogLevel = toString(value)
	case "flushMetricsToLogs":
		c.FlushMetricsToLogs = toBool(value, c.FlushMetricsToLogs)
	case "enableEnhancedMetrics":
		c.EnableEnhancedMetrics = toBool(value, c.EnableEnhancedMetrics)
	case "enableXrayTracing":
		c.EnableXrayTracing = toBool(value, c.EnableXrayTracing)
	case "enableDDTracing":
		c.EnableDDTracing = toBool(value, c.EnableDDTracing)
	case "enableDDLogs":
		c.EnableDDLogs = toBool(value, c.EnableDDLogs)
	case "captureLambdaPayload":
		c.CaptureLambdaPayload = toBool(value, c.CaptureLambdaPayload)
	case "service":
		c.Service = toString(value)
	case "env":
		c.Env = toString(value)
	case "version":
		c.Version = toString(value)
	case "tags":
		c.Tags = toString(value)
	case "nodeLayerVersion":
		c.NodeLayerVersion = toInt(value, c.NodeLayerVersion)
	case "pythonLayerVersion":
		c.PythonLayerVersion = toInt(value, c.PythonLayerVersion)
	case "extensionLayerVersion":
		c.ExtensionLayerVersion = toInt(value, c.ExtensionLayerVersion)
	case "forwarderArn":
		c.ForwarderARN = toString(value)
	case "stackName":
		c.StackName = toString(value)
	case "maxSubscriptionFilters":
		c.MaxSubscriptionFilters = toInt(value, c.MaxSubscriptionFilters)
	}
}

func toString(value any) string {
	s, _ := value.(string)
	return s
}

// toBool tolerates the string forms templates carry.
func toBool(value any, fallback bool) bool {
	switch t := value.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(t) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return fallback
}

func toInt(value any, fallback int) int {
	switch t := value.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return fallback
}
