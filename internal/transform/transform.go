package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/DataDog/serverless-macro-go/internal/forwarder"
	"github.com/DataDog/serverless-macro-go/internal/graph"
	"github.com/DataDog/serverless-macro-go/internal/logging"
	"github.com/DataDog/serverless-macro-go/internal/mutate"
	"github.com/DataDog/serverless-macro-go/internal/stepfunctions"
	"github.com/DataDog/serverless-macro-go/internal/tracing"
)

// Transformer runs one macro invocation over one resource graph. Passes run
// strictly sequentially; only the subscription reconciler performs I/O.
type Transformer struct {
	cfg  *Config
	logs forwarder.LogsAPI
}

// New builds a transformer. logs may be nil when subscription reconciliation
// is disabled (no forwarder configured, or a dry run).
func New(cfg *Config, logs forwarder.LogsAPI) *Transformer {
	return &Transformer{cfg: cfg, logs: logs}
}

// Apply mutates the resource map in place. A non-nil error means the whole
// transform failed; template mutations made before the failure are discarded
// by the caller, but live API mutations already performed are not rolled
// back.
func (t *Transformer) Apply(ctx context.Context, resources map[string]any) error {
	g := graph.Build(resources)

	if err := t.applyLayers(g); err != nil {
		return err
	}

	for _, fn := range g.Functions {
		t.applyEnvironment(fn)
		mutate.AddTags(fn, mutate.TagConfig{
			Service:      t.cfg.Service,
			Env:          t.cfg.Env,
			Version:      t.cfg.Version,
			Extra:        t.cfg.Tags,
			MacroVersion: MacroVersion,
		})
	}

	mode := tracing.ModeFor(t.cfg.EnableXrayTracing, t.cfg.EnableDDTracing)
	if mode != tracing.ModeNone {
		for _, fn := range g.Functions {
			if err := tracing.Apply(g, fn, mode); err != nil {
				return err
			}
		}
	}
	if mode == tracing.ModeDDTrace || mode == tracing.ModeHybrid {
		for _, sm := range g.StateMachines {
			t.rewriteStateMachine(sm)
		}
	}

	if t.cfg.ForwarderARN != "" && t.logs != nil {
		reconciler := forwarder.New(t.logs, t.cfg.ForwarderARN, t.cfg.StackName, t.cfg.MaxSubscriptionFilters)
		if err := reconciler.Reconcile(ctx, g); err != nil {
			return err
		}
	}

	return nil
}

// applyEnvironment wires the Datadog configuration variables. Everything is
// set-if-absent except the log level, which always follows configuration.
func (t *Transformer) applyEnvironment(fn *graph.FunctionResource) {
	cfg := t.cfg
	if cfg.APIKey != "" {
		mutate.SetEnv(fn, "DD_API_KEY", cfg.APIKey)
	}
	if cfg.APIKMSKey != "" {
		mutate.SetEnv(fn, "DD_KMS_API_KEY", cfg.APIKMSKey)
	}
	mutate.SetEnv(fn, "DD_SITE", cfg.Site)
	mutate.SetEnv(fn, "DD_FLUSH_TO_LOG", fmt.Sprintf("%t", cfg.FlushMetricsToLogs))
	mutate.SetEnv(fn, "DD_ENHANCED_METRICS", fmt.Sprintf("%t", cfg.EnableEnhancedMetrics))
	mutate.SetEnv(fn, "DD_SERVERLESS_LOGS_ENABLED", fmt.Sprintf("%t", cfg.EnableDDLogs))
	mutate.SetEnv(fn, "DD_CAPTURE_LAMBDA_PAYLOAD", fmt.Sprintf("%t", cfg.CaptureLambdaPayload))
	if cfg.LogLevel != "" {
		mutate.SetEnv(fn, mutate.EnvLogLevel, cfg.LogLevel)
	}
}

// rewriteStateMachine injects trace context into one state machine's
// definition. Unsupported shapes degrade that one resource only.
func (t *Transformer) rewriteStateMachine(sm *graph.StateMachineResource) {
	raw := sm.Definition()
	if raw == nil {
		return
	}
	rewritten, err := stepfunctions.Rewrite(raw)
	var rewriteErr *stepfunctions.RewriteError
	if errors.As(err, &rewriteErr) {
		logging.Warn("skipping trace context injection for state machine",
			"stateMachine", sm.Key, "reason", rewriteErr.Error())
		return
	}
	sm.SetDefinition(rewritten)
}

// Handle resolves configuration for one event, applies the transform, and
// wraps the outcome in the response envelope. There is no partial success.
func Handle(ctx context.Context, event *Event, env func(string) string, logs forwarder.LogsAPI) *Response {
	cfg := ResolveConfig(event, env)
	t := New(cfg, logs)

	if err := t.Apply(ctx, event.Resources()); err != nil {
		logging.Error("transform failed", "error", err)
		return &Response{
			RequestID:    event.RequestID,
			Status:       StatusFailure,
			Fragment:     event.Fragment,
			ErrorMessage: err.Error(),
		}
	}
	return &Response{
		RequestID: event.RequestID,
		Status:    StatusSuccess,
		Fragment:  event.Fragment,
	}
}
