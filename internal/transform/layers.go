package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DataDog/serverless-macro-go/internal/graph"
	"github.com/DataDog/serverless-macro-go/internal/mutate"
)

const (
	layerAccount         = "464622532012"
	layerAccountGovCloud = "002406178527"

	extensionLayerName = "Datadog-Extension"

	nodeWrapperHandler   = "/opt/nodejs/node_modules/datadog-lambda-js/handler.handler"
	pythonWrapperHandler = "datadog_lambda.handler.handler"

	envOriginalHandler = "DD_LAMBDA_HANDLER"
)

type runtimeFamily int

const (
	familyUnknown runtimeFamily = iota
	familyNode
	familyPython
)

var nodeLayerNames = map[string]string{
	"nodejs16.x": "Datadog-Node16-x",
	"nodejs18.x": "Datadog-Node18-x",
	"nodejs20.x": "Datadog-Node20-x",
	"nodejs22.x": "Datadog-Node22-x",
}

var pythonLayerNames = map[string]string{
	"python3.8":  "Datadog-Python38",
	"python3.9":  "Datadog-Python39",
	"python3.10": "Datadog-Python310",
	"python3.11": "Datadog-Python311",
	"python3.12": "Datadog-Python312",
	"python3.13": "Datadog-Python313",
}

func familyFor(runtime string) runtimeFamily {
	switch {
	case strings.HasPrefix(runtime, "nodejs"):
		return familyNode
	case strings.HasPrefix(runtime, "python"):
		return familyPython
	}
	return familyUnknown
}

func layerARN(region, name string, version int) string {
	account := layerAccount
	if strings.HasPrefix(region, "us-gov-") {
		account = layerAccountGovCloud
	}
	return fmt.Sprintf("arn:aws:lambda:%s:%s:layer:%s:%d", region, account, name, version)
}

// applyLayers injects the library layer, the extension layer, and the handler
// redirection for every function with a recognized runtime. Missing
// layer-version parameters are collected across all functions and reported as
// one error rather than failing on the first.
func (t *Transformer) applyLayers(g *graph.Graph) error {
	if !t.cfg.AddLayers {
		return nil
	}
	if t.cfg.ExtensionLayerVersion > 0 && t.cfg.APIKey == "" && t.cfg.APIKMSKey == "" {
		return errors.New("when the extension layer is enabled, apiKey or apiKMSKey must be set")
	}

	missing := map[string][]string{}
	for _, fn := range g.Functions {
		runtime := fn.Runtime()
		switch familyFor(runtime) {
		case familyNode:
			t.applyLibraryLayer(fn, nodeLayerNames[runtime], t.cfg.NodeLayerVersion,
				"nodeLayerVersion", nodeWrapperHandler, missing)
		case familyPython:
			name := pythonLayerNames[runtime]
			if name != "" && fn.Architecture() == graph.ArchARM64 {
				name += "-ARM"
			}
			t.applyLibraryLayer(fn, name, t.cfg.PythonLayerVersion,
				"pythonLayerVersion", pythonWrapperHandler, missing)
		default:
			continue
		}

		if t.cfg.ExtensionLayerVersion > 0 {
			name := extensionLayerName
			if fn.Architecture() == graph.ArchARM64 {
				name += "-ARM"
			}
			mutate.AddLayer(fn, layerARN(t.cfg.Region, name, t.cfg.ExtensionLayerVersion))
		}
	}

	if len(missing) == 0 {
		return nil
	}
	params := make([]string, 0, len(missing))
	for param := range missing {
		params = append(params, param)
	}
	sort.Strings(params)
	errs := make([]error, 0, len(params))
	for _, param := range params {
		keys := missing[param]
		sort.Strings(keys)
		errs = append(errs, fmt.Errorf("the %s parameter is required to instrument function(s) %s",
			param, strings.Join(keys, ", ")))
	}
	return errors.Join(errs...)
}

func (t *Transformer) applyLibraryLayer(fn *graph.FunctionResource, layerName string, version int, versionParam, wrapperHandler string, missing map[string][]string) {
	if layerName == "" {
		// Runtime family recognized but the exact version is not; leave the
		// function uninstrumented rather than guess a layer name.
		return
	}
	if version <= 0 {
		missing[versionParam] = append(missing[versionParam], fn.Key)
		return
	}

	mutate.AddLayer(fn, layerARN(t.cfg.Region, layerName, version))

	// Redirect the handler through the Datadog wrapper, keeping the original
	// reachable for the wrapper. Re-running leaves both untouched.
	if handler := fn.Handler(); handler != "" && handler != wrapperHandler {
		mutate.SetEnv(fn, envOriginalHandler, handler)
		fn.SetHandler(wrapperHandler)
	}
}
