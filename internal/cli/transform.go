package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/DataDog/serverless-macro-go/internal/forwarder"
	"github.com/DataDog/serverless-macro-go/internal/transform"
)

var (
	transformParams map[string]string
	transformRegion string
	transformOutput string
	transformDryRun bool
)

var transformCmd = &cobra.Command{
	Use:   "transform <template.json|template.yaml>",
	Short: "Transform a template file",
	Long: `Reads a CloudFormation template (JSON or YAML), applies the Datadog
instrumentation transform, and writes the mutated template as JSON.

Parameters take the same names the deployed macro accepts, e.g.:

  serverless-macro transform template.yaml \
    -P stackName=my-stack -P forwarderArn=arn:aws:lambda:... \
    -P nodeLayerVersion=112 -P extensionLayerVersion=62 -P apiKey=...`,
	Args: cobra.ExactArgs(1),
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().StringToStringVarP(&transformParams, "param", "P", nil, "Macro parameter (format: key=value)")
	transformCmd.Flags().StringVar(&transformRegion, "region", "us-east-1", "Region used for layer ARNs and API calls")
	transformCmd.Flags().StringVarP(&transformOutput, "output", "o", "", "Write the transformed template to a file instead of stdout")
	transformCmd.Flags().BoolVar(&transformDryRun, "dry-run", false, "Skip live log group reconciliation")
}

func runTransform(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	template, err := readTemplate(args[0])
	if err != nil {
		return err
	}

	params := make(map[string]any, len(transformParams))
	for key, value := range transformParams {
		params[key] = value
	}

	event := &transform.Event{
		Region:   transformRegion,
		Params:   params,
		Fragment: template,
	}

	var logs forwarder.LogsAPI
	if !transformDryRun {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(transformRegion))
		if err != nil {
			return fmt.Errorf("unable to load SDK config: %w", err)
		}
		logs = cloudwatchlogs.NewFromConfig(cfg)
	}

	resp := transform.Handle(ctx, event, os.Getenv, logs)
	if resp.Status != transform.StatusSuccess {
		return fmt.Errorf("transform failed: %s", resp.ErrorMessage)
	}

	out, err := json.MarshalIndent(resp.Fragment, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	out = append(out, '\n')

	if transformOutput == "" {
		cmd.OutOrStdout().Write(out)
		return nil
	}
	if err := os.WriteFile(transformOutput, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", transformOutput, err)
	}
	return nil
}

// readTemplate decodes a JSON or YAML template file into a raw map.
func readTemplate(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	var template map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to parse YAML template: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to parse JSON template: %w", err)
		}
	}
	return template, nil
}
