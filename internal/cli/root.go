// Package cli implements the serverless-macro command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/DataDog/serverless-macro-go/internal/logging"
	"github.com/DataDog/serverless-macro-go/internal/transform"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "serverless-macro",
	Short: "Inject Datadog instrumentation into serverless CloudFormation templates",
	Long: `serverless-macro rewrites a CloudFormation template fragment in place,
adding Datadog layers, environment variables, tags, tracing wiring, and
log-forwarder subscriptions without disturbing what the template already
declares.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the macro version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(transform.MacroVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
