// Package cmd implements the latch command-line interface.
package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/latchhq/latch/pkg/buildinfo"
	"github.com/latchhq/latch/pkg/exitcode"
	"github.com/latchhq/latch/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newRootCommand creates a fresh root command instance. The factory keeps
// tests free of shared command-tree state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latch",
		Short: "Staged quality-gate runner for git hooks",
		Long: `Latch runs quality checks (format, build, test, unused code, duplicates,
version sync, custom shell tasks) as stages with dependencies, wired into
git lifecycle points.

Examples:
   latch run pre-commit          # Run the pre-commit stages
   latch run pre-push --fix      # Run pre-push, fixing what tasks can fix
   latch hooks init              # Write a starter manifest
   latch hooks install           # Install hook scripts into .git/hooks`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
		SilenceUsage: true,
	}

	// Accept underscore spellings (--log_level) for flag names.
	cmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "JSON output for logs and reports")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("latch {{.Version}}\n")

	return cmd
}

func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newHooksCommand())
	cmd.AddCommand(newVersionCommand())
}

var rootCmd = newRootCommand()

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var runErr *runExitError
		if errors.As(err, &runErr) {
			os.Exit(runErr.code)
		}
		logger.Error("command failed", logger.Err(err))
		os.Exit(exitcode.GeneralError)
	}
}

func initializeLogger(cmd *cobra.Command) {
	levelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	logger.Initialize(logger.Config{
		Level:     logger.ParseLevel(levelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "latch",
	})
}

func init() {
	registerSubcommands(rootCmd)
}
