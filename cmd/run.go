package cmd

import (
	"fmt"
	"os"

	"github.com/latchhq/latch/internal/config"
	"github.com/latchhq/latch/internal/gitctx"
	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/internal/runner"
	"github.com/latchhq/latch/pkg/buildinfo"
	"github.com/latchhq/latch/pkg/exitcode"
	"github.com/latchhq/latch/pkg/logger"
	"github.com/spf13/cobra"
)

// runExitError carries a non-zero hook exit code through cobra without
// printing a second error message.
type runExitError struct {
	code int
}

func (e *runExitError) Error() string {
	return exitcode.String(e.code)
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pre-commit|pre-push|ci>",
		Short: "Run the stages configured for a lifecycle point",
		Args:  cobra.ExactArgs(1),
		RunE:  runHook,
	}
	cmd.Flags().Bool("fix", false, "Let fixable tasks repair findings before checking")
	cmd.Flags().String("scope", "", "File scope: staged, changed, diff, or all (default depends on hook)")
	cmd.Flags().BoolP("verbose", "v", false, "Stream task output line by line")
	cmd.SilenceErrors = true
	return cmd
}

func runHook(cmd *cobra.Command, args []string) error {
	ht, err := hook.ParseType(args[0])
	if err != nil {
		return err
	}

	fix, _ := cmd.Flags().GetBool("fix")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOut, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	scopeStr, _ := cmd.Flags().GetString("scope")

	scope := defaultScope(ht)
	if scopeStr != "" {
		scope, err = hook.ParseScope(scopeStr)
		if err != nil {
			return err
		}
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	settings, err := config.LoadSettings(root)
	if err != nil {
		logger.Error("invalid settings", logger.Err(err))
		return &runExitError{code: exitcode.ConfigError}
	}
	if settings.Verbose {
		verbose = true
	}

	manifest, err := config.LoadManifest(root)
	if err != nil {
		logger.Error("invalid manifest", logger.Err(err))
		return &runExitError{code: exitcode.ConfigError}
	}

	registry, err := runner.BuildRegistry(settings, manifest)
	if err != nil {
		logger.Error("building task registry", logger.Err(err))
		return &runExitError{code: exitcode.ConfigError}
	}

	hctx := gitctx.BuildContext(root, ht, scope, verbose)
	hr := runner.New(registry, buildinfo.BinaryVersion)
	code := hr.Execute(cmd.Context(), hctx, manifest, runner.Options{
		Fix:     fix,
		JSON:    jsonOut,
		NoColor: noColor,
		Workers: runner.WorkersFor(settings.ConcurrencyPercent),
		Out:     cmd.OutOrStdout(),
	})
	if code != exitcode.Success {
		return &runExitError{code: code}
	}
	return nil
}

// defaultScope picks the file scope a lifecycle usually wants: staged content
// before a commit, everything otherwise.
func defaultScope(ht hook.Type) hook.Scope {
	if ht == hook.PreCommit {
		return hook.ScopeStaged
	}
	return hook.ScopeAll
}
