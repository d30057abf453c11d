package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/dash-runner/pkg/executor"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
	"github.com/devicelab-dev/dash-runner/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenario flows against the Dash",
	ArgsUsage: "<flow file or folder>...",
	Description: `Run one or more YAML scenario flows. Folders are searched recursively.
Without arguments the flows listed in the workspace config are run.

Examples:
  dash-runner run flows/
  dash-runner run --include-tags smoke -e USER=alice flows/
  dash-runner run --output ./out --flatten login.yaml`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment variables (KEY=VALUE)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only run flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Skip flows with these tags",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Report directory (a timestamped folder is created inside)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Write the report directly into --output",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip the remaining flows after the first failure",
		},
		&cli.StringFlag{
			Name:  "scope",
			Usage: "Default scope for steps and flows that name none",
		},
	},
	Action: runFlows,
}

// RunConfig holds the settings of one run command.
type RunConfig struct {
	FlowPaths   []string
	Env         map[string]string
	IncludeTags []string
	ExcludeTags []string
	OutputDir   string
	StopOnFail  bool
	Scope       string
}

func runFlows(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	cfg := settings.Config

	paths := c.Args().Slice()
	if len(paths) == 0 {
		paths = cfg.Flows
	}
	if len(paths) == 0 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	outputDir, err := resolveOutputDir(c.String("output"), cfg.ReportDir(), c.Bool("flatten"))
	if err != nil {
		return err
	}

	// CLI env overrides workspace config env
	env := make(map[string]string)
	for k, v := range cfg.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	rc := &RunConfig{
		FlowPaths:   paths,
		Env:         env,
		IncludeTags: firstNonEmpty(c.StringSlice("include-tags"), cfg.IncludeTags),
		ExcludeTags: firstNonEmpty(c.StringSlice("exclude-tags"), cfg.ExcludeTags),
		OutputDir:   outputDir,
		StopOnFail:  c.Bool("stop-on-fail"),
		Scope:       c.String("scope"),
	}
	if rc.Scope == "" {
		rc.Scope = cfg.DefaultScope
	}

	ctx, stop := signalContext(c.Context)
	defer stop()
	return executeRun(ctx, settings, rc)
}

// resolveOutputDir determines the output directory based on flags.
//   - No --output: <base>/<timestamp>/
//   - --output given: <output>/<timestamp>/
//   - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output, base string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = base
	}
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func executeRun(ctx context.Context, settings *Settings, rc *RunConfig) error {
	result := validator.New(rc.IncludeTags, rc.ExcludeTags).Validate(rc.FlowPaths...)
	if !result.IsValid() {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %s✗%s %v\n", color(colorRed), color(colorReset), e)
		}
		return fmt.Errorf("%d flow file(s) failed validation", len(result.Errors))
	}
	if len(result.Flows) == 0 {
		return fmt.Errorf("no flows to run (check paths and tag filters)")
	}

	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := settings.initLogging(filepath.Join(rc.OutputDir, "dash-runner.log")); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", rc.OutputDir)
	logger.Info("Bridge: %s, wait %s", settings.BridgeURL, waitBudget(settings.Wait))

	fmt.Printf("%sdash-runner %s%s  %d flow(s) via %s\n",
		color(colorBold), Version, color(colorReset), len(result.Flows), settings.BridgeURL)

	sess, err := connect(ctx, settings)
	if err != nil {
		return err
	}
	defer sess.Close()

	runner := executor.New(sess.app, executor.RunnerConfig{
		OutputDir:      rc.OutputDir,
		StopOnFail:     rc.StopOnFail,
		RunnerVersion:  Version,
		BridgeURL:      settings.BridgeURL,
		SessionID:      sess.client.SessionID(),
		DefaultScope:   rc.Scope,
		Env:            rc.Env,
		Hierarchy:      sess.client,
		OnFlowStart:    onFlowStart,
		OnStepComplete: onStepComplete,
		OnNestedStep:   onNestedStep,
		OnFlowEnd:      onFlowEnd,
	})
	runResult, err := runner.Run(ctx, result.Flows)
	if err != nil {
		return err
	}

	printSummary(runResult)
	if runResult.FailedFlows > 0 {
		return fmt.Errorf("%d of %d flow(s) failed", runResult.FailedFlows, runResult.TotalFlows)
	}
	return nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

func firstNonEmpty(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
