// Package cli provides the command-line interface for dash-runner.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/dash-runner/pkg/bridge"
	"github.com/devicelab-dev/dash-runner/pkg/config"
	"github.com/devicelab-dev/dash-runner/pkg/dash"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
	"github.com/devicelab-dev/dash-runner/pkg/wait"
)

// Version is set at build time.
var Version = "dev"

// DefaultBridgeURL is where the introspection bridge listens unless told otherwise.
const DefaultBridgeURL = "http://127.0.0.1:9515"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "bridge-url",
		Aliases: []string{"b"},
		Usage:   "Introspection bridge address (http://host:port or unix:///path)",
		EnvVars: []string{"DASH_BRIDGE_URL"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to workspace config.yaml (default: <home>/config.yaml)",
		EnvVars: []string{"DASH_RUNNER_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write the log to this file",
		EnvVars: []string{"DASH_RUNNER_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"DASH_RUNNER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
	&cli.IntFlag{
		Name:    "wait-timeout",
		Usage:   "Budget in ms for each wait on the UI tree",
		EnvVars: []string{"DASH_WAIT_TIMEOUT"},
	},
	&cli.IntFlag{
		Name:    "poll-interval",
		Usage:   "Pause in ms between polls of the UI tree",
		EnvVars: []string{"DASH_POLL_INTERVAL"},
	},
}

// NewApp builds the command-line application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "dash-runner",
		Usage:   "Drive and test the shell's Dash over the introspection bridge",
		Version: Version,
		Description: `dash-runner emulates a user of the Dash: it opens scopes, searches,
opens previews and lists applications by querying the shell's UI tree
and injecting pointer events through the introspection bridge.

Examples:
  dash-runner run flows/
  dash-runner open-scope musicaggregator
  dash-runner list-apps local
  dash-runner serve-fake --addr 127.0.0.1:9515`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
			reportCommand,
			openScopeCommand,
			searchCommand,
			listAppsCommand,
			openPreviewCommand,
			hierarchyCommand,
			serveFakeCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Settings are the workspace config merged with the global flags.
type Settings struct {
	Config    *config.Config
	BridgeURL string
	Wait      wait.Options
}

// loadSettings reads the workspace config and applies flag overrides.
func loadSettings(c *cli.Context) (*Settings, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.GetHome())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("wait-timeout") {
		cfg.WaitTimeoutMs = c.Int("wait-timeout")
	}
	if c.IsSet("poll-interval") {
		cfg.PollIntervalMs = c.Int("poll-interval")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Settings{
		Config:    cfg,
		BridgeURL: cfg.BridgeURL,
		Wait:      cfg.WaitOptions(),
	}
	if c.IsSet("bridge-url") {
		s.BridgeURL = c.String("bridge-url")
	}
	if s.BridgeURL == "" {
		s.BridgeURL = DefaultBridgeURL
	}
	return s, nil
}

// initLogging opens the configured log file, or fallback when none is
// configured. Without either the log goes to stderr.
func (s *Settings) initLogging(fallback string) error {
	level, err := logger.ParseLevel(s.Config.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	path := s.Config.LogFile
	if path == "" {
		path = fallback
	}
	if path == "" {
		logger.InitWriter(os.Stderr)
		return nil
	}
	return logger.Init(path)
}

// session is a live connection to the shell through the bridge.
type session struct {
	client *bridge.Client
	app    *dash.App
}

// connect opens a bridge session and locates the Dash.
func connect(ctx context.Context, s *Settings) (*session, error) {
	client := bridge.Dial(s.BridgeURL)

	readyCtx, cancel := context.WithTimeout(ctx, s.Wait.Timeout)
	defer cancel()
	if err := client.WaitReady(readyCtx, s.Wait.Interval); err != nil {
		return nil, fmt.Errorf("bridge %s: %w", s.BridgeURL, err)
	}
	if err := client.CreateSession(bridge.Capabilities{Application: "unity8-dash"}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	logger.Info("bridge session %s on %s", client.SessionID(), s.BridgeURL)

	root, err := client.Root()
	if err != nil {
		client.Close()
		return nil, err
	}
	app, err := dash.NewApp(ctx, root, client, dash.Options{Wait: s.Wait})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("locate Dash: %w", err)
	}
	return &session{client: client, app: app}, nil
}

// Close ends the bridge session.
func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		logger.Warn("close session: %v", err)
	}
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// waitBudget formats the wait budget for banners.
func waitBudget(o wait.Options) string {
	return fmt.Sprintf("%s (poll %s)", o.Timeout.Round(time.Millisecond), o.Interval.Round(time.Millisecond))
}
