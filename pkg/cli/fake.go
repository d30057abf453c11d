package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/dash-runner/pkg/fakeshell"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
)

var serveFakeCommand = &cli.Command{
	Name:  "serve-fake",
	Usage: "Serve a simulated shell over the bridge protocol",
	Description: `Start an in-memory Dash behind the introspection bridge API so flows
can be developed and tested without a running shell.

Examples:
  dash-runner serve-fake
  dash-runner serve-fake --addr 127.0.0.1:9600 --scopes scopes.yaml --latency 3`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Value: "127.0.0.1:9515",
			Usage: "Listen address",
		},
		&cli.StringFlag{
			Name:  "scopes",
			Usage: "YAML file listing scopes and their categories (default: built-in set)",
		},
		&cli.IntFlag{
			Name:  "latency",
			Value: 2,
			Usage: "Property reads before an animation settles",
		},
		&cli.IntFlag{
			Name:  "current",
			Usage: "Index of the initially current scope",
		},
	},
	Action: runServeFake,
}

func runServeFake(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	if err := settings.initLogging(""); err != nil {
		return err
	}
	defer logger.Close()

	var scopes []fakeshell.Scope
	if path := c.String("scopes"); path != "" {
		if scopes, err = loadScopes(path); err != nil {
			return err
		}
	}
	shell, err := fakeshell.New(fakeshell.Options{
		Scopes:  scopes,
		Current: c.Int("current"),
		Latency: c.Int("latency"),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           fakeshell.NewServer(shell).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signalContext(c.Context)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}()

	fmt.Printf("Simulated shell listening on http://%s (scopes: %v)\n", srv.Addr, shell.ScopeIDs())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loadScopes reads a scope list such as:
//
//	- id: clickscope
//	  categories:
//	    - name: local
//	      cards: [Browser, Camera]
//	      visible: 6
func loadScopes(path string) ([]fakeshell.Scope, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided scope file
	if err != nil {
		return nil, err
	}
	var scopes []fakeshell.Scope
	if err := yaml.Unmarshal(data, &scopes); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%s lists no scopes", path)
	}
	return scopes, nil
}
