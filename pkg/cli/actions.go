package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/dash"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
)

var openScopeCommand = &cli.Command{
	Name:      "open-scope",
	Usage:     "Scroll the Dash to a scope",
	ArgsUsage: "<scope id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("scope id is required")
		}
		return withDash(c, func(ctx context.Context, d *dash.Dash) error {
			if _, err := d.OpenScope(ctx, id); err != nil {
				return explain(err)
			}
			fmt.Printf("%s✓%s scope %s is current\n", color(colorGreen), color(colorReset), id)
			return nil
		})
	},
}

var searchCommand = &cli.Command{
	Name:      "search",
	Usage:     "Search in a scope",
	ArgsUsage: "<query>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "scope", Usage: "Scope to search in (default: current scope)"},
	},
	Action: func(c *cli.Context) error {
		query := strings.Join(c.Args().Slice(), " ")
		if query == "" {
			return fmt.Errorf("search query is required")
		}
		return withDash(c, func(ctx context.Context, d *dash.Dash) error {
			if scope := c.String("scope"); scope != "" {
				if _, err := d.OpenScope(ctx, scope); err != nil {
					return explain(err)
				}
			}
			if err := d.EnterSearchQuery(ctx, query); err != nil {
				return explain(err)
			}
			fmt.Printf("%s✓%s searched for %q\n", color(colorGreen), color(colorReset), query)
			return nil
		})
	},
}

var listAppsCommand = &cli.Command{
	Name:      "list-apps",
	Usage:     "List the applications shown in a category",
	ArgsUsage: "<category>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "scope", Value: dash.DefaultScope, Usage: "Scope holding the category"},
	},
	Action: func(c *cli.Context) error {
		category := c.Args().First()
		if category == "" {
			return fmt.Errorf("category is required")
		}
		return withDash(c, func(ctx context.Context, d *dash.Dash) error {
			scope, err := d.OpenScope(ctx, c.String("scope"))
			if err != nil {
				return explain(err)
			}
			apps, err := scope.Applications(ctx, category)
			if err != nil {
				return explain(err)
			}
			for _, app := range apps {
				fmt.Println(app)
			}
			return nil
		})
	},
}

var openPreviewCommand = &cli.Command{
	Name:      "open-preview",
	Usage:     "Open the preview of a result",
	ArgsUsage: "<category> <title>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "scope", Value: dash.DefaultScope, Usage: "Scope holding the category"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return fmt.Errorf("category and title are required")
		}
		category := c.Args().Get(0)
		title := strings.Join(c.Args().Slice()[1:], " ")
		return withDash(c, func(ctx context.Context, d *dash.Dash) error {
			scope, err := d.OpenScope(ctx, c.String("scope"))
			if err != nil {
				return explain(err)
			}
			preview, err := scope.OpenPreview(ctx, category, title)
			if err != nil {
				return explain(err)
			}
			shown, err := preview.Title()
			if err != nil {
				return err
			}
			fmt.Printf("%s✓%s preview of %q (result %d)\n", color(colorGreen), color(colorReset), shown, preview.Index())
			return nil
		})
	},
}

// withDash connects to the shell and runs fn against its Dash.
func withDash(c *cli.Context, fn func(ctx context.Context, d *dash.Dash) error) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	if err := settings.initLogging(""); err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signalContext(c.Context)
	defer stop()

	sess, err := connect(ctx, settings)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(ctx, sess.app.Dash())
}

// explain adds the suggestions carried by a lookup error to its message.
func explain(err error) error {
	var ee *core.ExecutionError
	if !errors.As(err, &ee) {
		return err
	}
	suggestions, _ := ee.Details["suggestions"].([]string)
	if len(suggestions) == 0 {
		return err
	}
	return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(suggestions, ", "))
}
