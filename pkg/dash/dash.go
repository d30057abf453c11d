// Package dash provides emulators for the shell's Dash: the launcher surface
// that hosts scopes. Emulators translate user-level actions (open a scope,
// search, open a preview) into tree queries and synthetic input.
package dash

import (
	"context"
	"errors"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
	"github.com/devicelab-dev/dash-runner/pkg/wait"
)

// Object names exposed by the Dash.
const (
	nameContentList     = "dashContentList"
	nameContent         = "dashContent"
	namePageHeader      = "scopePageHeader"
	nameSearchButton    = "search_header_button"
	nameHeaderContainer = "headerContainer"
	nameSearchField     = "searchTextField"
	nameProcessing      = "processingIndicator"
	nameSubPageLoader   = "subPageLoader"
	nameSeeAll          = "seeAll"
	nameToolCard        = "cardToolCard"
	categoryPrefix      = "dashCategory"

	// DefaultScope is the scope holding installed applications.
	DefaultScope = "clickscope"
)

// Options configures the emulators.
type Options struct {
	Wait wait.Options
}

// App is the running Dash application.
type App struct {
	mainView core.Node
	dash     *Dash
}

// NewApp locates the main view and the Dash below root.
func NewApp(ctx context.Context, root core.Node, input core.Input, opts Options) (*App, error) {
	mainView, err := wait.SelectSingle(ctx, root, core.Select("MainView"), opts.Wait)
	if err != nil {
		return nil, err
	}
	node, err := wait.SelectSingle(ctx, mainView, core.Select("Dash"), opts.Wait)
	if err != nil {
		return nil, err
	}
	d, err := New(ctx, node, input, opts)
	if err != nil {
		return nil, err
	}
	return &App{mainView: mainView, dash: d}, nil
}

// MainView returns the application's main view.
func (a *App) MainView() core.Node {
	return a.mainView
}

// Dash returns the Dash emulator.
func (a *App) Dash() *Dash {
	return a.dash
}

// Dash emulates the launcher.
type Dash struct {
	node  core.Node
	list  core.Node
	input core.Input
	opts  Options
}

// New wraps a Dash node once its content list is available.
func New(ctx context.Context, node core.Node, input core.Input, opts Options) (*Dash, error) {
	list, err := wait.SelectSingle(ctx, node, core.Select("QQuickListView", core.PropObjectName, nameContentList), opts.Wait)
	if err != nil {
		return nil, err
	}
	return &Dash{node: node, list: list, input: input, opts: opts}, nil
}

// Node returns the underlying Dash node.
func (d *Dash) Node() core.Node {
	return d.node
}

// ContentList returns the list view holding one loader per scope.
func (d *Dash) ContentList() core.Node {
	return d.list
}

// Scope waits for the loader of a scope. An empty id selects DefaultScope.
func (d *Dash) Scope(ctx context.Context, id string) (core.Node, error) {
	if id == "" {
		id = DefaultScope
	}
	return wait.SelectSingle(ctx, d.list, core.Select("QQuickLoader", core.PropScopeID, id), d.opts.Wait)
}

// ApplicationsGrid returns the grid of local applications in the default scope.
func (d *Dash) ApplicationsGrid(ctx context.Context) (core.Node, error) {
	scope, err := d.Scope(ctx, DefaultScope)
	if err != nil {
		return nil, err
	}
	return wait.SelectSingle(ctx, scope, core.Select("CardGrid", core.PropObjectName, "local"), d.opts.Wait)
}

// ApplicationIcon returns the tile of an application in the applications grid.
func (d *Dash) ApplicationIcon(ctx context.Context, text string) (core.Node, error) {
	grid, err := d.ApplicationsGrid(ctx)
	if err != nil {
		return nil, err
	}
	view, err := wait.SelectSingle(ctx, grid, core.Select("ResponsiveGridView"), d.opts.Wait)
	if err != nil {
		return nil, err
	}
	return wait.SelectSingle(ctx, view, core.Select("Tile", core.PropText, text), d.opts.Wait)
}

// CurrentPageHeader returns the page header of the current scope.
// Loaders without an isCurrent property, such as sub page loaders, are skipped.
func (d *Dash) CurrentPageHeader() (core.Node, error) {
	loaders, err := d.list.SelectMany(core.Select("QQuickLoader"))
	if err != nil {
		return nil, err
	}
	for _, loader := range loaders {
		current, err := core.BoolProperty(loader, core.PropIsCurrent)
		if errors.Is(err, core.ErrUnknownProperty) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if current {
			return loader.SelectSingle(core.ByObjectName(namePageHeader))
		}
	}
	return nil, core.ErrNotFound.WithMessage("no current scope page header")
}

// EnterSearchQuery opens the search field of the current scope, types
// query and waits for the results to load.
func (d *Dash) EnterSearchQuery(ctx context.Context, query string) error {
	logger.Action("enter_search_query", query)

	header, err := d.CurrentPageHeader()
	if err != nil {
		return err
	}
	button, err := header.SelectSingle(core.ByObjectName(nameSearchButton))
	if err != nil {
		return err
	}
	x, y, err := buttonCenter(button)
	if err != nil {
		return err
	}
	if err := moveAndClick(d.input, x, y); err != nil {
		return err
	}

	container, err := header.SelectSingle(core.ByObjectName(nameHeaderContainer))
	if err != nil {
		return err
	}
	if err := wait.ForProperty(ctx, container, core.PropContentY, 0, d.opts.Wait); err != nil {
		return err
	}
	field, err := header.SelectSingle(core.ByObjectName(nameSearchField))
	if err != nil {
		return err
	}
	if err := clickObject(d.input, field); err != nil {
		return err
	}
	logger.Action("write", query)
	if err := d.input.Write(query); err != nil {
		return err
	}

	indicator, err := d.node.SelectSingle(core.ByObjectName(nameProcessing))
	if err != nil {
		return err
	}
	return wait.ForProperty(ctx, indicator, core.PropVisible, false, d.opts.Wait)
}

// buttonCenter computes the centre from globalRect origin and the item's
// width and height, falling back to the rectangle size.
func buttonCenter(n core.Node) (int, int, error) {
	b, err := core.BoundsProperty(n, core.PropGlobalRect)
	if err != nil {
		return 0, 0, err
	}
	w, err := core.IntProperty(n, core.PropWidth)
	if errors.Is(err, core.ErrUnknownProperty) {
		w = b.Width
	} else if err != nil {
		return 0, 0, err
	}
	h, err := core.IntProperty(n, core.PropHeight)
	if errors.Is(err, core.ErrUnknownProperty) {
		h = b.Height
	} else if err != nil {
		return 0, 0, err
	}
	return b.X + w/2, b.Y + h/2, nil
}
