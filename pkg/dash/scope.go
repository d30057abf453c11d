package dash

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
	"github.com/devicelab-dev/dash-runner/pkg/wait"
)

// ScopeView emulates a generic scope page.
type ScopeView struct {
	node  core.Node
	input core.Input
	opts  Options
}

// Node returns the underlying node.
func (s *ScopeView) Node() core.Node {
	return s.node
}

// ID returns the scope's object name.
func (s *ScopeView) ID() (string, error) {
	return core.StringProperty(s.node, core.PropObjectName)
}

// Category waits for a category of the scope.
func (s *ScopeView) Category(ctx context.Context, name string) (core.Node, error) {
	cat, err := wait.SelectSingle(ctx, s.node, core.Select("Base", core.PropObjectName, categoryPrefix+name), s.opts.Wait)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, core.ErrTimeout) {
		return nil, err
	}
	notFound := core.ErrNotFound.WithMessagef("No category found with name %s", name)
	var ee *core.ExecutionError
	if errors.As(err, &ee) && ee.Cause != nil {
		notFound = notFound.WithCause(ee.Cause)
	}
	return nil, notFound
}

// ClickScopeItem clicks the card with the given title in a category.
func (s *ScopeView) ClickScopeItem(ctx context.Context, category, title string) error {
	logger.Action("click_scope_item", category, title)

	cat, err := s.Category(ctx, category)
	if err != nil {
		return err
	}
	card, err := wait.SelectSingle(ctx, cat, core.Select("AbstractButton", core.PropTitle, title), s.opts.Wait)
	if err != nil {
		return err
	}
	return clickObject(s.input, card)
}

// OpenPreview clicks an application card and waits for its preview to slide in.
func (s *ScopeView) OpenPreview(ctx context.Context, category, app string) (*Preview, error) {
	logger.Action("open_preview", category, app)

	if err := s.ClickScopeItem(ctx, category, app); err != nil {
		return nil, err
	}
	loader, err := wait.SelectSingle(ctx, s.node, core.Select("QQuickLoader", core.PropObjectName, nameSubPageLoader), s.opts.Wait)
	if err != nil {
		return nil, err
	}
	if err := wait.ForProperty(ctx, loader, core.PropSubPageShown, true, s.opts.Wait); err != nil {
		return nil, err
	}
	if err := wait.ForProperty(ctx, loader, core.PropX, 0, s.opts.Wait); err != nil {
		return nil, err
	}
	index, err := core.IntProperty(loader, core.PropCurrentIndex)
	if err != nil {
		return nil, err
	}
	node, err := loader.SelectSingle(core.Select("Preview", core.PropObjectName, fmt.Sprintf("preview%d", index)))
	if err != nil {
		return nil, err
	}
	return &Preview{node: node, index: index}, nil
}

type card struct {
	title  string
	name   string
	bounds core.Bounds
}

// Applications returns the titles of the cards shown above the category's
// seeAll control, in row then column order. The tool card and the seeAll
// control itself are excluded.
func (s *ScopeView) Applications(ctx context.Context, category string) ([]string, error) {
	cat, err := s.Category(ctx, category)
	if err != nil {
		return nil, err
	}
	seeAll, err := cat.SelectSingle(core.Select("AbstractButton", core.PropObjectName, nameSeeAll))
	if err != nil {
		return nil, err
	}
	limit, err := core.BoundsProperty(seeAll, core.PropGlobalRect)
	if err != nil {
		return nil, err
	}

	buttons, err := cat.SelectMany(core.Select("AbstractButton"))
	if err != nil {
		return nil, err
	}
	var cards []card
	for _, b := range buttons {
		bounds, err := core.BoundsProperty(b, core.PropGlobalRect)
		if err != nil {
			return nil, err
		}
		if bounds.Y >= limit.Y {
			continue
		}
		name, err := core.StringProperty(b, core.PropObjectName)
		if err != nil && !errors.Is(err, core.ErrUnknownProperty) {
			return nil, err
		}
		if name == nameToolCard || name == nameSeeAll {
			continue
		}
		title, err := core.StringProperty(b, core.PropTitle)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card{title: title, name: name, bounds: bounds})
	}

	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].bounds.Y != cards[j].bounds.Y {
			return cards[i].bounds.Y < cards[j].bounds.Y
		}
		return cards[i].bounds.X < cards[j].bounds.X
	})

	titles := make([]string, len(cards))
	for i, c := range cards {
		titles[i] = c.title
	}
	return titles, nil
}

// Preview is the detail page of a scope result.
type Preview struct {
	node  core.Node
	index int
}

// Node returns the underlying node.
func (p *Preview) Node() core.Node {
	return p.node
}

// Index returns the position of the previewed result in its model.
func (p *Preview) Index() int {
	return p.index
}

// Title returns the previewed result's title.
func (p *Preview) Title() (string, error) {
	return core.StringProperty(p.node, core.PropTitle)
}
