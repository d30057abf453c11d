package dash

import (
	"context"
	"errors"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
	"github.com/devicelab-dev/dash-runner/pkg/wait"
)

// Direction is the side of the current scope a target scope lies on.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// OpenScope scrolls the Dash until the scope with the given id is current.
// Opening the current scope issues no gesture.
func (d *Dash) OpenScope(ctx context.Context, id string) (*ScopeView, error) {
	logger.Action("open_scope", id)

	loader, err := d.list.SelectSingle(core.Select("QQuickLoader", core.PropScopeID, id))
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrNotFound.
			WithMessagef("No scope found with id %s", id).
			WithDetails(map[string]interface{}{"scopeId": id, "suggestions": d.suggestScopes(id)})
	}
	if err != nil {
		return nil, err
	}

	current, err := core.BoolProperty(loader, core.PropIsCurrent)
	if err != nil {
		return nil, err
	}
	if current {
		return d.scopeOf(loader)
	}

	dir, err := d.directionTo(loader)
	if err != nil {
		return nil, err
	}
	logger.Debug("scope %s is to the %s", id, dir)

	for {
		current, err := core.BoolProperty(loader, core.PropIsCurrent)
		if err != nil {
			return nil, err
		}
		if current {
			break
		}
		if err := d.scroll(ctx, dir); err != nil {
			return nil, err
		}
		if err := wait.ForProperty(ctx, d.list, core.PropMoving, false, d.opts.Wait); err != nil {
			return nil, err
		}
	}

	scope, err := d.scopeOf(loader)
	if err != nil {
		return nil, err
	}
	if err := wait.ForProperty(ctx, scope.node, core.PropIsCurrent, true, d.opts.Wait); err != nil {
		return nil, err
	}
	return scope, nil
}

// scopeOf returns the scope view a loader instantiated.
func (d *Dash) scopeOf(loader core.Node) (*ScopeView, error) {
	children, err := loader.Children()
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, core.ErrNotFound.WithMessage("scope loader has no scope view")
	}
	return &ScopeView{node: children[0], input: d.input, opts: d.opts}, nil
}

// directionTo compares the target loader's position with the current one.
func (d *Dash) directionTo(target core.Node) (Direction, error) {
	current, err := d.list.SelectSingle(core.Select("QQuickLoader", core.PropIsCurrent, true))
	if err != nil {
		return 0, err
	}
	tx, err := core.RectX(target, core.PropGlobalRect)
	if err != nil {
		return 0, err
	}
	cx, err := core.RectX(current, core.PropGlobalRect)
	if err != nil {
		return 0, err
	}
	switch {
	case tx < cx:
		return Left, nil
	case tx > cx:
		return Right, nil
	default:
		return 0, core.ErrAlreadyOpen.WithMessage("The scope is already open")
	}
}

// scroll flicks the content by one scope and waits for the index to follow.
func (d *Dash) scroll(ctx context.Context, dir Direction) error {
	orig, err := core.IntProperty(d.list, core.PropCurrentIndex)
	if err != nil {
		return err
	}
	content, err := d.node.SelectSingle(core.ByObjectName(nameContent))
	if err != nil {
		return err
	}
	b, err := core.BoundsProperty(content, core.PropGlobalRect)
	if err != nil {
		return err
	}

	startX := b.X + b.Width/3
	stopX := b.X + b.Width/3*2
	y := b.Y + 1
	want := orig - 1
	if dir == Right {
		startX, stopX = stopX, startX
		want = orig + 1
	}

	logger.Action("scroll_"+dir.String(), startX, y, stopX, y)
	if err := d.input.Drag(startX, y, stopX, y); err != nil {
		return err
	}
	return wait.ForProperty(ctx, d.list, core.PropCurrentIndex, want, d.opts.Wait)
}

// suggestScopes returns existing scope ids resembling id, closest first.
func (d *Dash) suggestScopes(id string) []string {
	loaders, err := d.list.SelectMany(core.Select("QQuickLoader"))
	if err != nil {
		return nil
	}
	var ids []string
	for _, loader := range loaders {
		scopeID, err := core.StringProperty(loader, core.PropScopeID)
		if err == nil {
			ids = append(ids, scopeID)
		}
	}
	return suggest(id, ids)
}

// suggest ranks candidates by fuzzy containment, then by edit distance.
func suggest(needle string, candidates []string) []string {
	ranks := fuzzy.RankFindNormalizedFold(needle, candidates)
	sort.Sort(ranks)
	seen := make(map[string]bool)
	var out []string
	for _, r := range ranks {
		if !seen[r.Target] {
			seen[r.Target] = true
			out = append(out, r.Target)
		}
	}
	for _, c := range candidates {
		if !seen[c] && fuzzy.LevenshteinDistance(needle, c) <= 3 {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
