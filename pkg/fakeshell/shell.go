// Package fakeshell provides an in-memory simulation of the Dash for testing
// without a running shell.
//
// The simulated tree follows the object names the Dash exposes over
// introspection. Gestures animate: after a drag, click or key press the
// affected observables settle only after Latency property reads, so callers
// must wait for them the same way they would on a real shell.
package fakeshell

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/tree"
)

// Layout constants in pixels.
const (
	headerHeight   = 120
	toolCardHeight = 60
	seeAllHeight   = 60
	cardHeight     = 200
	categoryGap    = 20
)

// Category is a group of cards inside a scope.
type Category struct {
	Name string `yaml:"name"`
	// Cards are card titles in model order.
	Cards []string `yaml:"cards"`
	// Columns per grid row (0 = 3).
	Columns int `yaml:"columns"`
	// Visible is the number of cards shown above the seeAll control while
	// the category is collapsed. 0 shows all cards.
	Visible int `yaml:"visible"`
}

// Scope is one page of the Dash.
type Scope struct {
	ID         string     `yaml:"id"`
	Categories []Category `yaml:"categories"`
}

// Options configures the simulated shell.
type Options struct {
	Scopes  []Scope
	Current int // Index of the initially current scope
	Width   int // Screen width (0 = 720)
	Height  int // Screen height (0 = 1280)
	// Latency is the number of property reads before an animation settles.
	Latency int
}

// DefaultScopes returns the scope set used by serve-fake and the tests.
func DefaultScopes() []Scope {
	return []Scope{
		{ID: "clickscope", Categories: []Category{
			{Name: "local", Cards: []string{"Browser", "Calculator", "Camera", "Clock", "Gallery", "Messaging", "Music", "Settings"}, Visible: 6},
			{Name: "store", Cards: []string{"Ubuntu Store"}},
		}},
		{ID: "musicaggregator", Categories: []Category{
			{Name: "recent", Cards: []string{"Blue Train", "So What", "Naima"}},
		}},
		{ID: "videoaggregator", Categories: []Category{
			{Name: "featured", Cards: []string{"Big Buck Bunny", "Sintel"}},
		}},
		{ID: "newsscope", Categories: []Category{
			{Name: "headlines", Cards: []string{"Morning", "Evening"}},
		}},
	}
}

// Gesture is one synthetic input event received by the shell.
type Gesture struct {
	Kind           string // move, click, drag or write
	X1, Y1, X2, Y2 int
	Text           string
	// FromIndex and ToIndex record the scope index change a drag started.
	// Both equal the current index when the drag did not change scope.
	FromIndex, ToIndex int
}

// animation applies a state change after a number of reads.
type animation struct {
	remaining int
	apply     func()
}

type scopeState struct {
	searchOpen bool
	subPage    int // -1 when no preview is shown
	subLoader  *tree.Element
	preview    *tree.Element
}

// Shell is the simulated Dash. It is safe for concurrent use.
type Shell struct {
	mu sync.Mutex

	opts   Options
	root   *tree.Element
	byID   map[string]*tree.Element
	nextID int

	// owner maps every element below a scope loader to the scope index
	owner     map[*tree.Element]int
	dynamic   map[*tree.Element]map[string]func() interface{}
	overrides map[*tree.Element]map[string]interface{}
	actions   map[*tree.Element]func()

	current    int
	moving     bool
	processing bool
	focus      *tree.Element
	typed      map[*tree.Element]string
	scopes     []*scopeState
	pending    []*animation

	pointerX, pointerY int
	gestures           []Gesture
}

// New builds a simulated shell.
func New(opts Options) (*Shell, error) {
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes()
	}
	if opts.Width <= 0 {
		opts.Width = 720
	}
	if opts.Height <= 0 {
		opts.Height = 1280
	}
	if opts.Current < 0 || opts.Current >= len(opts.Scopes) {
		return nil, core.ErrInvalidConfig.WithMessagef("current scope index %d out of range", opts.Current)
	}
	seen := make(map[string]bool)
	for _, sc := range opts.Scopes {
		if sc.ID == "" {
			return nil, core.ErrInvalidConfig.WithMessage("scope id must not be empty")
		}
		if seen[sc.ID] {
			return nil, core.ErrInvalidConfig.WithMessagef("duplicate scope id %q", sc.ID)
		}
		seen[sc.ID] = true
	}

	s := &Shell{
		opts:      opts,
		byID:      make(map[string]*tree.Element),
		owner:     make(map[*tree.Element]int),
		dynamic:   make(map[*tree.Element]map[string]func() interface{}),
		overrides: make(map[*tree.Element]map[string]interface{}),
		actions:   make(map[*tree.Element]func()),
		typed:     make(map[*tree.Element]string),
		current:   opts.Current,
	}
	s.build()
	return s, nil
}

func (s *Shell) newElement(typeName string) *tree.Element {
	s.nextID++
	e := tree.NewElement(strconv.Itoa(s.nextID), typeName)
	s.byID[e.ID] = e
	return e
}

func (s *Shell) setDynamic(e *tree.Element, name string, placeholder interface{}, fn func() interface{}) {
	if s.dynamic[e] == nil {
		s.dynamic[e] = make(map[string]func() interface{})
	}
	s.dynamic[e][name] = fn
	// The static value only lists the property for snapshots.
	e.Set(name, placeholder)
}

func (s *Shell) build() {
	w, h := s.opts.Width, s.opts.Height
	screen := core.Bounds{Width: w, Height: h}

	s.root = s.newElement("QQuickView").Set(core.PropObjectName, "shell").Set(core.PropGlobalRect, screen)
	mainView := s.newElement("MainView").Set(core.PropGlobalRect, screen)
	dash := s.newElement("Dash").Set(core.PropObjectName, "dash").Set(core.PropGlobalRect, screen)
	content := s.newElement("DashContent").Set(core.PropObjectName, "dashContent").Set(core.PropGlobalRect, screen)
	list := s.newElement("QQuickListView").Set(core.PropObjectName, "dashContentList").Set(core.PropGlobalRect, screen)
	s.setDynamic(list, core.PropCurrentIndex, 0, func() interface{} { return s.current })
	s.setDynamic(list, core.PropMoving, false, func() interface{} { return s.moving })

	indicator := s.newElement("ActivityIndicator").Set(core.PropObjectName, "processingIndicator")
	s.setDynamic(indicator, core.PropVisible, false, func() interface{} { return s.processing })

	for i, sc := range s.opts.Scopes {
		list.Append(s.buildScope(i, sc))
	}

	content.Append(list)
	dash.Append(content, indicator)
	mainView.Append(dash)
	s.root.Append(mainView)
}

func (s *Shell) buildScope(idx int, sc Scope) *tree.Element {
	w := s.opts.Width
	state := &scopeState{subPage: -1}
	s.scopes = append(s.scopes, state)

	isCurrent := func() interface{} { return s.current == idx }

	loader := s.newElement("QQuickLoader").
		Set(core.PropScopeID, sc.ID).
		Set(core.PropGlobalRect, core.Bounds{Width: w, Height: s.opts.Height})
	s.setDynamic(loader, core.PropIsCurrent, false, isCurrent)

	view := s.newElement("GenericScopeView").
		Set(core.PropObjectName, sc.ID).
		Set(core.PropGlobalRect, core.Bounds{Width: w, Height: s.opts.Height})
	s.setDynamic(view, core.PropIsCurrent, false, isCurrent)

	// Page header with the search entry
	header := s.newElement("PageHeader").
		Set(core.PropObjectName, "scopePageHeader").
		Set(core.PropGlobalRect, core.Bounds{Width: w, Height: headerHeight})
	container := s.newElement("Flickable").
		Set(core.PropObjectName, "headerContainer").
		Set(core.PropGlobalRect, core.Bounds{Width: w, Height: headerHeight})
	s.setDynamic(container, core.PropContentY, headerHeight, func() interface{} {
		if state.searchOpen {
			return 0
		}
		return headerHeight
	})
	button := s.newElement("AbstractButton").
		Set(core.PropObjectName, "search_header_button").
		Set(core.PropGlobalRect, core.Bounds{X: w - 100, Y: 20, Width: 80, Height: 80}).
		Set(core.PropWidth, 80).
		Set(core.PropHeight, 80)
	field := s.newElement("TextField").
		Set(core.PropObjectName, "searchTextField").
		Set(core.PropGlobalRect, core.Bounds{X: 20, Y: 20, Width: w - 140, Height: 80})
	s.setDynamic(field, core.PropText, "", func() interface{} { return s.typed[field] })

	s.actions[button] = func() {
		s.animate(func() {
			state.searchOpen = true
			s.focus = field
		})
	}
	s.actions[field] = func() {
		s.focus = field
	}
	header.Append(container.Append(button, field))
	view.Append(header)

	// Categories
	y := headerHeight + categoryGap
	for _, cat := range sc.Categories {
		var catElem *tree.Element
		catElem, y = s.buildCategory(idx, state, cat, y)
		view.Append(catElem)
	}

	// Preview sub page
	sub := s.newElement("QQuickLoader").Set(core.PropObjectName, "subPageLoader")
	state.subLoader = sub
	s.setDynamic(sub, core.PropSubPageShown, false, func() interface{} { return state.subPage >= 0 })
	s.setDynamic(sub, core.PropX, w, func() interface{} {
		if state.subPage >= 0 {
			return 0
		}
		return w
	})
	s.setDynamic(sub, core.PropCurrentIndex, -1, func() interface{} { return state.subPage })
	view.Append(sub)

	loader.Append(view)
	for _, e := range tree.Flatten(loader) {
		s.owner[e] = idx
	}
	return loader
}

// buildCategory lays out a category starting at y and returns it with the
// y coordinate below it. Grid delegates are appended column by column, so
// tree order differs from visual order.
func (s *Shell) buildCategory(scopeIdx int, state *scopeState, cat Category, y int) (*tree.Element, int) {
	w := s.opts.Width
	cols := cat.Columns
	if cols <= 0 {
		cols = 3
	}
	visible := cat.Visible
	if visible <= 0 || visible > len(cat.Cards) {
		visible = len(cat.Cards)
	}
	cardWidth := w / cols
	top := y

	base := s.newElement("Base").Set(core.PropObjectName, "dashCategory"+cat.Name)

	tool := s.newElement("AbstractButton").
		Set(core.PropObjectName, "cardToolCard").
		Set(core.PropTitle, cat.Name).
		Set(core.PropGlobalRect, core.Bounds{X: 0, Y: y, Width: w, Height: toolCardHeight})
	y += toolCardHeight

	grid := s.newElement("CardGrid").Set(core.PropObjectName, cat.Name)
	view := s.newElement("ResponsiveGridView")

	rows := func(n int) int { return (n + cols - 1) / cols }
	seeAllY := y + rows(visible)*cardHeight

	rects := make([]core.Bounds, len(cat.Cards))
	for i := range cat.Cards {
		rowTop := y
		n := i
		if i >= visible {
			rowTop = seeAllY + seeAllHeight
			n = i - visible
		}
		rects[i] = core.Bounds{X: (n % cols) * cardWidth, Y: rowTop + (n/cols)*cardHeight, Width: cardWidth, Height: cardHeight}
	}

	cards := make([]*tree.Element, len(cat.Cards))
	for i, title := range cat.Cards {
		card := s.newElement("AbstractButton").
			Set(core.PropObjectName, fmt.Sprintf("delegate%d", i)).
			Set(core.PropTitle, title).
			Set(core.PropGlobalRect, rects[i])
		tile := s.newElement("Tile").
			Set(core.PropText, title).
			Set(core.PropGlobalRect, rects[i])
		card.Append(tile)
		cards[i] = card

		index, cardTitle := i, title
		s.actions[card] = func() {
			s.showPreview(state, index, cardTitle)
		}
	}
	for col := 0; col < cols; col++ {
		for i := col; i < len(cards); i += cols {
			view.Append(cards[i])
		}
	}
	grid.Append(view)

	seeAll := s.newElement("AbstractButton").
		Set(core.PropObjectName, "seeAll").
		Set(core.PropTitle, "See all").
		Set(core.PropGlobalRect, core.Bounds{X: 0, Y: seeAllY, Width: w, Height: seeAllHeight})

	y = seeAllY + seeAllHeight + rows(len(cat.Cards)-visible)*cardHeight
	base.Set(core.PropGlobalRect, core.Bounds{X: 0, Y: top, Width: w, Height: y - top})
	base.Append(tool, grid, seeAll)
	return base, y + categoryGap
}

// showPreview opens the preview sub page for the card at index.
func (s *Shell) showPreview(state *scopeState, index int, title string) {
	s.animate(func() {
		if state.preview != nil {
			removeChild(state.subLoader, state.preview)
			delete(s.byID, state.preview.ID)
		}
		preview := s.newElement("Preview").
			Set(core.PropObjectName, fmt.Sprintf("preview%d", index)).
			Set(core.PropTitle, title)
		state.subLoader.Append(preview)
		s.owner[preview] = s.owner[state.subLoader]
		state.preview = preview
		state.subPage = index
	})
}

func removeChild(parent, child *tree.Element) {
	for i, c := range parent.Children {
		if c == child {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
}

// animate schedules apply after Latency reads, or runs it now.
// Must be called with s.mu held.
func (s *Shell) animate(apply func()) {
	if s.opts.Latency <= 0 {
		apply()
		return
	}
	s.pending = append(s.pending, &animation{remaining: s.opts.Latency, apply: apply})
}

// tick advances running animations by one read. Must be called with s.mu held.
func (s *Shell) tick() {
	if len(s.pending) == 0 {
		return
	}
	var running []*animation
	for _, a := range s.pending {
		a.remaining--
		if a.remaining <= 0 {
			a.apply()
			continue
		}
		running = append(running, a)
	}
	s.pending = running
}

// resolve reads a property with dynamic values and overrides applied.
// Must be called with s.mu held.
func (s *Shell) resolve(e *tree.Element, name string) (interface{}, bool) {
	if v, ok := s.overrides[e][name]; ok {
		return v, true
	}
	if fn, ok := s.dynamic[e][name]; ok {
		return fn(), true
	}
	v, ok := e.Props[name]
	if !ok {
		return nil, false
	}
	if name == core.PropGlobalRect {
		if idx, owned := s.owner[e]; owned {
			if b, isBounds := v.(core.Bounds); isBounds {
				b.X += (idx - s.current) * s.opts.Width
				return b, true
			}
		}
	}
	return v, true
}

// Root returns the root node of the tree.
func (s *Shell) Root() core.Node {
	return &node{shell: s, elem: s.root}
}

// Lookup returns the node with the given ID.
func (s *Shell) Lookup(id string) (core.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &node{shell: s, elem: e}, true
}

// Source renders the live tree as an XML snapshot.
func (s *Shell) Source() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.Render(s.root, s.resolve)
}

// Override pins a property of the single element matching q to value.
// Tests use it to stage inconsistent states a real shell can report.
func (s *Shell) Override(q core.Query, name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := tree.Find(s.root, q, s.resolve)
	if len(matches) != 1 {
		return fmt.Errorf("override %s: %d elements match", q, len(matches))
	}
	e := matches[0]
	if s.overrides[e] == nil {
		s.overrides[e] = make(map[string]interface{})
	}
	s.overrides[e][name] = value
	return nil
}

// CurrentIndex returns the index of the current scope.
func (s *Shell) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ScopeIDs returns the scope ids in page order.
func (s *Shell) ScopeIDs() []string {
	ids := make([]string, len(s.opts.Scopes))
	for i, sc := range s.opts.Scopes {
		ids[i] = sc.ID
	}
	return ids
}

// Gestures returns a copy of the gesture log.
func (s *Shell) Gestures() []Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Gesture(nil), s.gestures...)
}

// Drags returns only the drag gestures.
func (s *Shell) Drags() []Gesture {
	var drags []Gesture
	for _, g := range s.Gestures() {
		if g.Kind == "drag" {
			drags = append(drags, g)
		}
	}
	return drags
}
