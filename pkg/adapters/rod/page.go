package rod

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

const binding = "__waypointNotify"

// instrument installs one MutationObserver for child-list and inline style
// changes plus history hooks. Everything is reported through the exposed binding.
const instrument = `() => {
	if (window.__waypointObserver) return true;
	const notify = (kind, selector) => {
		try { window.` + binding + `({kind, selector}); } catch (e) {}
	};
	window.__waypointStyles = window.__waypointStyles || new Set();

	const obs = new MutationObserver((mutations) => {
		let children = false;
		const styled = new Set();
		for (const m of mutations) {
			if (m.type === 'childList') {
				children = true;
			} else if (m.type === 'attributes' && m.target.matches) {
				for (const s of window.__waypointStyles) {
					try { if (m.target.matches(s)) styled.add(s); } catch (e) {}
				}
			}
		}
		if (children) notify('children', '');
		styled.forEach((s) => notify('style', s));
	});
	obs.observe(document.documentElement, { childList: true, subtree: true, attributes: true, attributeFilter: ['style'] });
	window.__waypointObserver = obs;

	let lastRoute = location.pathname + location.search;
	const route = () => {
		const r = location.pathname + location.search;
		if (r === lastRoute) return;
		lastRoute = r;
		notify('route', r);
	};
	for (const k of ['pushState', 'replaceState']) {
		const orig = history[k];
		history[k] = function (...args) {
			const r = orig.apply(this, args);
			route();
			return r;
		};
	}
	window.addEventListener('popstate', route);
	return true;
}`

type observer struct {
	kind     string
	selector string
	fn       func()
}

// Page adapts a rod page to ports.Document, ports.Navigator and ports.RouteWatcher.
type Page struct {
	page   *rod.Page
	logger *slog.Logger

	mu        sync.Mutex
	observers map[int]observer
	routes    map[chan string]struct{}
	nextID    int
	cleanup   []func() error
}

// Option configures a Page.
type Option func(*Page)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Page) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPage instruments page. The instrumentation survives full reloads.
func NewPage(ctx context.Context, page *rod.Page, opts ...Option) (*Page, error) {
	p := &Page{
		page:      page,
		logger:    logging.NewNop(),
		observers: make(map[int]observer),
		routes:    make(map[chan string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	stop, err := page.Expose(binding, func(arg gson.JSON) (interface{}, error) {
		p.dispatch(arg.Get("kind").Str(), arg.Get("selector").Str())
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("expose binding: %w", err)
	}
	p.cleanup = append(p.cleanup, stop)

	remove, err := page.EvalOnNewDocument("(" + instrument + ")()")
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("install instrumentation: %w", err)
	}
	p.cleanup = append(p.cleanup, remove)

	if _, err := p.eval(ctx, instrument); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("instrument page: %w", err)
	}
	return p, nil
}

// Rod returns the underlying page.
func (p *Page) Rod() *rod.Page {
	return p.page
}

// Close removes the instrumentation hooks. The tab stays open.
func (p *Page) Close() error {
	p.mu.Lock()
	cleanup := p.cleanup
	p.cleanup = nil
	p.observers = make(map[int]observer)
	p.mu.Unlock()

	var first error
	for _, fn := range cleanup {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *Page) eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

// dispatch runs on rod's event goroutine; callbacks are moved off it because
// they may evaluate scripts themselves.
func (p *Page) dispatch(kind, selector string) {
	p.mu.Lock()
	var fns []func()
	switch kind {
	case "route":
		for ch := range p.routes {
			select {
			case ch <- selector:
			default:
			}
		}
	default:
		for _, o := range p.observers {
			if o.kind == kind && (kind == "children" || o.selector == selector) {
				fns = append(fns, o.fn)
			}
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		go fn()
	}
}

func (p *Page) observe(kind, selector string, fn func()) ports.Unsubscribe {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.observers[id] = observer{kind: kind, selector: selector, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.observers, id)
		})
	}
}

// Query implements ports.Document.
func (p *Page) Query(ctx context.Context, selector string) (ports.Element, error) {
	v, err := p.eval(ctx, `(s) => document.querySelector(s) !== null`, selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	if !v.Bool() {
		return nil, nil
	}
	return &element{page: p, selector: selector}, nil
}

// ObserveChildren implements ports.Document. Mutations anywhere in the
// document notify; root is informational.
func (p *Page) ObserveChildren(ctx context.Context, root string, fn func()) (ports.Unsubscribe, error) {
	return p.observe("children", "", fn), nil
}

// ObserveStyle implements ports.Document.
func (p *Page) ObserveStyle(ctx context.Context, selector string, fn func()) (ports.Unsubscribe, error) {
	if _, err := p.eval(ctx, `(s) => { (window.__waypointStyles = window.__waypointStyles || new Set()).add(s); return true; }`, selector); err != nil {
		return nil, fmt.Errorf("observe style %s: %w", selector, err)
	}
	return p.observe("style", selector, fn), nil
}

// InlineStyle implements ports.Document.
func (p *Page) InlineStyle(ctx context.Context, selector, property string) (string, error) {
	v, err := p.eval(ctx, `(s, prop) => {
		const el = document.querySelector(s);
		return el ? el.style.getPropertyValue(prop) : '';
	}`, selector, property)
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

// RemoveStyleProperty implements ports.Document.
func (p *Page) RemoveStyleProperty(ctx context.Context, selector, property string) error {
	_, err := p.eval(ctx, `(s, prop) => {
		const el = document.querySelector(s);
		if (el) el.style.removeProperty(prop);
		return true;
	}`, selector, property)
	return err
}

// CurrentRoute implements ports.Navigator.
func (p *Page) CurrentRoute(ctx context.Context) (string, error) {
	v, err := p.eval(ctx, `() => location.pathname + location.search`)
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

// Navigate implements ports.Navigator with client-side history navigation,
// which single-page routers pick up through popstate.
func (p *Page) Navigate(ctx context.Context, route string, opts ports.NavigateOptions) error {
	_, err := p.eval(ctx, `(r, replace) => {
		if (replace) history.replaceState(history.state, '', r);
		else history.pushState(null, '', r);
		window.dispatchEvent(new PopStateEvent('popstate', { state: history.state }));
		return true;
	}`, route, opts.Replace)
	return err
}

// WatchRoutes implements ports.RouteWatcher.
func (p *Page) WatchRoutes(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 8)
	p.mu.Lock()
	p.routes[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.routes, ch)
		p.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

type element struct {
	page     *Page
	selector string
}

func (e *element) Selector() string { return e.selector }

// Visible matches the layout check of the tour overlay: a non-empty box that
// is neither display:none nor visibility:hidden.
func (e *element) Visible(ctx context.Context) (bool, error) {
	v, err := e.page.eval(ctx, `(s) => {
		const el = document.querySelector(s);
		if (!el) return false;
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		return r.width > 0 && r.height > 0 && st.display !== 'none' && st.visibility !== 'hidden';
	}`, e.selector)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func (e *element) Click(ctx context.Context) error {
	el, err := e.page.page.Context(ctx).Element(e.selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.page.eval(ctx, `(s, name) => {
		const el = document.querySelector(s);
		return el ? el.getAttribute(name) : null;
	}`, e.selector, name)
	if err != nil {
		return "", false, err
	}
	if v.Nil() {
		return "", false, nil
	}
	return v.Str(), true, nil
}
