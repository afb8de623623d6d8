package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/waypoint/pkg/ports"
)

// Document implements ports.Document over an in-memory set of elements.
// Selectors are matched literally: an element added as `#save` is found by
// querying `#save` and nothing else. Safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	elements map[string]*node
	children map[int]childObserver
	styles   map[int]styleObserver
	nextID   int
	queries  int
}

type node struct {
	visible bool
	style   map[string]string
	attrs   map[string]string
	clicks  int
	onClick func()
}

type childObserver struct {
	root string
	fn   func()
}

type styleObserver struct {
	selector string
	fn       func()
}

// ElementOption configures an element when it is added.
type ElementOption func(*node)

// Hidden adds the element without layout space.
func Hidden() ElementOption {
	return func(n *node) { n.visible = false }
}

// WithStyle sets an inline style property on the new element.
func WithStyle(property, value string) ElementOption {
	return func(n *node) { n.style[property] = value }
}

// WithAttribute sets an attribute on the new element.
func WithAttribute(name, value string) ElementOption {
	return func(n *node) { n.attrs[name] = value }
}

// OnClick runs fn whenever the element is clicked.
func OnClick(fn func()) ElementOption {
	return func(n *node) { n.onClick = fn }
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{
		elements: make(map[string]*node),
		children: make(map[int]childObserver),
		styles:   make(map[int]styleObserver),
	}
}

// Add inserts (or replaces) the element matching selector and notifies child observers.
func (d *Document) Add(selector string, opts ...ElementOption) {
	n := &node{visible: true, style: make(map[string]string), attrs: make(map[string]string)}
	for _, opt := range opts {
		opt(n)
	}

	d.mu.Lock()
	d.elements[selector] = n
	fns := d.childFns()
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Remove deletes the element matching selector and notifies child observers.
func (d *Document) Remove(selector string) {
	d.mu.Lock()
	_, ok := d.elements[selector]
	delete(d.elements, selector)
	fns := d.childFns()
	d.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range fns {
		fn()
	}
}

// SetVisible toggles layout visibility of an existing element.
func (d *Document) SetVisible(selector string, visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.elements[selector]; ok {
		n.visible = visible
	}
}

// SetAttribute sets an attribute on an existing element.
func (d *Document) SetAttribute(selector, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.elements[selector]; ok {
		n.attrs[name] = value
	}
}

// SetStyle writes an inline style property and notifies style observers of
// that element, the way a third-party overlay mutates the page.
func (d *Document) SetStyle(selector, property, value string) {
	d.mu.Lock()
	n, ok := d.elements[selector]
	if ok {
		n.style[property] = value
	}
	fns := d.styleFns(selector)
	d.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range fns {
		fn()
	}
}

// Style returns the inline value of property, or "".
func (d *Document) Style(selector, property string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.elements[selector]; ok {
		return n.style[property]
	}
	return ""
}

// Has reports whether an element matches selector.
func (d *Document) Has(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.elements[selector]
	return ok
}

// Clicks returns how many times the element was clicked.
func (d *Document) Clicks(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.elements[selector]; ok {
		return n.clicks
	}
	return 0
}

// Selectors returns the selectors of all elements, sorted.
func (d *Document) Selectors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.elements))
	for s := range d.elements {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Subscriptions returns the number of live child and style observers.
func (d *Document) Subscriptions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.children) + len(d.styles)
}

// ChildSubscriptions returns the number of live child observers.
func (d *Document) ChildSubscriptions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.children)
}

// Queries returns how many times Query was called.
func (d *Document) Queries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries
}

// Query implements ports.Document.
func (d *Document) Query(ctx context.Context, selector string) (ports.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries++
	if _, ok := d.elements[selector]; !ok {
		return nil, nil
	}
	return &element{doc: d, selector: selector}, nil
}

// ObserveChildren implements ports.Document. The root is recorded but every
// insertion or removal notifies every observer.
func (d *Document) ObserveChildren(ctx context.Context, root string, fn func()) (ports.Unsubscribe, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.children[id] = childObserver{root: root, fn: fn}
	return d.release(func() { delete(d.children, id) }), nil
}

// ObserveStyle implements ports.Document.
func (d *Document) ObserveStyle(ctx context.Context, selector string, fn func()) (ports.Unsubscribe, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.styles[id] = styleObserver{selector: selector, fn: fn}
	return d.release(func() { delete(d.styles, id) }), nil
}

// InlineStyle implements ports.Document.
func (d *Document) InlineStyle(ctx context.Context, selector, property string) (string, error) {
	return d.Style(selector, property), nil
}

// RemoveStyleProperty implements ports.Document.
func (d *Document) RemoveStyleProperty(ctx context.Context, selector, property string) error {
	d.mu.Lock()
	n, ok := d.elements[selector]
	changed := false
	if ok {
		_, changed = n.style[property]
		delete(n.style, property)
	}
	fns := d.styleFns(selector)
	d.mu.Unlock()

	if changed {
		for _, fn := range fns {
			fn()
		}
	}
	return nil
}

func (d *Document) release(remove func()) ports.Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			remove()
		})
	}
}

// childFns must be called with d.mu held.
func (d *Document) childFns() []func() {
	fns := make([]func(), 0, len(d.children))
	for _, o := range d.children {
		fns = append(fns, o.fn)
	}
	return fns
}

// styleFns must be called with d.mu held.
func (d *Document) styleFns(selector string) []func() {
	var fns []func()
	for _, o := range d.styles {
		if o.selector == selector {
			fns = append(fns, o.fn)
		}
	}
	return fns
}

type element struct {
	doc      *Document
	selector string
}

func (e *element) Selector() string { return e.selector }

func (e *element) Visible(ctx context.Context) (bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	n, ok := e.doc.elements[e.selector]
	return ok && n.visible, nil
}

func (e *element) Click(ctx context.Context) error {
	e.doc.mu.Lock()
	n, ok := e.doc.elements[e.selector]
	var fn func()
	if ok {
		n.clicks++
		fn = n.onClick
	}
	e.doc.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	n, ok := e.doc.elements[e.selector]
	if !ok {
		return "", false, nil
	}
	v, ok := n.attrs[name]
	return v, ok, nil
}
