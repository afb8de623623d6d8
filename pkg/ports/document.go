package ports

import "context"

// Unsubscribe releases an observation. It is safe to call more than once.
type Unsubscribe func()

// Element is a handle to a node found in the document.
type Element interface {
	// Selector returns the selector the element was found with.
	Selector() string

	// Visible reports whether the element currently takes up layout space.
	Visible(ctx context.Context) (bool, error)

	// Click dispatches a primary click on the element.
	Click(ctx context.Context) error

	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
}

// Document is the page the tour runs against.
type Document interface {
	// Query returns the first element matching selector, or (nil, nil) when
	// nothing matches.
	Query(ctx context.Context, selector string) (Element, error)

	// ObserveChildren calls fn whenever nodes are added or removed anywhere
	// under the element matching root (the whole document when root is empty).
	ObserveChildren(ctx context.Context, root string, fn func()) (Unsubscribe, error)

	// ObserveStyle calls fn whenever the inline style attribute of the element
	// matching selector changes.
	ObserveStyle(ctx context.Context, selector string, fn func()) (Unsubscribe, error)

	// InlineStyle returns the inline value of property on the element matching
	// selector, or "" when unset or when the element does not exist.
	InlineStyle(ctx context.Context, selector, property string) (string, error)

	// RemoveStyleProperty removes an inline style property. Missing elements
	// are not an error.
	RemoveStyleProperty(ctx context.Context, selector, property string) error
}
