// Package engine defines the browser automation surface the scenario runner
// consumes, together with the playwright-go implementation of it.
package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrTimeout is wrapped by every error caused by an engine-side timeout.
var ErrTimeout = errors.New("engine: timeout")

// ReadyState is a document readiness condition.
type ReadyState string

const (
	ReadyCommit           ReadyState = "commit"
	ReadyDOMContentLoaded ReadyState = "domcontentloaded"
	ReadyLoad             ReadyState = "load"
	ReadyNetworkIdle      ReadyState = "networkidle"
)

// Valid reports whether s is a known readiness condition.
func (s ReadyState) Valid() bool {
	switch s {
	case ReadyCommit, ReadyDOMContentLoaded, ReadyLoad, ReadyNetworkIdle:
		return true
	default:
		return false
	}
}

// LocatorKind selects how a Locator is resolved.
type LocatorKind string

const (
	ByRole        LocatorKind = "role"
	ByText        LocatorKind = "text"
	ByLabel       LocatorKind = "label"
	ByPlaceholder LocatorKind = "placeholder"
	ByTestID      LocatorKind = "testid"
	ByCSS         LocatorKind = "css"
	ByXPath       LocatorKind = "xpath"
)

// Valid reports whether k is a known locator kind.
func (k LocatorKind) Valid() bool {
	switch k {
	case ByRole, ByText, ByLabel, ByPlaceholder, ByTestID, ByCSS, ByXPath:
		return true
	default:
		return false
	}
}

// Locator is a reference to a UI element.
//
// For ByRole, Value is the ARIA role and Name the accessible name. For every
// other kind, Value is the text, label, placeholder, test id or selector.
// Nth picks the n-th match; the first match is used by default.
type Locator struct {
	Kind  LocatorKind
	Value string
	Name  string
	Exact bool
	Nth   int
}

// WithExact returns a copy of l that only matches the whole string.
func (l Locator) WithExact() Locator {
	l.Exact = true
	return l
}

// WithNth returns a copy of l that picks the n-th match (0-based).
func (l Locator) WithNth(n int) Locator {
	l.Nth = n
	return l
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Kind == "" && l.Value == "" && l.Name == ""
}

// String describes the locator for logs and failure messages.
func (l Locator) String() string {
	var b strings.Builder
	switch l.Kind {
	case ByRole:
		b.WriteString("role=")
		b.WriteString(l.Value)
		if l.Name != "" {
			b.WriteString("[name=")
			b.WriteString(strconv.Quote(l.Name))
			b.WriteString("]")
		}
	case ByCSS, ByXPath:
		b.WriteString(string(l.Kind))
		b.WriteString("=")
		b.WriteString(l.Value)
	default:
		b.WriteString(string(l.Kind))
		b.WriteString("=")
		b.WriteString(strconv.Quote(l.Value))
	}
	if l.Exact {
		b.WriteString(" exact")
	}
	if l.Nth > 0 {
		fmt.Fprintf(&b, " >> nth=%d", l.Nth)
	}
	return b.String()
}

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Headless bool
	Args     []string
}

// ContextOptions configures an isolated browsing context.
type ContextOptions struct {
	ViewportWidth     int
	ViewportHeight    int
	DefaultTimeout    time.Duration
	NavigationTimeout time.Duration
}

// GotoOptions configures a primary navigation.
type GotoOptions struct {
	WaitUntil ReadyState
	Timeout   time.Duration
}

// Driver acquires an engine handle.
type Driver interface {
	Start() (Engine, error)
}

// Engine is a running automation engine.
type Engine interface {
	Launch(opts LaunchOptions) (Browser, error)
	Stop() error
}

// Browser is a launched browser instance.
type Browser interface {
	NewContext(opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated browsing context with its own cookies and storage.
type Context interface {
	NewPage() (Page, error)
	Close() error
}

// Page is a navigable document view.
type Page interface {
	Goto(url string, opts GotoOptions) error
	WaitForLoadState(state ReadyState, timeout time.Duration) error
	Frames() []Frame
	Locate(loc Locator) Element
	Screenshot() ([]byte, error)
	URL() string
	Title() (string, error)
}

// Frame is a document embedded in a page, including the main frame.
type Frame interface {
	URL() string
	WaitForLoadState(state ReadyState, timeout time.Duration) error
}

// Element is a lazily resolved UI element. Every method resolves the
// locator again and waits up to timeout.
type Element interface {
	Click(timeout time.Duration) error
	Fill(value string, timeout time.Duration) error
	Select(value string, timeout time.Duration) error
	WaitVisible(timeout time.Duration) error
	WaitHidden(timeout time.Duration) error
}
