// Package enginetest provides an in-memory engine for exercising the
// scenario runner without a browser.
//
// The fake models a site as a set of visible elements per URL. Elements are
// keyed by engine.Locator.String(). Clicking an element can reveal further
// elements or navigate to another URL.
package enginetest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/clinicprobe/internal/engine"
)

// Key returns the element key of loc.
func Key(loc engine.Locator) string {
	return loc.String()
}

// Driver is a scripted engine.Driver. Configure the exported fields before
// the first Start; inspect Events and the counters afterwards.
type Driver struct {
	// Site model
	Pages           map[string][]string // URL -> visible element keys after navigation
	Reveal          map[string][]string // clicked element key -> keys that become visible
	Hide            map[string][]string // clicked element key -> keys that disappear
	NavigateOnClick map[string]string   // clicked element key -> URL loaded afterwards
	Frames          []string            // child frame URLs reported by every page

	// Failure injection
	StartErr        error
	LaunchErr       error
	ContextErr      error
	PageErr         error
	GotoErr         map[string]error // URL -> primary navigation error
	PageLoadErr     error            // page readiness wait error
	FrameLoadErr    map[string]error // frame URL -> readiness wait error
	ScreenshotErr   error
	CloseContextErr error
	CloseBrowserErr error
	StopErr         error
	PanicOnClick    string // element key whose click panics

	// OnEvent is called after every recorded event, outside the lock.
	OnEvent func(event string)

	mu            sync.Mutex
	events        []string
	filled        map[string]string
	lastLaunch    engine.LaunchOptions
	lastContext   engine.ContextOptions
	starts        int
	stops         int
	browserCloses int
	contextCloses int
}

func (d *Driver) record(event string) {
	d.mu.Lock()
	d.events = append(d.events, event)
	hook := d.OnEvent
	d.mu.Unlock()
	if hook != nil {
		hook(event)
	}
}

// Events returns a copy of the recorded event log.
func (d *Driver) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// Filled returns the last value filled into the element with key.
func (d *Driver) Filled(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.filled[key]
	return v, ok
}

// LastLaunch returns the options of the most recent launch.
func (d *Driver) LastLaunch() engine.LaunchOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastLaunch
}

// LastContext returns the options of the most recent context.
func (d *Driver) LastContext() engine.ContextOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastContext
}

// Counts returns how many times each resource was acquired or released.
func (d *Driver) Counts() (starts, stops, browserCloses, contextCloses int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.stops, d.browserCloses, d.contextCloses
}

func (d *Driver) Start() (engine.Engine, error) {
	if d.StartErr != nil {
		d.record("start_failed")
		return nil, d.StartErr
	}
	d.mu.Lock()
	d.starts++
	d.mu.Unlock()
	d.record("start")
	return &fakeEngine{d: d}, nil
}

type fakeEngine struct {
	d *Driver
}

func (e *fakeEngine) Launch(opts engine.LaunchOptions) (engine.Browser, error) {
	if e.d.LaunchErr != nil {
		e.d.record("launch_failed")
		return nil, e.d.LaunchErr
	}
	e.d.mu.Lock()
	e.d.lastLaunch = opts
	e.d.mu.Unlock()
	e.d.record("launch")
	return &fakeBrowser{d: e.d}, nil
}

func (e *fakeEngine) Stop() error {
	e.d.mu.Lock()
	e.d.stops++
	e.d.mu.Unlock()
	e.d.record("stop")
	return e.d.StopErr
}

type fakeBrowser struct {
	d *Driver
}

func (b *fakeBrowser) NewContext(opts engine.ContextOptions) (engine.Context, error) {
	if b.d.ContextErr != nil {
		b.d.record("context_failed")
		return nil, b.d.ContextErr
	}
	b.d.mu.Lock()
	b.d.lastContext = opts
	b.d.mu.Unlock()
	b.d.record("context")
	return &fakeContext{d: b.d}, nil
}

func (b *fakeBrowser) Close() error {
	b.d.mu.Lock()
	b.d.browserCloses++
	b.d.mu.Unlock()
	b.d.record("close_browser")
	return b.d.CloseBrowserErr
}

type fakeContext struct {
	d *Driver
}

func (c *fakeContext) NewPage() (engine.Page, error) {
	if c.d.PageErr != nil {
		c.d.record("page_failed")
		return nil, c.d.PageErr
	}
	c.d.record("page")
	return &fakePage{d: c.d, visible: map[string]bool{}, url: "about:blank"}, nil
}

func (c *fakeContext) Close() error {
	c.d.mu.Lock()
	c.d.contextCloses++
	c.d.mu.Unlock()
	c.d.record("close_context")
	return c.d.CloseContextErr
}

type fakePage struct {
	d       *Driver
	mu      sync.Mutex
	url     string
	visible map[string]bool
}

func (p *fakePage) load(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.visible = map[string]bool{}
	for _, key := range p.d.Pages[url] {
		p.visible[key] = true
	}
}

func (p *fakePage) Goto(url string, opts engine.GotoOptions) error {
	if err := p.d.GotoErr[url]; err != nil {
		p.d.record("goto_failed " + url)
		return err
	}
	p.load(url)
	p.d.record("goto " + url)
	return nil
}

func (p *fakePage) WaitForLoadState(state engine.ReadyState, timeout time.Duration) error {
	p.d.record("wait_load page " + string(state))
	return p.d.PageLoadErr
}

func (p *fakePage) Frames() []engine.Frame {
	p.mu.Lock()
	frames := []engine.Frame{&fakeFrame{d: p.d, url: p.url}}
	p.mu.Unlock()
	for _, u := range p.d.Frames {
		frames = append(frames, &fakeFrame{d: p.d, url: u})
	}
	return frames
}

func (p *fakePage) Locate(loc engine.Locator) engine.Element {
	return &fakeElement{page: p, key: Key(loc)}
}

func (p *fakePage) Screenshot() ([]byte, error) {
	p.d.record("screenshot")
	if p.d.ScreenshotErr != nil {
		return nil, p.d.ScreenshotErr
	}
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return "Fake " + p.url, nil
}

func (p *fakePage) isVisible(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[key]
}

type fakeFrame struct {
	d   *Driver
	url string
}

func (f *fakeFrame) URL() string {
	return f.url
}

func (f *fakeFrame) WaitForLoadState(state engine.ReadyState, timeout time.Duration) error {
	f.d.record("wait_load frame " + f.url)
	return f.d.FrameLoadErr[f.url]
}

type fakeElement struct {
	page *fakePage
	key  string
}

func (e *fakeElement) missing(action string, timeout time.Duration) error {
	return fmt.Errorf("%w: %s %s: no visible match after %s", engine.ErrTimeout, action, e.key, timeout)
}

func (e *fakeElement) Click(timeout time.Duration) error {
	d := e.page.d
	if d.PanicOnClick != "" && d.PanicOnClick == e.key {
		panic("fake engine: click on " + e.key)
	}
	if !e.page.isVisible(e.key) {
		d.record("click_missing " + e.key)
		return e.missing("click", timeout)
	}
	d.record("click " + e.key)

	if next, ok := d.NavigateOnClick[e.key]; ok {
		e.page.load(next)
		d.record("goto " + next)
	}
	e.page.mu.Lock()
	for _, k := range d.Hide[e.key] {
		delete(e.page.visible, k)
	}
	for _, k := range d.Reveal[e.key] {
		e.page.visible[k] = true
	}
	e.page.mu.Unlock()
	return nil
}

func (e *fakeElement) Fill(value string, timeout time.Duration) error {
	d := e.page.d
	if !e.page.isVisible(e.key) {
		d.record("fill_missing " + e.key)
		return e.missing("fill", timeout)
	}
	d.mu.Lock()
	if d.filled == nil {
		d.filled = map[string]string{}
	}
	d.filled[e.key] = value
	d.mu.Unlock()
	d.record("fill " + e.key)
	return nil
}

func (e *fakeElement) Select(value string, timeout time.Duration) error {
	d := e.page.d
	if !e.page.isVisible(e.key) {
		d.record("select_missing " + e.key)
		return e.missing("select", timeout)
	}
	d.mu.Lock()
	if d.filled == nil {
		d.filled = map[string]string{}
	}
	d.filled[e.key] = value
	d.mu.Unlock()
	d.record("select " + e.key)
	return nil
}

func (e *fakeElement) WaitVisible(timeout time.Duration) error {
	e.page.d.record("wait_visible " + e.key)
	if !e.page.isVisible(e.key) {
		return e.missing("wait visible", timeout)
	}
	return nil
}

func (e *fakeElement) WaitHidden(timeout time.Duration) error {
	e.page.d.record("wait_hidden " + e.key)
	if e.page.isVisible(e.key) {
		return e.missing("wait hidden", timeout)
	}
	return nil
}

// Filter returns the events that start with prefix.
func Filter(events []string, prefix string) []string {
	var out []string
	for _, ev := range events {
		if strings.HasPrefix(ev, prefix) {
			out = append(out, ev)
		}
	}
	return out
}
