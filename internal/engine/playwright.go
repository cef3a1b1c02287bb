package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightDriver starts playwright-go with Chromium.
type PlaywrightDriver struct {
	// Install downloads the driver and Chromium before starting.
	Install bool
}

// Start runs the playwright driver.
func (d PlaywrightDriver) Start() (Engine, error) {
	if d.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	return &pwEngine{pw: pw}, nil
}

type pwEngine struct {
	pw *playwright.Playwright
}

func (e *pwEngine) Launch(opts LaunchOptions) (Browser, error) {
	browser, err := e.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	})
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", mapErr(err))
	}
	return &pwBrowser{browser: browser}, nil
}

func (e *pwEngine) Stop() error {
	return e.pw.Stop()
}

type pwBrowser struct {
	browser playwright.Browser
}

func (b *pwBrowser) NewContext(opts ContextOptions) (Context, error) {
	options := playwright.BrowserNewContextOptions{}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		options.Viewport = &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}
	ctx, err := b.browser.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", mapErr(err))
	}
	if opts.DefaultTimeout > 0 {
		ctx.SetDefaultTimeout(ms(opts.DefaultTimeout))
	}
	if opts.NavigationTimeout > 0 {
		ctx.SetDefaultNavigationTimeout(ms(opts.NavigationTimeout))
	}
	return &pwContext{ctx: ctx}, nil
}

func (b *pwBrowser) Close() error {
	return b.browser.Close()
}

type pwContext struct {
	ctx playwright.BrowserContext
}

func (c *pwContext) NewPage() (Page, error) {
	page, err := c.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", mapErr(err))
	}
	return &pwPage{page: page}, nil
}

func (c *pwContext) Close() error {
	return c.ctx.Close()
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Goto(url string, opts GotoOptions) error {
	options := playwright.PageGotoOptions{WaitUntil: waitUntil(opts.WaitUntil)}
	if opts.Timeout > 0 {
		options.Timeout = playwright.Float(ms(opts.Timeout))
	}
	_, err := p.page.Goto(url, options)
	return mapErr(err)
}

func (p *pwPage) WaitForLoadState(state ReadyState, timeout time.Duration) error {
	ls := loadState(state)
	if ls == nil {
		return nil
	}
	return mapErr(p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   ls,
		Timeout: playwright.Float(ms(timeout)),
	}))
}

func (p *pwPage) Frames() []Frame {
	frames := p.page.Frames()
	out := make([]Frame, 0, len(frames))
	for _, f := range frames {
		out = append(out, &pwFrame{frame: f})
	}
	return out
}

func (p *pwPage) Locate(loc Locator) Element {
	var l playwright.Locator
	switch loc.Kind {
	case ByRole:
		opts := playwright.PageGetByRoleOptions{}
		if loc.Name != "" {
			opts.Name = loc.Name
		}
		if loc.Exact {
			opts.Exact = playwright.Bool(true)
		}
		l = p.page.GetByRole(playwright.AriaRole(loc.Value), opts)
	case ByText:
		l = p.page.GetByText(loc.Value, playwright.PageGetByTextOptions{Exact: playwright.Bool(loc.Exact)})
	case ByLabel:
		l = p.page.GetByLabel(loc.Value, playwright.PageGetByLabelOptions{Exact: playwright.Bool(loc.Exact)})
	case ByPlaceholder:
		l = p.page.GetByPlaceholder(loc.Value, playwright.PageGetByPlaceholderOptions{Exact: playwright.Bool(loc.Exact)})
	case ByTestID:
		l = p.page.GetByTestId(loc.Value)
	case ByXPath:
		l = p.page.Locator("xpath=" + loc.Value)
	default:
		l = p.page.Locator(loc.Value)
	}
	if loc.Nth > 0 {
		l = l.Nth(loc.Nth)
	} else {
		l = l.First()
	}
	return &pwElement{loc: l}
}

func (p *pwPage) Screenshot() ([]byte, error) {
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	return data, mapErr(err)
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Title() (string, error) {
	title, err := p.page.Title()
	return title, mapErr(err)
}

type pwFrame struct {
	frame playwright.Frame
}

func (f *pwFrame) URL() string {
	return f.frame.URL()
}

func (f *pwFrame) WaitForLoadState(state ReadyState, timeout time.Duration) error {
	ls := loadState(state)
	if ls == nil {
		return nil
	}
	return mapErr(f.frame.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
		State:   ls,
		Timeout: playwright.Float(ms(timeout)),
	}))
}

type pwElement struct {
	loc playwright.Locator
}

func (e *pwElement) Click(timeout time.Duration) error {
	return mapErr(e.loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(ms(timeout))}))
}

func (e *pwElement) Fill(value string, timeout time.Duration) error {
	return mapErr(e.loc.Fill(value, playwright.LocatorFillOptions{Timeout: playwright.Float(ms(timeout))}))
}

func (e *pwElement) Select(value string, timeout time.Duration) error {
	_, err := e.loc.SelectOption(
		playwright.SelectOptionValues{ValuesOrLabels: &[]string{value}},
		playwright.LocatorSelectOptionOptions{Timeout: playwright.Float(ms(timeout))},
	)
	return mapErr(err)
}

func (e *pwElement) WaitVisible(timeout time.Duration) error {
	return mapErr(e.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(ms(timeout)),
	}))
}

func (e *pwElement) WaitHidden(timeout time.Duration) error {
	return mapErr(e.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(ms(timeout)),
	}))
}

func waitUntil(state ReadyState) *playwright.WaitUntilState {
	switch state {
	case ReadyDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case ReadyLoad:
		return playwright.WaitUntilStateLoad
	case ReadyNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateCommit
	}
}

// loadState returns nil for commit, which every navigated document has
// already reached.
func loadState(state ReadyState) *playwright.LoadState {
	switch state {
	case ReadyDOMContentLoaded:
		return playwright.LoadStateDomcontentloaded
	case ReadyLoad:
		return playwright.LoadStateLoad
	case ReadyNetworkIdle:
		return playwright.LoadStateNetworkidle
	default:
		return nil
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
