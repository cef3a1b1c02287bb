package runner

import (
	"fmt"
	"time"
)

// Default timing configuration.
const (
	DefaultActionTimeout     = 5 * time.Second
	DefaultNavigationTimeout = 10 * time.Second
	DefaultReadinessTimeout  = 3 * time.Second
	DefaultAssertTimeout     = 3 * time.Second
	DefaultTrailingDelay     = 5 * time.Second
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 720
)

// Options configures a Runner.
type Options struct {
	BaseURL string

	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	ExtraArgs      []string

	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	ReadinessTimeout  time.Duration
	AssertTimeout     time.Duration
	SettleDelay       time.Duration
	TrailingDelay     time.Duration

	// SkipFailureCapture disables the screenshot taken when a scenario fails.
	SkipFailureCapture bool
}

// DefaultOptions returns headless options with the default timing.
func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:           baseURL,
		Headless:          true,
		ViewportWidth:     DefaultViewportWidth,
		ViewportHeight:    DefaultViewportHeight,
		ActionTimeout:     DefaultActionTimeout,
		NavigationTimeout: DefaultNavigationTimeout,
		ReadinessTimeout:  DefaultReadinessTimeout,
		AssertTimeout:     DefaultAssertTimeout,
		TrailingDelay:     DefaultTrailingDelay,
	}
}

// normalized fills unset bounds with defaults. Delays stay as given; zero
// disables them.
func (o Options) normalized() Options {
	if o.ViewportWidth <= 0 || o.ViewportHeight <= 0 {
		o.ViewportWidth, o.ViewportHeight = DefaultViewportWidth, DefaultViewportHeight
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.ReadinessTimeout <= 0 {
		o.ReadinessTimeout = DefaultReadinessTimeout
	}
	if o.AssertTimeout <= 0 {
		o.AssertTimeout = DefaultAssertTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.TrailingDelay < 0 {
		o.TrailingDelay = 0
	}
	return o
}

// LaunchArgs returns the browser flags: a fixed window size, container
// friendly shared memory and IPC settings, single-process mode, then ExtraArgs.
func (o Options) LaunchArgs() []string {
	o = o.normalized()
	args := []string{
		fmt.Sprintf("--window-size=%d,%d", o.ViewportWidth, o.ViewportHeight),
		"--disable-dev-shm-usage",
		"--ipc=host",
		"--single-process",
	}
	return append(args, o.ExtraArgs...)
}
