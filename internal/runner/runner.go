// Package runner executes one scenario against the target application:
// it acquires an automation session, opens an isolated browsing context,
// runs the steps strictly in order, and releases everything it acquired on
// every exit path.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/clinicprobe/internal/engine"
	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/obs"
	"github.com/kuitang/clinicprobe/internal/scenario"
	"github.com/kuitang/clinicprobe/internal/urlutil"
)

const urlPollInterval = 100 * time.Millisecond

// Runner runs scenarios. A Runner is safe for concurrent use; every Run owns
// its own engine, browser and context.
type Runner struct {
	driver engine.Driver
	opts   Options
	now    func() time.Time
}

// New creates a runner that acquires sessions from driver.
func New(driver engine.Driver, opts Options) *Runner {
	return &Runner{
		driver: driver,
		opts:   opts.normalized(),
		now:    time.Now,
	}
}

// Options returns the effective options.
func (r *Runner) Options() Options {
	return r.opts
}

// Run executes sc and returns exactly one outcome. It never panics and
// always releases the session before returning.
func (r *Runner) Run(ctx context.Context, sc scenario.Scenario) Result {
	return r.RunWithID(ctx, sc, uuid.NewString())
}

// RunWithID is Run with a caller-chosen run id.
func (r *Runner) RunWithID(ctx context.Context, sc scenario.Scenario, runID string) Result {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: runID, Scenario: sc.Name})
	s := &session{
		r:   r,
		log: obs.From(ctx).With("pkg", "runner"),
		res: Result{
			Scenario:  sc.Name,
			RunID:     runID,
			Steps:     pendingSteps(sc),
			StartedAt: r.now(),
			States:    []State{StateInit},
		},
		current: -1,
	}
	s.log.Info("scenario_start", "steps", len(sc.Steps), "base_url", r.opts.BaseURL)

	defer s.teardown()

	err := sc.Validate()
	if err == nil {
		err = s.execute(ctx, sc)
	}
	if err != nil {
		s.fail(err)
	} else {
		s.pass(ctx)
	}
	return s.finish()
}

type session struct {
	r   *Runner
	log *slog.Logger
	res Result

	current int

	eng     engine.Engine
	browser engine.Browser
	bctx    engine.Context
	page    engine.Page

	tornDown bool
}

func (s *session) enter(state State) {
	s.res.States = append(s.res.States, state)
}

// execute performs setup and every step. A panic anywhere in it becomes an
// internal failure of the current step.
func (s *session) execute(ctx context.Context, sc scenario.Scenario) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("scenario_panic", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			err = errs.New(errs.Internal, fmt.Sprintf("unexpected panic: %v", p))
			if s.current >= 0 {
				s.res.Steps[s.current].Status = StepFailed
				s.res.Steps[s.current].Error = errs.MessageOf(err)
			}
		}
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.Wrap(errs.Canceled, "scenario canceled before setup", ctxErr)
	}
	if err := s.setup(); err != nil {
		return err
	}

	for i, step := range sc.Steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errs.Wrap(errs.Canceled, fmt.Sprintf("scenario canceled before step %d (%s)", i, step.Describe()), ctxErr)
		}
		s.current = i
		sr := &s.res.Steps[i]
		stepCtx := obs.WithCorrelation(ctx, obs.Correlation{Step: strconv.Itoa(i) + ":" + string(step.Kind)})
		log := obs.From(stepCtx).With("pkg", "runner")

		start := s.r.now()
		err := s.runStep(stepCtx, log, step, sr)
		sr.Duration = s.r.now().Sub(start)
		if err != nil {
			sr.Status = StepFailed
			sr.Error = errs.MessageOf(err)
			log.Warn("step_failed", "step_desc", sr.Description, "code", errs.CodeOf(err), "error", err)
			return err
		}
		sr.Status = StepOK
		log.Debug("step_ok", "step_desc", sr.Description, "dur_ms", sr.Duration.Milliseconds(), "soft_failures", sr.SoftFailures)
	}
	return nil
}

func (s *session) setup() error {
	opts := s.r.opts

	eng, err := s.r.driver.Start()
	if err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("start automation engine: %v", err), err)
	}
	s.eng = eng

	browser, err := eng.Launch(engine.LaunchOptions{Headless: opts.Headless, Args: opts.LaunchArgs()})
	if err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("launch browser: %v", err), err)
	}
	s.browser = browser
	s.enter(StateLaunched)

	bctx, err := browser.NewContext(engine.ContextOptions{
		ViewportWidth:     opts.ViewportWidth,
		ViewportHeight:    opts.ViewportHeight,
		DefaultTimeout:    opts.ActionTimeout,
		NavigationTimeout: opts.NavigationTimeout,
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("create browsing context: %v", err), err)
	}
	s.bctx = bctx

	page, err := bctx.NewPage()
	if err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("open page: %v", err), err)
	}
	s.page = page
	s.enter(StateContextReady)
	return nil
}

func (s *session) runStep(ctx context.Context, log *slog.Logger, step scenario.Step, sr *StepResult) error {
	switch step.Kind {
	case scenario.KindNavigate:
		s.enter(StateNavigate)
		return s.navigate(log, step, sr)
	case scenario.KindFill, scenario.KindClick, scenario.KindSelect:
		s.enter(StateInteract)
		return s.interact(ctx, step)
	case scenario.KindAssert:
		s.enter(StateAssert)
		return s.assert(ctx, step)
	case scenario.KindWait:
		s.enter(StateWait)
		if err := sleep(ctx, step.Duration); err != nil {
			return errs.Wrap(errs.Canceled, "scenario canceled during wait", err)
		}
		return nil
	default:
		return errs.New(errs.InvalidArgument, fmt.Sprintf("unknown step kind %q", step.Kind))
	}
}

func (s *session) navigate(log *slog.Logger, step scenario.Step, sr *StepResult) error {
	opts := s.r.opts
	target := urlutil.BuildAbsolute(opts.BaseURL, step.URL)
	timeout := orDefault(step.Timeout, opts.NavigationTimeout)

	if err := s.page.Goto(target, engine.GotoOptions{WaitUntil: step.EffectiveWaitUntil(), Timeout: timeout}); err != nil {
		return errs.Wrap(errs.NavigationFailed, fmt.Sprintf("navigate to %s failed: %v", target, err), err)
	}

	if err := s.page.WaitForLoadState(engine.ReadyDOMContentLoaded, opts.ReadinessTimeout); err != nil {
		sr.SoftFailures++
		log.Debug("soft_fail", "wait", "page_ready", "url", target, "error", err)
	}
	if step.SkipFrames {
		return nil
	}
	for _, frame := range s.page.Frames() {
		if err := frame.WaitForLoadState(engine.ReadyDOMContentLoaded, opts.ReadinessTimeout); err != nil {
			sr.SoftFailures++
			log.Debug("soft_fail", "wait", "frame_ready", "frame_url", frame.URL(), "error", err)
		}
	}
	return nil
}

func (s *session) interact(ctx context.Context, step scenario.Step) error {
	opts := s.r.opts
	if opts.SettleDelay > 0 {
		if err := sleep(ctx, opts.SettleDelay); err != nil {
			return errs.Wrap(errs.Canceled, "scenario canceled before "+step.Describe(), err)
		}
	}

	timeout := orDefault(step.Timeout, opts.ActionTimeout)
	el := s.page.Locate(step.Target)

	var err error
	switch step.Kind {
	case scenario.KindFill:
		err = el.Fill(step.Value, timeout)
	case scenario.KindSelect:
		err = el.Select(step.Value, timeout)
	default:
		err = el.Click(timeout)
	}
	if err != nil {
		return errs.Wrap(errs.InteractionFailed, fmt.Sprintf("%s %s failed after %s: %v", step.Kind, step.Target, timeout, err), err)
	}
	return nil
}

func (s *session) assert(ctx context.Context, step scenario.Step) error {
	timeout := orDefault(step.Timeout, s.r.opts.AssertTimeout)

	var err error
	var msg string
	switch step.EffectiveCondition() {
	case scenario.Hidden:
		err = s.page.Locate(step.Target).WaitHidden(timeout)
		msg = fmt.Sprintf("expected %s to be hidden, but it was still visible after %s", step.Target, timeout)
	case scenario.URLContains:
		var last string
		last, err = s.waitForURL(ctx, step.Value, timeout)
		msg = fmt.Sprintf("expected page URL to contain %q, but it was %q after %s", step.Value, last, timeout)
	default:
		err = s.page.Locate(step.Target).WaitVisible(timeout)
		msg = fmt.Sprintf("expected %s to be visible, but it did not appear within %s", step.Target, timeout)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.Canceled, "scenario canceled during "+step.Describe(), err)
	}
	if step.Message != "" {
		msg = step.Message
	}
	return errs.Wrap(errs.AssertionFailed, msg, err)
}

func (s *session) waitForURL(ctx context.Context, substr string, timeout time.Duration) (string, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()

	for {
		current := s.page.URL()
		if strings.Contains(current, substr) {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-deadline.C:
			return current, fmt.Errorf("%w: url %q does not contain %q", engine.ErrTimeout, current, substr)
		case <-ticker.C:
		}
	}
}

func (s *session) fail(err error) {
	s.res.Outcome = Failed
	s.res.Code = errs.CodeOf(err)
	s.res.Message = errs.MessageOf(err)
	if s.res.Message == "" {
		s.res.Message = string(s.res.Code)
	}
	s.captureDiagnostics()
	s.enter(StateFailed)
	s.log.Warn("scenario_failed", "code", s.res.Code, "message", s.res.Message)
}

// captureDiagnostics records the page state at failure. Errors are logged
// and never change the outcome.
func (s *session) captureDiagnostics() {
	if s.page == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			s.log.Warn("capture_panic", "panic", fmt.Sprint(p))
		}
	}()

	s.res.FinalURL = s.page.URL()
	if title, err := s.page.Title(); err == nil {
		s.res.FinalTitle = title
	} else {
		s.log.Debug("capture_title_failed", "error", err)
	}
	if s.r.opts.SkipFailureCapture {
		return
	}
	shot, err := s.page.Screenshot()
	if err != nil {
		s.log.Warn("capture_screenshot_failed", "error", err)
		return
	}
	s.res.Screenshot = shot
}

func (s *session) pass(ctx context.Context) {
	s.res.Outcome = Passed
	if s.page != nil {
		s.res.FinalURL = s.page.URL()
	}
	s.enter(StatePassed)
	if d := s.r.opts.TrailingDelay; d > 0 {
		if err := sleep(ctx, d); err != nil {
			s.log.Debug("trailing_delay_interrupted", "error", err)
		}
	}
}

// teardown releases context, browser and engine in that order, each at
// most once. Release errors are logged and suppressed.
func (s *session) teardown() {
	if s.tornDown {
		return
	}
	s.tornDown = true

	release := func(name string, fn func() error) {
		defer func() {
			if p := recover(); p != nil {
				s.log.Warn("teardown_panic", "resource", name, "panic", fmt.Sprint(p))
			}
		}()
		if err := fn(); err != nil {
			s.log.Warn("teardown_failed", "resource", name, "error", err)
		}
	}
	if s.bctx != nil {
		release("context", s.bctx.Close)
		s.bctx = nil
	}
	if s.browser != nil {
		release("browser", s.browser.Close)
		s.browser = nil
	}
	if s.eng != nil {
		release("engine", s.eng.Stop)
		s.eng = nil
	}
	s.page = nil
	s.enter(StateTornDown)
}

func (s *session) finish() Result {
	s.teardown()
	s.res.FinishedAt = s.r.now()
	for _, sr := range s.res.Steps {
		s.res.SoftFailures += sr.SoftFailures
	}
	s.log.Info("scenario_done",
		"outcome", s.res.Outcome,
		"code", s.res.Code,
		"dur_ms", s.res.Duration().Milliseconds(),
		"soft_failures", s.res.SoftFailures,
	)
	return s.res
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
