// Package suite runs a list of scenarios, each in its own browser session,
// and reports on the whole run.
package suite

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/logutil"
	"github.com/kuitang/clinicprobe/internal/notify"
	"github.com/kuitang/clinicprobe/internal/obs"
	"github.com/kuitang/clinicprobe/internal/ratelimit"
	"github.com/kuitang/clinicprobe/internal/report"
	"github.com/kuitang/clinicprobe/internal/runner"
	"github.com/kuitang/clinicprobe/internal/scenario"
	"github.com/kuitang/clinicprobe/internal/urlutil"
)

// maxLoggedMessage bounds failure messages in scenario_result events.
const maxLoggedMessage = 500

// Executor runs one scenario. *runner.Runner implements it.
type Executor interface {
	RunWithID(ctx context.Context, sc scenario.Scenario, runID string) runner.Result
}

// Recorder persists results. *store.Store implements it.
type Recorder interface {
	RecordResult(ctx context.Context, suiteID string, res runner.Result) error
}

// Uploader stores failure artifacts. *artifacts.Uploader implements it.
type Uploader interface {
	UploadResult(ctx context.Context, suiteID string, res runner.Result) ([]string, error)
}

// Options configures a Suite. Nil hooks are skipped.
type Options struct {
	BaseURL     string
	Parallelism int  // concurrent scenarios; values below 1 mean 1
	FailFast    bool // after a failure, scenarios not yet started are not run

	Limiter  *ratelimit.Limiter
	Recorder Recorder
	Uploader Uploader
	Notifier notify.Notifier
}

// Suite executes scenarios through an Executor.
type Suite struct {
	exec  Executor
	opts  Options
	now   func() time.Time
	newID func() string
}

// New creates a suite.
func New(exec Executor, opts Options) *Suite {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Suite{exec: exec, opts: opts, now: time.Now, newID: uuid.NewString}
}

// Run executes scenarios under a new suite id and returns the report.
func (s *Suite) Run(ctx context.Context, scenarios []scenario.Scenario) *report.Report {
	return s.RunWithID(ctx, s.newID(), scenarios)
}

// RunWithID executes scenarios under suiteID. Report order is input order.
func (s *Suite) RunWithID(ctx context.Context, suiteID string, scenarios []scenario.Scenario) *report.Report {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{SuiteID: suiteID})
	log := obs.From(ctx).With("pkg", "suite")
	log.Info("suite_start", "scenarios", len(scenarios), "parallelism", s.opts.Parallelism, "fail_fast", s.opts.FailFast)

	results := make([]runner.Result, len(scenarios))
	var stopped atomic.Bool

	var g errgroup.Group
	g.SetLimit(s.opts.Parallelism)
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = s.runOne(ctx, suiteID, sc, &stopped)
			return nil
		})
	}
	_ = g.Wait()

	rep := report.Build(suiteID, s.opts.BaseURL, results)
	log.Info("suite_done", "passed", rep.Passed, "failed", rep.Failed, "dur_ms", rep.Duration().Milliseconds())

	if !rep.OK() && s.opts.Notifier != nil {
		if err := s.opts.Notifier.Notify(context.WithoutCancel(ctx), rep); err != nil {
			log.Warn("notify_failed", "error", err)
		}
	}
	return rep
}

func (s *Suite) runOne(ctx context.Context, suiteID string, sc scenario.Scenario, stopped *atomic.Bool) runner.Result {
	runID := s.newID()
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: runID, Scenario: sc.Name})

	if reason := s.skipReason(ctx, stopped); reason != "" {
		res := runner.FailedResult(sc, runID, s.now(), errs.New(errs.Canceled, "not started: "+reason))
		obs.From(ctx).With("pkg", "suite").Info("scenario_skipped", "reason", reason)
		return res
	}

	res := s.exec.RunWithID(ctx, sc, runID)
	if !res.Passed() && s.opts.FailFast {
		stopped.Store(true)
	}
	s.afterResult(context.WithoutCancel(ctx), suiteID, res)
	return res
}

// skipReason returns why a scenario must not start, after pacing its start.
func (s *Suite) skipReason(ctx context.Context, stopped *atomic.Bool) string {
	if s.opts.FailFast && stopped.Load() {
		return "an earlier scenario failed"
	}
	if ctx.Err() != nil {
		return "suite canceled"
	}
	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx, urlutil.Host(s.opts.BaseURL)); err != nil {
			return "suite canceled"
		}
	}
	if s.opts.FailFast && stopped.Load() {
		return "an earlier scenario failed"
	}
	return ""
}

// afterResult logs, persists and uploads. Hook errors never change res.
func (s *Suite) afterResult(ctx context.Context, suiteID string, res runner.Result) {
	log := obs.From(ctx).With("pkg", "suite")
	attrs := []any{"outcome", res.Outcome, "dur_ms", res.Duration().Milliseconds(), "soft_failures", res.SoftFailures}
	if res.Passed() {
		log.Info("scenario_result", attrs...)
	} else {
		log.Warn("scenario_result", append(attrs, "code", res.Code, "message", logutil.TruncateForLog(res.Message, maxLoggedMessage))...)
	}

	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.RecordResult(ctx, suiteID, res); err != nil {
			log.Warn("record_failed", "error", err)
		}
	}
	if s.opts.Uploader != nil && !res.Passed() {
		locs, err := s.opts.Uploader.UploadResult(ctx, suiteID, res)
		if err != nil {
			log.Warn("upload_failed", "error", err)
		} else {
			log.Info("artifacts_uploaded", "locations", locs)
		}
	}
}
