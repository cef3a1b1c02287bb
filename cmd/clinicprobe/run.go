package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuitang/clinicprobe/internal/artifacts"
	"github.com/kuitang/clinicprobe/internal/config"
	"github.com/kuitang/clinicprobe/internal/crypto"
	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/notify"
	"github.com/kuitang/clinicprobe/internal/obs"
	"github.com/kuitang/clinicprobe/internal/preflight"
	"github.com/kuitang/clinicprobe/internal/ratelimit"
	"github.com/kuitang/clinicprobe/internal/report"
	"github.com/kuitang/clinicprobe/internal/runner"
	"github.com/kuitang/clinicprobe/internal/store"
	"github.com/kuitang/clinicprobe/internal/suite"
)

type runFlags struct {
	config.Flags
	file       string
	tags       []string
	reportHTML string
	reportJSON string
}

func newRunCmd(d deps) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run scenarios against the clinic application",
		Long: `Run the named scenarios, or every scenario when none is named.

Exit status: 0 all passed, 1 a scenario failed, 2 invalid configuration or
scenario definition, 3 the target or the browser engine is unavailable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), d, f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "load scenarios from a YAML file instead of the built-in catalog")
	fl.StringSliceVarP(&f.tags, "tag", "t", nil, "only run scenarios carrying one of these tags")
	fl.IntVarP(&f.Parallelism, "parallel", "p", 0, "scenarios to run at once (default from PARALLELISM)")
	fl.BoolVar(&f.FailFast, "fail-fast", false, "do not start further scenarios after a failure")
	fl.BoolVar(&f.SkipPreflight, "skip-preflight", false, "skip the target reachability check")
	fl.BoolVar(&f.NoS3, "no-s3", false, "do not upload failure artifacts")
	fl.BoolVar(&f.NoEmail, "no-email", false, "log the failure report instead of emailing it")
	fl.BoolVar(&f.NoStore, "no-store", false, "do not record results")
	fl.BoolVar(&f.Install, "install", false, "download the browser driver and Chromium first")
	fl.BoolVar(&f.Headed, "headed", false, "show the browser window")
	fl.StringVar(&f.BaseURL, "base-url", "", "target application (default from BASE_URL)")
	fl.StringVar(&f.reportHTML, "report-html", "", "write the HTML report to this path")
	fl.StringVar(&f.reportJSON, "report-json", "", "write the JSON report to this path")
	return cmd
}

func runScenarios(ctx context.Context, d deps, f runFlags, names []string) error {
	cfg, err := loadConfig(f.Flags)
	if err != nil {
		return err
	}
	cfg.PrintStartupSummary()
	log := obs.Pkg("cli")

	cat, err := catalogFor(cfg, f.file)
	if err != nil {
		return err
	}
	scs, err := pick(cat, names, f.tags)
	if err != nil {
		return err
	}
	if len(scs) == 0 {
		return errs.New(errs.InvalidArgument, "no scenarios selected")
	}
	for _, sc := range scs {
		if err := sc.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.SkipPreflight {
		if err := preflight.New(nil, cfg.PreflightTimeout).Check(ctx, cfg.BaseURL); err != nil {
			return err
		}
	}

	opts := suite.Options{
		BaseURL:     cfg.BaseURL,
		Parallelism: cfg.Parallelism,
		FailFast:    cfg.FailFast,
	}

	if !cfg.NoStore {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		opts.Recorder = st
	}

	if !cfg.NoS3 {
		client, err := artifacts.New(ctx, artifacts.Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.AWSBucketName,
			UsePathStyle:    cfg.AWSPathStyle,
		})
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, "artifact storage", err)
		}
		opts.Uploader = artifacts.NewUploader(client)
	}

	to := splitAddresses(cfg.ReportToEmail)
	if cfg.NoEmail {
		opts.Notifier = notify.NewMockNotifier(cfg.ReportOutboxDir, to...)
	} else {
		opts.Notifier = notify.NewResendNotifier(cfg.ResendAPIKey, cfg.ReportFromEmail, to)
	}

	limiter := ratelimit.NewLimiter(cfg.StartLimit)
	defer limiter.Stop()
	opts.Limiter = limiter

	r := runner.New(d.driver(cfg.InstallBrowsers), runnerOptions(cfg))
	rep := suite.New(r, opts).Run(ctx, scs)

	if err := writeReports(rep, f.reportHTML, f.reportJSON); err != nil {
		log.Warn("report_write_failed", "error", err)
	}
	fmt.Fprint(d.stdout, rep.Markdown())

	return outcomeErr(rep)
}

func runnerOptions(cfg *config.Config) runner.Options {
	return runner.Options{
		BaseURL:           cfg.BaseURL,
		Headless:          cfg.Headless,
		ViewportWidth:     cfg.ViewportWidth,
		ViewportHeight:    cfg.ViewportHeight,
		ExtraArgs:         cfg.BrowserArgs,
		ActionTimeout:     cfg.Timeouts.Action,
		NavigationTimeout: cfg.Timeouts.Navigation,
		ReadinessTimeout:  cfg.Timeouts.Readiness,
		AssertTimeout:     cfg.Timeouts.Assert,
		SettleDelay:       cfg.Timeouts.Settle,
		TrailingDelay:     cfg.Timeouts.Trailing,
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	var key []byte
	if cfg.MasterKey != "" {
		master, err := crypto.ParseMasterKey(cfg.MasterKey)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, "MASTER_KEY", err)
		}
		key = crypto.DeriveStoreKey(master)
	}
	st, err := store.Open(cfg.ResultsDBPath, key)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "results store", err)
	}
	return st, nil
}

func writeReports(rep *report.Report, htmlPath, jsonPath string) error {
	if htmlPath != "" {
		if err := os.WriteFile(htmlPath, rep.HTML(), 0o644); err != nil {
			return fmt.Errorf("write HTML report: %w", err)
		}
	}
	if jsonPath != "" {
		data, err := rep.JSON()
		if err != nil {
			return fmt.Errorf("encode JSON report: %w", err)
		}
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			return fmt.Errorf("write JSON report: %w", err)
		}
	}
	return nil
}

// outcomeErr maps a finished report to the command error. A run in which
// every failure is an unavailable target or engine is itself unavailable.
func outcomeErr(rep *report.Report) error {
	if rep.OK() {
		return nil
	}
	code := errs.Unavailable
	for _, res := range rep.FailedResults() {
		if res.Code != errs.Unavailable {
			code = errs.AssertionFailed
			break
		}
	}
	return errs.New(code, rep.Summary())
}

func splitAddresses(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
