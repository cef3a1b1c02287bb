// Package preflight checks that the target application answers before any
// browser is launched.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/obs"
)

// DefaultTimeout bounds the probe request.
const DefaultTimeout = 5 * time.Second

// Prober issues the reachability probe.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// New returns a Prober whose requests are access-logged. A nil base uses
// http.DefaultTransport; a non-positive timeout uses DefaultTimeout.
func New(base http.RoundTripper, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		client: &http.Client{
			Transport: &obs.LoggingTransport{Pkg: "preflight", Base: base},
			// The clinic redirects /admin style paths; any answer counts.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		timeout: timeout,
	}
}

// Check GETs baseURL. Any status below 500 means the target is up. A
// failure is coded errs.Unavailable.
func (p *Prober) Check(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid base URL %q", baseURL), err)
	}
	req.Header.Set("User-Agent", "clinicprobe-preflight")

	resp, err := p.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("target %s is unreachable", baseURL), err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return errs.New(errs.Unavailable, fmt.Sprintf("target %s answered %d", baseURL, resp.StatusCode))
	}
	obs.From(ctx).With("pkg", "preflight").Info("preflight_ok", "url", baseURL, "status", resp.StatusCode)
	return nil
}
