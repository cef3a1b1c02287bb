// Package browser runs clinic scenarios through a real Chromium against a
// local stand-in for the clinic web application. Tests skip when Playwright
// or its browser is not installed.
package browser

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/clinicprobe/internal/obs"
	"github.com/kuitang/clinicprobe/internal/runner"
)

var (
	probeOnce sync.Once
	probeErr  error
)

// RequireBrowser skips the test when Chromium cannot be launched.
func RequireBrowser(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	probeOnce.Do(func() {
		pw, err := playwright.Run()
		if err != nil {
			probeErr = fmt.Errorf("playwright not available: %w", err)
			return
		}
		defer pw.Stop()
		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(true),
		})
		if err != nil {
			probeErr = fmt.Errorf("could not launch browser: %w", err)
			return
		}
		_ = browser.Close()
	})
	if probeErr != nil {
		t.Skip(probeErr)
	}
}

// RunnerOptions returns headless options with short bounds for the local site.
func RunnerOptions(baseURL string) runner.Options {
	opts := runner.DefaultOptions(baseURL)
	opts.TrailingDelay = 0
	opts.ActionTimeout = 3 * time.Second
	opts.AssertTimeout = 2 * time.Second
	return opts
}

// ClinicServer serves the pages the built-in public and admin login
// scenarios visit.
func ClinicServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", page("Om Chabahil Dental", `
<section><h2>Our Services</h2><p>Cleaning, fillings and braces.</p></section>
<section><h2>Testimonials</h2><blockquote>Painless and quick.</blockquote></section>`))
	mux.HandleFunc("GET /admin", page("Admin Login", `
<form action="/admin/dashboard" method="get">
  <label>Email <input type="email" name="email" placeholder="admin@omchabahildental.com.np"></label>
  <label>Password <input type="password" name="password" placeholder="Enter your password"></label>
  <button type="submit">Sign In</button>
</form>`))
	mux.HandleFunc("GET /admin/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "" || r.URL.Query().Get("password") == "" {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		page("Dashboard", `<h1>Dashboard</h1><h2>Recent Appointments</h2><ul><li>No appointments today</li></ul>`)(w, r)
	})

	srv := httptest.NewServer(obs.AccessLogMiddleware("clinic-site", mux))
	t.Cleanup(srv.Close)
	return srv
}

func page(title, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body>%s</body></html>", title, body)
	}
}
