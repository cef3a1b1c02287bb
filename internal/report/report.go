// Package report summarizes a suite run as Markdown, sanitized HTML and JSON.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/clinicprobe/internal/runner"
)

// Report is the outcome of one suite run.
type Report struct {
	SuiteID    string          `json:"suite_id"`
	BaseURL    string          `json:"base_url"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Total      int             `json:"total"`
	Passed     int             `json:"passed"`
	Failed     int             `json:"failed"`
	Results    []runner.Result `json:"results"`
}

// Build summarizes results, which keep the order given.
func Build(suiteID, baseURL string, results []runner.Result) *Report {
	r := &Report{
		SuiteID: suiteID,
		BaseURL: baseURL,
		Total:   len(results),
		Results: append([]runner.Result(nil), results...),
	}
	for i, res := range results {
		if res.Passed() {
			r.Passed++
		} else {
			r.Failed++
		}
		if i == 0 || res.StartedAt.Before(r.StartedAt) {
			r.StartedAt = res.StartedAt
		}
		if res.FinishedAt.After(r.FinishedAt) {
			r.FinishedAt = res.FinishedAt
		}
	}
	return r
}

// OK reports whether every scenario passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// FailedResults returns the failed scenarios in report order.
func (r *Report) FailedResults() []runner.Result {
	var out []runner.Result
	for _, res := range r.Results {
		if !res.Passed() {
			out = append(out, res)
		}
	}
	return out
}

// Duration is the wall time covered by the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary is a one-line result count.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d/%d scenarios passed", r.Passed, r.Total)
}

// Subject is the notification subject line.
func (r *Report) Subject() string {
	if r.OK() {
		return "clinicprobe: all passed (" + r.Summary() + ")"
	}
	return fmt.Sprintf("clinicprobe: %d failed (%s)", r.Failed, r.Summary())
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Clinic probe report\n\n")
	fmt.Fprintf(&b, "- Target: `%s`\n", r.BaseURL)
	fmt.Fprintf(&b, "- Suite: `%s`\n", r.SuiteID)
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "- Duration: %s\n", r.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "- Result: **%s**\n\n", r.Summary())

	if r.Total == 0 {
		b.WriteString("No scenarios were run.\n")
		return b.String()
	}

	b.WriteString("| Scenario | Outcome | Code | Duration | Soft failures |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, res := range r.Results {
		code := string(res.Code)
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n",
			cell(res.Scenario), res.Outcome, code, res.Duration().Round(time.Millisecond), res.SoftFailures)
	}

	for _, res := range r.FailedResults() {
		fmt.Fprintf(&b, "\n## %s\n\n", cell(res.Scenario))
		fmt.Fprintf(&b, "> %s\n\n", cell(res.Message))
		if res.FinalURL != "" {
			fmt.Fprintf(&b, "Last page: `%s`\n\n", res.FinalURL)
		}
		for _, sr := range res.Steps {
			line := fmt.Sprintf("%d. [%s] %s", sr.Index+1, sr.Status, cell(sr.Description))
			if sr.Value != "" {
				line += fmt.Sprintf(" = `%s`", sr.Value)
			}
			if sr.Error != "" {
				line += " - " + cell(sr.Error)
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// JSON encodes the report, indented. Screenshots are not included.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// cell flattens s onto one line for a table cell or list item.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
