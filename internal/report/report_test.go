package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/runner"
	"github.com/kuitang/clinicprobe/internal/scenario"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func passed(name string, offset time.Duration) runner.Result {
	return runner.Result{
		Scenario:   name,
		RunID:      "run-" + name,
		Outcome:    runner.Passed,
		StartedAt:  t0.Add(offset),
		FinishedAt: t0.Add(offset + 2*time.Second),
	}
}

func failed(name, msg string, offset time.Duration) runner.Result {
	return runner.Result{
		Scenario:   name,
		RunID:      "run-" + name,
		Outcome:    runner.Failed,
		Code:       errs.AssertionFailed,
		Message:    msg,
		FinalURL:   "http://clinic.test/admin",
		StartedAt:  t0.Add(offset),
		FinishedAt: t0.Add(offset + time.Second),
		Screenshot: []byte("\x89PNG"),
		Steps: []runner.StepResult{
			{Index: 0, Kind: scenario.KindNavigate, Description: "navigate /admin", Status: runner.StepOK},
			{Index: 1, Kind: scenario.KindFill, Description: `fill placeholder="Enter your password"`, Value: "[REDACTED]", Status: runner.StepOK},
			{Index: 2, Kind: scenario.KindAssert, Description: `assert visible text="Recent Appointments"`, Status: runner.StepFailed, Error: msg},
		},
	}
}

func TestBuild_CountsAndSpan(t *testing.T) {
	r := Build("suite-1", "http://clinic.test", []runner.Result{
		passed("homepage-sections", 5*time.Second),
		failed("admin-dashboard", "boom", 0),
		passed("booking-validation", 10*time.Second),
	})
	if r.Total != 3 || r.Passed != 2 || r.Failed != 1 || r.OK() {
		t.Fatalf("counts total=%d passed=%d failed=%d ok=%v", r.Total, r.Passed, r.Failed, r.OK())
	}
	if !r.StartedAt.Equal(t0) || !r.FinishedAt.Equal(t0.Add(12*time.Second)) {
		t.Fatalf("span %s..%s", r.StartedAt, r.FinishedAt)
	}
	if r.Results[0].Scenario != "homepage-sections" || r.Results[2].Scenario != "booking-validation" {
		t.Fatal("Build reordered results")
	}
	if got := r.FailedResults(); len(got) != 1 || got[0].Scenario != "admin-dashboard" {
		t.Fatalf("FailedResults = %v", got)
	}
	if !strings.Contains(r.Subject(), "1 failed") {
		t.Fatalf("Subject = %q", r.Subject())
	}
}

func TestBuild_Empty(t *testing.T) {
	r := Build("suite-1", "http://clinic.test", nil)
	if !r.OK() || r.Total != 0 {
		t.Fatalf("empty report: %+v", r)
	}
	if !strings.Contains(r.Markdown(), "No scenarios were run.") {
		t.Fatalf("Markdown = %q", r.Markdown())
	}
	if !strings.Contains(r.Subject(), "all passed") {
		t.Fatalf("Subject = %q", r.Subject())
	}
}

func TestMarkdown_TableAndFailureDetail(t *testing.T) {
	r := Build("suite-1", "http://clinic.test", []runner.Result{
		passed("homepage-sections", 0),
		failed("admin-dashboard", "expected text to be visible | it was not", 0),
	})
	md := r.Markdown()
	for _, want := range []string{
		"| Scenario | Outcome | Code | Duration | Soft failures |",
		"| homepage-sections | passed | - | 2s | 0 |",
		"| admin-dashboard | failed | assertion_failed | 1s | 0 |",
		"## admin-dashboard",
		`> expected text to be visible \| it was not`,
		"Last page: `http://clinic.test/admin`",
		"3. [failed] assert visible",
		"= `[REDACTED]`",
		"**1/2 scenarios passed**",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q\n%s", want, md)
		}
	}
	if strings.Contains(md, "## homepage-sections") {
		t.Error("passing scenario has a failure section")
	}
}

func TestHTML_SanitizesPageContent(t *testing.T) {
	r := Build("suite-1", "http://clinic.test", []runner.Result{
		failed("admin-dashboard", `<script>alert("x")</script><img src=x onerror=alert(1)>`, 0),
	})
	out := string(r.HTML())
	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Fatalf("not a document: %.80q", out)
	}
	if strings.Contains(out, "<script>alert") || strings.Contains(out, "onerror") {
		t.Fatalf("HTML kept active content:\n%s", out)
	}
	if !strings.Contains(out, "<table>") || !strings.Contains(out, "admin-dashboard") {
		t.Fatalf("HTML missing the results table:\n%s", out)
	}
}

func TestJSON_OmitsScreenshots(t *testing.T) {
	r := Build("suite-1", "http://clinic.test", []runner.Result{failed("admin-dashboard", "boom", 0)})
	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if strings.Contains(string(data), "Screenshot") || strings.Contains(string(data), "screenshot") {
		t.Fatalf("JSON includes the screenshot: %s", data)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.SuiteID != "suite-1" || decoded.Failed != 1 || decoded.Results[0].Code != errs.AssertionFailed {
		t.Fatalf("decoded %+v", decoded)
	}
}

func testBuild_CountsAddUp(t *rapid.T) {
	outcomes := rapid.SliceOfN(rapid.Bool(), 0, 20).Draw(t, "outcomes")
	results := make([]runner.Result, len(outcomes))
	for i, ok := range outcomes {
		if ok {
			results[i] = passed("s", time.Duration(i)*time.Second)
		} else {
			results[i] = failed("s", "m", time.Duration(i)*time.Second)
		}
	}
	r := Build("suite", "http://x", results)
	if r.Passed+r.Failed != r.Total || r.Total != len(results) {
		t.Fatalf("passed=%d failed=%d total=%d", r.Passed, r.Failed, r.Total)
	}
	if r.OK() != (r.Failed == 0) || len(r.FailedResults()) != r.Failed {
		t.Fatalf("inconsistent failure view")
	}
}

func TestBuild_CountsAddUp(t *testing.T) {
	rapid.Check(t, testBuild_CountsAddUp)
}
