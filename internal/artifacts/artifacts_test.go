package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/runner"
)

func failedResult() runner.Result {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return runner.Result{
		Scenario:   "doctor-create",
		RunID:      "run-1",
		Outcome:    runner.Failed,
		Code:       errs.AssertionFailed,
		Message:    "the doctor confirmation did not appear after saving",
		StartedAt:  at,
		FinishedAt: at.Add(time.Second),
		Screenshot: []byte("\x89PNG fake"),
	}
}

func TestKeys(t *testing.T) {
	if got := ScreenshotKey("suite-1", "doctor-create", "run-1"); got != "runs/suite-1/doctor-create/run-1/screenshot.png" {
		t.Fatalf("ScreenshotKey = %q", got)
	}
	if got := ResultKey("suite-1", "doctor-create", "run-1"); got != "runs/suite-1/doctor-create/run-1/result.json" {
		t.Fatalf("ResultKey = %q", got)
	}
	if got := RunPrefix("a/b", "../x", ""); got != "runs/a_b/_x/unknown/" {
		t.Fatalf("RunPrefix = %q", got)
	}
}

func testRunPrefix_StaysUnderRuns(t *rapid.T) {
	suite := rapid.String().Draw(t, "suite")
	name := rapid.String().Draw(t, "name")
	run := rapid.String().Draw(t, "run")

	p := RunPrefix(suite, name, run)
	if !strings.HasPrefix(p, "runs/") || !strings.HasSuffix(p, "/") {
		t.Fatalf("prefix %q", p)
	}
	parts := strings.Split(strings.TrimSuffix(p, "/"), "/")
	if len(parts) != 4 {
		t.Fatalf("prefix %q has %d components", p, len(parts))
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			t.Fatalf("prefix %q has component %q", p, part)
		}
	}
}

func TestRunPrefix_StaysUnderRuns(t *testing.T) {
	rapid.Check(t, testRunPrefix_StaysUnderRuns)
}

func TestUploadResult_WritesScreenshotAndResult(t *testing.T) {
	client := TestClient(t, "probe-artifacts")
	ctx := context.Background()
	res := failedResult()

	locs, err := NewUploader(client).UploadResult(ctx, "suite-1", res)
	if err != nil {
		t.Fatalf("UploadResult: %v", err)
	}
	if len(locs) != 2 || !strings.HasPrefix(locs[0], "s3://probe-artifacts/runs/suite-1/doctor-create/run-1/") {
		t.Fatalf("locations = %v", locs)
	}

	png, err := client.GetObject(ctx, ScreenshotKey("suite-1", res.Scenario, res.RunID))
	if err != nil {
		t.Fatalf("GetObject(screenshot): %v", err)
	}
	if string(png) != string(res.Screenshot) {
		t.Fatalf("screenshot = %q", png)
	}

	data, err := client.GetObject(ctx, ResultKey("suite-1", res.Scenario, res.RunID))
	if err != nil {
		t.Fatalf("GetObject(result): %v", err)
	}
	var decoded runner.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Message != res.Message || decoded.Code != res.Code {
		t.Fatalf("decoded = %+v", decoded)
	}

	keys, err := client.ListKeys(ctx, "runs/suite-1/")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %v", keys)
	}
}

func TestUploadResult_WithoutScreenshot(t *testing.T) {
	client := TestClient(t, "probe-artifacts")
	ctx := context.Background()
	res := failedResult()
	res.Screenshot = nil

	locs, err := NewUploader(client).UploadResult(ctx, "suite-1", res)
	if err != nil {
		t.Fatalf("UploadResult: %v", err)
	}
	if len(locs) != 1 || !strings.HasSuffix(locs[0], ResultName) {
		t.Fatalf("locations = %v", locs)
	}
	_, err = client.GetObject(ctx, ScreenshotKey("suite-1", res.Scenario, res.RunID))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("screenshot lookup err = %v, want ErrObjectNotFound", err)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{Region: "auto"}); err == nil {
		t.Fatal("New without a bucket succeeded")
	}
}
