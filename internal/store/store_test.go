package store

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/clinicprobe/internal/crypto"
	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/runner"
	"github.com/kuitang/clinicprobe/internal/scenario"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTemp(t *testing.T, key []byte) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path, key)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func result(name, runID string, outcome runner.Outcome, at time.Time, steps ...string) runner.Result {
	res := runner.Result{
		Scenario:   name,
		RunID:      runID,
		Outcome:    outcome,
		StartedAt:  at,
		FinishedAt: at.Add(1500 * time.Millisecond),
		FinalURL:   "http://clinic.test/",
	}
	if outcome == runner.Failed {
		res.Code = errs.AssertionFailed
		res.Message = "expected text to be visible"
	}
	if len(steps) == 0 {
		steps = []string{"navigate /", `assert visible text="Testimonials"`}
	}
	for i, d := range steps {
		res.Steps = append(res.Steps, runner.StepResult{
			Index:       i,
			Kind:        scenario.KindAssert,
			Description: d,
			Status:      runner.StepOK,
			Duration:    time.Duration(i+1) * time.Millisecond,
		})
	}
	return res
}

func TestRecordResult_RoundTrip(t *testing.T) {
	s, _ := openTemp(t, nil)
	ctx := context.Background()

	res := result("homepage-sections", "run-1", runner.Failed, base)
	res.Steps[1].Status = runner.StepFailed
	res.Steps[1].Error = "boom"
	res.Steps[0].Value = "[REDACTED]"
	res.SoftFailures = 2
	require.NoError(t, s.RecordResult(ctx, "suite-1", res))

	runs, err := s.History(ctx, "homepage-sections", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, "suite-1", got.SuiteID)
	require.Equal(t, runner.Failed, got.Outcome)
	require.Equal(t, errs.AssertionFailed, got.Code)
	require.Equal(t, "expected text to be visible", got.Message)
	require.Equal(t, 2, got.SoftFailures)
	require.True(t, got.StartedAt.Equal(base))
	require.True(t, got.FinishedAt.Equal(base.Add(1500*time.Millisecond)))
	require.Len(t, got.Fingerprint, 64)
	require.False(t, got.Passed())

	steps, err := s.Steps(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, res.Steps, steps)
}

func TestRecordResult_DuplicateRunIDFails(t *testing.T) {
	s, _ := openTemp(t, nil)
	ctx := context.Background()
	res := result("homepage-sections", "run-1", runner.Passed, base)
	require.NoError(t, s.RecordResult(ctx, "suite-1", res))
	require.Error(t, s.RecordResult(ctx, "suite-1", res))

	steps, err := s.Steps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, len(res.Steps))
}

func TestHistoryAndRecentRuns_NewestFirst(t *testing.T) {
	s, _ := openTemp(t, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		name := "homepage-sections"
		if i%2 == 1 {
			name = "admin-dashboard"
		}
		res := result(name, fmt.Sprintf("run-%d", i), runner.Passed, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.RecordResult(ctx, "suite-1", res))
	}

	recent, err := s.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"run-4", "run-3", "run-2"}, runIDs(recent))

	hist, err := s.History(ctx, "admin-dashboard", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"run-3", "run-1"}, runIDs(hist))

	none, err := s.History(ctx, "missing", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestIsFlaky(t *testing.T) {
	s, _ := openTemp(t, nil)
	ctx := context.Background()
	record := func(id string, outcome runner.Outcome, minute int, steps ...string) {
		t.Helper()
		require.NoError(t, s.RecordResult(ctx, "suite", result("doctor-create", id, outcome, base.Add(time.Duration(minute)*time.Minute), steps...)))
	}

	flaky, err := s.IsFlaky(ctx, "doctor-create", 5)
	require.NoError(t, err)
	require.False(t, flaky, "no runs")

	record("a", runner.Passed, 0)
	record("b", runner.Passed, 1)
	flaky, err = s.IsFlaky(ctx, "doctor-create", 5)
	require.NoError(t, err)
	require.False(t, flaky, "identical outcomes")

	record("c", runner.Failed, 2)
	flaky, err = s.IsFlaky(ctx, "doctor-create", 5)
	require.NoError(t, err)
	require.True(t, flaky, "diverging outcomes")

	flaky, err = s.IsFlaky(ctx, "doctor-create", 1)
	require.NoError(t, err)
	require.False(t, flaky, "window below two")

	// A changed step list starts a new history.
	record("d", runner.Failed, 3, "navigate /admin")
	record("e", runner.Failed, 4, "navigate /admin")
	flaky, err = s.IsFlaky(ctx, "doctor-create", 5)
	require.NoError(t, err)
	require.False(t, flaky, "only the current definition counts")
}

func TestConcurrentRecording(t *testing.T) {
	s, _ := openTemp(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errCh <- s.RecordResult(ctx, "suite", result("homepage-sections", fmt.Sprintf("run-%d", i), runner.Passed, base.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	runs, err := s.RecentRuns(ctx, 100)
	require.NoError(t, err)
	require.Len(t, runs, 8)
}

func TestEncryptedStore(t *testing.T) {
	master := bytes.Repeat([]byte{0x42}, crypto.MasterKeySize)
	key := crypto.DeriveStoreKey(master)
	s, path := openTemp(t, key)
	ctx := context.Background()
	require.NoError(t, s.RecordResult(ctx, "suite", result("homepage-sections", "run-1", runner.Passed, base)))
	require.NoError(t, s.Close())

	reopened, err := Open(path, key)
	require.NoError(t, err)
	runs, err := reopened.History(ctx, "homepage-sections", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NoError(t, reopened.Close())

	other := crypto.DeriveStoreKey(bytes.Repeat([]byte{0x24}, crypto.MasterKeySize))
	_, err = Open(path, other)
	require.Error(t, err, "wrong key must not open the store")
}

func TestOpen_RejectsBadArguments(t *testing.T) {
	_, err := Open("", nil)
	require.Error(t, err)
	_, err = Open(filepath.Join(t.TempDir(), "x.db"), []byte("short"))
	require.Error(t, err)
}

func TestFingerprintSource(t *testing.T) {
	a := result("s", "1", runner.Passed, base, "navigate /", "click x")
	b := result("s", "2", runner.Failed, base, "navigate /", "click x")
	c := result("s", "3", runner.Passed, base, "navigate /", "click y")
	require.Equal(t, fingerprintSource(a.Steps), fingerprintSource(b.Steps))
	require.NotEqual(t, fingerprintSource(a.Steps), fingerprintSource(c.Steps))
}

func runIDs(runs []Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.RunID
	}
	return out
}
