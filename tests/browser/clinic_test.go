package browser

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/clinicprobe/internal/clinic"
	"github.com/kuitang/clinicprobe/internal/engine"
	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/runner"
	"github.com/kuitang/clinicprobe/internal/scenario"
	"github.com/kuitang/clinicprobe/internal/suite"
)

var creds = clinic.Credentials{Email: "admin@example.test", Password: "s3cret-pass"}

func TestHomepageSections(t *testing.T) {
	RequireBrowser(t)
	srv := ClinicServer(t)

	res := runner.New(engine.PlaywrightDriver{}, RunnerOptions(srv.URL)).
		Run(context.Background(), clinic.HomepageSections())
	require.True(t, res.Passed(), "%s: %s", res.Code, res.Message)
	require.Equal(t, srv.URL+"/", res.FinalURL)
}

func TestAdminDashboard_SignsInAndRedactsPassword(t *testing.T) {
	RequireBrowser(t)
	srv := ClinicServer(t)

	res := runner.New(engine.PlaywrightDriver{}, RunnerOptions(srv.URL)).
		Run(context.Background(), clinic.AdminDashboard(creds))
	require.True(t, res.Passed(), "%s: %s", res.Code, res.Message)
	require.Contains(t, res.FinalURL, "/admin/dashboard")
	for _, sr := range res.Steps {
		require.NotContains(t, sr.Value, creds.Password)
		require.NotContains(t, sr.Description, creds.Password)
	}
}

func TestMissingSection_FailsWithScreenshot(t *testing.T) {
	RequireBrowser(t)
	srv := ClinicServer(t)

	sc := scenario.New("gallery-section").
		Navigate("/").
		ExpectVisible(scenario.ByText("Gallery"), scenario.WithMessage("the gallery section is missing")).
		Build()
	res := runner.New(engine.PlaywrightDriver{}, RunnerOptions(srv.URL)).Run(context.Background(), sc)

	require.Equal(t, runner.Failed, res.Outcome)
	require.Equal(t, errs.AssertionFailed, res.Code)
	require.Contains(t, res.Message, "the gallery section is missing")
	require.True(t, bytes.HasPrefix(res.Screenshot, []byte("\x89PNG")), "failure screenshot is a PNG")
	require.Equal(t, "Om Chabahil Dental", res.FinalTitle)
	require.Equal(t, runner.StateTornDown, res.States[len(res.States)-1])
}

func TestSuite_ParallelSessionsAreIsolated(t *testing.T) {
	RequireBrowser(t)
	srv := ClinicServer(t)

	r := runner.New(engine.PlaywrightDriver{}, RunnerOptions(srv.URL))
	rep := suite.New(r, suite.Options{BaseURL: srv.URL, Parallelism: 2}).
		Run(context.Background(), []scenario.Scenario{clinic.HomepageSections(), clinic.AdminDashboard(creds)})

	require.True(t, rep.OK(), rep.Markdown())
	require.Equal(t, "homepage-sections", rep.Results[0].Scenario)
	require.Equal(t, "admin-dashboard", rep.Results[1].Scenario)
}
