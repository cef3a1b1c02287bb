package clinic

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/kuitang/clinicprobe/internal/engine/enginetest"
	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/logutil"
	"github.com/kuitang/clinicprobe/internal/runner"
	"github.com/kuitang/clinicprobe/internal/scenario"
	"github.com/kuitang/clinicprobe/internal/urlutil"
)

const baseURL = "http://clinic.test"

var testCreds = Credentials{Email: "admin@example.test", Password: "s3cret-Pass"}

// siteFor builds a fake site on which every element sc touches is present on
// the page it is used from.
func siteFor(sc scenario.Scenario) *enginetest.Driver {
	d := &enginetest.Driver{Pages: map[string][]string{}}
	current := ""
	for _, step := range sc.Steps {
		if step.Kind == scenario.KindNavigate {
			current = urlutil.BuildAbsolute(baseURL, step.URL)
			if _, ok := d.Pages[current]; !ok {
				d.Pages[current] = nil
			}
			continue
		}
		if !step.Target.IsZero() {
			d.Pages[current] = append(d.Pages[current], enginetest.Key(step.Target))
		}
	}
	return d
}

func testRunner(d *enginetest.Driver) *runner.Runner {
	opts := runner.DefaultOptions(baseURL)
	opts.TrailingDelay = 0
	return runner.New(d, opts)
}

func TestScenarios_AllValidate(t *testing.T) {
	for _, sc := range Scenarios(testCreds) {
		if err := sc.Validate(); err != nil {
			t.Errorf("%s: %v", sc.Name, err)
		}
		if sc.Description == "" {
			t.Errorf("%s: missing description", sc.Name)
		}
		if len(sc.Tags) == 0 {
			t.Errorf("%s: missing tags", sc.Name)
		}
	}
}

func TestScenarios_RoundTripThroughYAML(t *testing.T) {
	want := Scenarios(testCreds)
	data, err := scenario.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := scenario.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip changed the catalog:\n%s", data)
	}
}

func TestScenarios_PassOnMatchingSite(t *testing.T) {
	for _, sc := range Scenarios(testCreds) {
		t.Run(sc.Name, func(t *testing.T) {
			res := testRunner(siteFor(sc)).Run(context.Background(), sc)
			if !res.Passed() {
				t.Fatalf("outcome = %s (%s: %s)", res.Outcome, res.Code, res.Message)
			}
		})
	}
}

func TestScenarios_FailWithOneOutcomeWhenContentMissing(t *testing.T) {
	for _, sc := range []scenario.Scenario{HomepageSections(), BookingValidation(), DoctorCreate(testCreds)} {
		t.Run(sc.Name, func(t *testing.T) {
			d := siteFor(sc)
			last := sc.Steps[len(sc.Steps)-1]
			for url, keys := range d.Pages {
				var kept []string
				for _, k := range keys {
					if k != enginetest.Key(last.Target) {
						kept = append(kept, k)
					}
				}
				d.Pages[url] = kept
			}

			res := testRunner(d).Run(context.Background(), sc)
			if res.Outcome != runner.Failed || res.Code != errs.AssertionFailed {
				t.Fatalf("outcome = %s code = %s, want failed/assertion_failed", res.Outcome, res.Code)
			}
			if res.Message == "" {
				t.Fatal("empty failure message")
			}
			if last.Message != "" && res.Message != last.Message {
				t.Fatalf("message = %q, want %q", res.Message, last.Message)
			}
			_, stops, browserCloses, contextCloses := d.Counts()
			if stops != 1 || browserCloses != 1 || contextCloses != 1 {
				t.Fatalf("released stop=%d browser=%d context=%d, want 1 each", stops, browserCloses, contextCloses)
			}
		})
	}
}

func TestAdminLogin_UsesCredentialsAndHidesPassword(t *testing.T) {
	steps := AdminLogin(testCreds)
	if len(steps) != 4 {
		t.Fatalf("len(steps) = %d, want 4", len(steps))
	}
	if steps[1].Value != testCreds.Email || steps[2].Value != testCreds.Password {
		t.Fatalf("login fills %q / %q", steps[1].Value, steps[2].Value)
	}
	if got := steps[2].DisplayValue(); got != logutil.Redacted {
		t.Fatalf("password display = %q, want redacted", got)
	}

	res := testRunner(siteFor(AdminDashboard(testCreds))).Run(context.Background(), AdminDashboard(testCreds))
	for _, sr := range res.Steps {
		if strings.Contains(sr.Value, testCreds.Password) {
			t.Fatalf("step %d leaks the password", sr.Index)
		}
	}
}

func TestScenarios_NoHardCodedCredentials(t *testing.T) {
	other := Credentials{Email: "other@example.test", Password: "other-pass"}
	for _, sc := range Scenarios(other) {
		for _, step := range sc.Steps {
			if step.Value == testCreds.Email || step.Value == testCreds.Password {
				t.Fatalf("%s uses credentials it was not given", sc.Name)
			}
		}
	}
}

func TestCatalog_LookupFilterNames(t *testing.T) {
	c := Default(testCreds)
	if c.Len() != 10 {
		t.Fatalf("Len = %d, want 10", c.Len())
	}

	sc, ok := c.Lookup(" doctor-create ")
	if !ok || sc.Name != "doctor-create" {
		t.Fatalf("Lookup(doctor-create) = %q, %v", sc.Name, ok)
	}
	if _, ok := c.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) found a scenario")
	}

	public := c.Filter("PUBLIC")
	if len(public) != 2 || public[0].Name != "homepage-sections" || public[1].Name != "booking-validation" {
		t.Fatalf("Filter(public) = %v", scenarioNames(public))
	}
	if got := len(c.Filter()); got != c.Len() {
		t.Fatalf("Filter() returned %d scenarios", got)
	}
	smoke := c.Filter("smoke", "booking")
	if want := []string{"homepage-sections", "booking-validation", "admin-dashboard"}; !reflect.DeepEqual(scenarioNames(smoke), want) {
		t.Fatalf("Filter(smoke, booking) = %v, want %v", scenarioNames(smoke), want)
	}

	names := c.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Names not sorted: %v", names)
		}
	}
}

func TestCatalog_Select(t *testing.T) {
	c := Default(testCreds)
	got, err := c.Select([]string{"session-logout", "homepage-sections"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if want := []string{"session-logout", "homepage-sections"}; !reflect.DeepEqual(scenarioNames(got), want) {
		t.Fatalf("Select = %v, want %v", scenarioNames(got), want)
	}

	_, err = c.Select([]string{"nope", "homepage-sections", "also-nope"})
	if errs.CodeOf(err) != errs.InvalidArgument {
		t.Fatalf("code = %s, want invalid_argument", errs.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "nope, also-nope") {
		t.Fatalf("error %q does not list unknown names", err)
	}
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]scenario.Scenario{HomepageSections(), HomepageSections()})
	if errs.CodeOf(err) != errs.InvalidArgument {
		t.Fatalf("code = %s, want invalid_argument", errs.CodeOf(err))
	}
}

func scenarioNames(scs []scenario.Scenario) []string {
	out := make([]string, len(scs))
	for i, sc := range scs {
		out[i] = sc.Name
	}
	return out
}
