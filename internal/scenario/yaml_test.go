package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/clinicprobe/internal/engine"
	"github.com/kuitang/clinicprobe/internal/errs"
)

const sampleYAML = `
scenarios:
  - name: admin-login
    description: Sign in to the admin panel
    tags: [admin, smoke]
    steps:
      - navigate: /admin
        ready: domcontentloaded
        frames: false
      - fill: {placeholder: admin@omchabahildental.com.np}
        value: admin@example.test
      - fill: {placeholder: Enter your password}
        value: secret
      - click: {role: button, name: Sign In, exact: true}
      - assert: {text: Recent Appointments}
        timeout: 3s
        message: dashboard did not load
      - assert: {}
        condition: url-contains
        value: /admin
      - wait: 250ms
`

func TestParse_SampleFile(t *testing.T) {
	t.Parallel()
	scenarios, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	sc := scenarios[0]
	require.Equal(t, "admin-login", sc.Name)
	require.Equal(t, []string{"admin", "smoke"}, sc.Tags)
	require.Len(t, sc.Steps, 7)

	nav := sc.Steps[0]
	require.Equal(t, KindNavigate, nav.Kind)
	require.Equal(t, engine.ReadyDOMContentLoaded, nav.WaitUntil)
	require.True(t, nav.SkipFrames)

	password := sc.Steps[2]
	require.Equal(t, engine.ByPlaceholder, password.Target.Kind)
	require.True(t, password.IsSensitive())

	click := sc.Steps[3]
	require.Equal(t, Locator{Kind: engine.ByRole, Value: "button", Name: "Sign In", Exact: true}, click.Target)

	assert := sc.Steps[4]
	require.Equal(t, 3*time.Second, assert.Timeout)
	require.Equal(t, "dashboard did not load", assert.Message)

	url := sc.Steps[5]
	require.Equal(t, URLContains, url.Condition)
	require.Equal(t, "/admin", url.Value)

	require.Equal(t, 250*time.Millisecond, sc.Steps[6].Duration)
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"empty":          ``,
		"unknown key":    "scenarios:\n  - name: x\n    steps:\n      - navigate: /\n        hover: true\n",
		"two actions":    "scenarios:\n  - name: x\n    steps:\n      - navigate: /\n        click: {text: y}\n",
		"no action":      "scenarios:\n  - name: x\n    steps:\n      - value: y\n",
		"bad duration":   "scenarios:\n  - name: x\n    steps:\n      - wait: soon\n",
		"bad timeout":    "scenarios:\n  - name: x\n    steps:\n      - click: {text: y}\n        timeout: later\n",
		"invalid step":   "scenarios:\n  - name: x\n    steps:\n      - fill: {label: Email}\n",
		"duplicate name": "scenarios:\n  - name: x\n    steps:\n      - navigate: /\n  - name: x\n    steps:\n      - navigate: /\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc))
		if err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
		if errs.CodeOf(err) != errs.InvalidArgument {
			t.Fatalf("%s: expected invalid_argument, got %q (%v)", name, errs.CodeOf(err), err)
		}
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	t.Parallel()
	original := []Scenario{validScenario()}

	data, err := Marshal(original)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	scenarios, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}
