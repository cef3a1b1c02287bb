package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/clinicprobe/internal/engine"
	"github.com/kuitang/clinicprobe/internal/errs"
)

type fileDoc struct {
	Scenarios []fileScenario `yaml:"scenarios"`
}

type fileScenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Tags        []string   `yaml:"tags,omitempty"`
	Steps       []fileStep `yaml:"steps"`
}

type fileStep struct {
	Navigate string       `yaml:"navigate,omitempty"`
	Fill     *fileLocator `yaml:"fill,omitempty"`
	Click    *fileLocator `yaml:"click,omitempty"`
	Select   *fileLocator `yaml:"select,omitempty"`
	Assert   *fileLocator `yaml:"assert,omitempty"`
	Wait     string       `yaml:"wait,omitempty"`

	Value     *string `yaml:"value,omitempty"`
	Condition string  `yaml:"condition,omitempty"`
	Timeout   string  `yaml:"timeout,omitempty"`
	Ready     string  `yaml:"ready,omitempty"`
	Frames    *bool   `yaml:"frames,omitempty"`
	Message   string  `yaml:"message,omitempty"`
	Sensitive bool    `yaml:"sensitive,omitempty"`
}

type fileLocator struct {
	Role        string `yaml:"role,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Text        string `yaml:"text,omitempty"`
	Label       string `yaml:"label,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty"`
	TestID      string `yaml:"testid,omitempty"`
	CSS         string `yaml:"css,omitempty"`
	XPath       string `yaml:"xpath,omitempty"`
	Exact       bool   `yaml:"exact,omitempty"`
	Nth         int    `yaml:"nth,omitempty"`
}

// LoadFile reads and validates the scenarios in a YAML file.
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("read scenario file %s", path), err)
	}
	return Parse(data)
}

// Parse decodes and validates scenarios from YAML. Unknown keys are rejected.
func Parse(data []byte) ([]Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc fileDoc
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.New(errs.InvalidArgument, "scenario file is empty")
		}
		return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("decode scenario file: %v", err), err)
	}

	out := make([]Scenario, 0, len(doc.Scenarios))
	seen := make(map[string]bool, len(doc.Scenarios))
	for i, fs := range doc.Scenarios {
		sc, err := fs.toScenario()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("scenario %d (%s): %v", i, fs.Name, err), err)
		}
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		if seen[sc.Name] {
			return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("duplicate scenario name %q", sc.Name))
		}
		seen[sc.Name] = true
		out = append(out, sc)
	}
	return out, nil
}

// Marshal encodes scenarios in the file format read by Parse.
func Marshal(scenarios []Scenario) ([]byte, error) {
	doc := fileDoc{Scenarios: make([]fileScenario, 0, len(scenarios))}
	for _, sc := range scenarios {
		fs := fileScenario{Name: sc.Name, Description: sc.Description, Tags: sc.Tags}
		for _, step := range sc.Steps {
			fs.Steps = append(fs.Steps, fromStep(step))
		}
		doc.Scenarios = append(doc.Scenarios, fs)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode scenarios: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode scenarios: %w", err)
	}
	return buf.Bytes(), nil
}

func (fs fileScenario) toScenario() (Scenario, error) {
	sc := Scenario{Name: fs.Name, Description: fs.Description, Tags: fs.Tags}
	for i, f := range fs.Steps {
		step, err := f.toStep()
		if err != nil {
			return Scenario{}, fmt.Errorf("step %d: %w", i, err)
		}
		sc.Steps = append(sc.Steps, step)
	}
	return sc, nil
}

func (f fileStep) toStep() (Step, error) {
	var step Step
	actions := 0
	if f.Navigate != "" {
		actions++
		step.Kind = KindNavigate
		step.URL = f.Navigate
	}
	for kind, loc := range map[Kind]*fileLocator{KindFill: f.Fill, KindClick: f.Click, KindSelect: f.Select, KindAssert: f.Assert} {
		if loc == nil {
			continue
		}
		actions++
		step.Kind = kind
		step.Target = loc.toLocator()
	}
	if f.Wait != "" {
		actions++
		d, err := time.ParseDuration(f.Wait)
		if err != nil {
			return Step{}, fmt.Errorf("invalid wait duration %q", f.Wait)
		}
		step.Kind = KindWait
		step.Duration = d
	}
	if actions != 1 {
		return Step{}, fmt.Errorf("expected exactly one of navigate, fill, click, select, assert, wait; got %d", actions)
	}

	if f.Value != nil {
		step.Value = *f.Value
		step.HasValue = true
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return Step{}, fmt.Errorf("invalid timeout %q", f.Timeout)
		}
		step.Timeout = d
	}
	step.Condition = Condition(f.Condition)
	step.WaitUntil = engine.ReadyState(f.Ready)
	if f.Frames != nil {
		step.SkipFrames = !*f.Frames
	}
	step.Message = f.Message
	step.Sensitive = f.Sensitive
	return step, nil
}

// url-contains asserts have no locator but still use the assert key.
func fromStep(s Step) fileStep {
	var f fileStep
	switch s.Kind {
	case KindNavigate:
		f.Navigate = s.URL
	case KindFill:
		f.Fill = fromLocator(s.Target)
	case KindClick:
		f.Click = fromLocator(s.Target)
	case KindSelect:
		f.Select = fromLocator(s.Target)
	case KindAssert:
		f.Assert = fromLocator(s.Target)
	case KindWait:
		f.Wait = s.Duration.String()
	}
	if s.HasValue || s.Value != "" {
		v := s.Value
		f.Value = &v
	}
	if s.Timeout > 0 {
		f.Timeout = s.Timeout.String()
	}
	f.Condition = string(s.Condition)
	f.Ready = string(s.WaitUntil)
	if s.SkipFrames {
		frames := false
		f.Frames = &frames
	}
	f.Message = s.Message
	f.Sensitive = s.Sensitive
	return f
}

func (l *fileLocator) toLocator() Locator {
	loc := Locator{Exact: l.Exact, Nth: l.Nth}
	switch {
	case l.Role != "":
		loc.Kind, loc.Value, loc.Name = engine.ByRole, l.Role, l.Name
	case l.Text != "":
		loc.Kind, loc.Value = engine.ByText, l.Text
	case l.Label != "":
		loc.Kind, loc.Value = engine.ByLabel, l.Label
	case l.Placeholder != "":
		loc.Kind, loc.Value = engine.ByPlaceholder, l.Placeholder
	case l.TestID != "":
		loc.Kind, loc.Value = engine.ByTestID, l.TestID
	case l.CSS != "":
		loc.Kind, loc.Value = engine.ByCSS, l.CSS
	case l.XPath != "":
		loc.Kind, loc.Value = engine.ByXPath, l.XPath
	}
	return loc
}

func fromLocator(loc Locator) *fileLocator {
	f := &fileLocator{Exact: loc.Exact, Nth: loc.Nth}
	switch loc.Kind {
	case engine.ByRole:
		f.Role, f.Name = loc.Value, loc.Name
	case engine.ByText:
		f.Text = loc.Value
	case engine.ByLabel:
		f.Label = loc.Value
	case engine.ByPlaceholder:
		f.Placeholder = loc.Value
	case engine.ByTestID:
		f.TestID = loc.Value
	case engine.ByCSS:
		f.CSS = loc.Value
	case engine.ByXPath:
		f.XPath = loc.Value
	}
	return f
}
