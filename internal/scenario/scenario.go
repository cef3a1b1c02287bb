// Package scenario models end-to-end scenarios as ordered, declarative step
// lists and loads them from YAML files.
package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/clinicprobe/internal/engine"
	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/logutil"
)

// Locator references a UI element.
type Locator = engine.Locator

// Kind is the step variant.
type Kind string

const (
	KindNavigate Kind = "navigate"
	KindFill     Kind = "fill"
	KindClick    Kind = "click"
	KindSelect   Kind = "select"
	KindAssert   Kind = "assert"
	KindWait     Kind = "wait"
)

// Condition is what an assert step expects.
type Condition string

const (
	Visible     Condition = "visible"
	Hidden      Condition = "hidden"
	URLContains Condition = "url-contains"
)

// Step is one ordered action. Which fields apply depends on Kind.
type Step struct {
	Kind Kind

	// navigate
	URL        string
	WaitUntil  engine.ReadyState // empty means commit
	SkipFrames bool              // do not wait for sub-frames after navigating

	// fill, click, select, assert
	Target Locator

	// fill and select value, or the URL substring of a url-contains assert
	Value    string
	HasValue bool

	// assert
	Condition Condition // empty means visible
	Message   string    // replaces the default failure message

	// wait
	Duration time.Duration

	// Timeout bounds the step; zero uses the runner default for the kind.
	Timeout time.Duration

	// Sensitive hides Value from logs, stored results and reports.
	Sensitive bool
}

// Scenario is one independent end-to-end scenario.
type Scenario struct {
	Name        string
	Description string
	Tags        []string
	Steps       []Step
}

// HasTag reports whether the scenario carries tag.
func (s Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// EffectiveCondition returns the assert condition, defaulting to visible.
func (s Step) EffectiveCondition() Condition {
	if s.Condition == "" {
		return Visible
	}
	return s.Condition
}

// EffectiveWaitUntil returns the navigation readiness condition, defaulting to commit.
func (s Step) EffectiveWaitUntil() engine.ReadyState {
	if s.WaitUntil == "" {
		return engine.ReadyCommit
	}
	return s.WaitUntil
}

// IsSensitive reports whether the step value must be hidden.
func (s Step) IsSensitive() bool {
	if s.Sensitive {
		return true
	}
	if s.Kind != KindFill && s.Kind != KindSelect {
		return false
	}
	return logutil.IsSensitiveLogField(s.Target.Value) || logutil.IsSensitiveLogField(s.Target.Name)
}

// DisplayValue returns Value, redacted when the step is sensitive.
func (s Step) DisplayValue() string {
	return logutil.RedactValue(s.Target.Value, s.Value, s.IsSensitive())
}

// Describe returns a short human-readable description of the step.
func (s Step) Describe() string {
	switch s.Kind {
	case KindNavigate:
		return "navigate " + s.URL
	case KindFill, KindClick, KindSelect:
		return string(s.Kind) + " " + s.Target.String()
	case KindAssert:
		if s.EffectiveCondition() == URLContains {
			return fmt.Sprintf("assert url contains %q", s.Value)
		}
		return fmt.Sprintf("assert %s %s", s.EffectiveCondition(), s.Target)
	case KindWait:
		return "wait " + s.Duration.String()
	default:
		return string(s.Kind)
	}
}

// Validate rejects malformed scenarios. Every problem is reported at once.
func (s Scenario) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, "scenario name is required")
	}
	if len(s.Steps) == 0 {
		problems = append(problems, "scenario has no steps")
	}
	for i, step := range s.Steps {
		for _, p := range step.validate() {
			problems = append(problems, fmt.Sprintf("step %d (%s): %s", i, step.Kind, p))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	name := s.Name
	if name == "" {
		name = "<unnamed>"
	}
	return errs.New(errs.InvalidArgument, fmt.Sprintf("invalid scenario %q: %s", name, strings.Join(problems, "; ")))
}

func (s Step) validate() []string {
	var problems []string
	if s.Timeout < 0 {
		problems = append(problems, "timeout must not be negative")
	}

	switch s.Kind {
	case KindNavigate:
		if strings.TrimSpace(s.URL) == "" {
			problems = append(problems, "url is required")
		}
		if s.WaitUntil != "" && !s.WaitUntil.Valid() {
			problems = append(problems, fmt.Sprintf("unknown ready state %q", s.WaitUntil))
		}
	case KindFill, KindSelect:
		problems = append(problems, validateLocator(s.Target)...)
		if !s.HasValue {
			problems = append(problems, "value is required")
		}
		if s.Kind == KindSelect && s.Value == "" {
			problems = append(problems, "select value must not be empty")
		}
	case KindClick:
		problems = append(problems, validateLocator(s.Target)...)
	case KindAssert:
		switch s.EffectiveCondition() {
		case Visible, Hidden:
			problems = append(problems, validateLocator(s.Target)...)
		case URLContains:
			if s.Value == "" {
				problems = append(problems, "url-contains assertion needs a value")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown condition %q", s.Condition))
		}
	case KindWait:
		if s.Duration <= 0 {
			problems = append(problems, "wait duration must be positive")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown step kind %q", s.Kind))
	}
	return problems
}

func validateLocator(loc Locator) []string {
	if loc.IsZero() {
		return []string{"locator is required"}
	}
	var problems []string
	if !loc.Kind.Valid() {
		problems = append(problems, fmt.Sprintf("unknown locator kind %q", loc.Kind))
	}
	if strings.TrimSpace(loc.Value) == "" {
		problems = append(problems, "locator value is required")
	}
	if loc.Nth < 0 {
		problems = append(problems, "locator nth must not be negative")
	}
	return problems
}
