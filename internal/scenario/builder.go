package scenario

import (
	"time"

	"github.com/kuitang/clinicprobe/internal/engine"
)

func ByRole(role, name string) Locator {
	return Locator{Kind: engine.ByRole, Value: role, Name: name}
}

func ByText(text string) Locator {
	return Locator{Kind: engine.ByText, Value: text}
}

func ByLabel(label string) Locator {
	return Locator{Kind: engine.ByLabel, Value: label}
}

func ByPlaceholder(placeholder string) Locator {
	return Locator{Kind: engine.ByPlaceholder, Value: placeholder}
}

func ByTestID(id string) Locator {
	return Locator{Kind: engine.ByTestID, Value: id}
}

// ByCSS and ByXPath are structural; prefer the semantic constructors.
func ByCSS(selector string) Locator {
	return Locator{Kind: engine.ByCSS, Value: selector}
}

func ByXPath(path string) Locator {
	return Locator{Kind: engine.ByXPath, Value: path}
}

// StepOption adjusts a step built by Builder.
type StepOption func(*Step)

func WithTimeout(d time.Duration) StepOption {
	return func(s *Step) { s.Timeout = d }
}

func WithReady(state engine.ReadyState) StepOption {
	return func(s *Step) { s.WaitUntil = state }
}

func WithoutFrames() StepOption {
	return func(s *Step) { s.SkipFrames = true }
}

// WithMessage sets the failure message of an assert step.
func WithMessage(msg string) StepOption {
	return func(s *Step) { s.Message = msg }
}

func AsSensitive() StepOption {
	return func(s *Step) { s.Sensitive = true }
}

// Builder assembles a Scenario step by step.
type Builder struct {
	s Scenario
}

// New starts a scenario named name.
func New(name string) *Builder {
	return &Builder{s: Scenario{Name: name}}
}

func (b *Builder) Describe(text string) *Builder {
	b.s.Description = text
	return b
}

func (b *Builder) Tag(tags ...string) *Builder {
	b.s.Tags = append(b.s.Tags, tags...)
	return b
}

func (b *Builder) add(step Step, opts []StepOption) *Builder {
	for _, opt := range opts {
		opt(&step)
	}
	b.s.Steps = append(b.s.Steps, step)
	return b
}

// Steps appends prebuilt steps, such as a shared login fragment.
func (b *Builder) Steps(steps ...Step) *Builder {
	b.s.Steps = append(b.s.Steps, steps...)
	return b
}

func (b *Builder) Navigate(url string, opts ...StepOption) *Builder {
	return b.add(Step{Kind: KindNavigate, URL: url}, opts)
}

func (b *Builder) Fill(target Locator, value string, opts ...StepOption) *Builder {
	return b.add(Step{Kind: KindFill, Target: target, Value: value, HasValue: true}, opts)
}

func (b *Builder) Click(target Locator, opts ...StepOption) *Builder {
	return b.add(Step{Kind: KindClick, Target: target}, opts)
}

func (b *Builder) Select(target Locator, value string, opts ...StepOption) *Builder {
	return b.add(Step{Kind: KindSelect, Target: target, Value: value, HasValue: true}, opts)
}

func (b *Builder) ExpectVisible(target Locator, opts ...StepOption) *Builder {
	return b.add(Step{Kind: KindAssert, Target: target, Condition: Visible}, opts)
}

func (b *Builder) ExpectHidden(target Locator, opts ...StepOption) *Builder {
	return b.add(Step{Kind: KindAssert, Target: target, Condition: Hidden}, opts)
}

func (b *Builder) ExpectURL(substr string, opts ...StepOption) *Builder {
	return b.add(Step{Kind: KindAssert, Condition: URLContains, Value: substr, HasValue: true}, opts)
}

func (b *Builder) Wait(d time.Duration) *Builder {
	return b.add(Step{Kind: KindWait, Duration: d}, nil)
}

// Build returns the assembled scenario. It does not validate.
func (b *Builder) Build() Scenario {
	out := b.s
	out.Tags = append([]string(nil), b.s.Tags...)
	out.Steps = append([]Step(nil), b.s.Steps...)
	return out
}
