// Package scenario handles parsing and execution of YAML scenario files.
package scenario

import (
	"fmt"

	"github.com/testlab-dev/appharness/pkg/core"
)

// StepType identifies a scenario step.
type StepType string

const (
	StepLaunchApp            StepType = "launchApp"
	StepStopApp              StepType = "stopApp"
	StepClick                StepType = "click"
	StepCheckVisible         StepType = "checkVisible"
	StepTypeText             StepType = "typeText"
	StepScroll               StepType = "scroll"
	StepTapPoint             StepType = "tapPoint"
	StepAwaitEvent           StepType = "awaitEvent"
	StepAwaitEventBackground StepType = "awaitEventBackground"
	StepRunScript            StepType = "runScript"
	StepWait                 StepType = "wait"
)

// Step is the interface all scenario steps implement.
type Step interface {
	Type() StepType
	Describe() string
}

// BaseStep carries the fields common to all steps.
type BaseStep struct {
	StepType StepType `yaml:"-"`
	Label    string   `yaml:"label"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// Selector names an element in a step. Text and ID are mutually exclusive;
// a text value starting with "~" matches by substring.
type Selector struct {
	Text  string `yaml:"text"`
	ID    string `yaml:"id"`
	Index int    `yaml:"index"` // 1-based ordinal, 0 = first
}

// Empty reports whether no selector field is set.
func (s Selector) Empty() bool {
	return s.Text == "" && s.ID == ""
}

func (s Selector) validate() error {
	if s.Text != "" && s.ID != "" {
		return core.ErrInvalidOption.WithMessage("selector sets both text and id")
	}
	return nil
}

// ClickStep clicks an element named by a selector or derived from an event.
// Exactly one of the selector and the event block may be set.
type ClickStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`

	// Event-derived target.
	Event        string `yaml:"event"`
	EventPattern string `yaml:"pattern"`
	Item         string `yaml:"item"`
	Position     string `yaml:"position"` // first (default) | last
}

func (s *ClickStep) validate() error {
	if s.Event != "" && !s.Selector.Empty() {
		return core.ErrInvalidOption.WithMessage("click sets both a selector and an event target")
	}
	if s.Event == "" && s.Selector.Empty() {
		return core.ErrInvalidOption.WithMessage("click has no target")
	}
	if s.Position != "" && s.Position != "first" && s.Position != "last" {
		return core.ErrInvalidOption.WithMessage("click position must be first or last, got %q", s.Position)
	}
	return s.Selector.validate()
}

// Describe returns a human-readable description.
func (s *ClickStep) Describe() string {
	if s.Event != "" {
		return fmt.Sprintf("click item from event %q", s.Event)
	}
	if s.ID != "" {
		return fmt.Sprintf("click id %q", s.ID)
	}
	return fmt.Sprintf("click %q", s.Text)
}

// CheckVisibleStep asserts an element is visible.
type CheckVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *CheckVisibleStep) Describe() string {
	if s.ID != "" {
		return fmt.Sprintf("checkVisible id %q", s.ID)
	}
	return fmt.Sprintf("checkVisible %q", s.Text)
}

// TypeTextStep types text, optionally into a selected field.
type TypeTextStep struct {
	BaseStep `yaml:",inline"`
	Text     string    `yaml:"text"`
	Into     *Selector `yaml:"into"`
}

// ScrollStep performs a viewport scroll.
type ScrollStep struct {
	BaseStep  `yaml:",inline"`
	Direction string  `yaml:"direction"`
	Capacity  float64 `yaml:"capacity"`
}

// TapPointStep taps an absolute coordinate.
type TapPointStep struct {
	BaseStep `yaml:",inline"`
	X        int `yaml:"x"`
	Y        int `yaml:"y"`
}

// AwaitEventStep blocks until a telemetry event arrives.
type AwaitEventStep struct {
	BaseStep  `yaml:",inline"`
	Name      string `yaml:"name"`
	Pattern   string `yaml:"pattern"`
	TimeoutMs int    `yaml:"timeout"`
}

// AwaitEventBackgroundStep registers a deferred event check.
type AwaitEventBackgroundStep struct {
	BaseStep `yaml:",inline"`
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
}

// RunScriptStep evaluates JavaScript in the session engine.
type RunScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// WaitStep sleeps for a fixed duration.
type WaitStep struct {
	BaseStep `yaml:",inline"`
	Ms       int `yaml:"ms"`
}

// LaunchAppStep brings the configured app to the foreground.
type LaunchAppStep struct {
	BaseStep `yaml:",inline"`
}

// StopAppStep terminates the configured app.
type StopAppStep struct {
	BaseStep `yaml:",inline"`
}
