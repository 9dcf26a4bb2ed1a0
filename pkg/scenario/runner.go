package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/events"
	"github.com/testlab-dev/appharness/pkg/jsengine"
	"github.com/testlab-dev/appharness/pkg/locator"
	"github.com/testlab-dev/appharness/pkg/logger"
	"github.com/testlab-dev/appharness/pkg/session"
)

// Executor is the session surface the runner drives. *session.Session
// implements it.
type Executor interface {
	LaunchApp() error
	StopApp() error
	ClickElement(session.ElementTarget) error
	ClickText(session.TextTarget) error
	ClickFromEvent(session.EventTarget) error
	CheckVisibleElement(session.ElementTarget) error
	CheckVisibleText(session.TextTarget) error
	TypeText(loc *locator.Locator, text string) error
	Scroll(direction string, capacity float64) error
	TapPoint(p core.Point) error
	AwaitEvent(name, pattern string, timeout time.Duration) error
	AwaitEventBackground(name, pattern string)
	RunScript(script string) error
	Wait(d time.Duration) error
	Engine() *jsengine.Engine
}

// Runner executes parsed scenarios against a session.
type Runner struct {
	exec Executor
}

// NewRunner creates a runner.
func NewRunner(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Run executes every step in order and stops at the first failure.
func (r *Runner) Run(sc *Scenario) error {
	logger.Info("scenario %q: %d steps", sc.Name, len(sc.Steps))
	for i, step := range sc.Steps {
		logger.Info("step %d/%d: %s", i+1, len(sc.Steps), step.Describe())
		if err := r.runStep(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Describe(), err)
		}
	}
	return nil
}

func (r *Runner) runStep(step Step) error {
	switch s := step.(type) {
	case *LaunchAppStep:
		return r.exec.LaunchApp()

	case *StopAppStep:
		return r.exec.StopApp()

	case *ClickStep:
		if s.Event != "" {
			pos := events.First
			if s.Position == "last" {
				pos = events.Last
			}
			return r.exec.ClickFromEvent(session.EventTarget{
				Name:        s.Event,
				Pattern:     s.EventPattern,
				ItemPattern: s.Item,
				Position:    pos,
			})
		}
		if t, ok := r.elementTarget(s.Selector); ok {
			return r.exec.ClickElement(t)
		}
		return r.exec.ClickText(session.TextTarget{Pattern: r.expand(s.Text)})

	case *CheckVisibleStep:
		if t, ok := r.elementTarget(s.Selector); ok {
			return r.exec.CheckVisibleElement(t)
		}
		return r.exec.CheckVisibleText(session.TextTarget{Pattern: r.expand(s.Text)})

	case *TypeTextStep:
		var loc *locator.Locator
		if s.Into != nil && !s.Into.Empty() {
			loc = r.locatorFor(*s.Into)
		}
		return r.exec.TypeText(loc, s.Text)

	case *ScrollStep:
		return r.exec.Scroll(s.Direction, s.Capacity)

	case *TapPointStep:
		return r.exec.TapPoint(core.Point{X: s.X, Y: s.Y})

	case *AwaitEventStep:
		return r.exec.AwaitEvent(s.Name, s.Pattern, time.Duration(s.TimeoutMs)*time.Millisecond)

	case *AwaitEventBackgroundStep:
		r.exec.AwaitEventBackground(s.Name, s.Pattern)
		return nil

	case *RunScriptStep:
		return r.exec.RunScript(s.Script)

	case *WaitStep:
		return r.exec.Wait(time.Duration(s.Ms) * time.Millisecond)
	}

	return core.ErrInvalidOption.WithMessage("unhandled step type %s", step.Type())
}

// elementTarget builds an element target for selectors that need a locator:
// id-based lookups and ordinal-indexed text. Plain text goes through the
// text target path instead.
func (r *Runner) elementTarget(sel Selector) (session.ElementTarget, bool) {
	if sel.ID == "" && sel.Index == 0 {
		return session.ElementTarget{}, false
	}
	return session.ElementTarget{Locator: r.locatorFor(sel), Ordinal: sel.Index}, true
}

func (r *Runner) locatorFor(sel Selector) *locator.Locator {
	if sel.ID != "" {
		return locator.ByAccessibilityID(r.expand(sel.ID))
	}
	text := r.expand(sel.Text)
	if rest, ok := strings.CutPrefix(text, "~"); ok {
		return locator.ByTextContains(rest)
	}
	return locator.ByText(text)
}

func (r *Runner) expand(text string) string {
	return r.exec.Engine().Expand(text)
}
