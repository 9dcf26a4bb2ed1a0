package scenario

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/jsengine"
	"github.com/testlab-dev/appharness/pkg/locator"
	"github.com/testlab-dev/appharness/pkg/session"
)

// fakeExecutor records the session calls a scenario produces.
type fakeExecutor struct {
	engine *jsengine.Engine
	calls  []string
	failOn string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{engine: jsengine.New(core.Android)}
}

func (f *fakeExecutor) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && strings.HasPrefix(call, f.failOn) {
		return errors.New("injected failure")
	}
	return nil
}

func (f *fakeExecutor) LaunchApp() error { return f.record("launchApp") }
func (f *fakeExecutor) StopApp() error   { return f.record("stopApp") }

func (f *fakeExecutor) ClickElement(t session.ElementTarget) error {
	return f.record("clickElement " + t.Locator.Describe(core.Android))
}

func (f *fakeExecutor) ClickText(t session.TextTarget) error {
	return f.record("clickText " + t.Pattern)
}

func (f *fakeExecutor) ClickFromEvent(t session.EventTarget) error {
	return f.record("clickFromEvent " + t.Name)
}

func (f *fakeExecutor) CheckVisibleElement(t session.ElementTarget) error {
	return f.record("checkVisibleElement")
}

func (f *fakeExecutor) CheckVisibleText(t session.TextTarget) error {
	return f.record("checkVisibleText " + t.Pattern)
}

func (f *fakeExecutor) TypeText(loc *locator.Locator, text string) error {
	if loc == nil {
		return f.record("typeText(focused) " + text)
	}
	return f.record("typeText " + text)
}

func (f *fakeExecutor) Scroll(direction string, capacity float64) error {
	return f.record("scroll " + direction)
}

func (f *fakeExecutor) TapPoint(p core.Point) error {
	return f.record("tapPoint " + p.String())
}

func (f *fakeExecutor) AwaitEvent(name, pattern string, timeout time.Duration) error {
	return f.record("awaitEvent " + name)
}

func (f *fakeExecutor) AwaitEventBackground(name, pattern string) {
	f.record("awaitEventBackground " + name)
}

func (f *fakeExecutor) RunScript(script string) error { return f.record("runScript") }
func (f *fakeExecutor) Wait(d time.Duration) error    { return f.record("wait " + d.String()) }
func (f *fakeExecutor) Engine() *jsengine.Engine      { return f.engine }

func mustParse(t *testing.T, data string) *Scenario {
	t.Helper()
	sc, err := Parse([]byte(data), "test.yaml")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return sc
}

func TestRunner_DispatchesByTargetVariant(t *testing.T) {
	sc := mustParse(t, `
- launchApp
- click: "Buy now"
- click:
    id: cart_icon
- click:
    event: cart_updated
    item: '{"sku":"c-1"}'
- checkVisible: "~Order"
- awaitEventBackground: screen_view
- stopApp
`)
	exec := newFakeExecutor()
	if err := NewRunner(exec).Run(sc); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []string{
		"launchApp",
		"clickText Buy now",
		"clickElement",
		"clickFromEvent cart_updated",
		"checkVisibleText ~Order",
		"awaitEventBackground screen_view",
		"stopApp",
	}
	if len(exec.calls) != len(want) {
		t.Fatalf("calls = %v", exec.calls)
	}
	for i, w := range want {
		if !strings.HasPrefix(exec.calls[i], w) {
			t.Errorf("call %d = %q, want prefix %q", i, exec.calls[i], w)
		}
	}
}

func TestRunner_ExpandsExpressionsInTargets(t *testing.T) {
	sc := mustParse(t, `
- click: "Hello ${user}"
`)
	exec := newFakeExecutor()
	exec.engine.SetVariable("user", "alice")

	if err := NewRunner(exec).Run(sc); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if exec.calls[0] != "clickText Hello alice" {
		t.Errorf("call = %q", exec.calls[0])
	}
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	sc := mustParse(t, `
- launchApp
- click: "Missing"
- stopApp
`)
	exec := newFakeExecutor()
	exec.failOn = "clickText"

	err := NewRunner(exec).Run(sc)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "step 2") {
		t.Errorf("error must name the failing step: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Errorf("execution must stop after the failure, calls = %v", exec.calls)
	}
}
