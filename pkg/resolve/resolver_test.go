package resolve

import (
	"errors"
	"testing"
	"time"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/gesture"
	"github.com/testlab-dev/appharness/pkg/locator"
)

// fakeDevice scripts device behavior per test via closures.
type fakeDevice struct {
	find      func(value string) ([]string, error)
	displayed func(id string) (bool, error)
	rects     map[string]core.Bounds
	sources   []string
	srcIdx    int

	findCalls   []string
	actionCalls int
}

func (f *fakeDevice) FindElements(strategy, value string) ([]string, error) {
	f.findCalls = append(f.findCalls, value)
	if f.find == nil {
		return nil, nil
	}
	return f.find(value)
}

func (f *fakeDevice) IsDisplayed(id string) (bool, error) {
	if f.displayed == nil {
		return true, nil
	}
	return f.displayed(id)
}

func (f *fakeDevice) GetRect(id string) (core.Bounds, error) {
	if b, ok := f.rects[id]; ok {
		return b, nil
	}
	return core.Bounds{X: 0, Y: 0, Width: 100, Height: 50}, nil
}

func (f *fakeDevice) GetText(id string) (string, error) { return "", nil }

func (f *fakeDevice) Source() (string, error) {
	if len(f.sources) == 0 {
		return "<hierarchy/>", nil
	}
	s := f.sources[f.srcIdx]
	if f.srcIdx < len(f.sources)-1 {
		f.srcIdx++
	}
	return s, nil
}

func (f *fakeDevice) ScreenSize() (int, int) { return 1080, 1920 }

func (f *fakeDevice) PerformPointerActions(actions []map[string]interface{}) error {
	f.actionCalls++
	return nil
}

func fastOptions() Options {
	return Options{
		SearchTimeout:   10 * time.Millisecond,
		PollInterval:    time.Millisecond,
		ScrollCapacity:  1.0,
		ScrollDirection: gesture.Down,
	}
}

func androidLocator(queries ...locator.Query) *locator.Locator {
	return &locator.Locator{Android: queries}
}

func TestResolve_CapacityValidatedBeforeDeviceCalls(t *testing.T) {
	for _, capacity := range []float64{0, 1.5} {
		dev := &fakeDevice{}
		r := New(dev, core.Android, Options{})

		opts := fastOptions()
		opts.ScrollCapacity = capacity

		_, err := r.Resolve(androidLocator(locator.Query{Using: "xpath", Value: "//x"}), opts)
		if err == nil {
			t.Fatalf("capacity %v must fail", capacity)
		}
		if !errors.Is(err, core.ErrInvalidScrollCapacity) {
			t.Errorf("capacity %v: want misconfiguration, got %v", capacity, err)
		}
		if len(dev.findCalls) != 0 || dev.actionCalls != 0 {
			t.Errorf("capacity %v: no device call may be issued, got %d finds %d actions",
				capacity, len(dev.findCalls), dev.actionCalls)
		}
	}
}

func TestResolve_SecondAlternativeOrdinal(t *testing.T) {
	// First query matches nothing, second matches three; ordinal 2 must
	// issue exactly two searches and return the second element.
	dev := &fakeDevice{
		find: func(value string) ([]string, error) {
			if value == "q2" {
				return []string{"e1", "e2", "e3"}, nil
			}
			return nil, nil
		},
		rects: map[string]core.Bounds{
			"e2": {X: 5, Y: 10, Width: 50, Height: 20},
		},
	}
	r := New(dev, core.Android, Options{})

	loc := androidLocator(
		locator.Query{Using: locator.StrategyUIAutomator, Value: "q1"},
		locator.Query{Using: locator.StrategyUIAutomator, Value: "q2"},
	)
	opts := fastOptions()
	opts.Ordinal = 2

	el, err := r.Resolve(loc, opts)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if el.ID != "e2" {
		t.Errorf("got element %q, want e2", el.ID)
	}
	if el.Bounds != (core.Bounds{X: 5, Y: 10, Width: 50, Height: 20}) {
		t.Errorf("got bounds %+v", el.Bounds)
	}
	if len(dev.findCalls) != 2 {
		t.Errorf("got %d search attempts %v, want exactly 2", len(dev.findCalls), dev.findCalls)
	}
}

func TestResolve_OrdinalOutOfRangeIsDistinct(t *testing.T) {
	dev := &fakeDevice{
		find: func(string) ([]string, error) { return []string{"e1", "e2"}, nil },
	}
	r := New(dev, core.Android, Options{})

	opts := fastOptions()
	opts.Ordinal = 5
	_, err := r.Resolve(androidLocator(locator.Query{Using: "xpath", Value: "//row"}), opts)
	if err == nil {
		t.Fatal("ordinal 5 of 2 must fail")
	}
	if !errors.Is(err, core.ErrOrdinalOutOfRange) {
		t.Errorf("diagnostics must identify the ordinal overflow, got %v", err)
	}

	// Plain absence fails differently.
	empty := &fakeDevice{}
	r = New(empty, core.Android, Options{})
	_, err = r.Resolve(androidLocator(locator.Query{Using: "xpath", Value: "//row"}), fastOptions())
	if err == nil {
		t.Fatal("no elements must fail")
	}
	if errors.Is(err, core.ErrOrdinalOutOfRange) {
		t.Errorf("plain absence must not read as ordinal overflow: %v", err)
	}
}

func TestResolve_InvisibleElementBecomesVisible(t *testing.T) {
	calls := 0
	dev := &fakeDevice{
		find: func(string) ([]string, error) { return []string{"e1"}, nil },
		displayed: func(id string) (bool, error) {
			calls++
			return calls > 2, nil // off-screen for the first two polls
		},
	}
	r := New(dev, core.Android, Options{})

	el, err := r.Resolve(androidLocator(locator.Query{Using: "xpath", Value: "//x"}), fastOptions())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if el.ID != "e1" {
		t.Errorf("got %q", el.ID)
	}
	if calls < 3 {
		t.Errorf("visibility should have been polled until true, got %d checks", calls)
	}
}

func TestResolve_PresentButInvisibleFails(t *testing.T) {
	dev := &fakeDevice{
		find:      func(string) ([]string, error) { return []string{"e1"}, nil },
		displayed: func(string) (bool, error) { return false, nil },
	}
	r := New(dev, core.Android, Options{})

	_, err := r.Resolve(androidLocator(locator.Query{Using: "xpath", Value: "//x"}), fastOptions())
	if !errors.Is(err, core.ErrElementNotVisible) {
		t.Errorf("want not-visible cause in diagnostics, got %v", err)
	}
}

func TestResolve_ScrollsBetweenAttempts(t *testing.T) {
	dev := &fakeDevice{}
	dev.find = func(string) ([]string, error) {
		// The target appears only after one scroll gesture.
		if dev.actionCalls >= 1 {
			return []string{"e1"}, nil
		}
		return nil, nil
	}
	r := New(dev, core.Android, Options{})

	opts := fastOptions()
	opts.MaxScrolls = 3

	el, err := r.Resolve(androidLocator(locator.Query{Using: "xpath", Value: "//below-fold"}), opts)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if el.ID != "e1" {
		t.Errorf("got %q", el.ID)
	}
	if dev.actionCalls != 1 {
		t.Errorf("got %d scroll gestures, want 1", dev.actionCalls)
	}
}

func TestResolve_ExhaustionAggregatesDiagnostics(t *testing.T) {
	dev := &fakeDevice{}
	r := New(dev, core.Android, Options{})

	loc := androidLocator(
		locator.Query{Using: "xpath", Value: "//a"},
		locator.Query{Using: "xpath", Value: "//b"},
	)
	opts := fastOptions()
	opts.MaxScrolls = 2

	_, err := r.Resolve(loc, opts)
	if err == nil {
		t.Fatal("expected exhaustion")
	}

	var herr *core.HarnessError
	if !errors.As(err, &herr) {
		t.Fatalf("want HarnessError, got %T", err)
	}
	queries, _ := herr.Details["queries"].([]string)
	if len(queries) != 2 {
		t.Errorf("diagnostics must name every query tried, got %v", herr.Details)
	}
	if scrolls, _ := herr.Details["scrolls"].(int); scrolls != 2 {
		t.Errorf("diagnostics must count scrolls, got %v", herr.Details["scrolls"])
	}
	if dev.actionCalls != 2 {
		t.Errorf("scroll budget of 2 must issue 2 gestures, got %d", dev.actionCalls)
	}
}

func TestResolve_NoQueryForPlatform(t *testing.T) {
	dev := &fakeDevice{}
	r := New(dev, core.IOS, Options{})

	// Android-only locator resolved on iOS: "no query", reported as a
	// not-found without touching the device.
	_, err := r.Resolve(androidLocator(locator.Query{Using: "xpath", Value: "//x"}), fastOptions())
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("want not-found, got %v", err)
	}
	if len(dev.findCalls) != 0 {
		t.Errorf("no device call expected, got %v", dev.findCalls)
	}
}

func TestResolve_PreDelayWaitsForStableSource(t *testing.T) {
	dev := &fakeDevice{
		sources: []string{"<a/>", "<b/>", "<b/>"},
		find:    func(string) ([]string, error) { return []string{"e1"}, nil },
	}
	r := New(dev, core.Android, Options{})

	opts := fastOptions()
	opts.PreDelay = 50 * time.Millisecond

	if _, err := r.Resolve(androidLocator(locator.Query{Using: "xpath", Value: "//x"}), opts); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if dev.srcIdx < 2 {
		t.Errorf("settle wait should have read the source until stable, idx=%d", dev.srcIdx)
	}
}
