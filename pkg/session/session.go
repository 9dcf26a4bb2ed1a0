// Package session ties the harness together: one Session owns the device
// connection, the element resolver, the event correlator and the run report.
// All state is carried explicitly on the Session; there are no package-level
// globals to leak between runs.
package session

import (
	"time"

	"github.com/testlab-dev/appharness/pkg/config"
	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/events"
	"github.com/testlab-dev/appharness/pkg/gesture"
	"github.com/testlab-dev/appharness/pkg/jsengine"
	"github.com/testlab-dev/appharness/pkg/locator"
	"github.com/testlab-dev/appharness/pkg/logger"
	"github.com/testlab-dev/appharness/pkg/report"
	"github.com/testlab-dev/appharness/pkg/resolve"
)

// Driver is the full device capability set a session needs. *wd.Client
// implements it.
type Driver interface {
	resolve.Device
	Click(elementID string) error
	SetValue(elementID, text string) error
	Clear(elementID string) error
	ActiveElement() (string, error)
	ActivateApp(appID string) error
	TerminateApp(appID string) error
}

// Session is the explicit context for one run against one device.
type Session struct {
	cfg        *config.Config
	driver     Driver
	resolver   *resolve.Resolver
	store      *events.Store
	correlator *events.Correlator
	engine     *jsengine.Engine
	reporter   *report.Reporter
}

// New assembles a session. The store it creates is exposed through Store()
// so the telemetry receiver can feed it.
func New(cfg *config.Config, driver Driver, reporter *report.Reporter) *Session {
	store := events.NewStore()
	platform := cfg.TargetPlatform()

	engine := jsengine.New(platform)
	engine.SetVariables(cfg.Env)

	return &Session{
		cfg:    cfg,
		driver: driver,
		resolver: resolve.New(driver, platform, resolve.Options{
			PreDelay:        cfg.PreDelay(),
			SearchTimeout:   cfg.SearchTimeout(),
			PollInterval:    cfg.PollInterval(),
			MaxScrolls:      cfg.ScrollCount,
			ScrollDirection: gesture.Direction(cfg.ScrollDirection),
		}),
		store:      store,
		correlator: events.NewCorrelator(store),
		engine:     engine,
		reporter:   reporter,
	}
}

// Store returns the event store for ingestion wiring.
func (s *Session) Store() *events.Store { return s.store }

// Engine returns the script engine shared by all steps of the run.
func (s *Session) Engine() *jsengine.Engine { return s.engine }

// LaunchApp brings the configured app to the foreground.
func (s *Session) LaunchApp() error {
	return s.reporter.Step("launchApp", s.cfg.AppID, func() error {
		return s.driver.ActivateApp(s.cfg.AppID)
	})
}

// StopApp terminates the configured app.
func (s *Session) StopApp() error {
	return s.reporter.Step("stopApp", s.cfg.AppID, func() error {
		return s.driver.TerminateApp(s.cfg.AppID)
	})
}

// ClickElement resolves the locator and clicks the element.
func (s *Session) ClickElement(t ElementTarget) error {
	return s.reporter.Step("click", t.Describe(), func() error {
		el, err := s.resolveTarget(t.Locator, t.Ordinal)
		if err != nil {
			return err
		}
		return s.clickResolved(el)
	})
}

// ClickText clicks the element carrying the pattern's text.
func (s *Session) ClickText(t TextTarget) error {
	return s.reporter.Step("click", t.Describe(), func() error {
		el, err := s.resolveTarget(t.locatorFor(), 0)
		if err != nil {
			return err
		}
		return s.clickResolved(el)
	})
}

// ClickFromEvent awaits the event, extracts the matching item's name and
// clicks the element showing that name. The three stages fail with distinct
// diagnostics: event not found, no matching item, item missing name.
func (s *Session) ClickFromEvent(t EventTarget) error {
	return s.reporter.Step("clickFromEvent", t.Describe(), func() error {
		name, err := s.correlator.ItemFromEvent(
			t.Name, t.Pattern, t.ItemPattern, t.Position, s.cfg.EventTimeout())
		if err != nil {
			return err
		}
		logger.Info("event %q selected item %q", t.Name, name)
		el, err := s.resolveTarget(locator.ByText(name), 0)
		if err != nil {
			return err
		}
		return s.clickResolved(el)
	})
}

// CheckVisibleElement asserts the locator resolves to a visible element.
func (s *Session) CheckVisibleElement(t ElementTarget) error {
	return s.reporter.Step("checkVisible", t.Describe(), func() error {
		_, err := s.resolveTarget(t.Locator, t.Ordinal)
		return err
	})
}

// CheckVisibleText asserts an element with the pattern's text is visible.
func (s *Session) CheckVisibleText(t TextTarget) error {
	return s.reporter.Step("checkVisible", t.Describe(), func() error {
		_, err := s.resolveTarget(t.locatorFor(), 0)
		return err
	})
}

// TypeText types into the target element, or into the focused element when
// loc is nil. The field is cleared first.
func (s *Session) TypeText(loc *locator.Locator, text string) error {
	return s.reporter.Step("typeText", text, func() error {
		var id string
		if loc != nil {
			el, err := s.resolveTarget(loc, 0)
			if err != nil {
				return err
			}
			id = el.ID
		} else {
			active, err := s.driver.ActiveElement()
			if err != nil {
				return core.ErrProtocol.WithMessage("no focused element to type into").WithCause(err)
			}
			id = active
		}
		if err := s.driver.Clear(id); err != nil {
			return err
		}
		return s.driver.SetValue(id, s.engine.Expand(text))
	})
}

// Scroll performs one viewport scroll gesture.
func (s *Session) Scroll(direction string, capacity float64) error {
	return s.reporter.Step("scroll", direction, func() error {
		dir, err := gesture.ParseDirection(direction)
		if err != nil {
			return err
		}
		if capacity == 0 {
			capacity = s.cfg.ScrollCapacity
		}
		w, h := s.driver.ScreenSize()
		swipe, err := gesture.ViewportSwipe(w, h, dir, capacity)
		if err != nil {
			return err
		}
		return gesture.Perform(s.driver, swipe)
	})
}

// TapPoint taps an absolute screen coordinate.
func (s *Session) TapPoint(p core.Point) error {
	return s.reporter.Step("tapPoint", p.String(), func() error {
		return gesture.Tap(s.driver, p)
	})
}

// AwaitEvent blocks until a matching telemetry event arrives and consumes it.
// A zero timeout uses the configured event timeout.
func (s *Session) AwaitEvent(name, pattern string, timeout time.Duration) error {
	return s.reporter.Step("awaitEvent", name, func() error {
		if timeout <= 0 {
			timeout = s.cfg.EventTimeout()
		}
		_, err := s.correlator.Await(name, pattern, timeout)
		return err
	})
}

// AwaitEventBackground registers a deferred event check; its failure
// surfaces at Teardown.
func (s *Session) AwaitEventBackground(name, pattern string) {
	id := s.reporter.Begin("awaitEventBackground", name)
	s.correlator.AwaitBackground(name, pattern, s.cfg.EventTimeout())
	s.reporter.End(id, nil)
}

// RunScript executes a script in the session's engine.
func (s *Session) RunScript(script string) error {
	return s.reporter.Step("runScript", "", func() error {
		return s.engine.Run(script)
	})
}

// Wait sleeps for the given duration. A crutch for animations the settle
// wait cannot see; scenarios should prefer event waits.
func (s *Session) Wait(d time.Duration) error {
	return s.reporter.Step("wait", d.String(), func() error {
		time.Sleep(d)
		return nil
	})
}

// Teardown drains background event checks and closes the run. The first
// background failure is returned and recorded on the report.
func (s *Session) Teardown() error {
	err := s.correlator.CollectBackground()
	if err != nil {
		id := s.reporter.Begin("backgroundChecks", "")
		s.reporter.End(id, err)
	}
	s.reporter.Finish(err)
	return err
}

func (s *Session) resolveTarget(loc *locator.Locator, ordinal int) (*resolve.Element, error) {
	opts := resolve.Options{
		Ordinal:        ordinal,
		ScrollCapacity: s.cfg.ScrollCapacity,
	}
	return s.resolver.Resolve(loc, opts)
}

func (s *Session) clickResolved(el *resolve.Element) error {
	logger.Debug("click element %s at %v", el.ID, el.Bounds.Center())
	return s.driver.Click(el.ID)
}
