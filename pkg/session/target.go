package session

import (
	"fmt"
	"strings"

	"github.com/testlab-dev/appharness/pkg/events"
	"github.com/testlab-dev/appharness/pkg/locator"
)

// Target is the closed union of things an interaction can aim at. Exactly
// three variants exist; the session exposes one typed entry point per
// variant, so there is no runtime shape inspection.
type Target interface {
	isTarget()
	Describe() string
}

// ElementTarget aims at an element through a locator.
type ElementTarget struct {
	Locator *locator.Locator
	Ordinal int // 1-based; 0 means first
}

// TextTarget aims at the element carrying the given visible text. A leading
// "~" switches from exact to substring matching, mirroring the search
// pattern syntax.
type TextTarget struct {
	Pattern string
}

// EventTarget derives the element from a telemetry event: await the event,
// pick the item matching ItemPattern from its payload, and aim at the
// element whose text equals that item's name.
type EventTarget struct {
	Name        string
	Pattern     string // event payload pattern, optional
	ItemPattern string // item subset pattern, optional
	Position    events.Position
}

func (ElementTarget) isTarget() {}
func (TextTarget) isTarget()    {}
func (EventTarget) isTarget()   {}

func (t ElementTarget) Describe() string {
	if t.Ordinal > 1 {
		return fmt.Sprintf("element #%d", t.Ordinal)
	}
	return "element"
}

func (t TextTarget) Describe() string {
	return fmt.Sprintf("text %q", t.Pattern)
}

func (t EventTarget) Describe() string {
	return fmt.Sprintf("event %q item", t.Name)
}

// locatorFor builds the locator a text target resolves through.
func (t TextTarget) locatorFor() *locator.Locator {
	if rest, ok := strings.CutPrefix(t.Pattern, "~"); ok {
		return locator.ByTextContains(rest)
	}
	return locator.ByText(t.Pattern)
}
