// Package locator models platform-polymorphic element descriptors. A Locator
// carries, per platform, one query or an ordered list of alternative queries;
// which one applies is decided at resolution time from the session platform,
// not at construction time.
package locator

import (
	"fmt"

	"github.com/testlab-dev/appharness/pkg/core"
)

// Query strategies understood by the automation server.
const (
	StrategyXPath           = "xpath"
	StrategyAccessibilityID = "accessibility id"
	StrategyID              = "id"
	StrategyUIAutomator     = "-android uiautomator"
	StrategyClassChain      = "-ios class chain"
	StrategyPredicate       = "-ios predicate string"
)

// Query is a single concrete search instruction.
type Query struct {
	Using string // strategy
	Value string // expression in the strategy's language
}

// String renders the query for diagnostics.
func (q Query) String() string {
	return fmt.Sprintf("%s=%s", q.Using, q.Value)
}

// Locator holds alternative queries per platform. Treat as immutable after
// construction; reuse across calls is safe as long as the session platform
// stays fixed.
type Locator struct {
	Android []Query
	IOS     []Query
}

// Get returns the single active-platform query, falling back to the first of
// the alternative list. A platform with no configured query yields nil, not
// an error; callers must handle "no query".
func (l *Locator) Get(platform core.Platform) *Query {
	all := l.GetAll(platform)
	if len(all) == 0 {
		return nil
	}
	q := all[0]
	return &q
}

// GetAll returns every configured alternative for the platform in declaration
// order, or nil when none is configured.
func (l *Locator) GetAll(platform core.Platform) []Query {
	switch platform {
	case core.Android:
		return l.Android
	case core.IOS:
		return l.IOS
	default:
		return nil
	}
}

// Describe summarizes the locator's queries for the given platform.
func (l *Locator) Describe(platform core.Platform) string {
	all := l.GetAll(platform)
	if len(all) == 0 {
		return "<no query>"
	}
	s := all[0].String()
	for _, q := range all[1:] {
		s += " | " + q.String()
	}
	return s
}

// ByText matches an element whose text equals the given string exactly.
// Android tries the native UiAutomator text and content-desc selectors, then
// an XPath fallback; iOS uses an exact label/name predicate.
func ByText(text string) *Locator {
	ua := EscapeUIAutomator(text)
	pred := EscapePredicate(text)
	return &Locator{
		Android: []Query{
			{Using: StrategyUIAutomator, Value: fmt.Sprintf(`new UiSelector().text("%s")`, ua)},
			{Using: StrategyUIAutomator, Value: fmt.Sprintf(`new UiSelector().description("%s")`, ua)},
			{Using: StrategyXPath, Value: fmt.Sprintf(`//*[@text=%s]`, XPathLiteral(text))},
		},
		IOS: []Query{
			{Using: StrategyPredicate, Value: fmt.Sprintf(`label == "%s" OR name == "%s"`, pred, pred)},
		},
	}
}

// ByTextContains matches an element whose text contains the given string.
func ByTextContains(text string) *Locator {
	ua := EscapeUIAutomator(text)
	pred := EscapePredicate(text)
	return &Locator{
		Android: []Query{
			{Using: StrategyUIAutomator, Value: fmt.Sprintf(`new UiSelector().textContains("%s")`, ua)},
			{Using: StrategyUIAutomator, Value: fmt.Sprintf(`new UiSelector().descriptionContains("%s")`, ua)},
		},
		IOS: []Query{
			{Using: StrategyPredicate, Value: fmt.Sprintf(`label CONTAINS[c] "%s" OR name CONTAINS[c] "%s"`, pred, pred)},
		},
	}
}

// ByAccessibilityID matches by accessibility id on both platforms.
func ByAccessibilityID(id string) *Locator {
	q := Query{Using: StrategyAccessibilityID, Value: id}
	return &Locator{
		Android: []Query{q},
		IOS:     []Query{q},
	}
}

// ByContentDesc matches by Android content description. There is no iOS
// equivalent, so the locator resolves to "no query" on iOS.
func ByContentDesc(desc string) *Locator {
	ua := EscapeUIAutomator(desc)
	return &Locator{
		Android: []Query{
			{Using: StrategyUIAutomator, Value: fmt.Sprintf(`new UiSelector().description("%s")`, ua)},
		},
	}
}

// ByID matches by resource id (Android) or accessibility id (iOS).
func ByID(id string) *Locator {
	ua := EscapeUIAutomator(id)
	return &Locator{
		Android: []Query{
			{Using: StrategyUIAutomator, Value: fmt.Sprintf(`new UiSelector().resourceIdMatches(".*%s.*")`, ua)},
			{Using: StrategyID, Value: id},
		},
		IOS: []Query{
			{Using: StrategyAccessibilityID, Value: id},
		},
	}
}

// Raw passes a platform-native query through unchanged.
func Raw(platform core.Platform, using, value string) *Locator {
	q := []Query{{Using: using, Value: value}}
	switch platform {
	case core.Android:
		return &Locator{Android: q}
	case core.IOS:
		return &Locator{IOS: q}
	default:
		return &Locator{}
	}
}
