package locator

import (
	"strings"
	"testing"

	"github.com/testlab-dev/appharness/pkg/core"
)

func TestLocator_Get(t *testing.T) {
	loc := ByText("Login")

	q := loc.Get(core.Android)
	if q == nil {
		t.Fatal("expected Android query")
	}
	if q.Using != StrategyUIAutomator {
		t.Errorf("got strategy %q, want %q", q.Using, StrategyUIAutomator)
	}
	if want := `new UiSelector().text("Login")`; q.Value != want {
		t.Errorf("got %q, want %q", q.Value, want)
	}

	q = loc.Get(core.IOS)
	if q == nil {
		t.Fatal("expected iOS query")
	}
	if q.Using != StrategyPredicate {
		t.Errorf("got strategy %q, want %q", q.Using, StrategyPredicate)
	}
}

func TestLocator_GetAll_PreservesOrder(t *testing.T) {
	loc := ByText("Submit")

	all := loc.GetAll(core.Android)
	if len(all) != 3 {
		t.Fatalf("got %d alternatives, want 3", len(all))
	}
	if !strings.Contains(all[0].Value, `.text(`) {
		t.Errorf("first alternative should be exact text, got %q", all[0].Value)
	}
	if !strings.Contains(all[1].Value, `.description(`) {
		t.Errorf("second alternative should be content-desc, got %q", all[1].Value)
	}
	if all[2].Using != StrategyXPath {
		t.Errorf("third alternative should be xpath, got %q", all[2].Using)
	}
}

func TestLocator_NoQueryIsNotAnError(t *testing.T) {
	loc := ByContentDesc("menu button")

	if loc.Get(core.IOS) != nil {
		t.Error("content-desc locator must yield no query on iOS")
	}
	if loc.GetAll(core.IOS) != nil {
		t.Error("GetAll must be nil for an unconfigured platform")
	}
	if loc.Get(core.Android) == nil {
		t.Error("content-desc locator must resolve on Android")
	}
	if got := loc.Describe(core.IOS); got != "<no query>" {
		t.Errorf("Describe for unconfigured platform = %q", got)
	}
}

func TestByAccessibilityID(t *testing.T) {
	loc := ByAccessibilityID("submit_btn")
	for _, p := range []core.Platform{core.Android, core.IOS} {
		q := loc.Get(p)
		if q == nil {
			t.Fatalf("expected query for %s", p)
		}
		if q.Using != StrategyAccessibilityID || q.Value != "submit_btn" {
			t.Errorf("%s: got %v", p, q)
		}
	}
}

func TestRaw(t *testing.T) {
	loc := Raw(core.IOS, StrategyClassChain, `**/XCUIElementTypeButton[1]`)
	if loc.Get(core.Android) != nil {
		t.Error("raw iOS locator must not resolve on Android")
	}
	q := loc.Get(core.IOS)
	if q == nil || q.Using != StrategyClassChain {
		t.Fatalf("got %v", q)
	}
}

func TestEscapeUIAutomator(t *testing.T) {
	tests := []struct{ in, want string }{
		{`plain`, `plain`},
		{`say "hi"`, `say \"hi\"`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := EscapeUIAutomator(tt.in); got != tt.want {
			t.Errorf("EscapeUIAutomator(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no quotes", `hello`, `'hello'`},
		{"double quotes only", `say "hi"`, `'say "hi"'`},
		{"single quotes only", `it's fine`, `"it's fine"`},
		{"both quote kinds", `it's "here"`, `concat('it', "'", 's "here"')`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := XPathLiteral(tt.in); got != tt.want {
				t.Errorf("XPathLiteral(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestByText_QuotedInput(t *testing.T) {
	// A search string with both quote kinds must still produce a usable
	// XPath alternative via concat() rather than failing.
	loc := ByText(`it's a "test"`)
	all := loc.GetAll(core.Android)
	var xpath *Query
	for i := range all {
		if all[i].Using == StrategyXPath {
			xpath = &all[i]
		}
	}
	if xpath == nil {
		t.Fatal("expected an xpath alternative")
	}
	if !strings.Contains(xpath.Value, "concat(") {
		t.Errorf("expected concat() encoding, got %q", xpath.Value)
	}
}
