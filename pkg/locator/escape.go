package locator

import "strings"

// EscapeUIAutomator escapes a string for embedding in a UiSelector literal.
func EscapeUIAutomator(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// EscapePredicate escapes a string for embedding in an NSPredicate literal.
func EscapePredicate(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// XPathLiteral encodes a string as an XPath 1.0 string literal. XPath has no
// escape sequences, so a value containing both quote kinds must be split into
// a concat() of single-quoted and double-quoted fragments.
func XPathLiteral(s string) string {
	hasSingle := strings.Contains(s, "'")
	hasDouble := strings.Contains(s, `"`)

	switch {
	case !hasSingle:
		return "'" + s + "'"
	case !hasDouble:
		return `"` + s + `"`
	}

	// Both quote kinds present: emit concat('...', "'", '...').
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, part := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + part + "'")
	}
	b.WriteString(")")
	return b.String()
}
