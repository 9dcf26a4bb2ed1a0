// Package match implements structural subset matching of JSON values.
//
// A pattern is a partial JSON value: every key/element it names must be
// present in the candidate, while the candidate may carry arbitrary extra
// data. String patterns have special forms: "*" matches any primitive, ""
// matches only the empty string and a leading '~' requests substring
// containment. The matcher is pure and total; malformed input never panics,
// it simply does not match.
package match

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Wildcard matches any primitive candidate.
const Wildcard = "*"

// SubstringPrefix marks a pattern string as a containment match.
const SubstringPrefix = "~"

// MatchesJSON is the outer entry point for serialized values. Unparsable
// candidate or pattern text short-circuits to false.
func MatchesJSON(candidateJSON, patternJSON string) bool {
	var candidate, pattern interface{}
	if err := json.Unmarshal([]byte(candidateJSON), &candidate); err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(patternJSON), &pattern); err != nil {
		return false
	}
	return Matches(candidate, pattern)
}

// Matches reports whether pattern is structurally contained in candidate.
// Dispatch is by the (candidate, pattern) type pairing:
//
//   - object pattern: every pattern key must exist in the candidate with a
//     recursively matching value;
//   - array pattern: every pattern element must match some candidate element
//     (existential, unordered, not injective);
//   - primitive pattern vs primitive candidate: stringified comparison with
//     the wildcard/empty/substring/exact rules;
//   - candidate strings that themselves parse as JSON are promoted one level
//     when the pattern side is non-primitive, which lets patterns reach into
//     JSON embedded as a string field;
//   - any other shape pairing does not match.
func Matches(candidate, pattern interface{}) bool {
	switch p := pattern.(type) {
	case map[string]interface{}:
		c, ok := candidate.(map[string]interface{})
		if !ok {
			if promoted, ok := promoteString(candidate); ok {
				return Matches(promoted, pattern)
			}
			// The empty pattern asserts "any structure".
			if len(p) == 0 {
				_, isArray := candidate.([]interface{})
				return isArray
			}
			return false
		}
		for key, sub := range p {
			value, present := c[key]
			if !present || !Matches(value, sub) {
				return false
			}
		}
		return true

	case []interface{}:
		c, ok := candidate.([]interface{})
		if !ok {
			if promoted, ok := promoteString(candidate); ok {
				return Matches(promoted, pattern)
			}
			return false
		}
		for _, want := range p {
			if !containsElement(c, want) {
				return false
			}
		}
		return true

	default:
		if !isPrimitive(candidate) {
			return false
		}
		return matchPrimitive(stringify(candidate), stringify(pattern))
	}
}

// FindKeyValueInTree walks root through object values and array elements and
// reports whether any node has a property named key whose value satisfies
// Matches against want. Unlike Matches this is an unanchored search: the key
// may live arbitrarily deep in an unknown-shaped payload.
func FindKeyValueInTree(root interface{}, key string, want interface{}) bool {
	switch node := root.(type) {
	case map[string]interface{}:
		if value, ok := node[key]; ok && Matches(value, want) {
			return true
		}
		for _, value := range node {
			if FindKeyValueInTree(value, key, want) {
				return true
			}
		}
	case []interface{}:
		for _, element := range node {
			if FindKeyValueInTree(element, key, want) {
				return true
			}
		}
	}
	return false
}

func containsElement(candidates []interface{}, want interface{}) bool {
	for _, c := range candidates {
		if Matches(c, want) {
			return true
		}
	}
	return false
}

// promoteString parses a candidate-side string as JSON, enabling one level of
// string-to-JSON coercion per nesting depth.
func promoteString(candidate interface{}) (interface{}, bool) {
	s, ok := candidate.(string)
	if !ok {
		return nil, false
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

func isPrimitive(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return false
	default:
		return true
	}
}

func matchPrimitive(candidate, pattern string) bool {
	switch {
	case pattern == Wildcard:
		return true
	case pattern == "":
		return candidate == ""
	case strings.HasPrefix(pattern, SubstringPrefix):
		return strings.Contains(candidate, pattern[len(SubstringPrefix):])
	default:
		return candidate == pattern
	}
}

// stringify renders a primitive the way the JSON text would, so that the
// pattern 1 matches the candidate 1 regardless of which side was parsed from
// a number literal.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
