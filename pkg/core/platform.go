package core

import "strings"

// Platform identifies the target mobile platform of a session.
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// ParsePlatform normalizes a platform string. Unknown values map to the
// empty Platform so callers can detect misconfiguration.
func ParsePlatform(s string) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "android":
		return Android
	case "ios":
		return IOS
	default:
		return ""
	}
}

// Valid reports whether the platform is one of the supported values.
func (p Platform) Valid() bool {
	return p == Android || p == IOS
}
