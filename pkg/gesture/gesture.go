// Package gesture computes scroll/swipe coordinates and issues the pointer
// action sequences that realize them. Pure geometry plus device-command
// issuance; retry policy lives in the resolution loop, not here.
package gesture

import (
	"strings"

	"github.com/testlab-dev/appharness/pkg/core"
)

// Direction of a scroll gesture. "down" reveals content below the fold, so
// the finger travels from the lower edge toward the upper edge.
type Direction string

const (
	Down  Direction = "down"
	Up    Direction = "up"
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection normalizes a direction string; empty input defaults to down.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "down":
		return Down, nil
	case "up":
		return Up, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return "", core.ErrInvalidOption.WithMessage("invalid scroll direction %q", s)
	}
}

// Inset fractions: the gesture covers this share of the axis, keeping a
// margin at each edge. The viewport margin is wider so full-screen scrolls
// stay clear of the system's own edge gestures.
const (
	elementInset  = 0.95
	viewportInset = 0.90
)

// Swipe holds a computed gesture.
type Swipe struct {
	Start core.Point
	End   core.Point
}

// ElementSwipe computes a swipe within an element's bounds. Capacity is the
// fraction of the (inset) axis the gesture traverses and must be in (0, 1];
// anything else is a configuration error reported before any device call.
func ElementSwipe(bounds core.Bounds, dir Direction, capacity float64) (Swipe, error) {
	return computeSwipe(bounds, dir, capacity, elementInset)
}

// ViewportSwipe computes a full-screen swipe.
func ViewportSwipe(width, height int, dir Direction, capacity float64) (Swipe, error) {
	return computeSwipe(core.Bounds{Width: width, Height: height}, dir, capacity, viewportInset)
}

func computeSwipe(b core.Bounds, dir Direction, capacity, inset float64) (Swipe, error) {
	if capacity <= 0 || capacity > 1 {
		return Swipe{}, core.ErrInvalidScrollCapacity.WithDetails(map[string]interface{}{
			"capacity": capacity,
		})
	}
	if b.Empty() {
		return Swipe{}, core.ErrInvalidOption.WithMessage("cannot swipe within empty bounds")
	}

	cx := b.X + b.Width/2
	cy := b.Y + b.Height/2

	switch dir {
	case Down, Up:
		margin := int(float64(b.Height) * (1 - inset) / 2)
		lo := b.Y + margin
		hi := b.Y + b.Height - margin
		travel := int(float64(hi-lo) * capacity)
		if dir == Down {
			return Swipe{Start: core.Point{X: cx, Y: hi}, End: core.Point{X: cx, Y: hi - travel}}, nil
		}
		return Swipe{Start: core.Point{X: cx, Y: lo}, End: core.Point{X: cx, Y: lo + travel}}, nil

	case Left, Right:
		margin := int(float64(b.Width) * (1 - inset) / 2)
		lo := b.X + margin
		hi := b.X + b.Width - margin
		travel := int(float64(hi-lo) * capacity)
		if dir == Left {
			return Swipe{Start: core.Point{X: hi, Y: cy}, End: core.Point{X: hi - travel, Y: cy}}, nil
		}
		return Swipe{Start: core.Point{X: lo, Y: cy}, End: core.Point{X: lo + travel, Y: cy}}, nil

	default:
		return Swipe{}, core.ErrInvalidOption.WithMessage("invalid scroll direction %q", dir)
	}
}

// Pointer timing. The dwell before movement keeps the platform from reading
// the gesture as a fling instead of a controlled scroll.
const (
	dwellMs = 500
	moveMs  = 500
)

// ActionPerformer executes a raw W3C pointer action sequence.
type ActionPerformer interface {
	PerformPointerActions(actions []map[string]interface{}) error
}

// Perform issues the fixed pointer sequence for a computed swipe:
// instant move to start, pointer down, dwell, animated move to end, up.
func Perform(p ActionPerformer, s Swipe) error {
	return p.PerformPointerActions([]map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": s.Start.X, "y": s.Start.Y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": dwellMs},
		{"type": "pointerMove", "duration": moveMs, "x": s.End.X, "y": s.End.Y, "origin": "viewport"},
		{"type": "pointerUp", "button": 0},
	})
}

// Tap issues a short press at a point.
func Tap(p ActionPerformer, at core.Point) error {
	return p.PerformPointerActions([]map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": at.X, "y": at.Y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": 50},
		{"type": "pointerUp", "button": 0},
	})
}
