// Package resolve implements the element resolution loop: given a locator it
// polls the device, filters by ordinal and visibility, and scrolls between
// attempts until an element is found or every budget is spent.
package resolve

import (
	"time"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/gesture"
	"github.com/testlab-dev/appharness/pkg/locator"
	"github.com/testlab-dev/appharness/pkg/logger"
)

// Device is the slice of the automation protocol the resolver consumes.
// *wd.Client satisfies it. The protocol is not safe for concurrent use on
// one session; the resolver issues strictly sequential calls.
type Device interface {
	FindElements(strategy, value string) ([]string, error)
	GetRect(elementID string) (core.Bounds, error)
	GetText(elementID string) (string, error)
	IsDisplayed(elementID string) (bool, error)
	Source() (string, error)
	ScreenSize() (int, int)
	PerformPointerActions(actions []map[string]interface{}) error
}

// Element is a transient handle to a resolved on-screen element. UI state is
// volatile, so handles must not be cached across interactions.
type Element struct {
	ID     string
	Bounds core.Bounds
}

// Options tune one resolution call. Zero timeouts fall back to the
// resolver's defaults; ScrollCapacity is never defaulted here and must be in
// (0, 1] whenever scrolling could happen, so that a mistyped capacity fails
// fast instead of producing a no-op gesture.
type Options struct {
	Ordinal         int // 1-based; 0 means first match
	PreDelay        time.Duration
	SearchTimeout   time.Duration
	PollInterval    time.Duration
	MaxScrolls      int
	ScrollCapacity  float64
	ScrollDirection gesture.Direction
}

// Defaults used when the per-call option is zero.
const (
	defaultSearchTimeout = 10 * time.Second
	defaultPollInterval  = 1000 * time.Millisecond
)

// Resolver runs resolution loops against one device session.
type Resolver struct {
	device   Device
	platform core.Platform
	defaults Options
}

// New creates a resolver. The defaults fill per-call options left zero
// (capacity excepted, see Options).
func New(device Device, platform core.Platform, defaults Options) *Resolver {
	return &Resolver{device: device, platform: platform, defaults: defaults}
}

// DefaultOptions returns fully-populated options for direct callers.
func DefaultOptions() Options {
	return Options{
		SearchTimeout:   defaultSearchTimeout,
		PollInterval:    defaultPollInterval,
		ScrollCapacity:  1.0,
		ScrollDirection: gesture.Down,
	}
}

// Resolve finds an element for the locator. One call is one state machine
// instance: Searching, then ScrollAndRetry up to MaxScrolls times, ending in
// Found or an exhaustion error that names every query tried, the scrolls
// performed and the last underlying cause.
func (r *Resolver) Resolve(loc *locator.Locator, opts Options) (*Element, error) {
	opts = r.merged(opts)

	if opts.ScrollCapacity <= 0 || opts.ScrollCapacity > 1 {
		return nil, core.ErrInvalidScrollCapacity.WithDetails(map[string]interface{}{
			"capacity": opts.ScrollCapacity,
		})
	}
	if opts.ScrollDirection == "" {
		opts.ScrollDirection = gesture.Down
	}

	queries := loc.GetAll(r.platform)
	if len(queries) == 0 {
		return nil, core.ErrElementNotFound.
			WithMessage("locator has no query for platform %s", r.platform)
	}

	ordinal := opts.Ordinal
	if ordinal <= 0 {
		ordinal = 1
	}

	if opts.PreDelay > 0 {
		r.waitForSettle(opts.PreDelay, opts.PollInterval)
	}

	tried := make([]string, len(queries))
	for i, q := range queries {
		tried[i] = q.String()
	}

	var lastErr error
	scrolls := 0
	for {
		el, err := r.searchUntil(queries, ordinal, opts.SearchTimeout, opts.PollInterval)
		if err == nil {
			return el, nil
		}
		lastErr = err

		if scrolls >= opts.MaxScrolls {
			break
		}
		if err := r.scrollOnce(opts.ScrollDirection, opts.ScrollCapacity); err != nil {
			lastErr = err
			break
		}
		scrolls++
	}

	return nil, core.ErrElementNotFound.
		WithMessage("element not found after %d queries and %d scrolls: %s",
			len(tried), scrolls, loc.Describe(r.platform)).
		WithDetails(map[string]interface{}{
			"queries": tried,
			"scrolls": scrolls,
		}).
		WithCause(lastErr)
}

// searchUntil cycles through every alternative query, one search each, and
// repeats the cycle at the poll interval until a candidate passes the
// ordinal and visibility filters or the timeout elapses.
func (r *Resolver) searchUntil(queries []locator.Query, ordinal int, timeout, poll time.Duration) (*Element, error) {
	start := time.Now()
	var lastErr error

	for {
		for _, q := range queries {
			el, err := r.attemptQuery(q, ordinal)
			if err == nil {
				return el, nil
			}
			lastErr = err
		}

		if time.Since(start) >= timeout {
			return nil, lastErr
		}
		time.Sleep(poll)
	}
}

// attemptQuery issues a single search. A query that matches elements but
// fails the ordinal or visibility filter is not-found for this attempt; the
// distinct causes are preserved for diagnostics. Transient protocol errors
// are recorded and retried by the caller within its budget.
func (r *Resolver) attemptQuery(q locator.Query, ordinal int) (*Element, error) {
	ids, err := r.device.FindElements(q.Using, q.Value)
	if err != nil {
		return nil, core.ErrProtocol.
			WithMessage("search failed: %s", q).
			WithCause(err)
	}
	if len(ids) == 0 {
		return nil, core.ErrElementNotFound.WithMessage("no element matches %s", q)
	}
	if ordinal > len(ids) {
		return nil, core.ErrOrdinalOutOfRange.
			WithMessage("%s matched %d elements, ordinal %d requested", q, len(ids), ordinal).
			WithDetails(map[string]interface{}{
				"matched": len(ids),
				"ordinal": ordinal,
			})
	}

	id := ids[ordinal-1]
	visible, err := r.device.IsDisplayed(id)
	if err != nil {
		return nil, core.ErrProtocol.WithMessage("visibility check failed").WithCause(err)
	}
	if !visible {
		return nil, core.ErrElementNotVisible.WithMessage("%s ordinal %d is off-screen", q, ordinal)
	}

	bounds, err := r.device.GetRect(id)
	if err != nil {
		return nil, core.ErrProtocol.WithMessage("rect query failed").WithCause(err)
	}
	return &Element{ID: id, Bounds: bounds}, nil
}

// waitForSettle polls the serialized screen until two consecutive reads are
// identical or the delay elapses. A heuristic stabilization wait, not a
// correctness guarantee; read errors end it early.
func (r *Resolver) waitForSettle(delay, poll time.Duration) {
	deadline := time.Now().Add(delay)
	prev, err := r.device.Source()
	if err != nil {
		return
	}
	for time.Now().Before(deadline) {
		time.Sleep(poll)
		cur, err := r.device.Source()
		if err != nil {
			return
		}
		if cur == prev {
			return
		}
		prev = cur
	}
}

func (r *Resolver) scrollOnce(dir gesture.Direction, capacity float64) error {
	w, h := r.device.ScreenSize()
	swipe, err := gesture.ViewportSwipe(w, h, dir, capacity)
	if err != nil {
		return err
	}
	logger.Debug("scroll %s: %v -> %v", dir, swipe.Start, swipe.End)
	if err := gesture.Perform(r.device, swipe); err != nil {
		return core.ErrProtocol.WithMessage("scroll gesture failed").WithCause(err)
	}
	return nil
}

func (r *Resolver) merged(opts Options) Options {
	if opts.SearchTimeout <= 0 {
		if r.defaults.SearchTimeout > 0 {
			opts.SearchTimeout = r.defaults.SearchTimeout
		} else {
			opts.SearchTimeout = defaultSearchTimeout
		}
	}
	if opts.PollInterval <= 0 {
		if r.defaults.PollInterval > 0 {
			opts.PollInterval = r.defaults.PollInterval
		} else {
			opts.PollInterval = defaultPollInterval
		}
	}
	if opts.PreDelay <= 0 {
		opts.PreDelay = r.defaults.PreDelay
	}
	if opts.MaxScrolls <= 0 {
		opts.MaxScrolls = r.defaults.MaxScrolls
	}
	// ScrollCapacity is deliberately not defaulted: 0 is a configuration
	// error, not "use the default". Callers populate it from config.
	if opts.ScrollDirection == "" {
		opts.ScrollDirection = r.defaults.ScrollDirection
	}
	return opts
}
