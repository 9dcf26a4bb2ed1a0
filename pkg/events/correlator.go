package events

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/logger"
	"github.com/testlab-dev/appharness/pkg/match"
)

// scanInterval is the fixed poll interval between log scans.
const scanInterval = 500 * time.Millisecond

// DefaultWaitTimeout bounds an event wait when the caller passes no timeout.
const DefaultWaitTimeout = 15 * time.Second

// Position selects which matching item of an event's item array to use.
type Position int

const (
	First Position = iota
	Last
)

// Correlator serves "wait until a matching event arrives" calls over a
// shared store. Foreground waits block the test; background waits run as
// goroutines whose failures are deferred until CollectBackground.
type Correlator struct {
	store *Store
	poll  time.Duration

	mu sync.Mutex
	bg *errgroup.Group
}

// NewCorrelator creates a correlator over the given store.
func NewCorrelator(store *Store) *Correlator {
	return &Correlator{
		store: store,
		poll:  scanInterval,
		bg:    &errgroup.Group{},
	}
}

// Await blocks until an unconsumed event with the given name arrives whose
// payload satisfies the pattern, scanning the entire log every poll
// interval. The first hit is consumed (session-wide at-most-once) and
// returned. If patternOrPath names an existing file, the file's contents are
// the pattern; an empty pattern matches any payload. A timeout <= 0 falls
// back to DefaultWaitTimeout. On timeout, an event that matched the name but
// not the pattern turns the failure into a payload mismatch instead of a
// plain deadline.
func (c *Correlator) Await(name, patternOrPath string, timeout time.Duration) (Event, error) {
	return c.await(name, patternOrPath, timeout, 0, c.store.TryConsume)
}

// AwaitInScope is the per-waiter consumption extension: events are claimed
// in the scope's private set instead of the session-wide one, so independent
// waiters no longer race for the same event. The session-global mode remains
// the default for compatibility.
func (c *Correlator) AwaitInScope(scope *Scope, name, patternOrPath string, timeout time.Duration) (Event, error) {
	return c.await(name, patternOrPath, timeout, 0, scope.tryConsume)
}

// AwaitBackground schedules the same wait as Await, but only events appended
// after this call are considered (the current log length is the scan
// origin), and failure is deferred until CollectBackground instead of
// surfacing here.
func (c *Correlator) AwaitBackground(name, patternOrPath string, timeout time.Duration) {
	origin := c.store.Len()

	c.mu.Lock()
	group := c.bg
	c.mu.Unlock()

	group.Go(func() error {
		_, err := c.await(name, patternOrPath, timeout, origin, c.store.TryConsume)
		if err != nil {
			logger.Warn("background event check failed: %v", err)
		}
		return err
	})
}

// CollectBackground drains every outstanding background wait and returns the
// first failure. It must run before session teardown; otherwise deferred
// assertion failures are silently lost.
func (c *Correlator) CollectBackground() error {
	c.mu.Lock()
	group := c.bg
	c.bg = &errgroup.Group{}
	c.mu.Unlock()

	return group.Wait()
}

func (c *Correlator) await(name, patternOrPath string, timeout time.Duration, origin int, claim func(int64) bool) (Event, error) {
	pattern := resolvePattern(patternOrPath)
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		scanned := c.store.SnapshotFrom(origin)
		payloadMisses := 0
		for _, ev := range scanned {
			if ev.Name != name {
				continue
			}
			if pattern != "" && !match.MatchesJSON(ev.Payload, pattern) {
				payloadMisses++
				continue
			}
			// claim is the single synchronization point; losing the
			// race just means another waiter owns this event.
			if claim(ev.Seq) {
				logger.Debug("event %q consumed (seq %d)", name, ev.Seq)
				return ev, nil
			}
		}

		if time.Now().After(deadline) {
			details := map[string]interface{}{
				"event":   name,
				"pattern": pattern,
				"scanned": len(scanned),
			}
			// An event of the right name that failed the payload pattern
			// is a different diagnosis than plain absence.
			if payloadMisses > 0 {
				details["payloadMisses"] = payloadMisses
				return Event{}, core.ErrPayloadMismatch.
					WithMessage("event %q arrived %d time(s) but no payload satisfied the pattern within %v",
						name, payloadMisses, timeout).
					WithDetails(details)
			}
			return Event{}, core.ErrEventDeadline.
				WithMessage("no event %q matching pattern arrived within %v", name, timeout).
				WithDetails(details)
		}
		time.Sleep(c.poll)
	}
}

// ItemFromEvent awaits an event, walks its payload to event.data.items and
// returns the name of the first (or last) item that structurally contains
// every key/value of itemPattern. Each stage fails with its own condition:
// event not arrived, no item matched, matched item without a name.
func (c *Correlator) ItemFromEvent(name, eventPattern, itemPattern string, pos Position, timeout time.Duration) (string, error) {
	ev, err := c.Await(name, eventPattern, timeout)
	if err != nil {
		return "", err
	}

	items, err := extractItems(ev.Payload)
	if err != nil {
		return "", core.ErrNoMatchingItem.
			WithMessage("event %q has no items array", name).
			WithCause(err).
			WithDetails(map[string]interface{}{"event": name, "seq": ev.Seq})
	}

	var want map[string]interface{}
	if itemPattern != "" {
		if err := json.Unmarshal([]byte(resolvePattern(itemPattern)), &want); err != nil {
			return "", core.ErrInvalidOption.WithMessage("item pattern is not a JSON object").WithCause(err)
		}
	}

	item := pickItem(items, want, pos)
	if item == nil {
		return "", core.ErrNoMatchingItem.WithDetails(map[string]interface{}{
			"event":   name,
			"pattern": itemPattern,
			"items":   len(items),
		})
	}

	itemName, ok := item["name"].(string)
	if !ok || itemName == "" {
		return "", core.ErrItemMissingName.WithDetails(map[string]interface{}{
			"event": name,
			"item":  item,
		})
	}
	return itemName, nil
}

func pickItem(items []interface{}, want map[string]interface{}, pos Position) map[string]interface{} {
	indexes := make([]int, len(items))
	for i := range items {
		indexes[i] = i
	}
	if pos == Last {
		for i, j := 0, len(indexes)-1; i < j; i, j = i+1, j-1 {
			indexes[i], indexes[j] = indexes[j], indexes[i]
		}
	}

	for _, i := range indexes {
		item, ok := items[i].(map[string]interface{})
		if !ok {
			continue
		}
		found := true
		for key, value := range want {
			if !match.FindKeyValueInTree(item, key, value) {
				found = false
				break
			}
		}
		if found {
			return item
		}
	}
	return nil
}

// extractItems re-parses a payload envelope down to event.data.items. The
// envelope's body is JSON encoded as a string, so each step promotes string
// nodes before descending.
func extractItems(payload string) ([]interface{}, error) {
	node, err := decodeNode(payload)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"body", "event", "data", "items"} {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return nil, core.ErrNoMatchingItem.WithMessage("payload node %q is not an object", key)
		}
		child, ok := obj[key]
		if !ok {
			// Envelopes without the body wrapper are accepted as-is.
			if key == "body" {
				continue
			}
			return nil, core.ErrNoMatchingItem.WithMessage("payload has no %q field", key)
		}
		if s, isString := child.(string); isString {
			child, err = decodeNode(s)
			if err != nil {
				return nil, err
			}
		}
		node = child
	}

	items, ok := node.([]interface{})
	if !ok {
		return nil, core.ErrNoMatchingItem.WithMessage("event.data.items is not an array")
	}
	return items, nil
}

func decodeNode(s string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// resolvePattern applies the path-vs-literal disambiguation: an argument
// naming an existing regular file is read and its contents used as the
// pattern; anything else is the literal pattern text.
func resolvePattern(patternOrPath string) string {
	if patternOrPath == "" {
		return ""
	}
	if info, err := os.Stat(patternOrPath); err == nil && info.Mode().IsRegular() {
		data, err := os.ReadFile(patternOrPath) //#nosec G304 -- user-provided pattern file
		if err == nil {
			return string(data)
		}
	}
	return patternOrPath
}

// Scope holds a private consumed set for the per-waiter consumption mode.
type Scope struct {
	mu   sync.Mutex
	seen map[int64]struct{}
}

// NewScope creates an empty consumption scope.
func NewScope() *Scope {
	return &Scope{seen: make(map[int64]struct{})}
}

func (s *Scope) tryConsume(seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.seen[seq]; taken {
		return false
	}
	s.seen[seq] = struct{}{}
	return true
}
