package events

import (
	"sync"
	"testing"
)

func TestStore_AppendAssignsMonotonicSeq(t *testing.T) {
	s := NewStore()

	first := s.Append("add_to_cart", `{}`)
	second := s.Append("checkout", `{}`)

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("got seqs %d, %d; want 1, 2", first.Seq, second.Seq)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestStore_SnapshotFrom(t *testing.T) {
	s := NewStore()
	s.Append("a", "")
	s.Append("b", "")
	s.Append("c", "")

	tail := s.SnapshotFrom(1)
	if len(tail) != 2 || tail[0].Name != "b" || tail[1].Name != "c" {
		t.Errorf("SnapshotFrom(1) = %v", tail)
	}
	if got := s.SnapshotFrom(99); got != nil {
		t.Errorf("SnapshotFrom past end = %v, want nil", got)
	}

	// Snapshots are copies: appending afterwards must not change them.
	snap := s.Snapshot()
	s.Append("d", "")
	if len(snap) != 3 {
		t.Errorf("snapshot mutated by append: %v", snap)
	}
}

func TestStore_TryConsume_AtMostOnce(t *testing.T) {
	s := NewStore()
	ev := s.Append("x", "")

	if !s.TryConsume(ev.Seq) {
		t.Fatal("first consume must win")
	}
	if s.TryConsume(ev.Seq) {
		t.Error("second consume must lose")
	}
	if !s.IsConsumed(ev.Seq) {
		t.Error("event must be marked consumed")
	}
}

func TestStore_TryConsume_SingleWinnerUnderContention(t *testing.T) {
	s := NewStore()
	ev := s.Append("x", "")

	const waiters = 32
	var wg sync.WaitGroup
	wins := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- s.TryConsume(ev.Seq)
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d waiters won the event, want exactly 1", won)
	}
}
