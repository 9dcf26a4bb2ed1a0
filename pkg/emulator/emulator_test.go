package emulator

import (
	"errors"
	"sync"
	"testing"

	"github.com/testlab-dev/appharness/pkg/core"
)

func TestManager_StopWithoutStartIsNoop(t *testing.T) {
	m := NewManager()
	m.run = func(string, ...string) ([]byte, error) {
		t.Fatal("no command expected")
		return nil, nil
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestManager_StopKillsTrackedEmulator(t *testing.T) {
	m := NewManager()
	m.serial = "emulator-5554"

	var got []string
	m.run = func(name string, args ...string) ([]byte, error) {
		got = append([]string{name}, args...)
		return nil, nil
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	want := []string{"adb", "-s", "emulator-5554", "emu", "kill"}
	if len(got) != len(want) {
		t.Fatalf("command = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command = %v, want %v", got, want)
		}
	}
	if m.serial != "" {
		t.Error("serial must be cleared after shutdown")
	}
}

func TestManager_LifecycleFlagIsNotReentrant(t *testing.T) {
	m := NewManager()
	m.serial = "emulator-5554"

	// Hold the flag as an in-flight operation would.
	if err := m.acquire("start"); err != nil {
		t.Fatal(err)
	}

	err := m.Stop()
	if err == nil {
		t.Fatal("nested lifecycle operation must be refused")
	}
	if !errors.Is(err, core.ErrInvalidOption) {
		t.Errorf("want misconfiguration, got %v", err)
	}

	m.release()
	m.run = func(string, ...string) ([]byte, error) { return nil, nil }
	if err := m.Stop(); err != nil {
		t.Errorf("stop must work once the flag is free: %v", err)
	}
}

func TestManager_ConcurrentStopsSingleWinner(t *testing.T) {
	m := NewManager()
	m.serial = "emulator-5554"

	started := make(chan struct{})
	proceed := make(chan struct{})
	m.run = func(string, ...string) ([]byte, error) {
		close(started)
		<-proceed
		return nil, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Stop()
	}()

	<-started
	// A second stop while the first is in flight must fail fast.
	if err := m.Stop(); err == nil {
		t.Error("overlapping stop must be refused")
	}
	close(proceed)
	wg.Wait()
}
