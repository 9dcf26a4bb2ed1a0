package simulator

import (
	"errors"
	"testing"
	"time"

	"github.com/testlab-dev/appharness/pkg/core"
)

const deviceListJSON = `{
	"devices": {
		"com.apple.CoreSimulator.SimRuntime.iOS-17-2": [
			{"udid": "AAAA-1111", "name": "iPhone 15", "state": "Booted"},
			{"udid": "BBBB-2222", "name": "iPhone 15 Pro", "state": "Shutdown"}
		]
	}
}`

func TestManager_StartWaitsForBootedState(t *testing.T) {
	m := NewManager()
	var calls [][]string
	m.run = func(name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		if len(args) > 1 && args[1] == "list" {
			return []byte(deviceListJSON), nil
		}
		return nil, nil
	}

	if err := m.Start("AAAA-1111", time.Second); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if calls[0][2] != "boot" {
		t.Errorf("first call = %v, want simctl boot", calls[0])
	}
	if m.udid != "AAAA-1111" {
		t.Errorf("udid = %q", m.udid)
	}
}

func TestManager_StartAlreadyBootedIsNotAnError(t *testing.T) {
	m := NewManager()
	m.run = func(name string, args ...string) ([]byte, error) {
		if len(args) > 1 && args[1] == "boot" {
			return []byte("Unable to boot device in current state: Booted"), errors.New("exit status 149")
		}
		return []byte(deviceListJSON), nil
	}
	if err := m.Start("AAAA-1111", time.Second); err != nil {
		t.Fatalf("start failed: %v", err)
	}
}

func TestManager_LifecycleFlagIsNotReentrant(t *testing.T) {
	m := NewManager()
	m.udid = "AAAA-1111"

	if err := m.acquire("start"); err != nil {
		t.Fatal(err)
	}
	err := m.Stop()
	if !errors.Is(err, core.ErrInvalidOption) {
		t.Errorf("nested stop must be refused with misconfiguration, got %v", err)
	}
	m.release()
}

func TestListDevices_FlattensRuntimeGroups(t *testing.T) {
	devices, err := listDevices(func(string, ...string) ([]byte, error) {
		return []byte(deviceListJSON), nil
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices", len(devices))
	}
}
