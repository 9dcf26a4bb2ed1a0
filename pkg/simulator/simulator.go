// Package simulator manages iOS simulator lifecycle through xcrun simctl.
package simulator

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/logger"
)

const bootPollInterval = 2 * time.Second

type commandRunner func(name string, args ...string) ([]byte, error)

func runCommand(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput() //#nosec G204 -- fixed xcrun invocations
}

// Device is one simulator from simctl's device list.
type Device struct {
	UDID  string `json:"udid"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Manager boots and shuts down one simulator. The same non-reentrant busy
// flag as the emulator manager guards Start/Stop.
type Manager struct {
	run  commandRunner
	busy chan struct{}
	udid string
}

// NewManager creates a manager.
func NewManager() *Manager {
	m := &Manager{run: runCommand, busy: make(chan struct{}, 1)}
	m.busy <- struct{}{}
	return m
}

func (m *Manager) acquire(op string) error {
	select {
	case <-m.busy:
		return nil
	default:
		return core.ErrInvalidOption.
			WithMessage("simulator %s refused: another lifecycle operation is in progress", op)
	}
}

func (m *Manager) release() {
	m.busy <- struct{}{}
}

// Start boots the simulator and waits until simctl reports it Booted.
func (m *Manager) Start(udid string, timeout time.Duration) error {
	if err := m.acquire("start"); err != nil {
		return err
	}
	defer m.release()

	logger.Info("booting simulator %s", udid)
	if out, err := m.run("xcrun", "simctl", "boot", udid); err != nil {
		// Booting an already-booted simulator is not an error.
		if !strings.Contains(string(out), "current state: Booted") {
			return fmt.Errorf("simctl boot: %w: %s", err, strings.TrimSpace(string(out)))
		}
	}

	if err := m.waitBoot(udid, timeout); err != nil {
		return err
	}
	m.udid = udid
	return nil
}

// Stop shuts the simulator down.
func (m *Manager) Stop() error {
	if err := m.acquire("stop"); err != nil {
		return err
	}
	defer m.release()

	if m.udid == "" {
		return nil
	}
	logger.Info("shutting down simulator %s", m.udid)
	if out, err := m.run("xcrun", "simctl", "shutdown", m.udid); err != nil {
		return fmt.Errorf("simctl shutdown: %w: %s", err, strings.TrimSpace(string(out)))
	}
	m.udid = ""
	return nil
}

func (m *Manager) waitBoot(udid string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		dev, err := m.findDevice(udid)
		if err == nil && dev.State == "Booted" {
			logger.Info("simulator %s booted", udid)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("simulator %s did not boot within %v", udid, timeout)
		}
		time.Sleep(bootPollInterval)
	}
}

func (m *Manager) findDevice(udid string) (*Device, error) {
	devices, err := listDevices(m.run)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].UDID == udid {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("simulator %s not found", udid)
}

// ListDevices returns all available simulators.
func ListDevices() ([]Device, error) {
	return listDevices(runCommand)
}

func listDevices(run commandRunner) ([]Device, error) {
	out, err := run("xcrun", "simctl", "list", "devices", "--json")
	if err != nil {
		return nil, fmt.Errorf("simctl list: %w", err)
	}

	var payload struct {
		Devices map[string][]Device `json:"devices"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("simctl list output: %w", err)
	}

	var devices []Device
	for _, group := range payload.Devices {
		devices = append(devices, group...)
	}
	return devices, nil
}
