// Package emulator manages Android emulator lifecycle through the external
// emulator and adb binaries.
package emulator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/logger"
)

const (
	consolePort      = 5554
	bootPollInterval = 2 * time.Second
)

// commandRunner runs an external binary and returns combined output. Swapped
// out in tests.
type commandRunner func(name string, args ...string) ([]byte, error)

func runCommand(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput() //#nosec G204 -- binaries resolved from SDK paths
}

// Manager starts and stops one emulator. Start and Stop are guarded by a
// non-reentrant busy flag: lifecycle operations never overlap, and a nested
// start/stop from a callback is an immediate misconfiguration instead of a
// deadlock.
type Manager struct {
	run    commandRunner
	busy   chan struct{}
	serial string
}

// NewManager creates a manager.
func NewManager() *Manager {
	m := &Manager{run: runCommand, busy: make(chan struct{}, 1)}
	m.busy <- struct{}{}
	return m
}

// acquire takes the lifecycle flag without blocking.
func (m *Manager) acquire(op string) error {
	select {
	case <-m.busy:
		return nil
	default:
		return core.ErrInvalidOption.
			WithMessage("emulator %s refused: another lifecycle operation is in progress", op)
	}
}

func (m *Manager) release() {
	m.busy <- struct{}{}
}

// Start launches the AVD and waits for the boot-completed property. It
// returns the adb serial of the started emulator.
func (m *Manager) Start(avdName string, timeout time.Duration) (string, error) {
	if err := m.acquire("start"); err != nil {
		return "", err
	}
	defer m.release()

	binary, err := FindEmulatorBinary()
	if err != nil {
		return "", err
	}

	serial := fmt.Sprintf("emulator-%d", consolePort)
	logger.Info("starting emulator %s as %s", avdName, serial)

	cmd := exec.Command(binary, //#nosec G204 -- binary resolved from SDK layout
		"-avd", avdName, "-port", fmt.Sprint(consolePort), "-no-snapshot-save")
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start emulator: %w", err)
	}

	if err := m.waitBoot(serial, timeout); err != nil {
		return "", err
	}
	m.serial = serial
	return serial, nil
}

// Stop shuts the emulator down through the console kill command.
func (m *Manager) Stop() error {
	if err := m.acquire("stop"); err != nil {
		return err
	}
	defer m.release()

	if m.serial == "" {
		return nil
	}
	logger.Info("stopping emulator %s", m.serial)
	if out, err := m.run("adb", "-s", m.serial, "emu", "kill"); err != nil {
		return fmt.Errorf("emulator shutdown: %w: %s", err, strings.TrimSpace(string(out)))
	}
	m.serial = ""
	return nil
}

// waitBoot polls sys.boot_completed until the emulator reports 1.
func (m *Manager) waitBoot(serial string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		out, err := m.run("adb", "-s", serial, "shell", "getprop", "sys.boot_completed")
		if err == nil && strings.TrimSpace(string(out)) == "1" {
			logger.Info("emulator %s booted", serial)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("emulator %s did not boot within %v", serial, timeout)
		}
		time.Sleep(bootPollInterval)
	}
}

// ListAVDs returns the names of the configured Android virtual devices.
func ListAVDs() ([]string, error) {
	binary, err := FindEmulatorBinary()
	if err != nil {
		return nil, err
	}
	out, err := runCommand(binary, "-list-avds")
	if err != nil {
		return nil, fmt.Errorf("list avds: %w", err)
	}

	var avds []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			avds = append(avds, line)
		}
	}
	return avds, nil
}

// FindEmulatorBinary locates the emulator binary via the SDK layout, then
// PATH.
func FindEmulatorBinary() (string, error) {
	if home := androidHome(); home != "" {
		for _, rel := range []string{
			filepath.Join("emulator", "emulator"),
			filepath.Join("tools", "emulator"),
		} {
			path := filepath.Join(home, rel)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	if path, err := exec.LookPath("emulator"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("emulator binary not found; set ANDROID_HOME or add emulator to PATH")
}

func androidHome() string {
	for _, key := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if home := os.Getenv(key); home != "" {
			return home
		}
	}
	return ""
}
