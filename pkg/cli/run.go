package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/testlab-dev/appharness/pkg/config"
	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/driver/wd"
	"github.com/testlab-dev/appharness/pkg/logger"
	"github.com/testlab-dev/appharness/pkg/report"
	"github.com/testlab-dev/appharness/pkg/scenario"
	"github.com/testlab-dev/appharness/pkg/session"
	"github.com/testlab-dev/appharness/pkg/telemetry"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenarios on a device",
	ArgsUsage: "<scenario-file-or-dir>...",
	Description: `Run one or more scenario files against the configured device.
Reports land in the output directory, one subdirectory per scenario.

Examples:
  appharness run checkout.yaml
  appharness run scenarios/ -e USER=test -e PIN=0000
  appharness run checkout.yaml --output ./reports`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config.yaml (default: ./config.yaml)",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Scenario variables (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
			Value: "./reports",
		},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no scenario files given")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	outputDir := c.String("output")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := logger.Init(filepath.Join(outputDir, "harness.log")); err != nil {
		return fmt.Errorf("init log: %w", err)
	}
	defer logger.Close()
	logger.SetVerbose(c.Bool("verbose"))

	scenarios, err := collectScenarios(c.Args().Slice())
	if err != nil {
		return err
	}

	client := wd.NewClient(cfg.ServerURL)
	if err := client.Connect(capabilities(cfg)); err != nil {
		return fmt.Errorf("connect to automation server: %w", err)
	}
	defer client.Disconnect()

	var failed []string
	for _, sc := range scenarios {
		if err := runOne(cfg, client, sc, outputDir); err != nil {
			logger.Error("scenario %q failed: %v", sc.Name, err)
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", sc.Name, err)
			failed = append(failed, sc.Name)
			continue
		}
		fmt.Printf("PASS %s\n", sc.Name)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d scenarios failed: %s",
			len(failed), len(scenarios), strings.Join(failed, ", "))
	}
	return nil
}

// runOne executes a single scenario in its own session with its own report
// and telemetry receiver.
func runOne(cfg *config.Config, client *wd.Client, sc *scenario.Scenario, outputDir string) error {
	dir := filepath.Join(outputDir, sanitizeName(sc.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	rep := report.NewReporter(dir, sc.Name, cfg.Platform, cfg.AppID)
	sess := session.New(cfg, client, rep)

	receiver := telemetry.NewReceiver(sess.Store(), cfg.TelemetryPort)
	go func() {
		if err := receiver.Start(); err != nil {
			logger.Error("telemetry receiver: %v", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := receiver.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown: %v", err)
		}
	}()

	runErr := scenario.NewRunner(sess).Run(sc)
	if err := sess.Teardown(); runErr == nil {
		runErr = err
	}
	return runErr
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, err
	}

	// Global flags override file values.
	if p := c.String("platform"); p != "" {
		cfg.Platform = p
	}
	if d := c.String("device"); d != "" {
		cfg.Device = d
	}
	if u := c.String("server-url"); u != "" {
		cfg.ServerURL = u
	}
	for _, kv := range c.StringSlice("env") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env %q, want KEY=VALUE", kv)
		}
		if cfg.Env == nil {
			cfg.Env = make(map[string]string)
		}
		cfg.Env[key] = value
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// capabilities builds the alwaysMatch capability set from the config. The
// client wraps it in the W3C session envelope itself.
func capabilities(cfg *config.Config) map[string]interface{} {
	caps := map[string]interface{}{
		"platformName": cfg.Platform,
	}
	if cfg.Device != "" {
		caps["appium:udid"] = cfg.Device
	}
	if cfg.AppID != "" {
		if cfg.TargetPlatform() == core.IOS {
			caps["appium:bundleId"] = cfg.AppID
		} else {
			caps["appium:appPackage"] = cfg.AppID
		}
	}
	return caps
}

// collectScenarios expands directories into their yaml files and parses
// everything up front, so a typo fails the run before any device work.
func collectScenarios(args []string) ([]*scenario.Scenario, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := filepath.Ext(e.Name())
			if ext == ".yaml" || ext == ".yml" {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found")
	}

	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := scenario.ParseFile(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
