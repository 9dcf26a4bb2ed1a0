// Package cli provides the command-line interface for appharness.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Platform to run on (android, ios)",
		EnvVars: []string{"APPHARNESS_PLATFORM"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device serial / simulator udid",
		EnvVars: []string{"APPHARNESS_DEVICE"},
	},
	&cli.StringFlag{
		Name:    "server-url",
		Usage:   "WebDriver automation server URL",
		EnvVars: []string{"APPHARNESS_SERVER_URL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Mirror the log to stderr",
		EnvVars: []string{"APPHARNESS_VERBOSE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "appharness",
		Usage:   "Mobile UI test harness with telemetry event correlation",
		Version: Version,
		Description: `Appharness runs YAML scenarios against Android and iOS apps,
correlating UI interactions with the telemetry events the app emits.

Examples:
  appharness run checkout.yaml
  appharness run scenarios/ -e USER=test
  appharness validate scenarios/
  appharness start-device --platform android --avd Pixel_6`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
			startDeviceCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
