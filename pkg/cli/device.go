package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/emulator"
	"github.com/testlab-dev/appharness/pkg/simulator"
)

var startDeviceCommand = &cli.Command{
	Name:  "start-device",
	Usage: "Boot an Android emulator or iOS simulator",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "avd",
			Usage: "AVD name (android)",
		},
		&cli.DurationFlag{
			Name:  "boot-timeout",
			Usage: "How long to wait for the device to boot",
			Value: 3 * time.Minute,
		},
	},
	Action: startDeviceAction,
}

func startDeviceAction(c *cli.Context) error {
	timeout := c.Duration("boot-timeout")

	switch core.ParsePlatform(c.String("platform")) {
	case core.Android:
		avd := c.String("avd")
		if avd == "" {
			avds, err := emulator.ListAVDs()
			if err != nil {
				return err
			}
			if len(avds) == 0 {
				return fmt.Errorf("no AVDs configured")
			}
			avd = avds[0]
		}
		serial, err := emulator.NewManager().Start(avd, timeout)
		if err != nil {
			return err
		}
		fmt.Printf("started %s\n", serial)
		return nil

	case core.IOS:
		udid := c.String("device")
		if udid == "" {
			return fmt.Errorf("--device <udid> is required for ios")
		}
		if err := simulator.NewManager().Start(udid, timeout); err != nil {
			return err
		}
		fmt.Printf("booted %s\n", udid)
		return nil
	}

	return fmt.Errorf("--platform must be android or ios")
}
