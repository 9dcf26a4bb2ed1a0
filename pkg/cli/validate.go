package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Parse scenario files without running them",
	ArgsUsage: "<scenario-file-or-dir>...",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("no scenario files given")
		}
		scenarios, err := collectScenarios(c.Args().Slice())
		if err != nil {
			return err
		}
		for _, sc := range scenarios {
			fmt.Printf("OK %s (%d steps)\n", sc.SourcePath, len(sc.Steps))
		}
		return nil
	},
}
