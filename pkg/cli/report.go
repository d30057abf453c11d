package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var reportCommand = &cli.Command{
	Name:      "report",
	Usage:     "Print a saved run report",
	ArgsUsage: "<report dir>",
	Action: func(c *cli.Context) error {
		dir := c.Args().First()
		if dir == "" {
			return fmt.Errorf("report directory is required")
		}
		return printReport(dir)
	},
}
