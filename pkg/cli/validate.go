package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/dash-runner/pkg/report"
	"github.com/devicelab-dev/dash-runner/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check scenario flows without running them",
	ArgsUsage: "<flow file or folder>...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "include-tags", Usage: "Only list flows with these tags"},
		&cli.StringSliceFlag{Name: "exclude-tags", Usage: "Skip flows with these tags"},
	},
	Action: func(c *cli.Context) error {
		settings, err := loadSettings(c)
		if err != nil {
			return err
		}
		paths := c.Args().Slice()
		if len(paths) == 0 {
			paths = settings.Config.Flows
		}
		if len(paths) == 0 {
			return fmt.Errorf("at least one flow file or folder is required")
		}

		result := validator.New(
			firstNonEmpty(c.StringSlice("include-tags"), settings.Config.IncludeTags),
			firstNonEmpty(c.StringSlice("exclude-tags"), settings.Config.ExcludeTags),
		).Validate(paths...)

		for _, f := range result.Flows {
			fmt.Printf("  %s✓%s %s %s(%s, %d steps)%s\n",
				color(colorGreen), color(colorReset), report.FlowName(f),
				color(colorGray), f.SourcePath, len(f.Steps), color(colorReset))
		}
		for _, e := range result.Errors {
			fmt.Printf("  %s✗%s %v\n", color(colorRed), color(colorReset), e)
		}
		if !result.IsValid() {
			return fmt.Errorf("%d flow file(s) failed validation", len(result.Errors))
		}
		fmt.Printf("\n%d flow(s) valid\n", len(result.Flows))
		return nil
	},
}
