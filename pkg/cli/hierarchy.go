package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/dash-runner/pkg/bridge"
	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/flow"
	"github.com/devicelab-dev/dash-runner/pkg/tree"
)

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the shell's UI tree",
	Description: `Print the introspection tree of the running shell, or of a snapshot
saved in a report. Filters print only the matching objects.

Examples:
  dash-runner hierarchy
  dash-runner hierarchy --compact --type AbstractButton
  dash-runner hierarchy --prop objectName=seeAll
  dash-runner hierarchy --file reports/<run>/assets/flow-000/cmd-002-hierarchy.xml`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Output in CSV format",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
		&cli.StringFlag{
			Name:  "file",
			Usage: "Read a saved XML snapshot instead of querying the bridge",
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "Only print objects of this type",
		},
		&cli.StringSliceFlag{
			Name:  "prop",
			Usage: "Only print objects with this property (name=value)",
		},
	},
	Action: runHierarchy,
}

func runHierarchy(c *cli.Context) error {
	props, err := flow.ParseProperties(c.StringSlice("prop"))
	if err != nil {
		return err
	}

	source, err := loadSnapshot(c)
	if err != nil {
		return err
	}
	root, err := tree.Parse(source)
	if err != nil {
		return err
	}

	q := core.Query{Type: c.String("type")}
	for name, value := range props {
		if q.Props == nil {
			q.Props = make(map[string]interface{})
		}
		q.Props[name] = value
	}
	filtered := q.Type != "" || len(q.Props) > 0

	switch {
	case c.Bool("compact"):
		elements := tree.Flatten(root)
		if filtered {
			elements = tree.Filter(elements, q)
		}
		return writeCSV(elements)
	case c.Bool("json"):
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if filtered {
			return enc.Encode(tree.Filter(tree.Flatten(root), q))
		}
		return enc.Encode(root)
	case filtered:
		for _, e := range tree.Filter(tree.Flatten(root), q) {
			out, err := tree.Render(e, nil)
			if err != nil {
				return err
			}
			fmt.Print(out)
		}
		return nil
	default:
		out, err := tree.Render(root, nil)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
}

// loadSnapshot reads --file or asks the bridge for the live tree.
func loadSnapshot(c *cli.Context) (string, error) {
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path) //#nosec G304 -- user-provided snapshot
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	settings, err := loadSettings(c)
	if err != nil {
		return "", err
	}
	client := bridge.Dial(settings.BridgeURL)
	if err := client.CreateSession(bridge.Capabilities{Application: "unity8-dash"}); err != nil {
		return "", fmt.Errorf("bridge %s: %w", settings.BridgeURL, err)
	}
	defer client.Close()
	return client.Source()
}

// writeCSV prints one row per element: depth, type, id, objectName, globalRect.
func writeCSV(elements []*tree.Element) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write([]string{"depth", "type", "id", core.PropObjectName, core.PropGlobalRect}); err != nil {
		return err
	}
	for _, e := range elements {
		row := []string{fmt.Sprint(e.Depth), e.Type, e.ID, "", ""}
		if v, ok := e.Props[core.PropObjectName]; ok {
			row[3] = tree.FormatValue(v)
		}
		if b, ok := tree.Bounds(e, nil); ok {
			row[4] = b.String()
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
