// File: cmd/list.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/selenium-suite/internal/observability"
	"github.com/xkilldash9x/selenium-suite/internal/suite"
)

func newListCmd() *cobra.Command {
	var sel selection
	var fixtures bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Prints the suite tree without opening any session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixtures {
				return printFixtures(cmd.OutOrStdout(), suite.DefaultRegistry)
			}
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			root, err := buildSuite(cfg, observability.GetLogger(), sel)
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), root)
		},
	}

	listCmd.Flags().BoolVar(&fixtures, "fixtures", false, "Print the registered fixture names usable with --fixture")
	listCmd.Flags().StringVar(&sel.fixture, "fixture", "", "Name of a registered fixture to list instead of the configured suite")
	listCmd.Flags().StringSliceVarP(&sel.browsers, "browser", "b", nil, "Browser profile(s) to replicate over")
	listCmd.Flags().String("selenese-path", "", "Selenese script file or directory (overrides suite.selenese_path)")
	return listCmd
}

func printTree(out io.Writer, root *suite.Suite) error {
	err := root.Walk(func(node *suite.Suite, depth int) error {
		indent := strings.Repeat("  ", depth)
		if _, err := fmt.Fprintf(out, "%s%s\n", indent, node.Name); err != nil {
			return err
		}
		for _, t := range node.Tests {
			line := indent + "  - " + t.Name()
			if len(t.Groups) > 0 {
				line += " (" + strings.Join(t.Groups, ", ") + ")"
			}
			if len(t.DependsOn) > 0 {
				line += " depends on " + strings.Join(t.DependsOn, ", ")
			}
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d tests\n", root.CountTests())
	return err
}

func printFixtures(out io.Writer, registry *suite.Registry) error {
	for _, name := range registry.Names() {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}
