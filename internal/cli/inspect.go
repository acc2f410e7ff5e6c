package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/persist"
)

func (c *CLI) inspectCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <container> [path]",
		Short: "Print the metadata tree of a container",
		Long: `Print the metadata tree of a container without decoding any values.

With a path argument, only the sub-tree at that "/"-separated path is shown.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := persist.ReadMeta(args[0])
			if err != nil {
				return err
			}
			label := filepath.Base(args[0])
			if len(args) == 2 {
				sub, ok := meta.Lookup(args[1])
				if !ok {
					return errors.New(errors.ErrCodeNotFound, "%s: no entry %q", args[0], args[1])
				}
				meta, label = sub, args[1]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(meta, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintln(out, metaTree(label, meta))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw metadata JSON")
	return cmd
}

// metaTree renders m as a tree whose leaves are tagged with their kind.
func metaTree(label string, m *persist.Meta) *tree.Tree {
	t := tree.Root(StyleTitle.Render(label) + describe(m))
	addChildren(t, m)
	return t.EnumeratorStyle(StyleDim)
}

func addChildren(t *tree.Tree, m *persist.Meta) {
	switch {
	case m.IsGrouping():
		for _, key := range m.Keys() {
			child := m.Children[key]
			if !child.IsGrouping() && !child.IsTable() {
				t.Child(StyleValue.Render(key) + describe(child))
				continue
			}
			sub := tree.Root(StyleValue.Render(key) + describe(child))
			addChildren(sub, child)
			t.Child(sub)
		}
	case m.IsTable():
		for _, col := range m.Columns {
			t.Child(col.Name + " " + styleTag.Render(string(col.Type)))
		}
	}
}

func describe(m *persist.Meta) string {
	switch {
	case m.IsGrouping():
		return " " + styleTag.Render(fmt.Sprintf("(%d entries)", len(m.Children)))
	case m.IsTable():
		return " " + styleTag.Render(fmt.Sprintf("table, %d columns", len(m.Columns)))
	default:
		return " " + styleTag.Render(string(m.Tag))
	}
}
