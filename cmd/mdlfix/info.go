package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Faultbox/mdlfix/pkg/bundle"
	"github.com/Faultbox/mdlfix/pkg/mdl"
)

var infoFlags struct {
	nodes bool
}

var infoCmd = &cobra.Command{
	Use:   "info <file>...",
	Short: "Print model asset summaries",
	Long: `Print collection counts for each model, loose or inside a BNDL
bundle. With --nodes the full node table is printed too.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			switch {
			case bundle.Sniff(data):
				bnd, err := bundle.Read(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				cmd.Printf("%s: bundle, %d entries\n", path, len(bnd.Entries))
				for _, entry := range bnd.Entries {
					if !mdl.Sniff(entry.Data) {
						cmd.Printf("  %s: %d bytes\n", entry.Name, len(entry.Data))
						continue
					}
					if err := printModel(cmd, "  "+entry.Name, entry.Data); err != nil {
						return fmt.Errorf("%s:%s: %w", path, entry.Name, err)
					}
				}
			case mdl.Sniff(data):
				if err := printModel(cmd, path, data); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			default:
				cmd.Printf("%s: not a model or bundle\n", path)
			}
		}
		return nil
	},
}

func printModel(cmd *cobra.Command, name string, data []byte) error {
	m, err := mdl.Decode(data)
	if err != nil {
		return err
	}

	cmd.Printf("%s: %d nodes, %d meshes, %d dummies, %d materials, %d gx lists, skeletons %d/%d\n",
		name, len(m.Nodes), len(m.Meshes), len(m.Dummies), len(m.Materials),
		len(m.GXLists), len(m.BaseSkeleton.Bones), len(m.AllSkeleton.Bones))

	if !infoFlags.nodes {
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  idx\tname\tflags\tparent\tchild\tprev\tnext")
	for i, n := range m.Nodes {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%d\t%d\t%d\t%d\n",
			i, n.Name, formatNodeFlags(n.Flags),
			n.Parent, n.FirstChild, n.PrevSibling, n.NextSibling)
	}
	return w.Flush()
}

func formatNodeFlags(f mdl.NodeFlags) string {
	if f == 0 {
		return "-"
	}
	var parts []string
	if f.Has(mdl.NodeDisabled) {
		parts = append(parts, "disabled")
	}
	if f.Has(mdl.NodeBone) {
		parts = append(parts, "bone")
	}
	if f.Has(mdl.NodeMeshAnchor) {
		parts = append(parts, "anchor")
	}
	if f.Has(mdl.NodeDummyOwner) {
		parts = append(parts, "dummy")
	}
	return strings.Join(parts, "+")
}

func init() {
	infoCmd.Flags().BoolVar(&infoFlags.nodes, "nodes", false, "print the node table")
	rootCmd.AddCommand(infoCmd)
}
