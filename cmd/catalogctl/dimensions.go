package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/devrev/catalogd/internal/model"
	"github.com/spf13/cobra"
)

var dimensionsCmd = &cobra.Command{
	Use:   "dimensions",
	Short: "List filter dimensions and their dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DIMENSION\tKIND\tPARENT\tRESETS")
		for _, d := range model.AllDimensions {
			parent := "-"
			if p, ok := d.Parent(); ok {
				parent = string(p)
			}
			resets := "-"
			if desc := d.Descendants(); len(desc) > 0 {
				names := make([]string, len(desc))
				for i, c := range desc {
					names[i] = string(c)
				}
				resets = strings.Join(names, ",")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d, d.Kind(), parent, resets)
		}
		return w.Flush()
	},
}
