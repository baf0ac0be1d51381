package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plugins found in the plugin search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plugins, err := a.loader.Discover()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(plugins) == 0 {
				fmt.Fprintf(out, "no plugins in %s\n", strings.Join(a.loader.Paths(), ", "))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLIMITS\tPATH\tNOTE")
			for _, p := range plugins {
				limits, note := "-", ""
				switch {
				case p.Error != nil:
					note = p.Error.Error()
				case p.Manifest != nil:
					if p.Manifest.Limits != "" {
						limits = p.Manifest.Limits
					}
					if len(p.Manifest.Deny) > 0 {
						note = "deny " + strings.Join(p.Manifest.Deny, ",")
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, limits, p.Path, note)
			}
			return tw.Flush()
		},
	}
}
