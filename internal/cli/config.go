package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging files, .env and VVIP_*
environment variables. Secrets are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, src := range a.cfg.Sources() {
				fmt.Fprintf(out, "# from %s\n", src)
			}
			fmt.Fprint(out, a.cfg.String())
			return nil
		},
	}
}
