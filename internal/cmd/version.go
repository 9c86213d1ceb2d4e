package cmd

import (
	"github.com/mcfsalla/sqlregexp/internal/regex"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of every regex backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			p, err := newPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}

			var records [][]string
			for _, name := range regex.Backends() {
				b, err := regex.Lookup(name)
				if err != nil {
					return err
				}
				active := ""
				if name == opts.Backend {
					active = "*"
				}
				records = append(records, []string{name, b.Version(), active})
			}
			return p.print([]string{"backend", "version", "active"}, records)
		},
	}
}
