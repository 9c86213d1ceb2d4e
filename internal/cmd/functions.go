package cmd

import (
	"strconv"

	"github.com/mcfsalla/sqlregexp/internal/db"
	"github.com/spf13/cobra"
)

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the SQL functions installed for a backend",
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

			reg, err := db.NewRegistry(opts)
			if err != nil {
				return err
			}
			defer reg.Close()

			var records [][]string
			for _, fn := range reg.Functions() {
				records = append(records, []string{fn.Name, strconv.Itoa(fn.NArgs), fn.Help})
			}
			return p.print([]string{"name", "args", "description"}, records)
		},
	}
}
