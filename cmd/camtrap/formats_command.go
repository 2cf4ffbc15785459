package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"camtrap/internal/exports"
)

func newFormatsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "formats",
		Short:       "List export formats",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := exports.DefaultRegistry().Formats()
			if asJSON {
				return writeJSON(cmd, formats)
			}
			rows := make([][]string, 0, len(formats))
			for _, f := range formats {
				rows = append(rows, []string{f.ID, f.Name, string(f.Kind), f.Suffix})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tableSpec{
				headers: []string{"ID", "Name", "Writes", "Default suffix"},
				rows:    rows,
			}.render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
