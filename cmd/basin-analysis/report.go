package main

import (
	"github.com/spf13/cobra"
)

func reportCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "report <analysis-id>",
		Short: "Render an archived analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()
			res, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format: markdown, html, json")
	return cmd
}
