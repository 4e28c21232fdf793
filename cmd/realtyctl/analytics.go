package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/realty/internal/analytics"
)

func analyticsCommand(a *app) *cobra.Command {
	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Work with the analytics CSV datasets",
	}

	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the analytics tables to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := analytics.Load(a.cfg.Analytics, a.log.WithComponent("analytics"))
			if err != nil {
				return err
			}
			data, err := ds.ExportXLSX()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&out, "out", "o", "realty-analytics.xlsx", "output file")

	analyticsCmd.AddCommand(exportCmd)
	return analyticsCmd
}
