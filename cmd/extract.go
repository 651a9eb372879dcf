package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// newExtractCmd creates the 'extract' subcommand, which runs fact
// extraction on local report files and prints the records as JSON.
func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <report.pdf>...",
		Short: "Extracts inspection facts from local report PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			records := make([]inspection.InspectionRecord, 0, len(args))
			for _, path := range args {
				rec, err := appInstance.ExtractFile(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("extract %s: %w", path, err)
				}
				records = append(records, rec)
			}
			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return fmt.Errorf("encode records: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
