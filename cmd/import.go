package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	importCSVPath   string
	importBatchSize int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the city dataset",
	Long:  "Imports city records from a CSV file, downloading the dataset first when no local source exists. A no-op when the database is already populated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		if !c.ImportCityData(cmd.Context(), importCSVPath, importBatchSize) {
			return fmt.Errorf("import failed; see log for details")
		}

		info, err := c.GetTableInfo(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"imported": true, "row_count": info.RowCount})
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to a city CSV file (default: discover or download)")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 0, "rows per insert batch (default from config)")
	rootCmd.AddCommand(importCmd)
}
