package main

import (
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show city table columns and row count",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		info, err := c.GetTableInfo(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(info)
	},
}

func init() { rootCmd.AddCommand(infoCmd) }
