package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var cityCmd = &cobra.Command{
	Use:   "city <id>",
	Short: "Look up a city by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid city id %q", args[0])
		}

		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		city, err := c.GetCity(cmd.Context(), id)
		if err != nil {
			return err
		}
		if city == nil {
			return fmt.Errorf("no city with id %d", id)
		}
		return printJSON(city)
	},
}

func init() { rootCmd.AddCommand(cityCmd) }
