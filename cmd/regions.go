package main

import (
	"github.com/spf13/cobra"
)

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List all countries",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		countries, err := c.GetCountries(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(countries)
	},
}

var statesCmd = &cobra.Command{
	Use:   "states <country>",
	Short: "List the states of a country",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		states, err := c.GetStates(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(states)
	},
}

var stateCitiesCmd = &cobra.Command{
	Use:   "cities <state> <country>",
	Short: "List the cities of a state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		inState, err := c.GetCitiesInState(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(inState)
	},
}

func init() {
	rootCmd.AddCommand(countriesCmd)
	rootCmd.AddCommand(statesCmd)
	rootCmd.AddCommand(stateCitiesCmd)
}
