package main

import (
	"github.com/spf13/cobra"

	"github.com/cryptekbits/geodash/pkg/cities"
)

var (
	searchLimit       int
	searchCountry     string
	searchUserLat     float64
	searchUserLng     float64
	searchUserCountry string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search cities by name",
	Long:  "Searches cities by name prefix or substring, optionally biased toward a user location.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		opts := cities.SearchOptions{
			Limit:       searchLimit,
			Country:     searchCountry,
			UserCountry: searchUserCountry,
		}
		if cmd.Flags().Changed("lat") {
			opts.UserLat = &searchUserLat
		}
		if cmd.Flags().Changed("lng") {
			opts.UserLng = &searchUserLng
		}

		results, err := c.SearchCities(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringVar(&searchCountry, "country", "", "restrict results to a country")
	searchCmd.Flags().Float64Var(&searchUserLat, "lat", 0, "user latitude for proximity ranking")
	searchCmd.Flags().Float64Var(&searchUserLng, "lng", 0, "user longitude for proximity ranking")
	searchCmd.Flags().StringVar(&searchUserCountry, "user-country", "", "user country for proximity ranking")
	rootCmd.AddCommand(searchCmd)
}
