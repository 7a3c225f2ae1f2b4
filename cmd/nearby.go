package main

import (
	"github.com/spf13/cobra"
)

var (
	nearbyLat    float64
	nearbyLng    float64
	nearbyRadius float64
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Find cities within a radius",
	Long:  "Lists cities within the given radius of a point, ordered by ascending distance.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		results, err := c.GetCitiesByCoordinates(cmd.Context(), nearbyLat, nearbyLng, nearbyRadius)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

func init() {
	nearbyCmd.Flags().Float64Var(&nearbyLat, "lat", 0, "center latitude")
	nearbyCmd.Flags().Float64Var(&nearbyLng, "lng", 0, "center longitude")
	nearbyCmd.Flags().Float64Var(&nearbyRadius, "radius", 10, "radius in kilometers")
	_ = nearbyCmd.MarkFlagRequired("lat")
	_ = nearbyCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(nearbyCmd)
}
