package main

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var verifyConcurrency int

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check region hierarchy consistency",
	Long:  "Walks countries, states, and cities concurrently and checks that the hierarchy reconstructs the full imported set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCityData(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		ctx := cmd.Context()
		info, err := c.GetTableInfo(ctx)
		if err != nil {
			return err
		}

		countries, err := c.GetCountries(ctx)
		if err != nil {
			return err
		}

		// Cities without a state are unreachable through the hierarchy and
		// counted separately.
		var walked, stateless atomic.Int64
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(verifyConcurrency)
		for _, country := range countries {
			country := country
			g.Go(func() error {
				states, err := c.GetStates(gCtx, country)
				if err != nil {
					return err
				}
				for _, state := range states {
					inState, err := c.GetCitiesInState(gCtx, state, country)
					if err != nil {
						return err
					}
					walked.Add(int64(len(inState)))
				}
				orphans, err := c.GetCitiesInState(gCtx, "", country)
				if err != nil {
					return err
				}
				stateless.Add(int64(len(orphans)))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		reachable := walked.Load() + stateless.Load()
		consistent := reachable == int64(info.RowCount)
		if err := printJSON(map[string]any{
			"row_count":     info.RowCount,
			"walked":        walked.Load(),
			"without_state": stateless.Load(),
			"countries":     len(countries),
			"consistent":    consistent,
		}); err != nil {
			return err
		}
		if !consistent {
			return fmt.Errorf("hierarchy walk found %d of %d cities", reachable, info.RowCount)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().IntVar(&verifyConcurrency, "concurrency", 4, "parallel country walks")
	rootCmd.AddCommand(verifyCmd)
}
