package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cryptekbits/geodash/internal/config"
	"github.com/cryptekbits/geodash/pkg/cities"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geodash",
	Short: "City and geolocation data service",
	Long:  "Imports a city dataset into an embedded or networked database and serves id, name, radius, and region queries over it.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openCityData builds the facade from loaded config. The caller owns Close.
func openCityData(cmd *cobra.Command) (*cities.CityData, error) {
	return cities.New(cmd.Context(), cfg.Database.URI,
		cities.WithRole(cities.ParseRole(cfg.Role)),
		cities.WithPersistent(cfg.Database.Persistent),
		cities.WithDataDir(cfg.Data.Dir),
		cities.WithSourceURL(cfg.Data.SourceURL),
		cities.WithBatchSize(cfg.Import.BatchSize),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
