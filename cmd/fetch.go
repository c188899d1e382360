package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/samplegeo/atlas-cli/internal/fetcher"
	"github.com/samplegeo/atlas-cli/internal/model"
)

var (
	fetchLat   float64
	fetchLng   float64
	fetchFence float64
	fetchOut   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch EMSL proposal locations inside a geofence",
	Long:  "Queries the EMSL geofence endpoint for proposals sampled within the given radius of a point and saves the response where the ingest command expects the proposals file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		if !model.ValidCoordinates(fetchLng, fetchLat) {
			return eris.Errorf("fetch: center point out of range: lat=%v lng=%v", fetchLat, fetchLng)
		}
		if fetchFence <= 0 {
			return eris.New("fetch: fence radius must be positive")
		}

		out := fetchOut
		if out == "" {
			out = filepath.Join(cfg.Ingest.DataDir, "latlon_project_ids.json")
		}

		client := fetcher.New(fetcher.Options{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
			RateLimit:  rate.Limit(cfg.Fetch.RatePerSec),
		})

		n, err := client.FetchGeofence(ctx, cfg.Fetch.BaseURL, fetchLat, fetchLng, fetchFence, out)
		if err != nil {
			return err
		}

		fmt.Printf("Saved %d proposal locations to %s\n", n, out)
		return nil
	},
}

func init() {
	fetchCmd.Flags().Float64Var(&fetchLat, "lat", 46.34758, "center latitude of the geofence")
	fetchCmd.Flags().Float64Var(&fetchLng, "lng", -119.2779, "center longitude of the geofence")
	fetchCmd.Flags().Float64Var(&fetchFence, "fence", 100000, "geofence radius in meters")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "output file (defaults to the proposals file in the data directory)")
	rootCmd.AddCommand(fetchCmd)
}
