package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/samplegeo/atlas-cli/internal/export"
	"github.com/samplegeo/atlas-cli/internal/query"
)

var (
	queryAction   string
	queryDataset  string
	queryWest     float64
	querySouth    float64
	queryEast     float64
	queryNorth    float64
	queryLat      float64
	queryLng      float64
	queryDistance float64
	queryLimit    int
	queryFormat   string
	queryOutput   string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the location store",
	Long:  "Runs one of the read operations against the store: collection statistics, lookup by dataset id, bounding-box search, proximity search, or a full dump for the map sink.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		format, err := export.ParseFormat(queryFormat)
		if err != nil {
			return err
		}

		req := &query.Request{
			Action:    query.Action(queryAction),
			DatasetID: queryDataset,
			Distance:  queryDistance,
			Limit:     queryLimit,
		}
		// Zero is a legitimate coordinate, so only flags the user actually
		// set become request parameters.
		flags := cmd.Flags()
		if flags.Changed("west") {
			req.West = &queryWest
		}
		if flags.Changed("south") {
			req.South = &querySouth
		}
		if flags.Changed("east") {
			req.East = &queryEast
		}
		if flags.Changed("north") {
			req.North = &queryNorth
		}
		if flags.Changed("lat") {
			req.Lat = &queryLat
		}
		if flags.Changed("lng") {
			req.Lng = &queryLng
		}

		// The map action exists to draw markers, whatever --format says.
		if req.Action == query.ActionMap {
			format = export.FormatMap
		}

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		if err := store.EnsureIndexes(ctx); err != nil {
			return eris.Wrap(err, "query: ensure indexes")
		}

		outcome, err := query.NewService(store, queryTimeout()).Run(ctx, req)
		if err != nil {
			return err
		}

		if outcome.Stats != nil {
			out, err := json.MarshalIndent(outcome.Stats, "", "  ")
			if err != nil {
				return eris.Wrap(err, "query: marshal stats")
			}
			fmt.Println(string(out))
			if format == export.FormatJSON {
				path := queryOutput + ".json"
				if err := export.EncodeJSON(path, outcome.Stats); err != nil {
					return err
				}
				fmt.Printf("Statistics written to %s\n", path)
			}
			return nil
		}

		fmt.Printf("Found %d locations\n", len(outcome.Results))
		path, err := export.Write(format, queryOutput, outcome.Results)
		if err != nil {
			return err
		}
		if path != "" {
			fmt.Printf("Results written to %s\n", path)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryAction, "action", "", "operation to run: stats, dataset, box, nearby or map")
	queryCmd.Flags().StringVar(&queryDataset, "dataset-id", "", "dataset id for the dataset action")
	queryCmd.Flags().Float64Var(&queryWest, "west", 0, "western longitude of the bounding box")
	queryCmd.Flags().Float64Var(&querySouth, "south", 0, "southern latitude of the bounding box")
	queryCmd.Flags().Float64Var(&queryEast, "east", 0, "eastern longitude of the bounding box")
	queryCmd.Flags().Float64Var(&queryNorth, "north", 0, "northern latitude of the bounding box")
	queryCmd.Flags().Float64Var(&queryLat, "lat", 0, "center latitude for the nearby action")
	queryCmd.Flags().Float64Var(&queryLng, "lng", 0, "center longitude for the nearby action")
	queryCmd.Flags().Float64Var(&queryDistance, "distance", 10000, "search radius in meters for the nearby action")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 1000, "maximum number of results")
	queryCmd.Flags().StringVar(&queryFormat, "format", "json", "output format: json, csv or map")
	queryCmd.Flags().StringVar(&queryOutput, "output", "output", "output file path without extension")
	_ = queryCmd.MarkFlagRequired("action")
	rootCmd.AddCommand(queryCmd)
}
