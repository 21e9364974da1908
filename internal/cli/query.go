package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rohmanhakim/nextmuni/internal/provider"
	"github.com/rohmanhakim/nextmuni/pkg/timeutil"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List every route the agency runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(a *app) {
			renderRoutes(cmd.OutOrStdout(), a.provider.ListRoutes(cmd.Context()))
		})
	},
}

var directionsCmd = &cobra.Command{
	Use:   "directions <route>",
	Short: "List the directions of a route",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(a *app) {
			renderDirections(cmd.OutOrStdout(), a.provider.ListDirections(cmd.Context(), args[0]))
		})
	},
}

var stopsCmd = &cobra.Command{
	Use:   "stops <route> <direction>",
	Short: "List the stops of a route direction in travel order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(a *app) {
			renderStops(cmd.OutOrStdout(), a.provider.ListStops(cmd.Context(), args[0], args[1]))
		})
	},
}

var predictionsCmd = &cobra.Command{
	Use:   "predictions <route> <direction> <stop>",
	Short: "Show upcoming arrivals at a stop for every route serving it",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(a *app) {
			rows := a.provider.ListPredictions(cmd.Context(), args[0], args[1], args[2])
			renderPredictions(cmd.OutOrStdout(), rows, time.Now())
		})
	},
}

// runQuery builds the app, runs query and waits for any background
// refresh it started before closing the cache.
func runQuery(cmd *cobra.Command, query func(a *app)) error {
	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.drain()

	query(a)
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	return table
}

func renderRoutes(w io.Writer, rows []provider.RouteRow) {
	table := newTable(w, []string{"Tag", "Title"})
	for _, row := range rows {
		table.Append([]string{row.Tag, row.Title})
	}
	table.Render()
}

func renderDirections(w io.Writer, rows []provider.DirectionRow) {
	table := newTable(w, []string{"Tag", "Title"})
	for _, row := range rows {
		table.Append([]string{row.Tag, row.Title})
	}
	table.Render()
}

func renderStops(w io.Writer, rows []provider.StopRow) {
	table := newTable(w, []string{"#", "Tag", "Title", "Lat", "Lon"})
	for _, row := range rows {
		table.Append([]string{
			strconv.Itoa(row.StopOrder),
			row.Tag,
			row.Title,
			strconv.FormatFloat(row.Latitude, 'f', 6, 64),
			strconv.FormatFloat(row.Longitude, 'f', 6, 64),
		})
	}
	table.Render()
}

func renderPredictions(w io.Writer, rows []provider.PredictionRow, now time.Time) {
	table := newTable(w, []string{"Route", "Direction", "Arrives", "In"})
	for _, row := range rows {
		at := timeutil.FromEpochMillis(row.PredictedTime)
		table.Append([]string{
			row.RouteTag,
			row.DirectionTitle,
			at.Local().Format("15:04"),
			formatWait(at.Sub(now)),
		})
	}
	table.Render()
}

func formatWait(d time.Duration) string {
	if d < time.Minute {
		return "now"
	}
	return fmt.Sprintf("%d min", int(d/time.Minute))
}
