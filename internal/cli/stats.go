package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"repair-dashboard/internal/models"
	"repair-dashboard/internal/services"
)

const (
	chartHeight = 10
	chartWidth  = 60
	topRows     = 5
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		data  datasetFlags
		chart bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show repair cost statistics",
		Long: `Show the headline numbers of a repair dataset.

Examples:
  repairctl stats                              # Active import
  repairctl stats --import <id> --import <id>  # Several imports merged
  repairctl stats --csv repairs.csv --chart    # Local file with monthly chart
  repairctl stats --from 2024-01-01 --workshop "Garage A"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := data.params()
			if err != nil {
				return err
			}
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := data.load(cmd.Context(), app); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stats := app.Analytics.Statistics(params)
			printStats(out, app.Analytics, stats, app.Analytics.Overview(params))
			if chart {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderCharts(stats, app.Analytics.Charts(params)))
			}
			return nil
		},
	}
	data.register(cmd)
	cmd.Flags().BoolVarP(&chart, "chart", "c", false, "Plot monthly costs")
	return cmd
}

func printStats(out io.Writer, analytics *services.Analytics, stats *models.Statistics, ov models.DashboardOverview) {
	r := analytics.Renderer()

	fmt.Fprintf(out, "%s %s\n\n", titleStyle.Render("Repair statistics"), labelStyle.Render("("+describeSource(analytics)+")"))
	if stats.TotalRecords == 0 {
		fmt.Fprintln(out, warnStyle.Render("No records match."))
		return
	}

	rows := [][2]string{
		{"Records", r.FormatInt(int64(stats.TotalRecords))},
		{"Vehicles", r.FormatInt(int64(stats.UniqueVehicles))},
		{"Total cost", r.FormatCurrency(stats.TotalCost)},
		{"Average cost", r.FormatCurrency(stats.AvgCost)},
		{"Labor / material", fmt.Sprintf("%s / %s (%.1f%% labor)",
			r.FormatCurrency(stats.LaborVsMaterial.Labor),
			r.FormatCurrency(stats.LaborVsMaterial.Material),
			stats.LaborVsMaterial.LaborPercent)},
		{"Rejected", fmt.Sprintf("%d (%.1f%%)", stats.RejectedCount, stats.RejectedRate)},
	}
	if ov.TimedRepairCount > 0 {
		rows = append(rows, [2]string{"Avg repair time", fmt.Sprintf("%.1f h over %d repairs", ov.AvgRepairHours, ov.TimedRepairCount)})
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", row[0])), row[1])
	}

	if len(stats.ByRepairType) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, titleStyle.Render("Top repair types"))
		t := newTable("Repair type", "Count", "Cost", "Share")
		for _, c := range stats.ByRepairType[:min(topRows, len(stats.ByRepairType))] {
			t.Row(c.Name, fmt.Sprint(c.Count), r.FormatCurrency(c.Cost), fmt.Sprintf("%.1f%%", c.Percentage))
		}
		fmt.Fprintln(out, t.Render())
	}
}

// renderCharts plots the monthly totals in millions, plus labor against
// material when both are present.
func renderCharts(stats *models.Statistics, charts models.ChartData) string {
	if len(stats.ByMonth) < 2 {
		return labelStyle.Render("Not enough months to chart.")
	}

	costs := make([]float64, len(stats.ByMonth))
	for i, m := range stats.ByMonth {
		costs[i] = m.Cost / 1_000_000
	}
	caption := fmt.Sprintf("Monthly cost, million (%s to %s)",
		stats.ByMonth[0].Period, stats.ByMonth[len(stats.ByMonth)-1].Period)

	var b strings.Builder
	b.WriteString(asciigraph.Plot(costs,
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Caption(caption),
	))

	if len(charts.LaborMaterialByMonth) < 2 || stats.LaborVsMaterial.Labor+stats.LaborVsMaterial.Material == 0 {
		return b.String()
	}
	labor := make([]float64, len(charts.LaborMaterialByMonth))
	material := make([]float64, len(charts.LaborMaterialByMonth))
	for i, m := range charts.LaborMaterialByMonth {
		labor[i] = m.Labor / 1_000_000
		material[i] = m.Material / 1_000_000
	}
	b.WriteString("\n\n")
	b.WriteString(asciigraph.PlotMany([][]float64{labor, material},
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Caption("Labor (red) vs material (blue), million"),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Blue),
	))
	return b.String()
}
