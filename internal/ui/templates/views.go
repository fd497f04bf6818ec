package templates

import (
	"fmt"
	"slices"

	"repair-dashboard/internal/models"
	"repair-dashboard/internal/services"
)

const maxBars = 12

// CardsView is the formatted content of the stat cards.
type CardsView struct {
	TotalRecords   string
	UniqueVehicles string
	TotalCost      string
	AvgCost        string
	AvgRepairHours string
	RejectedRate   string
}

// BarView is one row of a horizontal bar chart. Width is 0-100.
type BarView struct {
	Label string
	Value string
	Width float64
}

type ChartsView struct {
	Months        []BarView
	RepairTypes   []BarView
	Workshops     []BarView
	LaborMaterial []BarView
	Approved      int
	Rejected      int
}

type DashboardView struct {
	Username       string
	Source         string
	SourceID       string
	Options        models.FilterOptions
	Imports        []models.ImportRecord
	Cards          CardsView
	Charts         ChartsView
	AssistantReady bool
}

func NewCardsView(ov models.DashboardOverview, stats *models.Statistics, r *services.Renderer) CardsView {
	return CardsView{
		TotalRecords:   r.FormatInt(int64(ov.TotalRecords)),
		UniqueVehicles: r.FormatInt(int64(ov.UniqueVehicles)),
		TotalCost:      r.FormatCurrency(ov.TotalCost),
		AvgCost:        r.FormatCurrency(stats.AvgCost),
		AvgRepairHours: fmt.Sprintf("%.1f h", ov.AvgRepairHours),
		RejectedRate:   fmt.Sprintf("%.1f%%", stats.RejectedRate),
	}
}

func NewChartsView(stats *models.Statistics, charts models.ChartData, r *services.Renderer) ChartsView {
	months := lastBars(stats.ByMonth, maxBars)
	v := ChartsView{
		Approved: charts.Rejection.Approved,
		Rejected: charts.Rejection.Rejected,
	}

	var peak float64
	for _, m := range months {
		peak = max(peak, m.Cost)
	}
	for _, m := range months {
		v.Months = append(v.Months, BarView{Label: m.Period, Value: r.FormatCurrency(m.Cost), Width: scale(m.Cost, peak)})
	}

	peak = 0
	for _, c := range stats.ByRepairType {
		peak = max(peak, float64(c.Count))
	}
	for _, c := range stats.ByRepairType {
		v.RepairTypes = append(v.RepairTypes, BarView{
			Label: c.Name,
			Value: fmt.Sprintf("%d (%.1f%%)", c.Count, c.Percentage),
			Width: scale(float64(c.Count), peak),
		})
	}

	peak = 0
	for _, c := range stats.ByWorkshop {
		peak = max(peak, c.Cost)
	}
	for _, c := range stats.ByWorkshop {
		v.Workshops = append(v.Workshops, BarView{Label: c.Name, Value: r.FormatCurrency(c.Cost), Width: scale(c.Cost, peak)})
	}

	split := stats.LaborVsMaterial
	total := split.Labor + split.Material
	v.LaborMaterial = []BarView{
		{Label: "Labor", Value: r.FormatCurrency(split.Labor), Width: scale(split.Labor, total)},
		{Label: "Material", Value: r.FormatCurrency(split.Material), Width: scale(split.Material, total)},
	}
	return v
}

func lastBars(items []models.PeriodCost, n int) []models.PeriodCost {
	if len(items) <= n {
		return slices.Clone(items)
	}
	return slices.Clone(items[len(items)-n:])
}

func scale(v, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	return v / peak * 100
}
