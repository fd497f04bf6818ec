package services

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"repair-dashboard/internal/models"
)

const (
	SectionOverview        = "OVERVIEW"
	SectionLaborMaterial   = "LABOR VS MATERIAL"
	SectionDistribution    = "COST DISTRIBUTION"
	SectionMonthly         = "COST BY MONTH"
	SectionWorkshops       = "BY WORKSHOP"
	SectionRepairTypes     = "TOP REPAIR TYPES"
	SectionVehiclesByCost  = "TOP VEHICLES BY COST"
	SectionVehiclesByCount = "TOP VEHICLES BY REPAIR COUNT"
)

// RenderLimits caps how many entries of each list make it into the text.
type RenderLimits struct {
	Months      int
	Workshops   int
	RepairTypes int
	Vehicles    int
}

func DefaultRenderLimits() RenderLimits {
	return RenderLimits{
		Months:      6,
		Workshops:   5,
		RepairTypes: 7,
		Vehicles:    10,
	}
}

type Section struct {
	Title string
	Lines []string
}

// Renderer turns Statistics into the compact text block embedded in the
// assistant prompt.
type Renderer struct {
	printer *message.Printer
	limits  RenderLimits
}

// NewRenderer builds a renderer for a BCP 47 locale ("en", "vi").
// Unknown locales fall back to English grouping.
func NewRenderer(locale string, limits RenderLimits) *Renderer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Renderer{
		printer: message.NewPrinter(tag),
		limits:  limits,
	}
}

// FormatCurrency renders amounts of one billion and up as "X.XX billion",
// one million and up as "X.X million" and anything smaller as a grouped
// integer. The tier is chosen on the value as it will be displayed, so
// 999,999.6 is "1.0 million" and 999,960,000 is "1.00 billion".
func (r *Renderer) FormatCurrency(v float64) string {
	rounded := math.Round(v)
	switch {
	case rounded >= 1_000_000_000 || math.Round(v/100_000) >= 10_000:
		return fmt.Sprintf("%.2f billion", v/1_000_000_000)
	case rounded >= 1_000_000:
		return fmt.Sprintf("%.1f million", v/1_000_000)
	}
	return r.FormatInt(int64(rounded))
}

func (r *Renderer) FormatInt(n int64) string {
	return r.printer.Sprintf("%d", n)
}

// Sections returns the non-empty sections in display order. A summary of
// zero records yields only the overview.
func (r *Renderer) Sections(stats *models.Statistics) []Section {
	sections := []Section{r.overview(stats)}
	if stats.TotalRecords == 0 {
		return sections
	}

	sections = append(sections, r.laborMaterial(stats), r.distribution(stats))

	if len(stats.ByMonth) > 0 {
		s := Section{Title: SectionMonthly}
		for _, m := range lastN(stats.ByMonth, r.limits.Months) {
			s.Lines = append(s.Lines, fmt.Sprintf("%s: %s requests, %s",
				m.Period, r.FormatInt(int64(m.Count)), r.FormatCurrency(m.Cost)))
		}
		sections = append(sections, s)
	}

	if len(stats.ByWorkshop) > 0 {
		s := Section{Title: SectionWorkshops}
		for _, w := range firstN(stats.ByWorkshop, r.limits.Workshops) {
			s.Lines = append(s.Lines, fmt.Sprintf("%s: %s requests, %s (%.1f%%)",
				w.Name, r.FormatInt(int64(w.Count)), r.FormatCurrency(w.Cost), w.Percentage))
		}
		sections = append(sections, s)
	}

	if len(stats.ByRepairType) > 0 {
		s := Section{Title: SectionRepairTypes}
		for _, t := range firstN(stats.ByRepairType, r.limits.RepairTypes) {
			s.Lines = append(s.Lines, fmt.Sprintf("%s: %s (%.1f%%), %s",
				t.Name, r.FormatInt(int64(t.Count)), t.Percentage, r.FormatCurrency(t.Cost)))
		}
		sections = append(sections, s)
	}

	if len(stats.TopVehiclesByCost) > 0 {
		s := Section{Title: SectionVehiclesByCost}
		for _, v := range firstN(stats.TopVehiclesByCost, r.limits.Vehicles) {
			s.Lines = append(s.Lines, fmt.Sprintf("%s: %s (%s repairs)",
				v.Vehicle, r.FormatCurrency(v.Cost), r.FormatInt(int64(v.Count))))
		}
		sections = append(sections, s)
	}

	if len(stats.TopVehiclesByCount) > 0 {
		s := Section{Title: SectionVehiclesByCount}
		for _, v := range firstN(stats.TopVehiclesByCount, r.limits.Vehicles) {
			s.Lines = append(s.Lines, fmt.Sprintf("%s: %s repairs, %s",
				v.Vehicle, r.FormatInt(int64(v.Count)), r.FormatCurrency(v.Cost)))
		}
		sections = append(sections, s)
	}

	return sections
}

// Lines flattens the sections into text lines; sections are separated by a
// blank line and each heading is bracketed.
func (r *Renderer) Lines(stats *models.Statistics) []string {
	var lines []string
	for i, s := range r.Sections(stats) {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "["+s.Title+"]")
		for _, l := range s.Lines {
			lines = append(lines, "- "+l)
		}
	}
	return lines
}

func (r *Renderer) Render(stats *models.Statistics) string {
	return strings.Join(r.Lines(stats), "\n")
}

func (r *Renderer) overview(stats *models.Statistics) Section {
	return Section{
		Title: SectionOverview,
		Lines: []string{
			"Requests: " + r.FormatInt(int64(stats.TotalRecords)),
			"Vehicles: " + r.FormatInt(int64(stats.UniqueVehicles)),
			"Total cost: " + r.FormatCurrency(stats.TotalCost),
			"Average cost per request: " + r.FormatCurrency(stats.AvgCost),
			fmt.Sprintf("Min: %s | Max: %s", r.FormatCurrency(stats.MinCost), r.FormatCurrency(stats.MaxCost)),
			fmt.Sprintf("Rejected: %s (%.1f%%)", r.FormatInt(int64(stats.RejectedCount)), stats.RejectedRate),
		},
	}
}

func (r *Renderer) laborMaterial(stats *models.Statistics) Section {
	lm := stats.LaborVsMaterial
	return Section{
		Title: SectionLaborMaterial,
		Lines: []string{
			fmt.Sprintf("Labor: %s (%.1f%%)", r.FormatCurrency(lm.Labor), lm.LaborPercent),
			fmt.Sprintf("Material: %s (%.1f%%)", r.FormatCurrency(lm.Material), 100-lm.LaborPercent),
		},
	}
}

func (r *Renderer) distribution(stats *models.Statistics) Section {
	cd := stats.CostDistribution
	total := float64(stats.TotalRecords)
	row := func(label string, n int) string {
		return fmt.Sprintf("%s: %s (%.1f%%)", label, r.FormatInt(int64(n)), percent(float64(n), total))
	}
	return Section{
		Title: SectionDistribution,
		Lines: []string{
			row("<1 million", cd.Under1M),
			row("1-5 million", cd.From1Mto5M),
			row("5-10 million", cd.From5Mto10M),
			row(">10 million", cd.Over10M),
		},
	}
}

func firstN[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func lastN[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
