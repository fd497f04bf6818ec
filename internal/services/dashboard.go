package services

import (
	"fmt"
	"slices"

	"repair-dashboard/internal/models"
)

// maxRepairHours drops check-in/completion pairs that are obviously wrong.
const maxRepairHours = 1000

// Overview computes the stat card values.
func Overview(records []models.RepairRecord) models.DashboardOverview {
	var (
		totalCost  float64
		totalHours float64
		timed      int
	)
	vehicles := make(map[string]struct{})

	for i := range records {
		r := &records[i]
		totalCost += ParseCost(r.CostAfterTax)
		if r.Vehicle != "" {
			vehicles[r.Vehicle] = struct{}{}
		}

		in, okIn := ParseDate(r.CheckedInAt)
		done, okDone := ParseDate(r.CompletedAt)
		if !okIn || !okDone {
			continue
		}
		hours := done.Sub(in).Hours()
		if hours > 0 && hours < maxRepairHours {
			totalHours += hours
			timed++
		}
	}

	return models.DashboardOverview{
		TotalRecords:     len(records),
		UniqueVehicles:   len(vehicles),
		TotalCost:        totalCost,
		AvgRepairHours:   ratio(totalHours, float64(timed)),
		TimedRepairCount: timed,
	}
}

// Charts computes the monthly labor/material series ("YYYY-MM" ascending)
// and the approved/rejected split.
func Charts(records []models.RepairRecord) models.ChartData {
	byMonth := make(map[string]*models.MonthlyLaborMaterial)
	var data models.ChartData

	for i := range records {
		r := &records[i]
		if IsRejected(r.Rejected) {
			data.Rejection.Rejected++
		} else {
			data.Rejection.Approved++
		}

		_, month, year, ok := MatchRequestDate(r.RequestedAt)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d-%02d", year, month)
		m, exists := byMonth[key]
		if !exists {
			m = &models.MonthlyLaborMaterial{Month: key}
			byMonth[key] = m
		}
		m.Labor += ParseCost(r.LaborCost)
		m.Material += ParseCost(r.MaterialPayment)
	}

	data.LaborMaterialByMonth = make([]models.MonthlyLaborMaterial, 0, len(byMonth))
	for _, m := range byMonth {
		data.LaborMaterialByMonth = append(data.LaborMaterialByMonth, *m)
	}
	slices.SortFunc(data.LaborMaterialByMonth, func(a, b models.MonthlyLaborMaterial) int {
		switch {
		case a.Month < b.Month:
			return -1
		case a.Month > b.Month:
			return 1
		}
		return 0
	})
	return data
}
