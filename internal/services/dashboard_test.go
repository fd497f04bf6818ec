package services

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"repair-dashboard/internal/models"
)

func TestOverview(t *testing.T) {
	records := []models.RepairRecord{
		{Vehicle: "51B-001", CostAfterTax: "1,000,000", CheckedInAt: "01/03/2024 08:00", CompletedAt: "01/03/2024 12:00"},
		{Vehicle: "51B-001", CostAfterTax: "500,000", CheckedInAt: "02/03/2024 08:00", CompletedAt: "03/03/2024 08:00"},
		{Vehicle: "51B-002", CostAfterTax: "250,000", CheckedInAt: "05/03/2024 08:00", CompletedAt: "04/03/2024 08:00"},
		{Vehicle: "", CostAfterTax: "bad", CheckedInAt: "01/01/2024", CompletedAt: "01/06/2024"},
		{Vehicle: "51B-003", CostAfterTax: "0"},
	}

	got := Overview(records)

	want := models.DashboardOverview{
		TotalRecords:     5,
		UniqueVehicles:   3,
		TotalCost:        1_750_000,
		AvgRepairHours:   14,
		TimedRepairCount: 2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Overview() mismatch (-want +got):\n%s", diff)
	}
}

func TestOverview_Empty(t *testing.T) {
	got := Overview(nil)

	if diff := cmp.Diff(models.DashboardOverview{}, got); diff != "" {
		t.Errorf("Overview(nil) mismatch (-want +got):\n%s", diff)
	}
	if math.IsNaN(got.AvgRepairHours) {
		t.Error("AvgRepairHours should not be NaN")
	}
}

func TestCharts(t *testing.T) {
	records := []models.RepairRecord{
		{RequestedAt: "15/03/2024", LaborCost: "100", MaterialPayment: "1,000"},
		{RequestedAt: "2/12/2023", LaborCost: "50", MaterialPayment: "500", Rejected: "true"},
		{RequestedAt: "20/03/2024 09:00", LaborCost: "25", MaterialPayment: ""},
		{RequestedAt: "", LaborCost: "999", MaterialPayment: "999"},
	}

	got := Charts(records)

	want := models.ChartData{
		LaborMaterialByMonth: []models.MonthlyLaborMaterial{
			{Month: "2023-12", Labor: 50, Material: 500},
			{Month: "2024-03", Labor: 125, Material: 1_000},
		},
		Rejection: models.RejectionSplit{Approved: 3, Rejected: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Charts() mismatch (-want +got):\n%s", diff)
	}
}
