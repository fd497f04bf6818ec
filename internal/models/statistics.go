package models

// Statistics is the aggregated view of a record set. It is computed once per
// record set and shared read-only between the dashboard and the assistant.
type Statistics struct {
	TotalRecords      int     `json:"total_records"`
	TotalCost         float64 `json:"total_cost"`
	TotalLaborCost    float64 `json:"total_labor_cost"`
	TotalMaterialCost float64 `json:"total_material_cost"`
	AvgCost           float64 `json:"avg_cost"`
	MinCost           float64 `json:"min_cost"`
	MaxCost           float64 `json:"max_cost"`
	UniqueVehicles    int     `json:"unique_vehicles"`
	RejectedCount     int     `json:"rejected_count"`
	RejectedRate      float64 `json:"rejected_rate"`

	ByMonth   []PeriodCost `json:"by_month"`
	ByQuarter []PeriodCost `json:"by_quarter"`

	ByRepairType []CategoryShare `json:"by_repair_type"`
	ByWorkshop   []CategoryShare `json:"by_workshop"`

	TopVehiclesByCost  []VehicleCost `json:"top_vehicles_by_cost"`
	TopVehiclesByCount []VehicleCost `json:"top_vehicles_by_count"`

	LaborVsMaterial  LaborMaterialSplit `json:"labor_vs_material"`
	CostDistribution CostDistribution   `json:"cost_distribution"`
}

// PeriodCost is a month ("MM/YYYY") or quarter ("Qn/YYYY") aggregate.
type PeriodCost struct {
	Period string  `json:"period"`
	Count  int     `json:"count"`
	Cost   float64 `json:"cost"`
}

// CategoryShare is a repair type or workshop aggregate. Percentage is the
// share of records for repair types and the share of total cost for workshops.
type CategoryShare struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Cost       float64 `json:"cost"`
	Percentage float64 `json:"percentage"`
}

type VehicleCost struct {
	Vehicle string  `json:"vehicle"`
	Count   int     `json:"count"`
	Cost    float64 `json:"cost"`
}

type LaborMaterialSplit struct {
	Labor        float64 `json:"labor"`
	Material     float64 `json:"material"`
	LaborPercent float64 `json:"labor_percent"`
}

// CostDistribution counts records per cost magnitude bucket.
type CostDistribution struct {
	Under1M     int `json:"under_1m"`
	From1Mto5M  int `json:"from_1m_to_5m"`
	From5Mto10M int `json:"from_5m_to_10m"`
	Over10M     int `json:"over_10m"`
}

func (d CostDistribution) Total() int {
	return d.Under1M + d.From1Mto5M + d.From5Mto10M + d.Over10M
}

// DashboardOverview backs the stat cards.
type DashboardOverview struct {
	TotalRecords     int     `json:"total_records"`
	UniqueVehicles   int     `json:"unique_vehicles"`
	TotalCost        float64 `json:"total_cost"`
	AvgRepairHours   float64 `json:"avg_repair_hours"`
	TimedRepairCount int     `json:"timed_repair_count"`
}

type MonthlyLaborMaterial struct {
	Month    string  `json:"month"`
	Labor    float64 `json:"labor"`
	Material float64 `json:"material"`
}

type RejectionSplit struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ChartData holds the series that are not part of Statistics.
type ChartData struct {
	LaborMaterialByMonth []MonthlyLaborMaterial `json:"labor_material_by_month"`
	Rejection            RejectionSplit         `json:"rejection"`
}
