package services

import (
	"time"

	"repair-dashboard/internal/models"
)

// Filter returns the records matching every set constraint of params.
// Records whose request date cannot be parsed are kept by the date range.
func Filter(records []models.RepairRecord, params models.FilterParams) []models.RepairRecord {
	if params.IsZero() {
		return records
	}

	var from, to time.Time
	if !params.From.IsZero() {
		from = startOfDay(params.From)
	}
	if !params.To.IsZero() {
		to = startOfDay(params.To).AddDate(0, 0, 1)
	}

	out := make([]models.RepairRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		if !matches(r.VehicleType, params.VehicleType) ||
			!matches(r.RepairType, params.RepairType) ||
			!matches(r.Workshop, params.Workshop) {
			continue
		}
		if !from.IsZero() || !to.IsZero() {
			if t, ok := ParseDate(r.RequestedAt); ok {
				if !from.IsZero() && t.Before(from) {
					continue
				}
				if !to.IsZero() && !t.Before(to) {
					continue
				}
			}
		}
		out = append(out, *r)
	}
	return out
}

// FilterOptions lists the distinct non-empty values of the filterable
// columns in first-seen order.
func FilterOptions(records []models.RepairRecord) models.FilterOptions {
	opts := models.FilterOptions{
		VehicleTypes: []string{},
		RepairTypes:  []string{},
		Workshops:    []string{},
	}
	seen := map[string]map[string]bool{
		"vehicle":  {},
		"repair":   {},
		"workshop": {},
	}
	collect := func(kind, v string, dst *[]string) {
		if v == "" || seen[kind][v] {
			return
		}
		seen[kind][v] = true
		*dst = append(*dst, v)
	}
	for i := range records {
		collect("vehicle", records[i].VehicleType, &opts.VehicleTypes)
		collect("repair", records[i].RepairType, &opts.RepairTypes)
		collect("workshop", records[i].Workshop, &opts.Workshops)
	}
	return opts
}

func matches(value, want string) bool {
	return want == "" || want == "all" || value == want
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
