package services

import (
	"testing"
	"time"

	"repair-dashboard/internal/models"
)

func TestParseCost(t *testing.T) {
	tests := []struct {
		name string
		cell models.Cell
		want float64
	}{
		{"thousands separators", "1,000,000", 1_000_000},
		{"plain integer", "2000000", 2_000_000},
		{"decimal", "980000.5", 980_000.5},
		{"trailing unit", "12 VND", 12},
		{"negative", "-500", -500},
		{"surrounding spaces", "  1,250  ", 1_250},
		{"exponent", "1e3", 1_000},
		{"not a number", "bad", 0},
		{"empty", "", 0},
		{"leading text", "VND 12", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCost(tt.cell); got != tt.want {
				t.Errorf("ParseCost(%q) = %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}

func TestMatchRequestDate(t *testing.T) {
	tests := []struct {
		cell             models.Cell
		day, month, year int
		ok               bool
	}{
		{"15/03/2024", 15, 3, 2024, true},
		{"1/2/2023 08:15", 1, 2, 2023, true},
		{"requested 5/11/2022", 5, 11, 2022, true},
		{"2024-03-15", 0, 0, 0, false},
		{"15/03/24", 0, 0, 0, false},
		{"", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.cell), func(t *testing.T) {
			day, month, year, ok := MatchRequestDate(tt.cell)
			if ok != tt.ok || day != tt.day || month != tt.month || year != tt.year {
				t.Errorf("MatchRequestDate(%q) = %d, %d, %d, %v; want %d, %d, %d, %v",
					tt.cell, day, month, year, ok, tt.day, tt.month, tt.year, tt.ok)
			}
		})
	}
}

func TestIsRejected(t *testing.T) {
	for cell, want := range map[models.Cell]bool{
		"true":  true,
		"TRUE":  true,
		"false": false,
		"yes":   false,
		"1":     false,
		"x":     false,
		"":      false,
	} {
		if got := IsRejected(cell); got != want {
			t.Errorf("IsRejected(%q) = %v, want %v", cell, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		cell models.Cell
		want time.Time
		ok   bool
	}{
		{"15/03/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local), true},
		{"15/03/2024 14:30", time.Date(2024, 3, 15, 14, 30, 0, 0, time.Local), true},
		{"5/3/2024 07:05:09", time.Date(2024, 3, 5, 7, 5, 9, 0, time.Local), true},
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local), true},
		{"2024-03-15 10:00:00", time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local), true},
		{"03/25/2024", time.Date(2024, 3, 25, 0, 0, 0, 0, time.Local), true},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.cell), func(t *testing.T) {
			got, ok := ParseDate(tt.cell)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.cell, ok, tt.ok)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}
