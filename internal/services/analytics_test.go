package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repair-dashboard/internal/models"
)

const testCSVHeader = "repair_no,ngay_gio_yeu_cau,phuong_tien_can_sua_chua,loai_phuong_tien,phan_loai_sua_chua,phan_xuong,tu_choi_yeu_cau,chi_phi_nhan_cong,thanh_toan_vat_tu_xnk,tong_chi_phi_sau_vat"

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "repairs.csv")
	if err := os.WriteFile(name, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics()
	if a == nil {
		t.Fatal("NewAnalytics() returned nil")
	}
	if a.aggregator == nil {
		t.Error("aggregator should be initialized")
	}
	if a.renderer == nil {
		t.Error("renderer should be initialized")
	}
	if a.logger == nil {
		t.Error("logger should be initialized")
	}
	if a.Records() == nil {
		t.Error("Records() should be empty, not nil")
	}
}

func TestAnalytics_SetData(t *testing.T) {
	a := NewAnalytics()
	a.SetData(createTestRecords(30), SourceImport, "imp-1")

	if got := len(a.Records()); got != 30 {
		t.Errorf("Records() length = %d, want 30", got)
	}

	stats := a.Statistics(models.FilterParams{})
	if stats.TotalRecords != 30 {
		t.Errorf("TotalRecords = %d, want 30", stats.TotalRecords)
	}

	info := a.Stats()
	if info["source"] != SourceImport || info["source_id"] != "imp-1" {
		t.Errorf("Stats() = %v, want source import/imp-1", info)
	}

	a.SetData(nil, SourceNone, "")
	if got := a.Records(); got == nil || len(got) != 0 {
		t.Errorf("SetData(nil) should leave an empty dataset, got %v", got)
	}
}

func TestAnalytics_LoadFromCSV_ValidData(t *testing.T) {
	validCSV := testCSVHeader + `
SC001,15/03/2024 08:00,51B-001,Truck,Engine,North,false,"300,000","700,000","1,000,000"
SC002,20/03/2024 09:30,51B-002,Van,Brakes,South,true,"100,000","400,000","500,000"
`
	f := createTempCSV(t, validCSV)

	a := NewAnalytics()
	if err := a.LoadFromCSV(context.Background(), f); err != nil {
		t.Fatalf("LoadFromCSV() with valid data should not error, got: %v", err)
	}

	stats := a.Statistics(models.FilterParams{})
	if stats.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", stats.TotalRecords)
	}
	if stats.TotalCost != 1_500_000 {
		t.Errorf("TotalCost = %v, want 1500000", stats.TotalCost)
	}
	if stats.RejectedCount != 1 {
		t.Errorf("RejectedCount = %d, want 1", stats.RejectedCount)
	}
	if got := a.Stats()["source"]; got != SourceFile {
		t.Errorf("source = %v, want %q", got, SourceFile)
	}
}

func TestAnalytics_LoadFromCSV_ReloadRecomputes(t *testing.T) {
	f := createTempCSV(t, testCSVHeader+`
R1,15/03/2024 08:00,51B-001,Truck,Engine,North,false,0,0,100
R2,16/03/2024 08:00,51B-002,Truck,Engine,North,false,0,0,200
R3,17/03/2024 08:00,51B-003,Truck,Engine,North,false,0,0,300
`)
	a := NewAnalytics()
	if err := a.LoadFromCSV(context.Background(), f); err != nil {
		t.Fatalf("LoadFromCSV() error: %v", err)
	}
	if got := a.Statistics(models.FilterParams{}).TotalCost; got != 600 {
		t.Fatalf("TotalCost = %v, want 600", got)
	}

	// Same length and boundary ids, different content.
	edited := testCSVHeader + `
R1,15/03/2024 08:00,51B-001,Truck,Engine,North,false,0,0,100
R2,16/03/2024 08:00,51B-002,Truck,Engine,North,false,0,0,"5,000,000"
R3,17/03/2024 08:00,51B-003,Truck,Engine,North,false,0,0,300
`
	if err := os.WriteFile(f, []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := a.LoadFromCSV(context.Background(), f); err != nil {
		t.Fatalf("LoadFromCSV() reload error: %v", err)
	}
	if got := a.Statistics(models.FilterParams{}).TotalCost; got != 5_000_400 {
		t.Errorf("TotalCost after reload = %v, want 5000400", got)
	}
}

func TestAnalytics_LoadFromCSV_InvalidData(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr bool
	}{
		{
			name:    "empty file",
			csv:     "",
			wantErr: true,
		},
		{
			name:    "header only",
			csv:     testCSVHeader,
			wantErr: false,
		},
		{
			name:    "unknown columns only",
			csv:     "a,b,c\n1,2,3",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := createTempCSV(t, tt.csv)

			a := NewAnalytics()
			err := a.LoadFromCSV(context.Background(), f)

			if (err != nil) != tt.wantErr {
				t.Errorf("LoadFromCSV() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnalytics_LoadFromCSV_MissingFile(t *testing.T) {
	a := NewAnalytics()
	err := a.LoadFromCSV(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Error("LoadFromCSV() should fail for a missing file")
	}
}

func TestAnalytics_FilteredQueries(t *testing.T) {
	a := NewAnalytics()
	a.SetData(createTestRecords(90), SourceImport, "imp-1")

	params := models.FilterParams{VehicleType: "Van"}

	if got := a.Statistics(params).TotalRecords; got != 30 {
		t.Errorf("filtered TotalRecords = %d, want 30", got)
	}
	if got := a.Overview(params).TotalRecords; got != 30 {
		t.Errorf("filtered overview TotalRecords = %d, want 30", got)
	}
	charts := a.Charts(params)
	if got := charts.Rejection.Approved + charts.Rejection.Rejected; got != 30 {
		t.Errorf("filtered chart split covers %d records, want 30", got)
	}
	if got := len(a.FilterOptions().VehicleTypes); got != 3 {
		t.Errorf("FilterOptions() should ignore filters, got %d vehicle types", got)
	}
}

func TestAnalytics_Summary(t *testing.T) {
	a := NewAnalytics()
	a.SetData(createTestRecords(20), SourceImport, "imp-1")

	text := a.Summary(models.FilterParams{})

	for _, heading := range []string{SectionOverview, SectionWorkshops, SectionVehiclesByCount} {
		if !strings.Contains(text, "["+heading+"]") {
			t.Errorf("Summary() missing section %q", heading)
		}
	}
	if !strings.Contains(text, "Requests: 20") {
		t.Errorf("Summary() should report 20 requests:\n%s", text)
	}
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	a := NewAnalytics()
	a.SetData(createTestRecords(100), SourceImport, "imp-1")

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- true }()

			_ = a.Statistics(models.FilterParams{})
			_ = a.Overview(models.FilterParams{Workshop: "Workshop 1"})
			_ = a.Charts(models.FilterParams{})
			_ = a.FilterOptions()
			if i%3 == 0 {
				a.SetData(createTestRecords(50), SourceSelection, "")
			}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestAnalytics_EmptyData(t *testing.T) {
	a := NewAnalytics()

	stats := a.Statistics(models.FilterParams{})
	if stats.TotalRecords != 0 {
		t.Errorf("TotalRecords = %d, want 0", stats.TotalRecords)
	}
	if len(stats.ByWorkshop) != 0 || stats.ByWorkshop == nil {
		t.Errorf("ByWorkshop should be an empty slice, got %v", stats.ByWorkshop)
	}

	charts := a.Charts(models.FilterParams{})
	if len(charts.LaborMaterialByMonth) != 0 {
		t.Errorf("LaborMaterialByMonth should be empty, got %v", charts.LaborMaterialByMonth)
	}
}

func BenchmarkAnalytics_Statistics(b *testing.B) {
	a := NewAnalytics()
	a.SetData(createTestRecords(1000), SourceImport, "bench")

	b.ResetTimer()
	for b.Loop() {
		_ = a.Statistics(models.FilterParams{})
	}
}

func BenchmarkAnalytics_FilteredStatistics(b *testing.B) {
	a := NewAnalytics()
	a.SetData(createTestRecords(1000), SourceImport, "bench")
	params := models.FilterParams{VehicleType: "Truck"}

	b.ResetTimer()
	for b.Loop() {
		_ = a.Statistics(params)
	}
}
