package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Cell is a raw spreadsheet value. Sheets deliver numbers and dates as text
// ("1,250,000", "15/03/2024 08:30"), JSON payloads may deliver them as numbers
// or booleans; Cell keeps the textual form of all of them.
type Cell string

func (c Cell) String() string {
	return string(c)
}

// IsEmpty reports whether the cell holds no visible value.
func (c Cell) IsEmpty() bool {
	return strings.TrimSpace(string(c)) == ""
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cell(s)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*c = Cell(data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*c = Cell(n.String())
	}
	return nil
}

// NumberCell formats a float the way a sheet export would.
func NumberCell(v float64) Cell {
	return Cell(strconv.FormatFloat(v, 'f', -1, 64))
}

// RepairRecord is one row of an imported repair sheet. JSON names follow the
// sheet header row.
type RepairRecord struct {
	Seq             Cell   `json:"seq,omitempty"`
	RepairNo        string `json:"repair_no"`
	RequestedAt     Cell   `json:"ngay_gio_yeu_cau"`
	CheckedInAt     Cell   `json:"ngay_gio_vao_xuong,omitempty"`
	CompletedAt     Cell   `json:"ngay_gio_hoan_thanh,omitempty"`
	DebtDate        Cell   `json:"ngay_cong_no,omitempty"`
	Vehicle         string `json:"phuong_tien_can_sua_chua"`
	Reference       string `json:"tham_chieu,omitempty"`
	Driver          string `json:"lai_xe,omitempty"`
	Route           string `json:"tuyen,omitempty"`
	VehicleType     string `json:"loai_phuong_tien"`
	Brand           string `json:"nhan_hieu,omitempty"`
	RepairType      string `json:"phan_loai_sua_chua"`
	RepairItem      string `json:"hang_muc_sua_chua,omitempty"`
	RepairDetail    string `json:"chi_tiet_sua_chua,omitempty"`
	Symptom         string `json:"dau_hieu,omitempty"`
	LastRepairAt    Cell   `json:"ngay_sua_chua_gan_nhat,omitempty"`
	Mileage         Cell   `json:"km_di_duoc,omitempty"`
	Rejected        Cell   `json:"tu_choi_yeu_cau,omitempty"`
	Note            string `json:"ghi_chu,omitempty"`
	Workshop        string `json:"phan_xuong,omitempty"`
	Inspector       string `json:"nguoi_nghiem_thu,omitempty"`
	LaborCost       Cell   `json:"chi_phi_nhan_cong"`
	OutsideMaterial Cell   `json:"chi_phi_vat_tu_ngoai,omitempty"`
	MaterialCode    string `json:"ma_vat_tu,omitempty"`
	IssuedQuantity  Cell   `json:"so_luong_xuat,omitempty"`
	UnitPrice       Cell   `json:"don_gia,omitempty"`
	MaterialPayment Cell   `json:"thanh_toan_vat_tu_xnk"`
	CostBeforeTax   Cell   `json:"tong_chi_phi_truoc_vat"`
	VAT             Cell   `json:"vat"`
	CostAfterTax    Cell   `json:"tong_chi_phi_sau_vat"`
	ManufactureYear Cell   `json:"nam_san_xuat,omitempty"`
	DebtMonth       string `json:"thang_cong_no,omitempty"`
	VehicleCode     string `json:"ma_phuong_tien,omitempty"`
	ReferenceCode   string `json:"ma_tham_chieu,omitempty"`
}

type ImportStatus string

const (
	ImportPending   ImportStatus = "pending"
	ImportCompleted ImportStatus = "completed"
	ImportFailed    ImportStatus = "failed"
)

// ImportRecord is one sheet import kept in the import history.
type ImportRecord struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	CSVURL      string         `json:"csv_url,omitempty"`
	SheetKey    string         `json:"sheet_key"`
	SheetName   string         `json:"sheet_name"`
	RowCount    int            `json:"row_count"`
	ColumnCount int            `json:"column_count"`
	Data        []RepairRecord `json:"data,omitempty"`
	Status      ImportStatus   `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FilterParams narrows a record set. Empty fields and the value "all" place
// no constraint. From and To are inclusive calendar days.
type FilterParams struct {
	From        time.Time `json:"from,omitempty"`
	To          time.Time `json:"to,omitempty"`
	VehicleType string    `json:"vehicle_type,omitempty"`
	RepairType  string    `json:"repair_type,omitempty"`
	Workshop    string    `json:"workshop,omitempty"`
}

func (f FilterParams) IsZero() bool {
	return f.From.IsZero() && f.To.IsZero() &&
		isUnset(f.VehicleType) && isUnset(f.RepairType) && isUnset(f.Workshop)
}

func isUnset(v string) bool {
	return v == "" || v == "all"
}

type FilterOptions struct {
	VehicleTypes []string `json:"vehicle_types"`
	RepairTypes  []string `json:"repair_types"`
	Workshops    []string `json:"workshops"`
}
