package sheets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"repair-dashboard/internal/models"
)

var ErrNoHeader = errors.New("csv has no header row")

// columnIndex maps a sheet header to the RepairRecord field carrying it.
var columnIndex = buildColumnIndex()

func buildColumnIndex() map[string]int {
	t := reflect.TypeOf(models.RepairRecord{})
	idx := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			idx[name] = i
		}
	}
	return idx
}

// Table is a parsed CSV export.
type Table struct {
	Columns []string
	Records []models.RepairRecord
}

// ParseCSV reads a CSV export with a header row. Headers are trimmed, unknown
// columns are ignored and rows whose cells are all blank are skipped.
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	fields := make([]int, len(header))
	columns := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		columns = append(columns, h)
		if f, ok := columnIndex[h]; ok {
			fields[i] = f
		} else {
			fields[i] = -1
		}
	}

	table := &Table{Columns: columns, Records: make([]models.RepairRecord, 0, 256)}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(table.Records)+2, err)
		}
		if blankRow(row) {
			continue
		}

		var rec models.RepairRecord
		v := reflect.ValueOf(&rec).Elem()
		for i, cell := range row {
			if i >= len(fields) || fields[i] < 0 {
				continue
			}
			v.Field(fields[i]).SetString(strings.TrimSpace(cell))
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
