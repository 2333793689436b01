package attendance

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName  = "Attendance"
	timeLayout = "2006-01-02 15:04:05"
)

var columns = []string{
	"student_id", "name", "check_in_time", "last_seen_time", "status", "total_time_present",
}

// ExcelStore persists the ledger as an .xlsx workbook with one row per
// student. The whole table is read on Load and rewritten on Save.
type ExcelStore struct {
	path string
}

// NewExcelStore creates a store writing to the given path.
func NewExcelStore(path string) *ExcelStore {
	return &ExcelStore{path: path}
}

// Load reads all records. A missing file yields an empty table. Rows
// with missing columns are backfilled with defaults (status ABSENT,
// zero total time) instead of failing, and unknown status values
// normalize to ABSENT.
func (s *ExcelStore) Load() ([]Record, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance file: %w", err)
	}
	defer f.Close()

	sheet := sheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read attendance sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Map header names to positions so column order and missing
	// columns are tolerated.
	colIdx := make(map[string]int)
	for i, name := range rows[0] {
		colIdx[strings.TrimSpace(name)] = i
	}

	cell := func(row []string, name string) string {
		idx, ok := colIdx[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []Record
	for _, row := range rows[1:] {
		id := cell(row, "student_id")
		if id == "" {
			continue
		}
		rec := Record{
			StudentID:    id,
			Name:         cell(row, "name"),
			CheckIn:      parseTime(cell(row, "check_in_time")),
			LastSeen:     parseTime(cell(row, "last_seen_time")),
			Status:       NormalizeStatus(cell(row, "status")),
			TotalPresent: parseClockDuration(cell(row, "total_time_present")),
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save replaces the workbook with the given records.
func (s *ExcelStore) Save(records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheetName); err != nil {
		return fmt.Errorf("failed to prepare attendance sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &columns); err != nil {
		return fmt.Errorf("failed to write attendance header: %w", err)
	}

	for i, rec := range records {
		row := []interface{}{
			rec.StudentID,
			rec.Name,
			formatTime(rec.CheckIn),
			formatTime(rec.LastSeen),
			string(rec.Status),
			formatClockDuration(rec.TotalPresent),
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cellRef, &row); err != nil {
			return fmt.Errorf("failed to write attendance row: %w", err)
		}
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save attendance file: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeLayout, raw, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatClockDuration renders a duration as H:MM:SS, hours unbounded.
func formatClockDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func parseClockDuration(raw string) time.Duration {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
}
