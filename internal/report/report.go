// Package report turns the raw check-in list into day-by-day summaries and
// CSV exports for offline processing.
package report

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"rollcall/internal/model"
	"rollcall/internal/storage"
)

// csvHeader is the fixed export column set. Consumers parse by position,
// so the order is part of the format.
const csvHeader = "ID,Name,Date,Time,Position,Description,Location"

// DailyReport is one day's slice of the registry.
type DailyReport struct {
	Date    string                   `json:"date"`
	Count   int                      `json:"count"`
	Records []model.AttendanceRecord `json:"records"`
}

// Service builds reports from the record store.
type Service struct {
	store storage.RecordStore
}

// New creates the service.
func New(store storage.RecordStore) *Service {
	return &Service{store: store}
}

// Daily returns all check-ins grouped by date.
func (s *Service) Daily(ctx context.Context) ([]DailyReport, error) {
	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByDate(records), nil
}

// ExportDay renders one date's check-ins as CSV and names the download.
// A date with no check-ins exports as just the header row.
func (s *Service) ExportDay(ctx context.Context, date string) ([]byte, string, error) {
	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, "", err
	}
	var day []model.AttendanceRecord
	for _, rec := range records {
		if rec.Date == date {
			day = append(day, rec)
		}
	}
	return ExportCSV(day), Filename(date), nil
}

// GroupByDate partitions records into daily reports. Dates appear in the
// order they are first seen in the input; every record lands in exactly
// one group.
func GroupByDate(records []model.AttendanceRecord) []DailyReport {
	byDate := make(map[string]int)
	var reports []DailyReport
	for _, rec := range records {
		i, ok := byDate[rec.Date]
		if !ok {
			i = len(reports)
			byDate[rec.Date] = i
			reports = append(reports, DailyReport{Date: rec.Date})
		}
		reports[i].Records = append(reports[i].Records, rec)
		reports[i].Count++
	}
	return reports
}

// ExportCSV renders records as CSV rows under the fixed header. Free-text
// fields (name, position, description, location) are always quoted so
// embedded commas, quotes and newlines survive the round trip; ID, date
// and time are machine-generated and written bare.
func ExportCSV(records []model.AttendanceRecord) []byte {
	var buf bytes.Buffer
	buf.WriteString(csvHeader)
	buf.WriteByte('\n')
	for _, rec := range records {
		buf.WriteString(rec.UserID)
		buf.WriteByte(',')
		buf.WriteString(quote(rec.UserName))
		buf.WriteByte(',')
		buf.WriteString(rec.Date)
		buf.WriteByte(',')
		buf.WriteString(rec.Time)
		buf.WriteByte(',')
		buf.WriteString(quote(rec.Position))
		buf.WriteByte(',')
		buf.WriteString(quote(rec.Description))
		buf.WriteByte(',')
		buf.WriteString(quote(formatLocation(rec.Location)))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Filename names a day's export. Slashes in the date would split the name
// into path segments, so they become dashes: 10/5/2024 -> Attendance_10-5-2024.csv.
func Filename(date string) string {
	return "Attendance_" + strings.ReplaceAll(date, "/", "-") + ".csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatLocation(loc model.Location) string {
	return strconv.FormatFloat(loc.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(loc.Lng, 'f', -1, 64)
}
