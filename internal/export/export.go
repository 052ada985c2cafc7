package export

import (
	"fmt"
	"io"
	"sort"

	"tourbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Daily summary"
	timeLayout    = "2006-01-02 15:04"
)

var bookingHeaders = []string{
	"ID", "Tour ID", "Tour", "Travel date", "Full name", "Email", "Phone",
	"People", "Accommodation", "Requirements", "Status", "Admin notes", "Created",
}

var statusFills = map[models.BookingStatus]string{
	models.StatusPending:   "#FFEB9C",
	models.StatusConfirmed: "#C6EFCE",
	models.StatusRejected:  "#FFC7CE",
	models.StatusCancelled: "#D9D9D9",
}

// Period is the inclusive travel-date range covered by an export.
type Period struct {
	From string
	To   string
}

// FileName is the attachment name used for the export of p.
func (p Period) FileName() string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", p.From, p.To)
}

// WriteBookings renders bookings as an XLSX workbook into w. The workbook
// has one row per booking and a per tour and day summary.
func WriteBookings(w io.Writer, period Period, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeBookingRows(f, period, bookings); err != nil {
		return err
	}
	if err := writeSummary(f, bookings); err != nil {
		return err
	}

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeBookingRows(f *excelize.File, period Period, bookings []*models.Booking) error {
	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("Period: %s - %s", period.From, period.To))
	lastCol, _ := excelize.ColumnNumberToName(len(bookingHeaders))
	_ = f.MergeCell(bookingsSheet, "A1", lastCol+"1")

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create title style: %w", err)
	}
	_ = f.SetCellStyle(bookingsSheet, "A1", "A1", titleStyle)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for i, header := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(bookingsSheet, cell, header)
	}
	_ = f.SetCellStyle(bookingsSheet, "A2", lastCol+"2", headerStyle)

	styles := make(map[models.BookingStatus]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("create status style: %w", err)
		}
		styles[status] = id
	}

	statusCol, _ := excelize.ColumnNumberToName(11)
	for i, b := range bookings {
		row := i + 3
		values := []any{
			b.ID, b.TourID, b.TourName, b.TravelDate, b.FullName, b.Email, b.Phone,
			b.NumberOfPeople, b.AccommodationType, b.OtherRequirements, b.Status.String(), b.AdminNotes,
			b.CreatedAt.UTC().Format(timeLayout),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(bookingsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if style, ok := styles[b.Status]; ok {
			statusCell := fmt.Sprintf("%s%d", statusCol, row)
			_ = f.SetCellStyle(bookingsSheet, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(bookingsSheet, "B", lastCol, 18)
	return nil
}

type summaryKey struct {
	tourID string
	date   string
}

func writeSummary(f *excelize.File, bookings []*models.Booking) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	stats := make(map[summaryKey]*models.BookingStats)
	for _, b := range bookings {
		key := summaryKey{tourID: b.TourID, date: b.TravelDate}
		if stats[key] == nil {
			stats[key] = &models.BookingStats{}
		}
		stats[key].Add(b.Status)
	}

	keys := make([]summaryKey, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].tourID < keys[j].tourID
	})

	header := []any{"Travel date", "Tour ID", "Total", "Pending", "Confirmed", "Rejected", "Cancelled"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for i, key := range keys {
		s := stats[key]
		row := []any{key.date, key.tourID, s.Total, s.Pending, s.Confirmed, s.Rejected, s.Cancelled}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "B", 16)
	return nil
}
