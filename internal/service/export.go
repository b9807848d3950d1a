package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"assetbook/internal/domain"
	"assetbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Bookings"

var exportHeaders = []string{
	"ID", "Asset", "User", "Status", "Start", "End", "Purpose",
	"Contact name", "Contact email", "Contact mobile",
	"Received at", "Returned at", "Cancellation reason",
}

var statusFill = map[models.BookingStatus]string{
	models.StatusPending:               "#FFF2CC",
	models.StatusAccepted:              "#E2EFDA",
	models.StatusRejected:              "#F8CBAD",
	models.StatusCancellationRequested: "#FCE4D6",
	models.StatusCancelled:             "#D9D9D9",
	models.StatusReceived:              "#DDEBF7",
	models.StatusReturned:              "#EDEDED",
}

type ExportService struct {
	bookings domain.BookingRepository
	assets   domain.AssetRepository
	dir      string
	logger   *zerolog.Logger
}

// NewExportService builds the exporter. When dir is set every workbook is
// also archived there.
func NewExportService(bookings domain.BookingRepository, assets domain.AssetRepository, dir string, logger *zerolog.Logger) *ExportService {
	return &ExportService{bookings: bookings, assets: assets, dir: dir, logger: logger}
}

// ExportBookings renders every booking overlapping [from, to] as an XLSX workbook.
func (s *ExportService) ExportBookings(ctx context.Context, from, to time.Time) (*bytes.Buffer, string, error) {
	if to.Before(from) {
		return nil, "", domain.Validation("to must not be before from")
	}

	bookings, err := s.bookings.ListBookings(ctx, models.BookingFilter{From: from, To: to})
	if err != nil {
		return nil, "", fmt.Errorf("error getting bookings: %w", err)
	}
	assets, err := s.assets.ListAssets(ctx, models.AssetFilter{})
	if err != nil {
		return nil, "", fmt.Errorf("error getting assets: %w", err)
	}
	names := make(map[int64]string, len(assets))
	for _, a := range assets {
		names[a.ID] = a.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(exportSheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	_ = f.MergeCell(exportSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(exportSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(exportSheet, cell, h)
	}
	_ = f.SetCellStyle(exportSheet, "A2", lastCol+"2", headerStyle)

	styles := make(map[models.BookingStatus]int, len(statusFill))
	for st, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}})
		if err == nil {
			styles[st] = id
		}
	}

	for i, b := range bookings {
		row := i + 3
		values := []interface{}{
			b.ID,
			names[b.AssetID],
			optionalID(b.UserID),
			string(b.Status),
			b.StartDatetime.UTC().Format(time.DateTime),
			b.EndDatetime.UTC().Format(time.DateTime),
			b.Purpose,
			b.ContactName,
			b.ContactEmail,
			b.ContactMobile,
			optionalTime(b.ReceivedAt),
			optionalTime(b.ReturnedAt),
			b.CancellationReason,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, start, &values); err != nil {
			return nil, "", fmt.Errorf("error writing row: %w", err)
		}
		if style, ok := styles[b.Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(4, row)
			_ = f.SetCellStyle(exportSheet, cell, cell, style)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 8)
	_ = f.SetColWidth(exportSheet, "B", lastCol, 20)

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("error rendering workbook: %w", err)
	}

	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			s.logger.Warn().Err(err).Msg("cannot create export directory")
		} else if err := os.WriteFile(filepath.Join(s.dir, fileName), buf.Bytes(), 0o644); err != nil {
			s.logger.Warn().Err(err).Msg("cannot archive export")
		}
	}

	s.logger.Info().Str("file", fileName).Int("rows", len(bookings)).Msg("bookings exported")
	return buf, fileName, nil
}

func optionalID(id *int64) interface{} {
	if id == nil {
		return ""
	}
	return *id
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.DateTime)
}
