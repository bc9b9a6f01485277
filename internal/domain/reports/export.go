package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"hrsched/internal/domain/requests"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

var exportHeader = []string{"ID", "Type", "Status", "Employee", "Factory", "Group", "Start", "End", "Days", "Time", "Reason"}

func exportRow(req requests.Request) []string {
	return []string{
		req.ID, req.Type, req.Status, req.EmployeeName, req.FactoryID, req.GroupID,
		req.StartDate.Format(time.DateOnly), req.EndDate.Format(time.DateOnly),
		strconv.Itoa(req.Days()), req.Time, req.Reason,
	}
}

func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

func ValidFormat(format string) bool {
	return format == FormatCSV || format == FormatXLSX || format == FormatPDF
}

// Export writes items in the given format.
func Export(w io.Writer, format string, items []requests.Request) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, items)
	case FormatXLSX:
		return writeXLSX(w, items)
	case FormatPDF:
		return writePDF(w, items)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func writeCSV(w io.Writer, items []requests.Request) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, req := range items {
		if err := writer.Write(exportRow(req)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

const sheetName = "Requests"

func writeXLSX(w io.Writer, items []requests.Request) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	for i, req := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := exportRow(req)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		row[8] = req.Days()
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

var pdfWidths = []float64{20, 24, 18, 38, 20, 20, 20, 20, 10, 12, 75}

func writePDF(w io.Writer, items []requests.Request) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Requests report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 8)
	for i, h := range exportHeader {
		pdf.CellFormat(pdfWidths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, req := range items {
		row := exportRow(req)
		row[0] = shortID(row[0])
		row[4] = shortID(row[4])
		row[5] = shortID(row[5])
		for i, value := range row {
			pdf.CellFormat(pdfWidths[i], 6, tr(truncate(value, 60)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %d", len(items)))
	return pdf.Output(w)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
