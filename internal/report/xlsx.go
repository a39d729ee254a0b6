// This file renders ledger exports as XLSX workbooks using excelize.
package report

import (
	"fmt"

	"github.com/facturo/facturo/internal/domain"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// Ledger Workbook Exporter
// =============================================================================

const ledgerSheet = "Ledger"

// XLSXExporter renders ledger entries as an XLSX workbook with a summary
// header and one row per entry. It satisfies the service layer's
// LedgerExporter interface.
type XLSXExporter struct{}

// NewXLSXExporter creates a new XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ExportLedger renders the workbook and returns its bytes.
func (e *XLSXExporter) ExportLedger(company *domain.Company, summary *domain.LedgerSummary, entries []domain.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ledgerSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2563EB"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	// Two-decimal number format for amount columns
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, fmt.Errorf("create amount style: %w", err)
	}

	// Summary block
	f.SetCellValue(ledgerSheet, "A1", fmt.Sprintf("%s - Ledger Export", company.Name))
	f.SetCellStyle(ledgerSheet, "A1", "A1", titleStyle)
	f.SetCellValue(ledgerSheet, "A2", fmt.Sprintf("Period: %s to %s", FormatDate(summary.From), FormatDate(summary.To)))
	f.SetCellValue(ledgerSheet, "A3", "Income")
	f.SetCellValue(ledgerSheet, "B3", centsToUnits(summary.IncomeCents))
	f.SetCellValue(ledgerSheet, "A4", "Expenses")
	f.SetCellValue(ledgerSheet, "B4", centsToUnits(summary.ExpenseCents))
	f.SetCellValue(ledgerSheet, "A5", "Net")
	f.SetCellValue(ledgerSheet, "B5", centsToUnits(summary.NetCents))
	f.SetCellStyle(ledgerSheet, "B3", "B5", amountStyle)

	// Entry table header
	const headerRow = 7
	headers := []string{"Date", "Kind", "Source", "Category", "Description", "Amount"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return nil, fmt.Errorf("header cell name: %w", err)
		}
		f.SetCellValue(ledgerSheet, cell, h)
	}
	firstHeader, _ := excelize.CoordinatesToCellName(1, headerRow)
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), headerRow)
	f.SetCellStyle(ledgerSheet, firstHeader, lastHeader, headerStyle)

	// Entry rows
	for i, entry := range entries {
		row := headerRow + 1 + i
		f.SetCellValue(ledgerSheet, cellName(1, row), entry.Date.Format("2006-01-02"))
		f.SetCellValue(ledgerSheet, cellName(2, row), string(entry.Kind))
		f.SetCellValue(ledgerSheet, cellName(3, row), string(entry.Source))
		f.SetCellValue(ledgerSheet, cellName(4, row), entry.Category)
		f.SetCellValue(ledgerSheet, cellName(5, row), entry.Description)

		amount := centsToUnits(entry.AmountCents)
		if entry.Kind == domain.TransactionKindExpense {
			amount = -amount
		}
		amountCell := cellName(6, row)
		f.SetCellValue(ledgerSheet, amountCell, amount)
		f.SetCellStyle(ledgerSheet, amountCell, amountCell, amountStyle)
	}

	// Column widths sized for typical content
	f.SetColWidth(ledgerSheet, "A", "A", 12)
	f.SetColWidth(ledgerSheet, "B", "D", 14)
	f.SetColWidth(ledgerSheet, "E", "E", 40)
	f.SetColWidth(ledgerSheet, "F", "F", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellName converts coordinates to a cell name, ignoring the error for
// known-valid coordinates.
func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// centsToUnits converts integer cents to a float amount for spreadsheet cells.
func centsToUnits(cents int64) float64 {
	return float64(cents) / 100
}
