package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/facturo/facturo/internal/domain"
)

func TestExportLedgerWorkbook(t *testing.T) {
	company := &domain.Company{ID: uuid.New(), Name: "Acme GmbH"}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	summary := &domain.LedgerSummary{
		From:         from,
		To:           to,
		IncomeCents:  150000,
		ExpenseCents: 42050,
		NetCents:     107950,
		EntryCount:   2,
	}
	entries := []domain.Transaction{
		{
			Kind:        domain.TransactionKindIncome,
			Source:      domain.TransactionSourceInvoice,
			Date:        time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
			Category:    "Sales",
			Description: "Invoice INV-2026-0001",
			AmountCents: 150000,
		},
		{
			Kind:        domain.TransactionKindExpense,
			Source:      domain.TransactionSourceManual,
			Date:        time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
			Category:    "Office",
			Description: "Printer paper",
			AmountCents: 42050,
		},
	}

	data, err := NewXLSXExporter().ExportLedger(company, summary, entries)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Ledger"}, f.GetSheetList())

	title, err := f.GetCellValue("Ledger", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Acme GmbH - Ledger Export", title)

	net, err := f.GetCellValue("Ledger", "B5")
	require.NoError(t, err)
	assert.Equal(t, "1079.50", net)

	header, err := f.GetCellValue("Ledger", "A7")
	require.NoError(t, err)
	assert.Equal(t, "Date", header)

	// Expense amounts come out negative.
	expense, err := f.GetCellValue("Ledger", "F9")
	require.NoError(t, err)
	assert.Equal(t, "-420.50", expense)
}

func TestExportLedgerEmptyEntries(t *testing.T) {
	company := &domain.Company{ID: uuid.New(), Name: "Acme GmbH"}
	summary := &domain.LedgerSummary{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	data, err := NewXLSXExporter().ExportLedger(company, summary, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	income, err := f.GetCellValue("Ledger", "B3")
	require.NoError(t, err)
	assert.Equal(t, "0.00", income)
}
