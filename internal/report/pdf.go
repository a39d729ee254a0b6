// This file renders invoices to PDF using fpdf.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/facturo/facturo/internal/domain"
	"github.com/go-pdf/fpdf"
)

// =============================================================================
// Invoice PDF Generator
// =============================================================================

// InvoiceDocument bundles everything needed to render one invoice.
type InvoiceDocument struct {
	Company  *domain.Company
	Customer *domain.Contact
	Invoice  *domain.Invoice

	// Branded suppresses the Facturo footer. Only set when the company's
	// plan includes the branding feature.
	Branded bool
}

// PDFGenerator renders invoices as PDF documents.
type PDFGenerator struct{}

// NewPDFGenerator creates a new PDF generator.
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Generate renders the invoice and writes the PDF to w.
// Returns the number of bytes written and any error.
func (g *PDFGenerator) Generate(ctx context.Context, doc *InvoiceDocument, w io.Writer) (int64, error) {
	if doc == nil || doc.Company == nil || doc.Customer == nil || doc.Invoice == nil {
		return 0, fmt.Errorf("incomplete invoice document")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	g.addHeader(pdf, doc)
	g.addParties(pdf, doc)
	g.addItemsTable(pdf, doc)
	g.addTotals(pdf, doc)
	g.addNotes(pdf, doc)
	g.addFooter(pdf, doc)

	// Check for cancellation before the final render
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	counter := &countingWriter{w: w}
	if err := pdf.Output(counter); err != nil {
		return counter.n, fmt.Errorf("render PDF: %w", err)
	}

	return counter.n, nil
}

// addHeader renders the company name and the invoice title block.
func (g *PDFGenerator) addHeader(pdf *fpdf.Fpdf, doc *InvoiceDocument) {
	inv := doc.Invoice

	r, gr, b := HexToRGB(BrandColors.Blue)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(110, 12, doc.Company.Name, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "R", false, 0, "")

	r, gr, b = HexToRGB(BrandColors.TextMuted)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, inv.Number, "", 1, "R", false, 0, "")

	pdf.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued %s", FormatDate(inv.IssueDate)), "", 1, "R", false, 0, "")

	pdf.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Due %s", FormatDate(inv.DueDate)), "", 1, "R", false, 0, "")

	pdf.Ln(6)
	g.addDivider(pdf)
	pdf.Ln(4)
}

// addParties renders the issuer and customer address blocks side by side.
func (g *PDFGenerator) addParties(pdf *fpdf.Fpdf, doc *InvoiceDocument) {
	r, gr, b := HexToRGB(BrandColors.TextMuted)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(95, 6, "FROM", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "BILL TO", "", 1, "L", false, 0, "")

	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)

	fromLines := partyLines(doc.Company.Name, doc.Company.Address, doc.Company.City, doc.Company.Country, doc.Company.TaxID)
	toLines := partyLines(doc.Customer.Name, doc.Customer.Address, doc.Customer.City, doc.Customer.Country, doc.Customer.TaxID)

	rows := len(fromLines)
	if len(toLines) > rows {
		rows = len(toLines)
	}

	pdf.SetFont("Helvetica", "", 10)
	for i := 0; i < rows; i++ {
		var left, right string
		if i < len(fromLines) {
			left = fromLines[i]
		}
		if i < len(toLines) {
			right = toLines[i]
		}
		pdf.CellFormat(95, 5.5, TruncateText(left, 50), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5.5, TruncateText(right, 50), "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// addItemsTable renders the line items.
func (g *PDFGenerator) addItemsTable(pdf *fpdf.Fpdf, doc *InvoiceDocument) {
	inv := doc.Invoice

	// Header row
	r, gr, b := HexToRGB(BrandColors.Blue)
	pdf.SetFillColor(r, gr, b)
	r, gr, b = HexToRGB(BrandColors.White)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(95, 8, "  Description", "", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Unit price", "", 0, "R", true, 0, "")
	pdf.CellFormat(0, 8, "Amount  ", "", 1, "R", true, 0, "")

	// Item rows with alternating backgrounds
	pdf.SetFont("Helvetica", "", 10)
	for i, item := range inv.Items {
		if i%2 == 1 {
			r, gr, b = HexToRGB(BrandColors.Background)
		} else {
			r, gr, b = HexToRGB(BrandColors.White)
		}
		pdf.SetFillColor(r, gr, b)
		r, gr, b = HexToRGB(BrandColors.TextDark)
		pdf.SetTextColor(r, gr, b)

		pdf.CellFormat(95, 7, "  "+TruncateText(item.Description, 55), "", 0, "L", true, 0, "")
		pdf.CellFormat(20, 7, FormatQuantity(item.Quantity), "", 0, "R", true, 0, "")
		pdf.CellFormat(35, 7, FormatAmount(item.UnitCents, inv.Currency), "", 0, "R", true, 0, "")
		pdf.CellFormat(0, 7, FormatAmount(item.TotalCents(), inv.Currency)+"  ", "", 1, "R", true, 0, "")
	}

	g.addDivider(pdf)
	pdf.Ln(2)
}

// addTotals renders the subtotal, tax, and total block.
func (g *PDFGenerator) addTotals(pdf *fpdf.Fpdf, doc *InvoiceDocument) {
	inv := doc.Invoice

	r, gr, b := HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "", 10)

	pdf.CellFormat(115, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, 6, "Subtotal", "", 0, "R", false, 0, "")
	pdf.CellFormat(0, 6, FormatAmount(inv.SubtotalCents, inv.Currency)+"  ", "", 1, "R", false, 0, "")

	pdf.CellFormat(115, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("Tax (%s)", FormatTaxRate(inv.TaxRateBPS)), "", 0, "R", false, 0, "")
	pdf.CellFormat(0, 6, FormatAmount(inv.TaxCents, inv.Currency)+"  ", "", 1, "R", false, 0, "")

	r, gr, b = HexToRGB(BrandColors.Blue)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(115, 9, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, 9, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(0, 9, FormatAmount(inv.TotalCents, inv.Currency)+"  ", "", 1, "R", false, 0, "")

	pdf.Ln(6)
}

// addNotes renders the free-form notes block when present.
func (g *PDFGenerator) addNotes(pdf *fpdf.Fpdf, doc *InvoiceDocument) {
	if doc.Invoice.Notes == "" {
		return
	}

	r, gr, b := HexToRGB(BrandColors.TextMuted)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(0, 6, "NOTES", "", 1, "L", false, 0, "")

	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5.5, doc.Invoice.Notes, "", "L", false)
}

// addFooter renders the page footer.
func (g *PDFGenerator) addFooter(pdf *fpdf.Fpdf, doc *InvoiceDocument) {
	pdf.SetY(-20)
	g.addDivider(pdf)

	r, gr, b := HexToRGB(BrandColors.TextMuted)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "", 8)

	footer := doc.Company.Name
	if doc.Company.Email != "" {
		footer += "  |  " + doc.Company.Email
	}
	if !doc.Branded {
		footer += "  |  Created with Facturo"
	}
	pdf.CellFormat(0, 8, footer, "", 1, "C", false, 0, "")
}

// addDivider draws a horizontal rule across the content width.
func (g *PDFGenerator) addDivider(pdf *fpdf.Fpdf) {
	r, gr, b := HexToRGB(BrandColors.Border)
	pdf.SetDrawColor(r, gr, b)
	x := pdf.GetX()
	y := pdf.GetY()
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	pdf.Line(left, y, pageWidth-right, y)
	pdf.SetXY(x, y+1)
}

// partyLines builds the non-empty address lines for a party block.
func partyLines(name, address, city, country, taxID string) []string {
	lines := make([]string, 0, 5)
	lines = append(lines, name)
	if address != "" {
		lines = append(lines, address)
	}
	cityLine := city
	if country != "" {
		if cityLine != "" {
			cityLine += ", "
		}
		cityLine += country
	}
	if cityLine != "" {
		lines = append(lines, cityLine)
	}
	if taxID != "" {
		lines = append(lines, "Tax ID: "+taxID)
	}
	return lines
}

// countingWriter counts bytes written to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
