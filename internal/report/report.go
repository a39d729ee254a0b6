// Package report provides document rendering for the Facturo application:
// invoice PDFs and ledger export workbooks.
//
// This file holds common styling and formatting helpers shared by the
// renderers.
package report

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// =============================================================================
// Brand Colors
// =============================================================================

// BrandColors defines the color palette for rendered documents.
var BrandColors = struct {
	Blue       string // Primary brand color
	TextDark   string // Primary text
	TextMuted  string // Secondary text
	Border     string // Borders and dividers
	Background string // Light background
	White      string // White
}{
	Blue:       "#2563EB",
	TextDark:   "#1F2937",
	TextMuted:  "#6B7280",
	Border:     "#E5E7EB",
	Background: "#F9FAFB",
	White:      "#FFFFFF",
}

// =============================================================================
// Color Conversion Helpers
// =============================================================================

// HexToRGB converts a hex color string to RGB values.
// Input format: "#RRGGBB" or "RRGGBB"
func HexToRGB(hex string) (r, g, b int) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}

	r = hexToDec(hex[0:2])
	g = hexToDec(hex[2:4])
	b = hexToDec(hex[4:6])
	return
}

// hexToDec converts a 2-character hex string to decimal.
func hexToDec(hex string) int {
	val := 0
	for _, c := range hex {
		val *= 16
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'a' && c <= 'f':
			val += int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			val += int(c - 'A' + 10)
		}
	}
	return val
}

// =============================================================================
// Text Formatting Helpers
// =============================================================================

// amountPrinter formats numbers with thousand separators.
var amountPrinter = message.NewPrinter(language.English)

// FormatAmount formats an amount in cents for display, e.g. 1234567 with
// currency "EUR" becomes "12,345.67 EUR".
func FormatAmount(cents int64, currency string) string {
	return amountPrinter.Sprintf("%.2f %s", float64(cents)/100, currency)
}

// FormatQuantity formats a line item quantity, dropping the decimals when
// the quantity is whole.
func FormatQuantity(qty float64) string {
	if qty == float64(int64(qty)) {
		return amountPrinter.Sprintf("%d", int64(qty))
	}
	return amountPrinter.Sprintf("%.2f", qty)
}

// FormatTaxRate formats a tax rate in basis points, e.g. 2100 becomes "21%".
func FormatTaxRate(bps int64) string {
	if bps%100 == 0 {
		return amountPrinter.Sprintf("%d%%", bps/100)
	}
	return amountPrinter.Sprintf("%.2f%%", float64(bps)/100)
}

// TruncateText truncates text to a maximum length, adding ellipsis if needed.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return text[:maxLen]
	}
	return text[:maxLen-3] + "..."
}

// FormatDate formats a date for display in rendered documents.
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
