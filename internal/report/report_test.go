package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{1234567, "EUR", "12,345.67 EUR"},
		{100, "USD", "1.00 USD"},
		{0, "EUR", "0.00 EUR"},
		{-4250, "EUR", "-42.50 EUR"},
		{999999999, "GBP", "9,999,999.99 GBP"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.cents, tt.currency))
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		qty  float64
		want string
	}{
		{1, "1"},
		{12, "12"},
		{2.5, "2.50"},
		{0.25, "0.25"},
		{1000, "1,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatQuantity(tt.qty))
	}
}

func TestFormatTaxRate(t *testing.T) {
	tests := []struct {
		bps  int64
		want string
	}{
		{2100, "21%"},
		{0, "0%"},
		{1950, "19.50%"},
		{10000, "100%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTaxRate(tt.bps))
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		text   string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a rather long description", 10, "a rathe..."},
		{"abc", 3, "abc"},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateText(tt.text, tt.maxLen))
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "September 1, 2026", FormatDate(d))
}
