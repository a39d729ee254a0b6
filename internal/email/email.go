// Package email provides email sending functionality for the Facturo application.
//
// This package defines an EmailService interface with implementations for:
// - SMTP (for development with Mailhog and production with services like Postmark SMTP)
// - Future: Postmark API implementation for advanced features
package email

import (
	"context"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService defines the interface for sending transactional emails.
//
// Implementations:
// - SMTPEmailService: Uses SMTP protocol (Mailhog for dev, Postmark SMTP for prod)
// - Future: PostmarkAPIService for API-based sending with delivery tracking
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendInvoiceEmail delivers an invoice to a customer.
	// Parameters:
	// - to: Recipient email address (the customer)
	// - customerName: Customer's name for personalization
	// - companyName: Name of the company issuing the invoice
	// - invoiceNumber: Human-readable invoice number (e.g., "INV-2026-0042")
	// - amount: Formatted invoice total including currency (e.g., "149.00 EUR")
	// - invoiceURL: URL where the invoice PDF can be downloaded
	SendInvoiceEmail(ctx context.Context, to, customerName, companyName, invoiceNumber, amount, invoiceURL string) error

	// SendPaymentIssueEmail notifies a company owner that their subscription
	// payment failed and their account is past due.
	// Parameters:
	// - to: Recipient email address (the company owner)
	// - name: Recipient's name for personalization
	// - billingURL: URL of the billing portal where payment can be fixed
	SendPaymentIssueEmail(ctx context.Context, to, name, billingURL string) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "noreply@facturo.app"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Facturo"
)
