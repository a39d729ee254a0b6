package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// SMTPEmailService sends emails via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Postmark SMTP (production): Uses username/password authentication
// - Any standard SMTP server
//
// Email templates are embedded in the binary and rendered with Go's
// html/template package.
type SMTPEmailService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

// NewSMTPEmailService creates a new SMTP-based email service.
//
// Parameters:
// - config: SMTP server configuration
// - baseURL: Application base URL for constructing links (e.g., "http://localhost:8080")
// - logger: Structured logger for error reporting
func NewSMTPEmailService(
	config SMTPConfig,
	baseURL string,
	logger *slog.Logger,
) (*SMTPEmailService, error) {
	// Set defaults
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Parse(emailTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
	}, nil
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// SendInvoiceEmail delivers an invoice to a customer.
func (s *SMTPEmailService) SendInvoiceEmail(ctx context.Context, to, customerName, companyName, invoiceNumber, amount, invoiceURL string) error {
	data := map[string]interface{}{
		"CustomerName":  customerName,
		"CompanyName":   companyName,
		"InvoiceNumber": invoiceNumber,
		"Amount":        amount,
		"InvoiceURL":    invoiceURL,
		"Year":          time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("invoice", data)
	if err != nil {
		return fmt.Errorf("failed to render invoice email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

%s has sent you invoice %s for %s.

You can view and download it here:

%s

Thanks,
%s (via Facturo)
`, customerName, companyName, invoiceNumber, amount, invoiceURL, companyName)

	email := Email{
		To:       to,
		Subject:  fmt.Sprintf("Invoice %s from %s", invoiceNumber, companyName),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	return s.send(ctx, email)
}

// SendPaymentIssueEmail notifies a company owner about a failed payment.
func (s *SMTPEmailService) SendPaymentIssueEmail(ctx context.Context, to, name, billingURL string) error {
	data := map[string]interface{}{
		"Name":       name,
		"BillingURL": billingURL,
		"Year":       time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("payment_issue", data)
	if err != nil {
		return fmt.Errorf("failed to render payment issue email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

We couldn't process the payment for your Facturo subscription. Your plan
features stay active for now, but please update your payment details to
avoid losing access:

%s

If you've already fixed this, you can ignore this email.

Thanks,
The Facturo Team
`, name, billingURL)

	email := Email{
		To:       to,
		Subject:  "Action needed: payment issue with your Facturo subscription",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	return s.send(ctx, email)
}

// =============================================================================
// Internal Methods
// =============================================================================

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	// Build the email message
	msg := s.buildMessage(email)

	// Create SMTP address
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Create auth if credentials are provided (not needed for Mailhog)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	// Send the email
	err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	// From header with display name
	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	// Write headers
	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	// Create multipart message for HTML + text
	boundary := "===============FACTURO_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	// Plain text part
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	// HTML part
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	// End boundary
	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// renderTemplate renders an email template with the given data.
func (s *SMTPEmailService) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// Embedded Templates
// =============================================================================

// emailTemplates holds the HTML bodies for all transactional emails. Kept
// deliberately simple so they render consistently across mail clients.
const emailTemplates = `
{{define "invoice"}}
<html>
<body style="font-family: sans-serif; color: #1f2937; max-width: 600px; margin: 0 auto;">
  <p>Hi {{.CustomerName}},</p>
  <p><strong>{{.CompanyName}}</strong> has sent you invoice
     <strong>{{.InvoiceNumber}}</strong> for <strong>{{.Amount}}</strong>.</p>
  <p style="margin: 24px 0;">
    <a href="{{.InvoiceURL}}" style="background: #2563eb; color: #ffffff; padding: 10px 20px; border-radius: 6px; text-decoration: none;">View invoice</a>
  </p>
  <p>Thanks,<br>{{.CompanyName}} (via Facturo)</p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin-top: 32px;">
  <p style="color: #6b7280; font-size: 12px;">&copy; {{.Year}} Facturo</p>
</body>
</html>
{{end}}

{{define "payment_issue"}}
<html>
<body style="font-family: sans-serif; color: #1f2937; max-width: 600px; margin: 0 auto;">
  <p>Hi {{.Name}},</p>
  <p>We couldn't process the payment for your Facturo subscription. Your plan
     features stay active for now, but please update your payment details to
     avoid losing access.</p>
  <p style="margin: 24px 0;">
    <a href="{{.BillingURL}}" style="background: #2563eb; color: #ffffff; padding: 10px 20px; border-radius: 6px; text-decoration: none;">Update payment details</a>
  </p>
  <p>If you've already fixed this, you can ignore this email.</p>
  <p>Thanks,<br>The Facturo Team</p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin-top: 32px;">
  <p style="color: #6b7280; font-size: 12px;">&copy; {{.Year}} Facturo</p>
</body>
</html>
{{end}}
`

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ EmailService = (*SMTPEmailService)(nil)
