// This file implements the invoice delivery job: it renders the invoice PDF
// if one doesn't exist yet, uploads it to storage, and emails a download link
// to the customer.
package jobs

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/email"
	"github.com/facturo/facturo/internal/report"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/service"
	"github.com/facturo/facturo/internal/storage"
	"github.com/facturo/facturo/internal/worker"
)

// invoiceLinkTTL is how long the emailed download link stays valid.
const invoiceLinkTTL = 7 * 24 * time.Hour

// SendInvoiceEmailHandler processes jobs that deliver invoices to customers.
type SendInvoiceEmailHandler struct {
	queries *repository.Queries
	gate    service.GateService
	pdf     *report.PDFGenerator
	storage storage.Storage
	email   email.EmailService
	logger  *slog.Logger
}

// NewSendInvoiceEmailHandler creates a new handler for invoice delivery jobs.
func NewSendInvoiceEmailHandler(
	queries *repository.Queries,
	gate service.GateService,
	pdf *report.PDFGenerator,
	store storage.Storage,
	mailer email.EmailService,
	logger *slog.Logger,
) *SendInvoiceEmailHandler {
	return &SendInvoiceEmailHandler{
		queries: queries,
		gate:    gate,
		pdf:     pdf,
		storage: store,
		email:   mailer,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *SendInvoiceEmailHandler) Type() string {
	return worker.JobTypeSendInvoiceEmail
}

// Handle executes the invoice delivery job.
func (h *SendInvoiceEmailHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendInvoiceEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	invoice, err := h.queries.GetInvoice(ctx, p.InvoiceID, p.CompanyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.NewPermanentError(fmt.Errorf("invoice not found: %w", err))
		}
		return fmt.Errorf("fetch invoice: %w", err)
	}

	if invoice.Status == domain.InvoiceStatusVoid {
		return worker.NewPermanentError(fmt.Errorf("invoice %s is void", invoice.Number))
	}

	company, err := h.queries.GetCompanyByID(ctx, p.CompanyID)
	if err != nil {
		return fmt.Errorf("fetch company: %w", err)
	}

	customer, err := h.queries.GetContact(ctx, invoice.ContactID, p.CompanyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.NewPermanentError(fmt.Errorf("invoice customer not found: %w", err))
		}
		return fmt.Errorf("fetch customer: %w", err)
	}

	recipient := p.Recipient
	if recipient == "" {
		recipient = customer.Email
	}
	if recipient == "" {
		return worker.NewPermanentError(fmt.Errorf("no recipient email for invoice %s", invoice.Number))
	}

	pdfKey := invoice.PDFKey
	if pdfKey == "" {
		pdfKey, err = h.renderPDF(ctx, &company, &customer, &invoice)
		if err != nil {
			return fmt.Errorf("render invoice PDF: %w", err)
		}
	}

	invoiceURL, err := h.storage.URL(ctx, pdfKey, invoiceLinkTTL)
	if err != nil {
		return fmt.Errorf("generate invoice URL: %w", err)
	}

	amount := report.FormatAmount(invoice.TotalCents, invoice.Currency)
	if err := h.email.SendInvoiceEmail(ctx, recipient, customer.Name, company.Name, invoice.Number, amount, invoiceURL); err != nil {
		return fmt.Errorf("send invoice email: %w", err)
	}

	h.logger.Info("Invoice emailed",
		"invoice_id", invoice.ID,
		"company_id", company.ID,
		"number", invoice.Number,
	)

	return nil
}

// renderPDF generates the invoice PDF, uploads it, and records the key.
func (h *SendInvoiceEmailHandler) renderPDF(ctx context.Context, company *domain.Company, customer *domain.Contact, invoice *domain.Invoice) (string, error) {
	branded := false
	decision, err := h.gate.CheckFeature(ctx, company.ID, domain.FeatureBranding)
	if err != nil {
		// Fall back to the unbranded footer rather than failing delivery.
		h.logger.Error("Branding check failed, rendering unbranded", "error", err, "company_id", company.ID)
	} else {
		branded = decision.Permitted
	}

	var buf bytes.Buffer
	if _, err := h.pdf.Generate(ctx, &report.InvoiceDocument{
		Company:  company,
		Customer: customer,
		Invoice:  invoice,
		Branded:  branded,
	}, &buf); err != nil {
		return "", err
	}

	key := storage.InvoicePDFKey(company.ID, invoice.ID)
	if err := h.storage.Put(ctx, key, bytes.NewReader(buf.Bytes()), storage.PutOptions{
		ContentType: "application/pdf",
	}); err != nil {
		return "", fmt.Errorf("upload PDF: %w", err)
	}

	if err := h.queries.UpdateInvoicePDFKey(ctx, invoice.ID, company.ID, key); err != nil {
		h.logger.Error("Failed to record invoice PDF key", "error", err, "invoice_id", invoice.ID)
	}

	return key, nil
}
