// Package service contains the business logic layer.
//
// This file implements customer and supplier contact management.
// Contacts are not plan-gated; every tier can manage them.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

// ContactService defines contact operations.
type ContactService interface {
	Create(ctx context.Context, params domain.CreateContactParams) (*domain.Contact, error)
	Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Contact, error)
	Update(ctx context.Context, params domain.UpdateContactParams) (*domain.Contact, error)
	Delete(ctx context.Context, id, companyID uuid.UUID) error
	List(ctx context.Context, params domain.ListContactsParams) (*domain.ListContactsResult, error)
}

type contactService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewContactService creates a new ContactService.
func NewContactService(queries *repository.Queries, logger *slog.Logger) ContactService {
	return &contactService{queries: queries, logger: logger}
}

func (s *contactService) Create(ctx context.Context, params domain.CreateContactParams) (*domain.Contact, error) {
	const op = "contact.create"

	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "Contact name is required")
	}
	if !params.Kind.Valid() {
		return nil, domain.Invalid(op, "Contact kind must be customer, supplier or both")
	}

	contact, err := s.queries.CreateContact(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create contact")
	}

	s.logger.Info("Contact created", "contact_id", contact.ID, "company_id", params.CompanyID)
	return &contact, nil
}

func (s *contactService) Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Contact, error) {
	const op = "contact.get"

	contact, err := s.queries.GetContact(ctx, id, companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "contact", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load contact")
	}
	return &contact, nil
}

func (s *contactService) Update(ctx context.Context, params domain.UpdateContactParams) (*domain.Contact, error) {
	const op = "contact.update"

	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "Contact name is required")
	}
	if !params.Kind.Valid() {
		return nil, domain.Invalid(op, "Contact kind must be customer, supplier or both")
	}

	contact, err := s.queries.UpdateContact(ctx, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "contact", params.ID.String())
		}
		return nil, domain.Internal(err, op, "failed to update contact")
	}
	return &contact, nil
}

func (s *contactService) Delete(ctx context.Context, id, companyID uuid.UUID) error {
	const op = "contact.delete"

	if err := s.queries.DeleteContact(ctx, id, companyID); err != nil {
		return domain.Internal(err, op, "failed to delete contact")
	}
	return nil
}

func (s *contactService) List(ctx context.Context, params domain.ListContactsParams) (*domain.ListContactsResult, error) {
	const op = "contact.list"

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	repoParams := repository.ListContactsParams{
		CompanyID: params.CompanyID,
		Kind:      string(params.Kind),
		Search:    params.Search,
		Limit:     limit,
		Offset:    params.Offset,
	}

	contacts, err := s.queries.ListContacts(ctx, repoParams)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list contacts")
	}

	total, err := s.queries.CountContacts(ctx, repoParams)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count contacts")
	}

	return &domain.ListContactsResult{Contacts: contacts, TotalCount: total}, nil
}
