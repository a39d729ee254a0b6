// Package service contains the business logic layer.
//
// This file implements employee records for payroll. The whole feature
// area is gated behind the payroll feature flag.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

// EmployeeService defines payroll employee operations.
type EmployeeService interface {
	Create(ctx context.Context, params domain.CreateEmployeeParams) (*domain.Employee, error)
	Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Employee, error)
	Update(ctx context.Context, params domain.UpdateEmployeeParams) (*domain.Employee, error)
	Terminate(ctx context.Context, id, companyID uuid.UUID) (*domain.Employee, error)
	List(ctx context.Context, companyID uuid.UUID, includeTerminated bool) ([]domain.Employee, error)
}

type employeeService struct {
	queries *repository.Queries
	gate    GateService
	logger  *slog.Logger
	now     func() time.Time
}

// NewEmployeeService creates a new EmployeeService.
func NewEmployeeService(queries *repository.Queries, gate GateService, logger *slog.Logger) EmployeeService {
	return &employeeService{
		queries: queries,
		gate:    gate,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *employeeService) Create(ctx context.Context, params domain.CreateEmployeeParams) (*domain.Employee, error) {
	const op = "employee.create"

	if err := s.requirePayroll(ctx, op, params.CompanyID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "Employee name is required")
	}
	if params.GrossMonthlyCents < 0 || params.NetMonthlyCents < 0 {
		return nil, domain.Invalid(op, "Salary cannot be negative")
	}

	employee, err := s.queries.CreateEmployee(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create employee")
	}

	s.logger.Info("Employee added", "employee_id", employee.ID, "company_id", params.CompanyID)
	return &employee, nil
}

func (s *employeeService) Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Employee, error) {
	const op = "employee.get"

	if err := s.requirePayroll(ctx, op, companyID); err != nil {
		return nil, err
	}

	employee, err := s.queries.GetEmployee(ctx, id, companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "employee", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load employee")
	}
	return &employee, nil
}

func (s *employeeService) Update(ctx context.Context, params domain.UpdateEmployeeParams) (*domain.Employee, error) {
	const op = "employee.update"

	if err := s.requirePayroll(ctx, op, params.CompanyID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "Employee name is required")
	}
	if params.GrossMonthlyCents < 0 || params.NetMonthlyCents < 0 {
		return nil, domain.Invalid(op, "Salary cannot be negative")
	}

	employee, err := s.queries.UpdateEmployee(ctx, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "employee", params.ID.String())
		}
		return nil, domain.Internal(err, op, "failed to update employee")
	}
	return &employee, nil
}

func (s *employeeService) Terminate(ctx context.Context, id, companyID uuid.UUID) (*domain.Employee, error) {
	const op = "employee.terminate"

	if err := s.requirePayroll(ctx, op, companyID); err != nil {
		return nil, err
	}

	employee, err := s.queries.TerminateEmployee(ctx, id, companyID,
		sql.NullTime{Time: s.now(), Valid: true})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "employee", id.String())
		}
		return nil, domain.Internal(err, op, "failed to terminate employee")
	}

	s.logger.Info("Employee terminated", "employee_id", id, "company_id", companyID)
	return &employee, nil
}

func (s *employeeService) List(ctx context.Context, companyID uuid.UUID, includeTerminated bool) ([]domain.Employee, error) {
	const op = "employee.list"

	if err := s.requirePayroll(ctx, op, companyID); err != nil {
		return nil, err
	}

	employees, err := s.queries.ListEmployees(ctx, companyID, includeTerminated)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list employees")
	}
	return employees, nil
}

func (s *employeeService) requirePayroll(ctx context.Context, op string, companyID uuid.UUID) error {
	decision, err := s.gate.CheckFeature(ctx, companyID, domain.FeaturePayroll)
	if err != nil {
		return err
	}
	if !decision.Permitted {
		return domain.PlanRequired(op, domain.FeaturePayroll, decision.MinimumTier)
	}
	return nil
}
