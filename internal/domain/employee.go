// Package domain contains core business types and interfaces.
//
// This file defines the Employee type for the payroll module, which is gated
// by the payroll feature flag.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Employee is a payroll record for one member of the company's staff.
type Employee struct {
	ID                uuid.UUID
	CompanyID         uuid.UUID
	Name              string
	Email             string
	Position          string
	GrossMonthlyCents int64
	NetMonthlyCents   int64
	HiredAt           time.Time
	TerminatedAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive returns true for employees currently on payroll.
func (e *Employee) IsActive() bool {
	return e.TerminatedAt == nil
}

// CreateEmployeeParams contains the validated parameters for adding an employee.
type CreateEmployeeParams struct {
	CompanyID         uuid.UUID
	Name              string
	Email             string
	Position          string
	GrossMonthlyCents int64
	NetMonthlyCents   int64
	HiredAt           time.Time
}

// UpdateEmployeeParams contains parameters for updating an employee.
type UpdateEmployeeParams struct {
	ID                uuid.UUID
	CompanyID         uuid.UUID
	Name              string
	Email             string
	Position          string
	GrossMonthlyCents int64
	NetMonthlyCents   int64
}
