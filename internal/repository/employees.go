package repository

import (
	"context"
	"database/sql"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

const employeeColumns = `id, company_id, name, email, position, gross_monthly_cents, net_monthly_cents, hired_at, terminated_at, created_at, updated_at`

const createEmployee = `
INSERT INTO employees (company_id, name, email, position, gross_monthly_cents, net_monthly_cents, hired_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + employeeColumns

func (q *Queries) CreateEmployee(ctx context.Context, arg domain.CreateEmployeeParams) (domain.Employee, error) {
	row := q.db.QueryRowContext(ctx, createEmployee,
		arg.CompanyID, arg.Name, arg.Email, arg.Position,
		arg.GrossMonthlyCents, arg.NetMonthlyCents, arg.HiredAt)
	return scanEmployee(row)
}

const getEmployee = `
SELECT ` + employeeColumns + ` FROM employees WHERE id = $1 AND company_id = $2
`

func (q *Queries) GetEmployee(ctx context.Context, id, companyID uuid.UUID) (domain.Employee, error) {
	return scanEmployee(q.db.QueryRowContext(ctx, getEmployee, id, companyID))
}

const updateEmployee = `
UPDATE employees
SET name = $3, email = $4, position = $5, gross_monthly_cents = $6, net_monthly_cents = $7, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING ` + employeeColumns

func (q *Queries) UpdateEmployee(ctx context.Context, arg domain.UpdateEmployeeParams) (domain.Employee, error) {
	row := q.db.QueryRowContext(ctx, updateEmployee,
		arg.ID, arg.CompanyID, arg.Name, arg.Email, arg.Position,
		arg.GrossMonthlyCents, arg.NetMonthlyCents)
	return scanEmployee(row)
}

const terminateEmployee = `
UPDATE employees SET terminated_at = $3, updated_at = now()
WHERE id = $1 AND company_id = $2 AND terminated_at IS NULL
RETURNING ` + employeeColumns

func (q *Queries) TerminateEmployee(ctx context.Context, id, companyID uuid.UUID, at sql.NullTime) (domain.Employee, error) {
	return scanEmployee(q.db.QueryRowContext(ctx, terminateEmployee, id, companyID, at))
}

const listEmployees = `
SELECT ` + employeeColumns + `
FROM employees
WHERE company_id = $1 AND ($2 OR terminated_at IS NULL)
ORDER BY name
`

// ListEmployees returns a company's employees, optionally including
// terminated ones.
func (q *Queries) ListEmployees(ctx context.Context, companyID uuid.UUID, includeTerminated bool) ([]domain.Employee, error) {
	rows, err := q.db.QueryContext(ctx, listEmployees, companyID, includeTerminated)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func scanEmployee(row rowScanner) (domain.Employee, error) {
	var (
		e            domain.Employee
		terminatedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.CompanyID, &e.Name, &e.Email, &e.Position,
		&e.GrossMonthlyCents, &e.NetMonthlyCents, &e.HiredAt, &terminatedAt,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.Employee{}, err
	}
	e.TerminatedAt = domain.NullTimeValue(terminatedAt)
	return e, nil
}
