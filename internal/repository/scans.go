package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const scanColumns = `id, company_id, user_id, status, image_key, thumbnail_key, content_type, result, error_message, created_at, updated_at`

// CreateDocumentScanParams records an uploaded document awaiting extraction.
type CreateDocumentScanParams struct {
	CompanyID   uuid.UUID
	UserID      uuid.UUID
	ImageKey    string
	ContentType string
}

const createDocumentScan = `
INSERT INTO document_scans (company_id, user_id, status, image_key, content_type)
VALUES ($1, $2, 'pending', $3, $4)
RETURNING ` + scanColumns

func (q *Queries) CreateDocumentScan(ctx context.Context, arg CreateDocumentScanParams) (domain.DocumentScan, error) {
	row := q.db.QueryRowContext(ctx, createDocumentScan,
		arg.CompanyID, arg.UserID, arg.ImageKey, arg.ContentType)
	return scanDocumentScan(row)
}

const getDocumentScan = `
SELECT ` + scanColumns + ` FROM document_scans WHERE id = $1 AND company_id = $2
`

func (q *Queries) GetDocumentScan(ctx context.Context, id, companyID uuid.UUID) (domain.DocumentScan, error) {
	return scanDocumentScan(q.db.QueryRowContext(ctx, getDocumentScan, id, companyID))
}

// GetDocumentScanByID fetches a scan without a company filter. Only job
// handlers use this; request paths must go through GetDocumentScan.
const getDocumentScanByID = `
SELECT ` + scanColumns + ` FROM document_scans WHERE id = $1
`

func (q *Queries) GetDocumentScanByID(ctx context.Context, id uuid.UUID) (domain.DocumentScan, error) {
	return scanDocumentScan(q.db.QueryRowContext(ctx, getDocumentScanByID, id))
}

const updateDocumentScanStatus = `
UPDATE document_scans SET status = $2, updated_at = now() WHERE id = $1
`

func (q *Queries) UpdateDocumentScanStatus(ctx context.Context, id uuid.UUID, status domain.ScanStatus) error {
	_, err := q.db.ExecContext(ctx, updateDocumentScanStatus, id, status)
	return err
}

const updateDocumentScanThumbnail = `
UPDATE document_scans SET thumbnail_key = $2, updated_at = now() WHERE id = $1
`

func (q *Queries) UpdateDocumentScanThumbnail(ctx context.Context, id uuid.UUID, thumbnailKey string) error {
	_, err := q.db.ExecContext(ctx, updateDocumentScanThumbnail, id, thumbnailKey)
	return err
}

const updateDocumentScanResult = `
UPDATE document_scans SET status = 'completed', result = $2, updated_at = now() WHERE id = $1
`

func (q *Queries) UpdateDocumentScanResult(ctx context.Context, id uuid.UUID, result domain.ScanResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal scan result: %w", err)
	}
	_, err = q.db.ExecContext(ctx, updateDocumentScanResult, id,
		pqtype.NullRawMessage{RawMessage: raw, Valid: true})
	return err
}

const updateDocumentScanError = `
UPDATE document_scans SET status = 'failed', error_message = $2, updated_at = now() WHERE id = $1
`

func (q *Queries) UpdateDocumentScanError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := q.db.ExecContext(ctx, updateDocumentScanError, id, message)
	return err
}

const listDocumentScans = `
SELECT ` + scanColumns + `
FROM document_scans
WHERE company_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListDocumentScans(ctx context.Context, companyID uuid.UUID, limit, offset int32) ([]domain.DocumentScan, error) {
	rows, err := q.db.QueryContext(ctx, listDocumentScans, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []domain.DocumentScan
	for rows.Next() {
		s, err := scanDocumentScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

func scanDocumentScan(row rowScanner) (domain.DocumentScan, error) {
	var (
		s      domain.DocumentScan
		result pqtype.NullRawMessage
	)
	err := row.Scan(&s.ID, &s.CompanyID, &s.UserID, &s.Status, &s.ImageKey,
		&s.ThumbnailKey, &s.ContentType, &result, &s.ErrorMessage,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.DocumentScan{}, err
	}
	if result.Valid {
		var r domain.ScanResult
		if err := json.Unmarshal(result.RawMessage, &r); err != nil {
			return domain.DocumentScan{}, fmt.Errorf("unmarshal scan result: %w", err)
		}
		s.Result = &r
	}
	return s, nil
}
