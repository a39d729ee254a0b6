package repository

import (
	"context"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

// CreateChatMessageParams appends a message to a user's assistant history.
type CreateChatMessageParams struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
	Role      domain.ChatRole
	Content   string
}

const createChatMessage = `
INSERT INTO chat_messages (company_id, user_id, role, content)
VALUES ($1, $2, $3, $4)
RETURNING id, company_id, user_id, role, content, created_at
`

func (q *Queries) CreateChatMessage(ctx context.Context, arg CreateChatMessageParams) (domain.ChatMessage, error) {
	row := q.db.QueryRowContext(ctx, createChatMessage,
		arg.CompanyID, arg.UserID, arg.Role, arg.Content)
	var m domain.ChatMessage
	err := row.Scan(&m.ID, &m.CompanyID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt)
	return m, err
}

// Most-recent messages first in the query, reversed to chronological order
// before returning so callers can feed them straight to the model.
const listRecentChatMessages = `
SELECT id, company_id, user_id, role, content, created_at
FROM chat_messages
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

func (q *Queries) ListRecentChatMessages(ctx context.Context, userID uuid.UUID, limit int32) ([]domain.ChatMessage, error) {
	rows, err := q.db.QueryContext(ctx, listRecentChatMessages, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

const deleteChatHistory = `DELETE FROM chat_messages WHERE user_id = $1`

func (q *Queries) DeleteChatHistory(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteChatHistory, userID)
	return err
}
