package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

// HistoryRepository appends answered exchanges for later retrieval by chat
// clients. It is write-only from the agent's point of view.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) AppendExchange(ctx context.Context, userID, chatID string, record domain.HistoryRecord) error {
	citationsJSON, err := json.Marshal(record.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_history (user_id, chat_id, question, answer, citations, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, userID, chatID, record.Question, record.Answer, citationsJSON, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat history: %w", err)
	}
	return nil
}
