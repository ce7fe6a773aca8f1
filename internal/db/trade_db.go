package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rajivgeraev/skillswap-api/internal/models"
)

// GetTrade получает обмен по ID
func (s *Store) GetTrade(ctx context.Context, tradeID int64) (*models.Trade, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	var trade models.Trade
	var description, notes pgtype.Text
	var completedAt pgtype.Timestamptz

	err := s.pool.QueryRow(ctx, `
		SELECT id, requester_id, provider_id, requester_skill_id, provider_skill_id,
		       status, title, description, notes, created_at, updated_at, completed_at
		FROM trades
		WHERE id = $1
	`, tradeID).Scan(
		&trade.ID,
		&trade.RequesterID,
		&trade.ProviderID,
		&trade.RequesterSkillID,
		&trade.ProviderSkillID,
		&trade.Status,
		&trade.Title,
		&description,
		&notes,
		&trade.CreatedAt,
		&trade.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка запроса обмена %d: %w", tradeID, err)
	}

	if description.Valid {
		trade.Description = description.String
	}
	if notes.Valid {
		trade.Notes = notes.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		trade.CompletedAt = &t
	}

	return &trade, nil
}

// CompareAndSetStatus меняет статус обмена, только если текущий статус равен from.
// Возвращает false, если статус успели изменить параллельно.
func (s *Store) CompareAndSetStatus(ctx context.Context, tradeID int64, from, to models.TradeStatus, notes string, at time.Time) (bool, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE trades
		SET status = $1,
		    notes = $2,
		    updated_at = $3,
		    completed_at = CASE WHEN $1 = 'completed' THEN $3 ELSE completed_at END
		WHERE id = $4 AND status = $5
	`, string(to), notes, at, tradeID, string(from))
	if err != nil {
		return false, fmt.Errorf("ошибка обновления статуса обмена %d: %w", tradeID, err)
	}

	return tag.RowsAffected() == 1, nil
}
