package db

import (
	"context"
	"fmt"

	"github.com/rajivgeraev/skillswap-api/internal/models"
)

// InsertMessage сохраняет сообщение и заполняет его ID и время создания
func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (trade_id, sender_id, receiver_id, content, message_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, read_status, created_at
	`, msg.TradeID, msg.SenderID, msg.ReceiverID, msg.Content, string(msg.Type)).Scan(
		&msg.ID, &msg.IsRead, &msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания сообщения: %w", err)
	}

	return nil
}

// MarkMessagesRead отмечает прочитанными все сообщения обмена, адресованные получателю.
// Возвращает количество изменённых сообщений.
func (s *Store) MarkMessagesRead(ctx context.Context, tradeID, receiverID int64) (int64, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET read_status = TRUE
		WHERE trade_id = $1 AND receiver_id = $2 AND read_status = FALSE
	`, tradeID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления статуса прочтения: %w", err)
	}

	return tag.RowsAffected(), nil
}

// listMessagesQuery выбирает страницу сообщений обмена.
// $2 приводится к bigint, иначе Postgres выведет int4 из литерала 0.
const listMessagesQuery = `
	SELECT m.id, m.trade_id, m.sender_id, m.receiver_id, m.content, m.message_type,
	       m.read_status, m.created_at, u.username, u.full_name
	FROM messages m
	JOIN users u ON u.id = m.sender_id
	WHERE m.trade_id = $1 AND ($2::bigint = 0 OR m.id < $2::bigint)
	ORDER BY m.id DESC
	LIMIT $3
`

// ListMessages возвращает сообщения обмена от новых к старым.
// beforeID > 0 включает пагинацию по ID.
func (s *Store) ListMessages(ctx context.Context, tradeID, beforeID int64, limit int) ([]models.Message, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, listMessagesQuery, tradeID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса сообщений: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		var msg models.Message
		sender := &models.User{}
		if err := rows.Scan(
			&msg.ID,
			&msg.TradeID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&msg.Type,
			&msg.IsRead,
			&msg.CreatedAt,
			&sender.Username,
			&sender.FullName,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		sender.ID = msg.SenderID
		msg.Sender = sender
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
