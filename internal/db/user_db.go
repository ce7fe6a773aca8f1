package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rajivgeraev/skillswap-api/internal/models"
)

const userColumns = `id, username, full_name, profile_image, role, is_active`

// GetActiveUser получает активного пользователя по ID
func (s *Store) GetActiveUser(ctx context.Context, userID int64) (*models.User, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1 AND is_active = TRUE
	`, userID)

	return scanUser(row)
}

// GetUserByTelegramID получает активного пользователя по ID Telegram
func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE telegram_id = $1 AND is_active = TRUE
	`, telegramID)

	return scanUser(row)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var avatarURL pgtype.Text

	err := row.Scan(&user.ID, &user.Username, &user.FullName, &avatarURL, &user.Role, &user.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}

	// Преобразуем nullable поля
	if avatarURL.Valid {
		user.AvatarURL = avatarURL.String
	}

	return &user, nil
}
