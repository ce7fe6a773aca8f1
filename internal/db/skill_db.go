package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rajivgeraev/skillswap-api/internal/models"
)

const profileSelect = `
	SELECT us.id, us.user_id, u.username, u.full_name, s.id, s.name, s.category,
	       us.skill_type, us.proficiency_level, us.description
	FROM user_skills us
	JOIN skills s ON s.id = us.skill_id
	JOIN users u ON u.id = us.user_id
`

// ActiveSkillProfiles возвращает активные навыки пользователя
func (s *Store) ActiveSkillProfiles(ctx context.Context, userID int64) ([]models.SkillProfile, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, profileSelect+`
		WHERE us.user_id = $1 AND us.is_active = TRUE AND s.is_active = TRUE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса навыков пользователя: %w", err)
	}

	return collectProfiles(rows)
}

// CandidateProfiles возвращает навыки других активных пользователей, которые
// предлагают искомое, ищут предлагаемое или попадают в общие категории
func (s *Store) CandidateProfiles(ctx context.Context, userID int64, seeking, offering, categories []string) ([]models.SkillProfile, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, profileSelect+`
		WHERE us.user_id <> $1
		  AND u.is_active = TRUE
		  AND us.is_active = TRUE
		  AND s.is_active = TRUE
		  AND (
		        (us.skill_type = 'offering' AND s.name = ANY($2))
		     OR (us.skill_type = 'seeking' AND s.name = ANY($3))
		     OR s.category = ANY($4)
		  )
	`, userID, seeking, offering, categories)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса кандидатов: %w", err)
	}

	return collectProfiles(rows)
}

func collectProfiles(rows pgx.Rows) ([]models.SkillProfile, error) {
	defer rows.Close()

	var profiles []models.SkillProfile
	for rows.Next() {
		var p models.SkillProfile
		var description pgtype.Text
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Username,
			&p.FullName,
			&p.SkillID,
			&p.SkillName,
			&p.Category,
			&p.Direction,
			&p.Proficiency,
			&description,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования навыка: %w", err)
		}
		if description.Valid {
			p.Description = description.String
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// UserStats возвращает средний рейтинг и количество завершённых обменов
func (s *Store) UserStats(ctx context.Context, userIDs []int64) (map[int64]models.UserStats, error) {
	stats := make(map[int64]models.UserStats, len(userIDs))
	if len(userIDs) == 0 {
		return stats, nil
	}

	ctx, cancel := GetContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT u.id,
		       COALESCE((SELECT AVG(r.rating)::float8 FROM reviews r WHERE r.reviewee_id = u.id), 0),
		       (SELECT COUNT(*) FROM trades t
		         WHERE t.status = 'completed' AND (t.requester_id = u.id OR t.provider_id = u.id))
		FROM users u
		WHERE u.id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса статистики пользователей: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st models.UserStats
		if err := rows.Scan(&st.UserID, &st.AverageRating, &st.CompletedTrades); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики: %w", err)
		}
		stats[st.UserID] = st
	}

	return stats, rows.Err()
}

// SkillActivity возвращает для каждого активного навыка число профилей
// и обменов, созданных начиная с since
func (s *Store) SkillActivity(ctx context.Context, since time.Time) ([]models.SkillActivity, error) {
	ctx, cancel := GetContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.name, s.category,
		       COUNT(DISTINCT us.id) AS user_count,
		       COUNT(DISTINCT t1.id) + COUNT(DISTINCT t2.id) AS trade_count
		FROM skills s
		JOIN user_skills us ON s.id = us.skill_id
		LEFT JOIN trades t1 ON us.id = t1.requester_skill_id AND t1.created_at >= $1
		LEFT JOIN trades t2 ON us.id = t2.provider_skill_id AND t2.created_at >= $1
		WHERE s.is_active = TRUE AND us.is_active = TRUE
		GROUP BY s.id, s.name, s.category
	`, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса активности навыков: %w", err)
	}
	defer rows.Close()

	var activity []models.SkillActivity
	for rows.Next() {
		var a models.SkillActivity
		if err := rows.Scan(&a.SkillID, &a.Name, &a.Category, &a.UserCount, &a.TradeCount); err != nil {
			return nil, fmt.Errorf("ошибка сканирования активности: %w", err)
		}
		activity = append(activity, a)
	}

	return activity, rows.Err()
}
