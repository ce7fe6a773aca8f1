package recommendation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/skillswap-api/internal/config"
	"github.com/rajivgeraev/skillswap-api/internal/metrics"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

const (
	DefaultRecommendLimit = 5
	DefaultTrendingLimit  = 10
	MaxLimit              = 50

	trendingKeyPrefix = "skillswap:trending:"
)

// Store описывает часть хранилища, нужную рекомендациям
type Store interface {
	ActiveSkillProfiles(ctx context.Context, userID int64) ([]models.SkillProfile, error)
	CandidateProfiles(ctx context.Context, userID int64, seeking, offering, categories []string) ([]models.SkillProfile, error)
	UserStats(ctx context.Context, userIDs []int64) (map[int64]models.UserStats, error)
	SkillActivity(ctx context.Context, since time.Time) ([]models.SkillActivity, error)
}

// Cache описывает подмножество клиента Redis для кэша трендов
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Weights содержит веса функции скоринга
type Weights struct {
	OfferingMatch     float64
	SeekingMatch      float64
	CategoryMatch     float64
	RatingFactor      float64
	TradeFactor       float64
	TradeBonusCap     float64
	ExpertBonus       float64
	IntermediateBonus float64
}

// DefaultWeights возвращает стандартные веса
func DefaultWeights() Weights {
	return Weights{
		OfferingMatch:     10,
		SeekingMatch:      8,
		CategoryMatch:     3,
		RatingFactor:      2,
		TradeFactor:       0.5,
		TradeBonusCap:     10,
		ExpertBonus:       2,
		IntermediateBonus: 1,
	}
}

// WeightsFromConfig собирает веса из конфигурации
func WeightsFromConfig(cfg config.RecommendationConfig) Weights {
	return Weights{
		OfferingMatch:     cfg.OfferingMatch,
		SeekingMatch:      cfg.SeekingMatch,
		CategoryMatch:     cfg.CategoryMatch,
		RatingFactor:      cfg.RatingFactor,
		TradeFactor:       cfg.TradeFactor,
		TradeBonusCap:     cfg.TradeBonusCap,
		ExpertBonus:       cfg.ExpertBonus,
		IntermediateBonus: cfg.IntermediateBonus,
	}
}

// Engine ранжирует кандидатов и считает тренды.
// Между вызовами состояния не хранит.
type Engine struct {
	store    Store
	weights  Weights
	window   time.Duration
	cache    Cache
	cacheTTL time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewEngine создает новый экземпляр Engine
func NewEngine(store Store, weights Weights, window time.Duration, logger logrus.FieldLogger) *Engine {
	return &Engine{
		store:   store,
		weights: weights,
		window:  window,
		logger:  logger,
		now:     time.Now,
	}
}

// WithCache включает кэширование трендов; nil отключает
func (e *Engine) WithCache(cache Cache, ttl time.Duration) *Engine {
	e.cache = cache
	e.cacheTTL = ttl
	return e
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Recommend возвращает до limit кандидатов в партнёры для пользователя.
// Пустой список не является ошибкой.
func (e *Engine) Recommend(ctx context.Context, userID int64, limit int) ([]models.RecommendationCandidate, error) {
	defer observe("recommend", time.Now())
	limit = clampLimit(limit, DefaultRecommendLimit)

	profiles, err := e.store.ActiveSkillProfiles(ctx, userID)
	if err != nil {
		e.logger.WithError(err).WithField("user_id", userID).Error("Ошибка запроса навыков пользователя")
		return nil, utils.Internal("Ошибка получения навыков пользователя", err)
	}

	seeking := make(map[string]struct{})
	offering := make(map[string]struct{})
	categories := make(map[string]struct{})
	for _, p := range profiles {
		switch p.Direction {
		case models.SkillSeeking:
			seeking[p.SkillName] = struct{}{}
		case models.SkillOffering:
			offering[p.SkillName] = struct{}{}
		}
		categories[p.Category] = struct{}{}
	}
	if len(profiles) == 0 {
		return []models.RecommendationCandidate{}, nil
	}

	rows, err := e.store.CandidateProfiles(ctx, userID, keys(seeking), keys(offering), keys(categories))
	if err != nil {
		e.logger.WithError(err).WithField("user_id", userID).Error("Ошибка запроса кандидатов")
		return nil, utils.Internal("Ошибка получения кандидатов", err)
	}

	var ids []int64
	seen := make(map[int64]struct{})
	for _, row := range rows {
		if _, ok := seen[row.UserID]; !ok && row.UserID != userID {
			seen[row.UserID] = struct{}{}
			ids = append(ids, row.UserID)
		}
	}

	stats, err := e.store.UserStats(ctx, ids)
	if err != nil {
		e.logger.WithError(err).WithField("user_id", userID).Error("Ошибка запроса статистики")
		return nil, utils.Internal("Ошибка получения статистики пользователей", err)
	}

	best := make(map[int64]models.RecommendationCandidate)
	for _, row := range rows {
		if row.UserID == userID {
			continue
		}
		reason, ok := matchReason(row, seeking, offering, categories)
		if !ok {
			continue
		}
		st := stats[row.UserID]
		score := e.weights.Score(reason, row.Proficiency, st)

		if cur, exists := best[row.UserID]; exists && cur.Score >= score {
			continue
		}
		best[row.UserID] = models.RecommendationCandidate{
			UserID:          row.UserID,
			Username:        row.Username,
			FullName:        row.FullName,
			SkillID:         row.SkillID,
			SkillName:       row.SkillName,
			Category:        row.Category,
			Direction:       row.Direction,
			Proficiency:     row.Proficiency,
			AverageRating:   st.AverageRating,
			CompletedTrades: st.CompletedTrades,
			Score:           score,
			Reason:          reason,
		}
	}

	candidates := make([]models.RecommendationCandidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CompletedTrades != b.CompletedTrades {
			return a.CompletedTrades > b.CompletedTrades
		}
		return a.UserID < b.UserID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

func matchReason(row models.SkillProfile, seeking, offering, categories map[string]struct{}) (models.MatchReason, bool) {
	if row.Direction == models.SkillOffering {
		if _, ok := seeking[row.SkillName]; ok {
			return models.ReasonOffersWhatYouSeek, true
		}
	}
	if row.Direction == models.SkillSeeking {
		if _, ok := offering[row.SkillName]; ok {
			return models.ReasonSeeksWhatYouOffer, true
		}
	}
	if _, ok := categories[row.Category]; ok {
		return models.ReasonSharedCategory, true
	}
	return "", false
}

// Score считает балл одной строки профиля кандидата
func (w Weights) Score(reason models.MatchReason, level models.Proficiency, st models.UserStats) float64 {
	var score float64
	switch reason {
	case models.ReasonOffersWhatYouSeek:
		score = w.OfferingMatch
	case models.ReasonSeeksWhatYouOffer:
		score = w.SeekingMatch
	case models.ReasonSharedCategory:
		score = w.CategoryMatch
	}

	score += w.RatingFactor * st.AverageRating
	score += math.Min(w.TradeFactor*float64(st.CompletedTrades), w.TradeBonusCap)

	switch level {
	case models.ProficiencyExpert:
		score += w.ExpertBonus
	case models.ProficiencyIntermediate:
		score += w.IntermediateBonus
	}
	return score
}

// Trending возвращает до limit навыков по убыванию трендового балла
// (0.3 × число профилей + число обменов за окно)
func (e *Engine) Trending(ctx context.Context, limit int) ([]models.TrendingSkill, error) {
	defer observe("trending", time.Now())
	limit = clampLimit(limit, DefaultTrendingLimit)

	key := trendingKeyPrefix + strconv.Itoa(limit)
	if cached, ok := e.cached(ctx, key); ok {
		return cached, nil
	}

	activity, err := e.store.SkillActivity(ctx, e.now().Add(-e.window))
	if err != nil {
		e.logger.WithError(err).Error("Ошибка запроса активности навыков")
		return nil, utils.Internal("Ошибка получения трендов", err)
	}

	trending := make([]models.TrendingSkill, 0, len(activity))
	for _, a := range activity {
		trending = append(trending, models.TrendingSkill{
			SkillActivity: a,
			Score:         TrendScore(a),
		})
	}
	sort.Slice(trending, func(i, j int) bool {
		if trending[i].Score != trending[j].Score {
			return trending[i].Score > trending[j].Score
		}
		return trending[i].SkillID < trending[j].SkillID
	})
	if len(trending) > limit {
		trending = trending[:limit]
	}

	e.storeCache(ctx, key, trending)
	return trending, nil
}

// TrendScore считает балл тренда: 0.3 × userCount + tradeCount
func TrendScore(a models.SkillActivity) float64 {
	return 0.3*float64(a.UserCount) + float64(a.TradeCount)
}

func (e *Engine) cached(ctx context.Context, key string) ([]models.TrendingSkill, bool) {
	if e.cache == nil {
		return nil, false
	}
	raw, err := e.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			e.logger.WithError(err).Warn("Ошибка чтения кэша трендов")
		}
		return nil, false
	}
	var trending []models.TrendingSkill
	if err := json.Unmarshal(raw, &trending); err != nil {
		e.logger.WithError(err).Warn("Повреждённая запись кэша трендов")
		return nil, false
	}
	return trending, true
}

func (e *Engine) storeCache(ctx context.Context, key string, trending []models.TrendingSkill) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(trending)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL).Err(); err != nil {
		e.logger.WithError(err).Warn("Ошибка записи кэша трендов")
	}
}

func observe(operation string, started time.Time) {
	metrics.RecommendationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
