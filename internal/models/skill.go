package models

// SkillDirection определяет, предлагает пользователь навык или ищет его
type SkillDirection string

const (
	SkillOffering SkillDirection = "offering"
	SkillSeeking  SkillDirection = "seeking"
)

// Proficiency определяет уровень владения навыком
type Proficiency string

const (
	ProficiencyBeginner     Proficiency = "beginner"
	ProficiencyIntermediate Proficiency = "intermediate"
	ProficiencyExpert       Proficiency = "expert"
)

// SkillProfile связывает пользователя с навыком
type SkillProfile struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	Username    string         `json:"username,omitempty"`
	FullName    string         `json:"full_name,omitempty"`
	SkillID     int64          `json:"skill_id"`
	SkillName   string         `json:"skill_name"`
	Category    string         `json:"category"`
	Direction   SkillDirection `json:"skill_type"`
	Proficiency Proficiency    `json:"proficiency_level"`
	Description string         `json:"description,omitempty"`
}

// UserStats содержит агрегаты репутации пользователя
type UserStats struct {
	UserID          int64   `json:"user_id"`
	AverageRating   float64 `json:"average_rating"`
	CompletedTrades int     `json:"completed_trades"`
}

// MatchReason объясняет, почему кандидат попал в рекомендации
type MatchReason string

const (
	ReasonOffersWhatYouSeek MatchReason = "offers_what_you_seek"
	ReasonSeeksWhatYouOffer MatchReason = "seeks_what_you_offer"
	ReasonSharedCategory    MatchReason = "shared_category"
)

// RecommendationCandidate представляет кандидата в партнёры по обмену.
// Не сохраняется, вычисляется на каждый запрос.
type RecommendationCandidate struct {
	UserID          int64          `json:"user_id"`
	Username        string         `json:"username"`
	FullName        string         `json:"full_name,omitempty"`
	SkillID         int64          `json:"skill_id"`
	SkillName       string         `json:"skill_name"`
	Category        string         `json:"category"`
	Direction       SkillDirection `json:"skill_type"`
	Proficiency     Proficiency    `json:"proficiency_level"`
	AverageRating   float64        `json:"user_rating"`
	CompletedTrades int            `json:"total_trades"`
	Score           float64        `json:"score"`
	Reason          MatchReason    `json:"reason"`
}

// SkillActivity содержит сырые агрегаты по навыку за окно трендов
type SkillActivity struct {
	SkillID    int64  `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	UserCount  int    `json:"user_count"`
	TradeCount int    `json:"trade_count"`
}

// TrendingSkill представляет навык с рассчитанным трендовым баллом
type TrendingSkill struct {
	SkillActivity
	Score float64 `json:"trend_score"`
}
