// Package memdb реализует контракт хранилища в памяти, потокобезопасно.
// Используется в тестах и для локального запуска без PostgreSQL.
package memdb

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rajivgeraev/skillswap-api/internal/db"
	"github.com/rajivgeraev/skillswap-api/internal/models"
)

// Skill представляет справочную запись навыка
type Skill struct {
	ID       int64
	Name     string
	Category string
	Inactive bool
}

// Review представляет отзыв о пользователе
type Review struct {
	RevieweeID int64
	Rating     int
}

type profileRow struct {
	ID          int64
	UserID      int64
	SkillID     int64
	Direction   models.SkillDirection
	Proficiency models.Proficiency
	Inactive    bool
}

// Store хранит все данные в памяти под одним мьютексом
type Store struct {
	mu          sync.Mutex
	users       map[int64]models.User
	telegramIDs map[int64]int64
	skills      map[int64]Skill
	profiles    map[int64]profileRow
	trades      map[int64]models.Trade
	messages    []models.Message
	reviews     []Review
	nextID      int64

	// Fail, если задан, возвращается всеми методами
	Fail error
}

// New создает пустое хранилище
func New() *Store {
	return &Store{
		users:       make(map[int64]models.User),
		telegramIDs: make(map[int64]int64),
		skills:      make(map[int64]Skill),
		profiles:    make(map[int64]profileRow),
		trades:      make(map[int64]models.Trade),
		nextID:      1000,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser добавляет пользователя; IsActive нужно выставить явно
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// LinkTelegram связывает Telegram ID с пользователем
func (s *Store) LinkTelegram(telegramID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telegramIDs[telegramID] = userID
}

// AddSkill добавляет навык в справочник
func (s *Store) AddSkill(sk Skill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[sk.ID] = sk
}

// AddProfile привязывает навык к пользователю и возвращает ID профиля
func (s *Store) AddProfile(userID, skillID int64, direction models.SkillDirection, level models.Proficiency) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.profiles[id] = profileRow{ID: id, UserID: userID, SkillID: skillID, Direction: direction, Proficiency: level}
	return id
}

// AddTrade сохраняет обмен как есть
func (s *Store) AddTrade(t models.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = t.CreatedAt
	s.trades[t.ID] = t
}

// AddReview добавляет отзыв
func (s *Store) AddReview(revieweeID int64, rating int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, Review{RevieweeID: revieweeID, Rating: rating})
}

// Messages возвращает копию всех сохранённых сообщений
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// GetActiveUser реализует контракт хранилища
func (s *Store) GetActiveUser(_ context.Context, userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	u, ok := s.users[userID]
	if !ok || !u.IsActive {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

// GetUserByTelegramID реализует контракт хранилища
func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	s.mu.Lock()
	userID, ok := s.telegramIDs[telegramID]
	s.mu.Unlock()
	if !ok {
		return nil, db.ErrNotFound
	}
	return s.GetActiveUser(ctx, userID)
}

// GetTrade реализует контракт хранилища
func (s *Store) GetTrade(_ context.Context, tradeID int64) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	t, ok := s.trades[tradeID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &t, nil
}

// CompareAndSetStatus реализует контракт хранилища
func (s *Store) CompareAndSetStatus(_ context.Context, tradeID int64, from, to models.TradeStatus, notes string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return false, s.Fail
	}
	t, ok := s.trades[tradeID]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.Notes = notes
	t.UpdatedAt = at
	if to == models.TradeStatusCompleted {
		completed := at
		t.CompletedAt = &completed
	}
	s.trades[tradeID] = t
	return true, nil
}

// InsertMessage реализует контракт хранилища
func (s *Store) InsertMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	msg.ID = s.id()
	msg.IsRead = false
	msg.CreatedAt = time.Now()
	s.messages = append(s.messages, *msg)
	return nil
}

// MarkMessagesRead реализует контракт хранилища
func (s *Store) MarkMessagesRead(_ context.Context, tradeID, receiverID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return 0, s.Fail
	}
	var changed int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.TradeID == tradeID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			changed++
		}
	}
	return changed, nil
}

// ListMessages реализует контракт хранилища
func (s *Store) ListMessages(_ context.Context, tradeID, beforeID int64, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	result := make([]models.Message, 0, limit)
	for i := len(s.messages) - 1; i >= 0 && len(result) < limit; i-- {
		m := s.messages[i]
		if m.TradeID != tradeID || (beforeID > 0 && m.ID >= beforeID) {
			continue
		}
		if u, ok := s.users[m.SenderID]; ok {
			m.Sender = &models.User{ID: u.ID, Username: u.Username, FullName: u.FullName}
		}
		result = append(result, m)
	}
	return result, nil
}

func (s *Store) profile(row profileRow) models.SkillProfile {
	u := s.users[row.UserID]
	sk := s.skills[row.SkillID]
	return models.SkillProfile{
		ID:          row.ID,
		UserID:      row.UserID,
		Username:    u.Username,
		FullName:    u.FullName,
		SkillID:     sk.ID,
		SkillName:   sk.Name,
		Category:    sk.Category,
		Direction:   row.Direction,
		Proficiency: row.Proficiency,
	}
}

func (s *Store) sortedProfiles() []profileRow {
	rows := make([]profileRow, 0, len(s.profiles))
	for _, p := range s.profiles {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// ActiveSkillProfiles реализует контракт хранилища
func (s *Store) ActiveSkillProfiles(_ context.Context, userID int64) ([]models.SkillProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	var result []models.SkillProfile
	for _, row := range s.sortedProfiles() {
		if row.UserID == userID && !row.Inactive && !s.skills[row.SkillID].Inactive {
			result = append(result, s.profile(row))
		}
	}
	return result, nil
}

// CandidateProfiles реализует контракт хранилища
func (s *Store) CandidateProfiles(_ context.Context, userID int64, seeking, offering, categories []string) ([]models.SkillProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	var result []models.SkillProfile
	for _, row := range s.sortedProfiles() {
		sk := s.skills[row.SkillID]
		if row.UserID == userID || row.Inactive || sk.Inactive || !s.users[row.UserID].IsActive {
			continue
		}
		match := (row.Direction == models.SkillOffering && slices.Contains(seeking, sk.Name)) ||
			(row.Direction == models.SkillSeeking && slices.Contains(offering, sk.Name)) ||
			slices.Contains(categories, sk.Category)
		if match {
			result = append(result, s.profile(row))
		}
	}
	return result, nil
}

// UserStats реализует контракт хранилища
func (s *Store) UserStats(_ context.Context, userIDs []int64) (map[int64]models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	stats := make(map[int64]models.UserStats, len(userIDs))
	for _, id := range userIDs {
		st := models.UserStats{UserID: id}
		var sum, n int
		for _, r := range s.reviews {
			if r.RevieweeID == id {
				sum += r.Rating
				n++
			}
		}
		if n > 0 {
			st.AverageRating = float64(sum) / float64(n)
		}
		for _, t := range s.trades {
			if t.Status == models.TradeStatusCompleted && t.IsParty(id) {
				st.CompletedTrades++
			}
		}
		stats[id] = st
	}
	return stats, nil
}

// SkillActivity реализует контракт хранилища
func (s *Store) SkillActivity(_ context.Context, since time.Time) ([]models.SkillActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	bySkill := make(map[int64]*models.SkillActivity)
	var order []int64
	for _, row := range s.sortedProfiles() {
		sk := s.skills[row.SkillID]
		if row.Inactive || sk.Inactive {
			continue
		}
		a, ok := bySkill[sk.ID]
		if !ok {
			a = &models.SkillActivity{SkillID: sk.ID, Name: sk.Name, Category: sk.Category}
			bySkill[sk.ID] = a
			order = append(order, sk.ID)
		}
		a.UserCount++
		for _, t := range s.trades {
			if t.CreatedAt.Before(since) {
				continue
			}
			if t.RequesterSkillID == row.ID {
				a.TradeCount++
			}
			if t.ProviderSkillID == row.ID {
				a.TradeCount++
			}
		}
	}
	result := make([]models.SkillActivity, 0, len(order))
	for _, id := range order {
		result = append(result, *bySkill[id])
	}
	return result, nil
}
