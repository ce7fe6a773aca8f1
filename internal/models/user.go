package models

// User представляет минимальную информацию о пользователе для API
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `json:"role,omitempty"`
	IsActive  bool   `json:"-"`
}

// RoleAdmin обозначает администратора
const RoleAdmin = "admin"

// Identity представляет проверенную личность владельца соединения.
// Создаётся один раз при рукопожатии и дальше не меняется.
type Identity struct {
	userID    int64
	username  string
	fullName  string
	avatarURL string
	role      string
}

// NewIdentity фиксирует данные пользователя в неизменяемом значении
func NewIdentity(u User) Identity {
	return Identity{
		userID:    u.ID,
		username:  u.Username,
		fullName:  u.FullName,
		avatarURL: u.AvatarURL,
		role:      u.Role,
	}
}

func (i Identity) UserID() int64     { return i.userID }
func (i Identity) Username() string  { return i.username }
func (i Identity) FullName() string  { return i.fullName }
func (i Identity) AvatarURL() string { return i.avatarURL }
func (i Identity) IsAdmin() bool     { return i.role == RoleAdmin }

// IsZero сообщает, что личность не была проверена
func (i Identity) IsZero() bool { return i.userID == 0 }

// DisplayName возвращает полное имя или username, если имя не задано
func (i Identity) DisplayName() string {
	if i.fullName != "" {
		return i.fullName
	}
	return i.username
}

// User возвращает публичное представление личности
func (i Identity) User() *User {
	return &User{
		ID:        i.userID,
		Username:  i.username,
		FullName:  i.fullName,
		AvatarURL: i.avatarURL,
	}
}
