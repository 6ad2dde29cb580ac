package auth

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the identity record. ID doubles as the user-facing account id.
type User struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Email              *string        `gorm:"uniqueIndex;size:255" json:"email"`
	Name               string         `gorm:"uniqueIndex;size:50;not null" json:"name"`
	PasswordHash       string         `gorm:"not null" json:"-"`
	Role               Role           `gorm:"size:16;not null;default:user" json:"role"`
	MustChangePassword bool           `gorm:"not null;default:false" json:"mustChangePassword"`
	Avatar             *string        `json:"avatar"`
	Bio                *string        `json:"bio"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

func (u *User) Identity() Identity {
	return Identity{
		ID:    u.ID,
		Email: u.EmailAddress(),
		Name:  u.Name,
		Role:  u.Role,
	}
}

// Identity is the subset of a user carried inside a token.
type Identity struct {
	ID    int64
	Email string
	Name  string
	Role  Role
}

// VerificationCode is the single live one-time login code for an email.
type VerificationCode struct {
	Email      string    `gorm:"primaryKey;size:255"`
	CodeHash   string    `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	LastSentAt time.Time `gorm:"not null"`
	Attempts   int       `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (VerificationCode) TableName() string {
	return "email_verification_codes"
}

func (c *VerificationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ActivityCounts are aggregates read from collaborator tables.
type ActivityCounts struct {
	Presets           int64 `json:"presets"`
	Likes             int64 `json:"likes"`
	Favorites         int64 `json:"favorites"`
	Comments          int64 `json:"comments"`
	ReceivedDonations int64 `json:"receivedDonations"`
}

// Profile is the current-user view returned by /me.
type Profile struct {
	*User
	Count ActivityCounts `json:"_count"`
}
