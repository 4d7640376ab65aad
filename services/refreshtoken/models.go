package refreshtoken

import (
	"time"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
	StatusReplaced Status = "replaced"
)

const (
	ReasonUserLogout    = "user_logout"
	ReasonUserLogoutAll = "user_logout_all"
)

// RefreshToken is the persisted record of one device session. Only a bcrypt
// hash of the secret is stored. Status only ever moves away from active.
type RefreshToken struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	AccountID        uint       `json:"account_id" gorm:"not null;index"`
	TokenHash        string     `json:"-" gorm:"uniqueIndex;size:255;not null"`
	ExpiresAt        time.Time  `json:"expires_at" gorm:"not null;index"`
	Status           Status     `json:"status" gorm:"size:16;not null;default:'active';index"`
	IssuedFromIP     string     `json:"issued_from_ip" gorm:"size:45"`
	UserAgent        string     `json:"user_agent" gorm:"size:500"`
	DeviceInfo       string     `json:"device_info" gorm:"size:255"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevocationReason string     `json:"revocation_reason,omitempty" gorm:"size:64"`
	RevokedFromIP    string     `json:"revoked_from_ip,omitempty" gorm:"size:45"`
	ReplacedAt       *time.Time `json:"replaced_at,omitempty"`
	ReplacedByID     *uint      `json:"replaced_by_id,omitempty"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.Status == StatusActive && now.Before(t.ExpiresAt)
}

// SessionInfo describes the client a token is issued to or used from.
type SessionInfo struct {
	IPAddress string
	UserAgent string
}

// IssuedToken carries the plaintext secret. It is returned once, at creation,
// and never stored.
type IssuedToken struct {
	Secret    string
	TokenID   uint
	ExpiresAt time.Time
}

type Rotation struct {
	Token      *IssuedToken
	Previous   *RefreshToken
	AccountID  uint
	ReplacedAt time.Time
}
