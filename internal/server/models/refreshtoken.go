package models

import "time"

// RefreshToken is the single active refresh token of a user, together with
// the device it was last used from.
type RefreshToken struct {
	ID          int64
	UserID      int64
	Token       string
	Expires     time.Time
	UserAgent   string
	IPAddress   string
	DeviceClass string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.Expires.After(now)
}
