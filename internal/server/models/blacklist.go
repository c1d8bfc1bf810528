package models

import "time"

// BlacklistTokenType enumerates the kinds of token that can be revoked.
type BlacklistTokenType string

const BlacklistTokenTypeAccess BlacklistTokenType = "ACCESS"

// BlacklistEntry records a revoked token id. ExpiresAt is copied from the
// token itself so the entry never outlives what it guards.
type BlacklistEntry struct {
	ID          int64
	TokenID     string
	ExpiresAt   time.Time
	TokenType   BlacklistTokenType
	UserAgent   string
	IPAddress   string
	DeviceClass string
	CreatedAt   time.Time
}
