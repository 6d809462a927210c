package models

import "time"

// Token is a bearer credential bound to a user, carrying validity and
// cumulative usage state. Reissuing a user's token marks prior rows invalid
// rather than deleting them; only an explicit admin delete removes a row.
type Token struct {
	Value      string    `db:"value"       json:"token"`
	UserID     int64     `db:"user_id"     json:"user_id"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	IsAdmin    bool      `db:"is_admin"    json:"is_admin"`
	IsValid    bool      `db:"is_valid"    json:"is_valid"`
	UsageCount int64     `db:"usage_count" json:"usage_count"`
	CharCount  int64     `db:"char_count"  json:"char_count"`
}
