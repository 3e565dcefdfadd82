package models

import "time"

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CredsVersion int       `db:"creds_version" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Researcher struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
}

// ActivityRecord timestamps are opaque client-side epoch values; the natural
// key for deletion is (owner, start, end).
type ActivityRecord struct {
	UserID int64  `db:"user_id" json:"-"`
	Start  int64  `db:"start_ts" json:"start"`
	End    int64  `db:"end_ts" json:"end"`
	Name   string `db:"name" json:"name"`
}

type QuestionnaireRecord struct {
	UserID    int64  `db:"user_id" json:"-"`
	Timestamp int64  `db:"ts" json:"timestamp"`
	Payload   string `db:"payload" json:"-"` // Encrypted in DB
}

type SensorRecord struct {
	UserID    int64  `db:"user_id" json:"-"`
	Timestamp int64  `db:"ts" json:"timestamp"`
	Payload   string `db:"payload" json:"-"` // Encrypted in DB
}
