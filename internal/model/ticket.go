package model

import "time"

// Ticket はユーザーのイベント参加表明を表す。
type Ticket struct {
	ID        string
	UserID    string // 参加者が退会済みの場合は空文字
	EventID   string
	Comment   string
	CreatedAt time.Time

	// User は一覧取得時にJOINされる参加者情報。退会済みの場合はnil。
	User *User
}
