package model

import "time"

// User はサービス利用ユーザーを表す。
// provider と uid の組で外部IdPのアカウントと1対1に対応する。
type User struct {
	ID        string
	Provider  string
	UID       string
	Name      string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
