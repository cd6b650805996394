// Package model はドメインモデルを定義する。
package model

import "time"

// Event は主催者が公開する期間付きのイベントを表す。
type Event struct {
	ID      string
	OwnerID string // 主催者が退会済みの場合は空文字
	Name    string
	Place   string
	Content string
	StartAt *time.Time
	EndAt   *time.Time

	// Image は添付画像の属性。画像なしの場合はnil。
	Image *ImageAsset

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImageAsset は画像ファイルから抽出した属性を表す。
// 実体はオブジェクトストレージのKeyに保存される。
type ImageAsset struct {
	Key         string
	ContentType string
	ByteSize    int64
	Width       int
	Height      int
}

// IsFinished は時刻nowの時点でイベントが終了しているかを返す。
// now == end_at は終了済みとみなす。終了時刻未設定のイベントは終了扱いにしない。
func (e *Event) IsFinished(now time.Time) bool {
	if e.EndAt == nil {
		return false
	}
	return !now.Before(*e.EndAt)
}

// CreatedBy はuserがこのイベントの主催者であるかを返す。
// 比較は主キーの一致のみで行い、名前やアイコンは考慮しない。
func (e *Event) CreatedBy(user *User) bool {
	if user == nil || user.ID == "" {
		return false
	}
	return e.OwnerID == user.ID
}
