// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string              // エラーコード
	Message  string              // エラーメッセージ
	Category string              // カテゴリ: auth, validation, event, ticket, user, system
	Action   string              // ユーザー向け対処方法
	Fields   map[string][]string // フィールドごとのエラー（バリデーションエラー時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeEventNotFound        = "EVENT_NOT_FOUND"
	ErrCodeNotEventOwner        = "NOT_EVENT_OWNER"
	ErrCodeTicketNotFound       = "TICKET_NOT_FOUND"
	ErrCodeAlreadyJoined        = "ALREADY_JOINED"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeDeletionBlocked      = "DELETION_BLOCKED"
	ErrCodeImageStorageDisabled = "IMAGE_STORAGE_DISABLED"
	ErrCodeInvalidImage         = "INVALID_IMAGE"
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeCSRFFailed           = "CSRF_FAILED"
	ErrCodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// BaseField はレコード全体に対するエラーを格納するフィールド名。
const BaseField = "base"

// NewValidationError はフィールドごとのバリデーションエラーを生成する。
func NewValidationError(fields map[string][]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "エラーの内容を確認して再度送信してください。",
		Fields:   fields,
	}
}

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("指定されたイベントが見つかりません: %s", eventID),
		Category: "event",
		Action:   "イベントIDを確認してください。",
	}
}

// NewNotEventOwnerError は主催者以外がイベントを操作しようとした場合のエラーを生成する。
func NewNotEventOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotEventOwner,
		Message:  "このイベントを操作できるのは主催者のみです。",
		Category: "event",
		Action:   "主催者のアカウントでログインしてください。",
	}
}

// NewTicketNotFoundError は参加登録が見つからない場合のエラーを生成する。
func NewTicketNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTicketNotFound,
		Message:  "このイベントへの参加登録が見つかりません。",
		Category: "ticket",
		Action:   "参加状況を確認してください。",
	}
}

// NewAlreadyJoinedError は同じイベントに二重に参加しようとした場合のエラーを生成する。
func NewAlreadyJoinedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyJoined,
		Message:  "このイベントには既に参加しています。",
		Category: "ticket",
		Action:   "参加をキャンセルする場合はキャンセル操作を行ってください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewDeletionBlockedError は退会がブロックされた理由をbaseフィールドに載せたエラーを生成する。
// サービス層では通常の結果として扱い、HTTP層でのみこのエラーに変換する。
func NewDeletionBlockedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDeletionBlocked,
		Message:  reason,
		Category: "user",
		Action:   "イベントの終了後に再度退会してください。",
		Fields:   map[string][]string{BaseField: {reason}},
	}
}

// NewImageStorageDisabledError は画像ストレージ未設定時に画像が送信された場合のエラーを生成する。
func NewImageStorageDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeImageStorageDisabled,
		Message:  "画像のアップロードは現在利用できません。",
		Category: "system",
		Action:   "画像を添付せずに登録してください。",
	}
}

// NewInvalidImageError は画像ファイルの読み取りに失敗した場合のエラーを生成する。
func NewInvalidImageError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  "画像ファイルを読み取れませんでした。",
		Category: "validation",
		Action:   "png, jpg, jpeg 形式の画像を選択してください。",
	}
}

// NewBadRequestError はリクエスト形式の誤りを表すエラーを生成する。
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUnauthorizedError は未ログイン時のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// ErrConstraintViolation はDB制約（NOT NULL等）に違反する永続化を示すセンチネルエラー。
var ErrConstraintViolation = errors.New("constraint violation")

// ConstraintViolationError は必須カラム欠落など、永続化前後に検出された制約違反を表す。
type ConstraintViolationError struct {
	Table  string
	Column string
}

// Error はerrorインターフェースを実装する。
func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation: %s.%s must not be null", e.Table, e.Column)
}

// Unwrap はerrors.Is(err, ErrConstraintViolation)を成立させる。
func (e *ConstraintViolationError) Unwrap() error {
	return ErrConstraintViolation
}
