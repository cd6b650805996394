// Package validation はイベント・参加登録の入力検証を提供する。
// 全ルールを評価し、違反はフィールドごとに収集して返す（最初の違反で打ち切らない）。
package validation

import "github.com/hitoshi/awesome-events/internal/model"

// Errors はフィールド名から違反メッセージ列への対応を保持する。
// 違反が1件もなければ有効（Valid）を意味する。
type Errors struct {
	order    []string
	messages map[string][]string
}

// Add はfieldに違反メッセージを追加する。
func (e *Errors) Add(field, message string) {
	if e.messages == nil {
		e.messages = make(map[string][]string)
	}
	if _, ok := e.messages[field]; !ok {
		e.order = append(e.order, field)
	}
	e.messages[field] = append(e.messages[field], message)
}

// Empty は違反が1件もないかを返す。
func (e Errors) Empty() bool {
	return len(e.order) == 0
}

// On はfieldに対する違反メッセージを追加順に返す。
func (e Errors) On(field string) []string {
	return e.messages[field]
}

// Fields は違反のあるフィールド名を最初に違反が追加された順に返す。
func (e Errors) Fields() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Map は違反内容のコピーを返す。
func (e Errors) Map() map[string][]string {
	out := make(map[string][]string, len(e.messages))
	for field, msgs := range e.messages {
		cp := make([]string, len(msgs))
		copy(cp, msgs)
		out[field] = cp
	}
	return out
}

// fieldLabels は画面表示用のフィールド名。
var fieldLabels = map[string]string{
	"owner":    "主催者",
	"name":     "名前",
	"place":    "場所",
	"content":  "内容",
	"start_at": "開始時間",
	"end_at":   "終了時間",
	"image":    "画像",
	"comment":  "コメント",
}

// FullMessages はフィールド名を前置した表示用メッセージを返す。
// baseフィールドのメッセージはそのまま返す。
func (e Errors) FullMessages() []string {
	var out []string
	for _, field := range e.order {
		label := fieldLabels[field]
		if field == model.BaseField {
			label = ""
		} else if label == "" {
			label = field
		}
		for _, msg := range e.messages[field] {
			out = append(out, label+msg)
		}
	}
	return out
}

// APIError は違反内容をHTTP層向けのAPIErrorに変換する。
func (e Errors) APIError() *model.APIError {
	return model.NewValidationError(e.Map())
}
