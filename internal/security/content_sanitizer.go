package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はイベント内容を表示用の安全なHTMLに変換するインターフェース。
type ContentSanitizerService interface {
	// Sanitize は許可リスト外のタグと属性を除去する。同一入力には常に同一出力を返す。
	Sanitize(rawHTML string) string
	// Format は空行で段落を分けて<p>で囲み、段落内の改行を<br>に変換したうえでSanitizeする。
	Format(text string) string
}

// contentSanitizer はContentSanitizerServiceの実装。並行利用して安全。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はイベント内容用のポリシーでContentSanitizerServiceを生成する。
//
// 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em
// aタグはhttp/httpsの絶対URLのみ許可し、target="_blank"とrel="noreferrer noopener"を付与する。
// 画像はイベント画像として別途扱うため、imgタグは許可しない。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{policy: p}
}

// Sanitize は許可リスト外のタグと属性を除去する。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

var paragraphSeparator = regexp.MustCompile(`\n\s*\n`)

// Format は入力テキストを段落と改行を保ったHTMLに変換する。
func (s *contentSanitizer) Format(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paragraphs []string
	for _, para := range paragraphSeparator.Split(text, -1) {
		para = strings.Trim(para, "\n")
		if strings.TrimSpace(para) == "" {
			continue
		}
		paragraphs = append(paragraphs, "<p>"+strings.ReplaceAll(para, "\n", "<br>\n")+"</p>")
	}
	if len(paragraphs) == 0 {
		return ""
	}
	return s.Sanitize(strings.Join(paragraphs, "\n\n"))
}

var _ ContentSanitizerService = (*contentSanitizer)(nil)
