package security

import (
	"strings"
	"testing"
)

func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{"p", "<p>段落</p>", []string{"<p>段落</p>"}},
		{"br", "行1<br>行2", []string{"<br>", "行1", "行2"}},
		{"ul/li", "<ul><li>持ち物</li><li>PC</li></ul>", []string{"<ul>", "<li>持ち物</li>", "</ul>"}},
		{"ol/li", "<ol><li>受付</li></ol>", []string{"<ol>", "<li>受付</li>"}},
		{"blockquote", "<blockquote>引用</blockquote>", []string{"<blockquote>引用</blockquote>"}},
		{"pre/code", "<pre><code>go test ./...</code></pre>", []string{"<pre><code>go test ./...</code></pre>"}},
		{"strong/em", "<strong>必須</strong><em>任意</em>", []string{"<strong>必須</strong>", "<em>任意</em>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, want to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

func TestSanitize_RemovesDangerousContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
		wantKeep   string
	}{
		{"script", `<p>集合</p><script>alert('xss')</script>`, []string{"<script", "alert"}, "集合"},
		{"iframe", `<p>集合</p><iframe src="https://evil.example"></iframe>`, []string{"<iframe", "evil.example"}, "集合"},
		{"style", `<p>集合</p><style>body{display:none}</style>`, []string{"<style", "display:none"}, "集合"},
		{"onclick", `<p onclick="alert(1)">集合</p>`, []string{"onclick", "alert"}, "集合"},
		{"img", `<img src="https://example.com/a.png" onerror="alert(1)">集合`, []string{"<img", "onerror"}, "集合"},
		{"javascript URL", `<a href="javascript:alert(1)">集合</a>`, []string{"javascript:"}, "集合"},
		{"div", `<div>集合</div>`, []string{"<div"}, "集合"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, absent)
				}
			}
			if !strings.Contains(got, tt.wantKeep) {
				t.Errorf("Sanitize(%q) = %q, want to keep %q", tt.input, got, tt.wantKeep)
			}
		})
	}
}

func TestSanitize_AnchorGetsTargetAndRel(t *testing.T) {
	got := NewContentSanitizer().Sanitize(`<a href="https://connpass.example/event/1">申込ページ</a>`)

	for _, want := range []string{`href="https://connpass.example/event/1"`, `target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize() = %q, want to contain %q", got, want)
		}
	}
}

func TestSanitize_RelativeLinkIsDropped(t *testing.T) {
	got := NewContentSanitizer().Sanitize(`<a href="/admin">管理</a>`)
	if strings.Contains(got, "href") {
		t.Errorf("Sanitize() = %q, relative href should be removed", got)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()
	input := `<p>日時</p><a href="https://example.com">詳細</a><script>x</script>`

	first := sanitizer.Sanitize(input)
	if second := sanitizer.Sanitize(first); first != second {
		t.Errorf("not idempotent:\n first=%q\nsecond=%q", first, second)
	}
}

func TestFormat(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字", "", ""},
		{"空白のみ", " \n\n ", ""},
		{"1段落", "RSpecを学習します。", "<p>RSpecを学習します。</p>"},
		{"改行はbrになる", "1行目\n2行目", "<p>1行目<br>\n2行目</p>"},
		{"CRLFも改行として扱う", "1行目\r\n2行目", "<p>1行目<br>\n2行目</p>"},
		{"空行で段落を分ける", "第1部\n\n第2部", "<p>第1部</p>\n\n<p>第2部</p>"},
		{"scriptは除去される", "集合<script>alert(1)</script>", "<p>集合</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Format(tt.input); got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
