// Package security はパスワードダイジェストと入力サニタイズを提供する。
//
// TextSanitizer はプロフィールや振込先名などの自由入力テキストからマークアップを除去する。
// bluemondayのStrictPolicyで全タグを落とし、ポリシーが付けた &amp; と引用符のエスケープだけを戻す。
// &lt; などはそのまま残るため、出力がマークアップとして解釈されることはない。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は入力からHTMLタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// plainTextUnescaper はStrictPolicyがテキストに付けるエスケープのうち、タグを作れないものだけを戻す。
var plainTextUnescaper = strings.NewReplacer(
	"&amp;", "&",
	"&#39;", "'",
	"&#34;", `"`,
	"&#13;", "\r",
)

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはゴルーチンセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去する。
// StrictPolicyは & や引用符もエスケープするため、それらだけ保存前に戻す。
// 出力はHTMLではないので、表示側でのエスケープが前提。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(plainTextUnescaper.Replace(s.policy.Sanitize(raw)))
}
