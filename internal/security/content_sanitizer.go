// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はフィード記事から作成する投稿の本文をサニタイズする。
// bluemondayのUGCポリシーをベースに、投稿として表示するための調整を加える。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize は投稿本文として安全なHTMLを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// ContentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに使用できる。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は投稿本文用のポリシーを構築する。
//   - ベース: bluemonday.UGCPolicy（script, iframe, style, on*属性は除去される）
//   - スキーム: http, https, mailto
//   - 相対URL: 許可（フィード本文の画像はフィードのホストからの相対パスが多い）
//   - 外部リンク: target="_blank" と rel="nofollow noreferrer noopener" を付与
//   - figure / figcaption を許可
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.UGCPolicy()

	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowElements("figure", "figcaption")

	return &ContentSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}

// compile-time interface check
var _ ContentSanitizerService = (*ContentSanitizer)(nil)
