// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, media, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeSSRFBlocked         = "SSRF_BLOCKED"
	ErrCodeFeedNotFound        = "FEED_NOT_FOUND"
	ErrCodeInvalidImageMethod  = "INVALID_IMAGE_METHOD"
	ErrCodeAttachmentNotFound  = "ATTACHMENT_NOT_FOUND"
	ErrCodeImageImportFailed   = "IMAGE_IMPORT_FAILED"
	ErrCodeInvalidScope        = "INVALID_SCOPE"
	ErrCodeInvalidPollInterval = "INVALID_POLL_INTERVAL"
	ErrCodeFeedNotDetected     = "FEED_NOT_DETECTED"
	ErrCodeFetchFailed         = "FETCH_FAILED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "feed",
		Action:   "RSS/AtomフィードのURLを直接入力するか、フィードが公開されているページのURLを確認してください。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(feedID int64) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %d", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewInvalidImageMethodError はアイキャッチ画像の取得方法が無効な場合のエラーを生成する。
func NewInvalidImageMethodError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageMethod,
		Message:  fmt.Sprintf("無効なアイキャッチ画像の取得方法です: %q", method),
		Category: "validation",
		Action:   "取得方法には \"\"、MEDIA、ASC、DESC のいずれかを指定してください。",
	}
}

// NewAttachmentNotFoundError は添付ファイルが見つからない場合のエラーを生成する。
func NewAttachmentNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeAttachmentNotFound,
		Message:  fmt.Sprintf("指定された画像が見つかりません: %s", id),
		Category: "media",
		Action:   "メディアライブラリに存在する画像を指定してください。",
	}
}

// NewImageImportFailedError は画像の取り込み失敗エラーを生成する。
func NewImageImportFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeImageImportFailed,
		Message:  "画像の取り込みに失敗しました。",
		Category: "media",
		Action:   "画像URLが公開されており、画像形式のコンテンツを返すことを確認してください。",
	}
}

// NewInvalidScopeError はsite_id/blog_idの指定が無効な場合のエラーを生成する。
func NewInvalidScopeError(param string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScope,
		Message:  fmt.Sprintf("無効なパラメータです: %s", param),
		Category: "validation",
		Action:   "site_id と blog_id には正の整数を指定してください。",
	}
}

// NewInvalidPollIntervalError はポーリング間隔が無効な場合のエラーを生成する。
func NewInvalidPollIntervalError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPollInterval,
		Message:  fmt.Sprintf("無効なポーリング間隔です: %d分", minutes),
		Category: "validation",
		Action:   "ポーリング間隔は5分から1440分（24時間）の範囲で指定してください。",
	}
}
