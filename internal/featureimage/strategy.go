// Package featureimage はフィード記事から作成した投稿のアイキャッチ画像を決定する。
//
// 取得方法（media:thumbnail / 本文の最初の画像 / 本文の最後の画像）の選択、
// 候補URLの抽出、フィードURLを基準にしたURLの正規化、
// 取得失敗時のデフォルト画像へのフォールバックを担う。
// 画像のダウンロードと保存、添付ファイルの存在確認、投稿への紐付けは
// コンストラクタで注入された外部コンポーネントに委譲する。
package featureimage

import "github.com/hitoshi/autoblog/internal/model"

// Strategy はアイキャッチ画像の候補を探す方法を表す。
type Strategy int

const (
	// StrategyNone は取り込みを行わない。デフォルト画像も参照しない。
	StrategyNone Strategy = iota
	// StrategyMediaThumbnail はmedia:thumbnailタグの最初の出現を使う。
	StrategyMediaThumbnail
	// StrategyFirstImage は本文中の最初の<img>を使う。
	StrategyFirstImage
	// StrategyLastImage は本文中の最後の<img>を使う。
	StrategyLastImage
)

// String はログ出力用の名前を返す。
func (s Strategy) String() string {
	switch s {
	case StrategyMediaThumbnail:
		return "media_thumbnail"
	case StrategyFirstImage:
		return "first_image"
	case StrategyLastImage:
		return "last_image"
	default:
		return "none"
	}
}

// Select はフィード設定の取得方法をStrategyに変換する。
// 未知の値や空文字列はStrategyNoneになる。
func Select(cfg model.FeedConfig) Strategy {
	switch cfg.FeaturedImageMethod {
	case model.FeaturedImageMediaThumbnail:
		return StrategyMediaThumbnail
	case model.FeaturedImageFirst:
		return StrategyFirstImage
	case model.FeaturedImageLast:
		return StrategyLastImage
	default:
		return StrategyNone
	}
}
