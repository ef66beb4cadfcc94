package featureimage

import (
	"context"
	"log/slog"

	"github.com/hitoshi/autoblog/internal/model"
)

// MediaStore は画像をダウンロードしてメディアライブラリに保存する。
type MediaStore interface {
	// FetchAndStore はURLの画像を取得して保存し、添付ファイルIDを返す。
	// ownerPostIDは添付先の投稿ID。
	FetchAndStore(ctx context.Context, imageURL string, ownerPostID int64) (int64, error)
}

// AttachmentLookup は添付ファイルの存在確認を行う。
type AttachmentLookup interface {
	// LookupAttachment は添付ファイルが存在するかと表示用URLを返す。
	LookupAttachment(ctx context.Context, id int64) (displayURL string, ok bool, err error)
}

// PostStore は投稿にアイキャッチ画像を設定する。
type PostStore interface {
	SetFeaturedImage(ctx context.Context, postID, attachmentID int64) error
}

// Recorder は決定結果をメトリクスに記録する。
type Recorder interface {
	RecordFeaturedImage(outcome string)
	RecordImageFetchFailure()
}

// 決定結果の種別（メトリクスのラベル値）
const (
	OutcomeAssigned = "assigned"
	OutcomeDefault  = "default"
	OutcomeNone     = "none"
)

// Result はアイキャッチ画像の決定結果。
// AttachmentIDが0の場合は画像なし（NoImage）を表す。
type Result struct {
	AttachmentID int64
	// ImageURL は取得を試みたURL（正規化後）。候補がなかった場合は空。
	ImageURL    string
	UsedDefault bool
}

// Assigned は画像が割り当てられたかどうかを返す。
func (r Result) Assigned() bool {
	return r.AttachmentID > 0
}

// Outcome はメトリクス・ログ用の結果種別を返す。
func (r Result) Outcome() string {
	switch {
	case !r.Assigned():
		return OutcomeNone
	case r.UsedDefault:
		return OutcomeDefault
	default:
		return OutcomeAssigned
	}
}

// Resolver は投稿1件ごとにアイキャッチ画像を決定する。
// 状態を持たないため、複数のgoroutineから同時に使用できる。
type Resolver struct {
	media       MediaStore
	attachments AttachmentLookup
	posts       PostStore
	recorder    Recorder
	logger      *slog.Logger
}

// NewResolver はResolverを生成する。recorderはnilでもよい。
func NewResolver(
	media MediaStore,
	attachments AttachmentLookup,
	posts PostStore,
	recorder Recorder,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		media:       media,
		attachments: attachments,
		posts:       posts,
		recorder:    recorder,
		logger:      logger,
	}
}

// Resolve はフィード記事と設定からアイキャッチ画像を決定する。
// エラーは返さない。取得や保存の失敗はすべてフォールバックとして扱う。
//
//  1. 取得方法がStrategyNoneなら画像なし（デフォルト画像も参照しない）
//  2. 候補を抽出し、本文由来の候補はフィードURLで正規化する
//  3. 候補の取得・保存に成功すればその添付ファイルを割り当てる
//  4. それ以外はデフォルト画像が存在すれば割り当て、なければ画像なし
func (r *Resolver) Resolve(ctx context.Context, postID int64, item FeedItem, cfg model.FeedConfig) Result {
	strategy := Select(cfg)
	if strategy == StrategyNone {
		return Result{}
	}

	candidate, ok := pickCandidate(ExtractCandidates(item, strategy), strategy)
	if !ok {
		r.logger.Info("アイキャッチ画像の候補が見つかりません",
			slog.Int64("post_id", postID),
			slog.Int64("feed_id", cfg.FeedID),
			slog.String("strategy", strategy.String()),
		)
		return r.fallback(ctx, postID, cfg, "")
	}

	// media:thumbnailは絶対URLのみ候補になるため正規化しない
	imageURL := candidate
	if strategy != StrategyMediaThumbnail {
		imageURL = Normalize(candidate, cfg.FeedBaseURL)
	}

	attachmentID, err := r.media.FetchAndStore(ctx, imageURL, postID)
	if err == nil && attachmentID > 0 {
		return Result{AttachmentID: attachmentID, ImageURL: imageURL}
	}

	attrs := []any{
		slog.Int64("post_id", postID),
		slog.Int64("feed_id", cfg.FeedID),
		slog.String("strategy", strategy.String()),
		slog.String("image_url", imageURL),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	r.logger.Warn("アイキャッチ画像の取得に失敗しました", attrs...)
	if r.recorder != nil {
		r.recorder.RecordImageFetchFailure()
	}

	return r.fallback(ctx, postID, cfg, imageURL)
}

// fallback は設定されたデフォルト画像が存在する場合にそれを割り当てる。
func (r *Resolver) fallback(ctx context.Context, postID int64, cfg model.FeedConfig, imageURL string) Result {
	res := Result{ImageURL: imageURL}
	if cfg.DefaultImageID <= 0 || r.attachments == nil {
		return res
	}

	_, ok, err := r.attachments.LookupAttachment(ctx, cfg.DefaultImageID)
	if err != nil {
		r.logger.Warn("デフォルト画像の確認に失敗しました",
			slog.Int64("post_id", postID),
			slog.Int64("feed_id", cfg.FeedID),
			slog.Int64("attachment_id", cfg.DefaultImageID),
			slog.String("error", err.Error()),
		)
		return res
	}
	if !ok {
		r.logger.Warn("デフォルト画像がメディアライブラリに存在しません",
			slog.Int64("feed_id", cfg.FeedID),
			slog.Int64("attachment_id", cfg.DefaultImageID),
		)
		return res
	}

	res.AttachmentID = cfg.DefaultImageID
	res.UsedDefault = true
	return res
}

// Apply はResolveの結果を投稿に設定する。
// 投稿への設定に失敗した場合は画像なしとして結果を返し、デフォルト画像は試さない。
// 取得して保存した画像はメディアライブラリに残るため、そのIDをorphan_attachment_idとしてログに出す。
func (r *Resolver) Apply(ctx context.Context, postID int64, item FeedItem, cfg model.FeedConfig) Result {
	res := r.Resolve(ctx, postID, item, cfg)

	if res.Assigned() {
		if err := r.posts.SetFeaturedImage(ctx, postID, res.AttachmentID); err != nil {
			attrs := []any{
				slog.Int64("post_id", postID),
				slog.Int64("feed_id", cfg.FeedID),
				slog.Int64("attachment_id", res.AttachmentID),
				slog.String("error", err.Error()),
			}
			if !res.UsedDefault {
				attrs = append(attrs, slog.Int64("orphan_attachment_id", res.AttachmentID))
			}
			r.logger.Error("アイキャッチ画像の設定に失敗しました", attrs...)
			res = Result{ImageURL: res.ImageURL}
		} else {
			r.logger.Info("アイキャッチ画像を設定しました",
				slog.Int64("post_id", postID),
				slog.Int64("feed_id", cfg.FeedID),
				slog.Int64("attachment_id", res.AttachmentID),
				slog.Bool("default", res.UsedDefault),
			)
		}
	}

	if r.recorder != nil && Select(cfg) != StrategyNone {
		r.recorder.RecordFeaturedImage(res.Outcome())
	}
	return res
}
