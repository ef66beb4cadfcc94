// Package media はメディアライブラリ（画像のダウンロードと添付ファイルの保存・配信）を提供する。
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/autoblog/internal/model"
	"github.com/hitoshi/autoblog/internal/repository"
)

// 既定値
const (
	DefaultFetchTimeout = 10 * time.Minute
	DefaultMaxSize      = 20 * 1024 * 1024
)

// userAgent は画像取得時のUser-Agent。
const userAgent = "Autoblog/1.0 Media Importer"

var (
	// ErrBlocked はSSRFガードによってURLが拒否されたことを表す。
	ErrBlocked = errors.New("media: url blocked")
	// ErrNotImage はレスポンスが画像でないことを表す。
	ErrNotImage = errors.New("media: not an image")
	// ErrTooLarge はレスポンスが上限サイズを超えたことを表す。
	ErrTooLarge = errors.New("media: image too large")
)

// SSRFValidator はSSRF検証とSSRF対策済みクライアント生成のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Options はStoreの動作設定。
type Options struct {
	BaseURL      string // 表示用URLの組み立てに使う公開URL
	FetchTimeout time.Duration
	MaxSize      int64
}

// Store はメディアライブラリの実装。
type Store struct {
	repo   repository.AttachmentRepository
	guard  SSRFValidator
	opts   Options
	logger *slog.Logger
}

// NewStore はStoreを生成する。
func NewStore(repo repository.AttachmentRepository, guard SSRFValidator, opts Options, logger *slog.Logger) *Store {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, guard: guard, opts: opts, logger: logger}
}

// FetchAndStore は画像をダウンロードしてメディアライブラリに保存し、添付ファイルIDを返す。
// 2xx以外のステータス、画像以外のContent-Type、サイズ超過はいずれも失敗とする。
func (s *Store) FetchAndStore(ctx context.Context, imageURL string, ownerPostID int64) (int64, error) {
	if s.guard != nil {
		if err := s.guard.ValidateURL(imageURL); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBlocked, err)
		}
	}

	data, mimeType, err := s.download(ctx, imageURL)
	if err != nil {
		return 0, err
	}

	a := &model.Attachment{
		GUID:      uuid.NewString(),
		PostID:    ownerPostID,
		SourceURL: imageURL,
		FileName:  fileNameFromURL(imageURL),
		MimeType:  mimeType,
		Size:      int64(len(data)),
		Data:      data,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return 0, err
	}

	s.logger.Info("画像をメディアライブラリに保存しました",
		slog.Int64("attachment_id", a.ID),
		slog.Int64("post_id", ownerPostID),
		slog.String("url", imageURL),
		slog.String("mime_type", mimeType),
		slog.Int64("size", a.Size),
	)
	return a.ID, nil
}

func (s *Store) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("画像の取得に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("画像の取得に失敗: HTTPステータス %d", resp.StatusCode)
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		return nil, "", fmt.Errorf("%w: content-type %q", ErrNotImage, mimeType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}
	if int64(len(body)) > s.opts.MaxSize {
		return nil, "", ErrTooLarge
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", ErrNotImage)
	}
	return body, mimeType, nil
}

func (s *Store) httpClient() *http.Client {
	if s.guard != nil {
		return s.guard.NewSafeClient(s.opts.FetchTimeout, s.opts.MaxSize)
	}
	return &http.Client{Timeout: s.opts.FetchTimeout}
}

// LookupAttachment は添付ファイルが存在するかと表示用URLを返す。
func (s *Store) LookupAttachment(ctx context.Context, id int64) (string, bool, error) {
	if id <= 0 {
		return "", false, nil
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", false, err
	}
	if a == nil {
		return "", false, nil
	}
	return s.DisplayURL(a.GUID), true, nil
}

// Get は添付ファイルのメタデータを返す。見つからない場合はnilを返す。
func (s *Store) Get(ctx context.Context, id int64) (*model.Attachment, error) {
	return s.repo.FindByID(ctx, id)
}

// Open は配信用に添付ファイルをデータ付きで返す。見つからない場合はnilを返す。
func (s *Store) Open(ctx context.Context, guid string) (*model.Attachment, error) {
	if _, err := uuid.Parse(guid); err != nil {
		return nil, nil
	}
	return s.repo.FindByGUID(ctx, guid)
}

// DisplayURL は添付ファイルの公開URLを返す。
func (s *Store) DisplayURL(guid string) string {
	return s.opts.BaseURL + "/media/" + guid
}

// fileNameFromURL はURLのパス末尾からファイル名を決める。取れない場合は"image"。
func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") && len(mimeType) > len("image/")
}
