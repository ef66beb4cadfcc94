package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/autoblog/internal/media"
	"github.com/hitoshi/autoblog/internal/middleware"
	"github.com/hitoshi/autoblog/internal/model"
)

// MediaServiceInterface はメディアハンドラーが必要とするサービスインターフェース。
type MediaServiceInterface interface {
	FetchAndStore(ctx context.Context, imageURL string, ownerPostID int64) (int64, error)
	Get(ctx context.Context, id int64) (*model.Attachment, error)
	Open(ctx context.Context, guid string) (*model.Attachment, error)
	DisplayURL(guid string) string
}

// MediaHandler はメディアライブラリのHTTPハンドラー。
type MediaHandler struct {
	service MediaServiceInterface
	logger  *slog.Logger
}

// NewMediaHandler はMediaHandlerを生成する。
func NewMediaHandler(service MediaServiceInterface, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{service: service, logger: logger}
}

type importMediaRequest struct {
	URL string `json:"url"`
}

// attachmentResponse は添付ファイルのメタデータ。
type attachmentResponse struct {
	ID         int64     `json:"id"`
	GUID       string    `json:"guid"`
	PostID     int64     `json:"post_id,omitempty"`
	SourceURL  string    `json:"source_url"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	DisplayURL string    `json:"display_url"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *MediaHandler) toAttachmentResponse(a *model.Attachment) attachmentResponse {
	return attachmentResponse{
		ID:         a.ID,
		GUID:       a.GUID,
		PostID:     a.PostID,
		SourceURL:  a.SourceURL,
		FileName:   a.FileName,
		MimeType:   a.MimeType,
		Size:       a.Size,
		DisplayURL: h.service.DisplayURL(a.GUID),
		CreatedAt:  a.CreatedAt,
	}
}

// ImportMedia は画像URLを取り込んでメディアライブラリに保存する。
// デフォルト画像の選択に使う。
// POST /api/media
func (h *MediaHandler) ImportMedia(w http.ResponseWriter, r *http.Request) {
	var req importMediaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	if req.URL == "" {
		middleware.WriteError(w, r, h.logger, model.NewInvalidURLError("URLが空です"))
		return
	}

	id, err := h.service.FetchAndStore(r.Context(), req.URL, 0)
	if err != nil {
		if errors.Is(err, media.ErrBlocked) {
			middleware.WriteError(w, r, h.logger, model.NewSSRFBlockedError())
			return
		}
		h.logger.Warn("media import failed",
			slog.String("url", req.URL),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, r, h.logger, model.NewImageImportFailedError())
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	if a == nil {
		middleware.WriteError(w, r, h.logger, model.NewAttachmentNotFoundError(strconv.FormatInt(id, 10)))
		return
	}
	writeJSON(w, http.StatusCreated, h.toAttachmentResponse(a))
}

// GetMedia は添付ファイルのメタデータを返す。
// GET /api/media/{id}
func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := int64URLParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	if a == nil {
		middleware.WriteError(w, r, h.logger, model.NewAttachmentNotFoundError(strconv.FormatInt(id, 10)))
		return
	}
	writeJSON(w, http.StatusOK, h.toAttachmentResponse(a))
}

// ServeMedia は保存済みの画像を配信する。GUIDごとに内容は変わらない。
// GET /media/{guid}
func (h *MediaHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "guid")

	a, err := h.service.Open(r.Context(), guid)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	if a == nil {
		middleware.WriteError(w, r, h.logger, model.NewAttachmentNotFoundError(guid))
		return
	}

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(a.Data)
}
