package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hitoshi/autoblog/internal/model"
)

// PostgresFeedRepoはFeedRepositoryインターフェースを満たすことを検証
func TestPostgresFeedRepo_ImplementsInterface(t *testing.T) {
	var _ FeedRepository = (*PostgresFeedRepo)(nil)
}

// NewPostgresFeedRepoが正しく初期化されることを検証
func TestNewPostgresFeedRepo_Initializes(t *testing.T) {
	repo := NewPostgresFeedRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// feed_metaの既存キー名（featuredimage / featureddefault）でデコードできることを検証
func TestDecodeFeedMeta_LegacyKeys(t *testing.T) {
	raw := []byte(`{"featuredimage":"DESC","featureddefault":42,"poll_interval_minutes":30}`)

	meta, err := decodeFeedMeta(raw)
	if err != nil {
		t.Fatalf("decodeFeedMeta returned error: %v", err)
	}
	if meta.FeaturedImage == nil || *meta.FeaturedImage != "DESC" {
		t.Errorf("FeaturedImage = %v, want DESC", meta.FeaturedImage)
	}
	if meta.FeaturedDefault != 42 {
		t.Errorf("FeaturedDefault = %d, want 42", meta.FeaturedDefault)
	}
	if meta.PollIntervalMinutes != 30 {
		t.Errorf("PollIntervalMinutes = %d, want 30", meta.PollIntervalMinutes)
	}
}

// featuredimageキーが存在しない場合はnil（未設定）として扱うことを検証
func TestDecodeFeedMeta_MissingMethodIsNil(t *testing.T) {
	meta, err := decodeFeedMeta([]byte(`{}`))
	if err != nil {
		t.Fatalf("decodeFeedMeta returned error: %v", err)
	}
	if meta.FeaturedImage != nil {
		t.Errorf("FeaturedImage = %q, want nil", *meta.FeaturedImage)
	}
}

// 空文字列のfeaturedimageは「取り込まない」の明示的な設定として保持されることを検証
func TestDecodeFeedMeta_EmptyMethodIsExplicit(t *testing.T) {
	meta, err := decodeFeedMeta([]byte(`{"featuredimage":""}`))
	if err != nil {
		t.Fatalf("decodeFeedMeta returned error: %v", err)
	}
	if meta.FeaturedImage == nil {
		t.Fatal("FeaturedImage should not be nil")
	}
	cfg, ok := (&model.Feed{Meta: meta}).Config(model.FeaturedImageFirst)
	if !ok || cfg.FeaturedImageMethod != model.FeaturedImageNone {
		t.Errorf("Config() = (%q, %v), want (\"\", true)", cfg.FeaturedImageMethod, ok)
	}
}

func TestDecodeFeedMeta_EmptyInput(t *testing.T) {
	meta, err := decodeFeedMeta(nil)
	if err != nil {
		t.Fatalf("decodeFeedMeta returned error: %v", err)
	}
	if meta != (model.FeedMeta{}) {
		t.Errorf("meta = %+v, want zero value", meta)
	}
}

func TestDecodeFeedMeta_InvalidJSON(t *testing.T) {
	if _, err := decodeFeedMeta([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestNullHelpers(t *testing.T) {
	if ns := nullString(""); ns.Valid {
		t.Error("nullString(\"\") should be NULL")
	}
	if ns := nullString("x"); !ns.Valid || ns.String != "x" {
		t.Errorf("nullString(\"x\") = %+v", ns)
	}
	if got := nullStringValue(sql.NullString{}); got != "" {
		t.Errorf("nullStringValue(NULL) = %q, want empty", got)
	}
	if ni := nullInt64(0); ni.Valid {
		t.Error("nullInt64(0) should be NULL")
	}
	if ni := nullInt64(7); !ni.Valid || ni.Int64 != 7 {
		t.Errorf("nullInt64(7) = %+v", ni)
	}
}

func TestPostgresPostRepo_ImplementsInterface(t *testing.T) {
	var _ PostRepository = (*PostgresPostRepo)(nil)
}

// 空のリンクは重複判定に使わず、DBに問い合わせないことを検証
func TestPostgresPostRepo_ExistsByLink_EmptyLink(t *testing.T) {
	repo := NewPostgresPostRepo(nil)

	exists, err := repo.ExistsByLink(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("ExistsByLink returned error: %v", err)
	}
	if exists {
		t.Error("empty link should never match")
	}
}

func TestPostgresAttachmentRepo_ImplementsInterface(t *testing.T) {
	var _ AttachmentRepository = (*PostgresAttachmentRepo)(nil)
}

func TestPostgresLogRepo_ImplementsInterface(t *testing.T) {
	var _ LogRepository = (*PostgresLogRepo)(nil)
}

// フィードが空の場合はDBに問い合わせず空を返すことを検証
func TestPostgresLogRepo_ListSince_NoFeeds(t *testing.T) {
	repo := NewPostgresLogRepo(nil)

	records, err := repo.ListSince(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("ListSince returned error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}
