package model

import "time"

// Post はフィードの記事から作成された投稿を表す。
type Post struct {
	ID              int64
	FeedID          int64
	GUID            string
	Title           string
	Link            string
	Content         string // サニタイズ済みHTML
	Author          string
	Status          string
	FeaturedImageID int64 // 0はアイキャッチ画像なし
	PublishedAt     *time.Time
	CreatedAt       time.Time
}

// Attachment はメディアライブラリに保存された画像を表す。
type Attachment struct {
	ID        int64
	GUID      string
	PostID    int64 // 0は投稿に紐付かない（デフォルト画像など）
	SourceURL string
	FileName  string
	MimeType  string
	Size      int64
	Data      []byte
	CreatedAt time.Time
}
