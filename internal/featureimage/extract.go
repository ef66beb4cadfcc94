package featureimage

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// MediaRSSNamespace はMedia RSSの名前空間URI。
const MediaRSSNamespace = "http://search.yahoo.com/mrss/"

// Tag はフィード記事に含まれる拡張タグの1回分の出現を表す。
type Tag struct {
	Attrs map[string]string
}

// FeedItem はアイキャッチ画像の決定に必要なフィード記事の読み取り専用ビュー。
type FeedItem interface {
	// Content は記事の本文（HTML）を返す。
	Content() string
	// Tags は指定した名前空間とタグ名の出現を文書順に返す。
	Tags(namespace, name string) []Tag
}

// ExtractCandidates はStrategyに応じて画像URLの候補を文書順に返す。
//
//   - StrategyMediaThumbnail: 最初のmedia:thumbnailのurl属性が絶対URLであれば、その1件のみ。
//   - StrategyFirstImage / StrategyLastImage: エンティティをデコードした本文中の全ての<img src>。
//   - StrategyNone: 常に空。
func ExtractCandidates(item FeedItem, s Strategy) []string {
	if item == nil {
		return nil
	}

	switch s {
	case StrategyMediaThumbnail:
		tags := item.Tags(MediaRSSNamespace, "thumbnail")
		if len(tags) == 0 {
			return nil
		}
		// 2件目以降のmedia:thumbnailは考慮しない
		thumb := strings.TrimSpace(tags[0].Attrs["url"])
		if !isAbsoluteURL(thumb) {
			return nil
		}
		return []string{thumb}

	case StrategyFirstImage, StrategyLastImage:
		return imageSources(html.UnescapeString(item.Content()))

	default:
		return nil
	}
}

// pickCandidate は候補列からStrategyに応じた1件を選ぶ。
// StrategyLastImageのみ末尾、それ以外は先頭を返す。
func pickCandidate(candidates []string, s Strategy) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if s == StrategyLastImage {
		return candidates[len(candidates)-1], true
	}
	return candidates[0], true
}

// imageSources はHTML中の<img>のsrc属性を文書順に抽出する。
func imageSources(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var sources []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		if src = strings.TrimSpace(src); src != "" {
			sources = append(sources, src)
		}
	})
	return sources
}

// isAbsoluteURL はスキームとホストを持つURLかどうかを判定する。
func isAbsoluteURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// namespacePrefixes はgofeedが拡張タグのキーに使う接頭辞と名前空間URIの対応。
var namespacePrefixes = map[string]string{
	MediaRSSNamespace: "media",
}

// gofeedItem はgofeed.ItemをFeedItemとして扱うアダプタ。
type gofeedItem struct {
	item *gofeed.Item
}

// NewGofeedItem はgofeedでパースした記事をFeedItemに変換する。
func NewGofeedItem(item *gofeed.Item) FeedItem {
	return &gofeedItem{item: item}
}

// Content はcontent:encodedを優先し、空の場合はdescriptionを返す。
func (g *gofeedItem) Content() string {
	if g.item == nil {
		return ""
	}
	if g.item.Content != "" {
		return g.item.Content
	}
	return g.item.Description
}

// Tags はgofeedの拡張タグから指定タグの出現を返す。
func (g *gofeedItem) Tags(namespace, name string) []Tag {
	if g.item == nil || g.item.Extensions == nil {
		return nil
	}

	prefix, ok := namespacePrefixes[namespace]
	if !ok {
		prefix = namespace
	}

	exts := g.item.Extensions[prefix][name]
	tags := make([]Tag, 0, len(exts))
	for _, e := range exts {
		tags = append(tags, Tag{Attrs: e.Attrs})
	}
	return tags
}

// compile-time interface check
var _ FeedItem = (*gofeedItem)(nil)
