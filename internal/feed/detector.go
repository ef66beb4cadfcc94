// Package feed はフィード登録とフィード設定のドメインロジックを提供する。
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/autoblog/internal/model"
)

// 検出時のHTTP設定
const (
	detectTimeout     = 10 * time.Second
	detectMaxBodySize = 5 * 1024 * 1024
	userAgent         = "Autoblog/1.0 Feed Importer"
)

// FeedType はフィードの種類（RSS/Atom）を表す。
type FeedType string

const (
	FeedTypeRSS  FeedType = "rss"
	FeedTypeAtom FeedType = "atom"
)

// FeedCandidate はHTMLから検出されたフィード候補を表す。
type FeedCandidate struct {
	URL      string
	FeedType FeedType
	Title    string
}

// Detection はフィード検出の結果。
type Detection struct {
	FeedURL string
	Title   string // フィードまたはページのタイトル。取得できない場合は空
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FeedDetector は入力URLからインポート対象のフィードURLを特定する。
type FeedDetector struct {
	ssrfGuard SSRFValidator
}

// NewFeedDetector はFeedDetectorの新しいインスタンスを生成する。
func NewFeedDetector(ssrfGuard SSRFValidator) *FeedDetector {
	return &FeedDetector{ssrfGuard: ssrfGuard}
}

var feedContentTypes = map[string]FeedType{
	"application/rss+xml":  FeedTypeRSS,
	"application/atom+xml": FeedTypeAtom,
}

var xmlContentTypes = map[string]bool{
	"text/xml":        true,
	"application/xml": true,
}

// mediaTypeOf はContent-Typeからパラメータを除いたメディアタイプを返す。
func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// IsDirectFeed はレスポンスがRSS/Atomフィードそのものかどうかを判定する。
// text/xml等の汎用XMLはボディ先頭のルート要素で判定する。
func (d *FeedDetector) IsDirectFeed(contentType string, body []byte) bool {
	mediaType := mediaTypeOf(contentType)
	if _, ok := feedContentTypes[mediaType]; ok {
		return true
	}
	if !xmlContentTypes[mediaType] || len(body) == 0 {
		return false
	}
	return looksLikeFeedXML(body)
}

func looksLikeFeedXML(body []byte) bool {
	// 先頭4KBにXMLプロローグとルート要素が含まれる
	n := min(len(body), 4096)
	prefix := strings.ToLower(string(body[:n]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// ParseFeedLinksFromHTML はheadのlink[rel=alternate]からフィード候補を抽出する。
// 相対URLはbaseURLを基準に解決する。
func (d *FeedDetector) ParseFeedLinksFromHTML(htmlBody []byte, baseURL string) []FeedCandidate {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	var candidates []FeedCandidate
	doc.Find("head link").Each(func(_ int, s *goquery.Selection) {
		if !hasRel(s.AttrOr("rel", ""), "alternate") {
			return
		}
		feedType, ok := feedContentTypes[strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))]
		if !ok {
			return
		}
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		resolved := resolveURL(base, href)
		if resolved == "" {
			return
		}
		candidates = append(candidates, FeedCandidate{
			URL:      resolved,
			FeedType: feedType,
			Title:    strings.TrimSpace(s.AttrOr("title", "")),
		})
	})
	return candidates
}

// hasRel はスペース区切りのrel属性に指定値が含まれるかを判定する。
func hasRel(rel, want string) bool {
	for _, v := range strings.Fields(strings.ToLower(rel)) {
		if v == want {
			return true
		}
	}
	return false
}

func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// SelectBestFeed は候補から最適なフィードを選択する。
// 優先順位: 同一ホスト > Atom > RSS > 先頭
func (d *FeedDetector) SelectBestFeed(candidates []FeedCandidate, inputURL string) *FeedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	inputHost := extractHost(inputURL)
	bestIdx, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if extractHost(c.URL) == inputHost {
			score += 100
		}
		if c.FeedType == FeedTypeAtom {
			score += 10
		}
		// 同点の場合は先に出現した候補を残す
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return &candidates[bestIdx]
}

func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Detect はURLがフィードかHTMLかを判定し、フィードURLとタイトルを返す。
// HTMLの場合はheadのフィードリンクから最適な候補を選ぶ。
func (d *FeedDetector) Detect(ctx context.Context, inputURL string) (*Detection, error) {
	inputURL = strings.TrimSpace(inputURL)
	if inputURL == "" {
		return nil, model.NewInvalidURLError("URLが入力されていません")
	}
	if d.ssrfGuard != nil {
		if err := d.ssrfGuard.ValidateURL(inputURL); err != nil {
			return nil, model.NewSSRFBlockedError()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, detectMaxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	contentType := resp.Header.Get("Content-Type")
	if d.IsDirectFeed(contentType, body) {
		parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
		if err != nil {
			return nil, model.NewFeedNotDetectedError(inputURL)
		}
		return &Detection{FeedURL: inputURL, Title: strings.TrimSpace(parsed.Title)}, nil
	}

	if !strings.Contains(mediaTypeOf(contentType), "html") {
		return nil, model.NewFeedNotDetectedError(inputURL)
	}

	best := d.SelectBestFeed(d.ParseFeedLinksFromHTML(body, inputURL), inputURL)
	if best == nil {
		return nil, model.NewFeedNotDetectedError(inputURL)
	}

	title := best.Title
	if title == "" {
		title = pageTitle(body)
	}
	return &Detection{FeedURL: best.URL, Title: title}, nil
}

// pageTitle はHTMLのtitle要素の内容を返す。
func pageTitle(htmlBody []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("head title").First().Text())
}

func (d *FeedDetector) httpClient() *http.Client {
	if d.ssrfGuard != nil {
		return d.ssrfGuard.NewSafeClient(detectTimeout, detectMaxBodySize)
	}
	return &http.Client{Timeout: detectTimeout}
}
