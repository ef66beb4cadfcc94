package featureimage

import (
	"net/url"
	"regexp"
	"strings"
)

// Normalize は本文から抽出した画像URLをフィードURLのホストとスキームで補完する。
//
// 候補にホストがなくフィードURLにホストがある場合は "host/" + 先頭の"/"を除いた候補に、
// さらに候補にスキームがなくフィードURLにスキームがある場合は
// "//"で始まるなら "scheme:" を、それ以外は "scheme://" を前置する。
// 結果がフェッチ可能かどうかは検証しない。
func Normalize(candidate, feedBaseURL string) string {
	candHost, candScheme := hostAndScheme(candidate)
	baseHost, baseScheme := hostAndScheme(feedBaseURL)

	image := candidate

	// フィードからの相対パスとみなしてホストを補う
	if candHost == "" && baseHost != "" {
		image = strings.TrimRight(baseHost, "/") + "/" + strings.TrimLeft(image, "/")
	}

	if candScheme == "" && baseScheme != "" {
		if strings.HasPrefix(image, "//") {
			image = baseScheme + ":" + image
		} else {
			image = baseScheme + "://" + image
		}
	}

	return image
}

var schemePrefix = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*):`)

// hostAndScheme はURLのホスト（ポート込み）とスキームを返す。
// url.Parseが拒否するURLでも、不正な"%"を"%25"に直して再解析し、
// それでも失敗すれば文字列の形からホストとスキームを取り出す。
func hostAndScheme(raw string) (host, scheme string) {
	if u, err := url.Parse(raw); err == nil {
		return u.Host, u.Scheme
	}
	if u, err := url.Parse(escapeStrayPercent(raw)); err == nil {
		return u.Host, u.Scheme
	}

	rest := raw
	if m := schemePrefix.FindStringSubmatch(rest); m != nil {
		scheme = strings.ToLower(m[1])
		rest = rest[len(m[0]):]
	}
	if after, ok := strings.CutPrefix(rest, "//"); ok {
		host = after
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
		if i := strings.LastIndex(host, "@"); i >= 0 {
			host = host[i+1:]
		}
	}
	return host, scheme
}

// escapeStrayPercent は16進2桁が続かない"%"を"%25"にする。
func escapeStrayPercent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
