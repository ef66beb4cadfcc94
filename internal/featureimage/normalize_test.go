package featureimage

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		baseURL   string
		want      string
	}{
		{
			name:      "ルート相対パスにフィードのホストとスキームを補う",
			candidate: "/a.jpg",
			baseURL:   "http://example.com/feed",
			want:      "http://example.com/a.jpg",
		},
		{
			name:      "プロトコル相対URLにはスキームのみ補う",
			candidate: "//cdn.example.com/a.jpg",
			baseURL:   "https://example.com/feed",
			want:      "https://cdn.example.com/a.jpg",
		},
		{
			name:      "絶対URLはそのまま",
			candidate: "https://img.example.org/x.png",
			baseURL:   "http://example.com/feed",
			want:      "https://img.example.org/x.png",
		},
		{
			name:      "相対パスはフィードのパスではなくホスト直下として扱う",
			candidate: "images/pic.jpg",
			baseURL:   "http://example.com/blog/feed",
			want:      "http://example.com/images/pic.jpg",
		},
		{
			name:      "フィードURLのポートを保持する",
			candidate: "/a.jpg",
			baseURL:   "http://example.com:8080/feed",
			want:      "http://example.com:8080/a.jpg",
		},
		{
			name:      "不正な%を含む絶対URLはそのまま",
			candidate: "http://cdn.example.com/100%.jpg",
			baseURL:   "http://example.com/feed",
			want:      "http://cdn.example.com/100%.jpg",
		},
		{
			name:      "不正な%を含むプロトコル相対URLにはスキームのみ補う",
			candidate: "//cdn.example.com/50%off.jpg",
			baseURL:   "http://example.com/feed",
			want:      "http://cdn.example.com/50%off.jpg",
		},
		{
			name:      "不正な%を含むルート相対パスにはホストとスキームを補う",
			candidate: "/img/100%.jpg",
			baseURL:   "https://example.com/feed",
			want:      "https://example.com/img/100%.jpg",
		},
		{
			name:      "url.Parseが拒否する制御文字を含む絶対URLもホストを認識する",
			candidate: "http://cdn.example.com/a\x7f.jpg",
			baseURL:   "http://example.com/feed",
			want:      "http://cdn.example.com/a\x7f.jpg",
		},
		{
			name:      "フィードURLが空の場合は変更しない",
			candidate: "/a.jpg",
			baseURL:   "",
			want:      "/a.jpg",
		},
		{
			name:      "フィードURLにスキームがない場合はホストのみ補う",
			candidate: "/a.jpg",
			baseURL:   "//example.com/feed",
			want:      "example.com/a.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.candidate, tt.baseURL)
			if got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.candidate, tt.baseURL, got, tt.want)
			}
		})
	}
}

func TestHostAndScheme(t *testing.T) {
	tests := []struct {
		raw        string
		wantHost   string
		wantScheme string
	}{
		{"https://cdn.example.com:8443/a.jpg", "cdn.example.com:8443", "https"},
		{"HTTP://cdn.example.com/100%.jpg", "cdn.example.com", "http"},
		{"//cdn.example.com/50%off.jpg", "cdn.example.com", ""},
		{"http://user@cdn.example.com/a\x7f.jpg", "cdn.example.com", "http"},
		{"/a%zz.jpg", "", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		host, scheme := hostAndScheme(tt.raw)
		if host != tt.wantHost || scheme != tt.wantScheme {
			t.Errorf("hostAndScheme(%q) = (%q, %q), want (%q, %q)", tt.raw, host, scheme, tt.wantHost, tt.wantScheme)
		}
	}
}

func TestEscapeStrayPercent(t *testing.T) {
	tests := map[string]string{
		"/100%.jpg":   "/100%25.jpg",
		"/a%20b.jpg":  "/a%20b.jpg",
		"/50%off.jpg": "/50%25off.jpg",
		"/end%":       "/end%25",
		"/end%4":      "/end%254",
	}
	for in, want := range tests {
		if got := escapeStrayPercent(in); got != want {
			t.Errorf("escapeStrayPercent(%q) = %q, want %q", in, got, want)
		}
	}
}
