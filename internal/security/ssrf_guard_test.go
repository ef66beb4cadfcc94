package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClient_Timeout はタイムアウト設定が反映されることを検証する。
func TestNewSafeClient_Timeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 10 * time.Minute
	client := guard.NewSafeClient(timeout, 20*1024*1024)

	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// TestNewSafeClient_BlocksLoopback はhttptestサーバー（127.0.0.1）への接続がブロックされることを検証する。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5*time.Second, 1024)

	if _, err := client.Get(ts.URL + "/image.png"); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL_Allowed(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"https://example.com/feed",
		"http://blog.example.org/wp-content/uploads/pic.jpg",
		"https://cdn.example.com:443/a.png",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_Rejected(t *testing.T) {
	guard := NewSSRFGuard()

	tests := map[string]string{
		"空URL":       "",
		"スキームなし":     "example.com/a.jpg",
		"ftp":        "ftp://example.com/a.jpg",
		"file":       "file:///etc/passwd",
		"data":       "data:image/png;base64,AAAA",
		"プライベートIP":   "http://10.0.0.1/a.jpg",
		"プライベートIP2":  "http://192.168.1.100/a.jpg",
		"ループバック":     "http://127.0.0.1/a.jpg",
		"localhost":  "http://localhost/a.jpg",
		"メタデータIP":    "http://169.254.169.254/latest/meta-data/",
		"メタデータホスト名":  "http://metadata.google.internal/computeMetadata/v1/",
		"IPv6ループバック": "http://[::1]/a.jpg",
		"ゼロアドレス":     "http://0.0.0.0/a.jpg",
		"IPv4射影アドレス": "http://[::ffff:127.0.0.1]/a.jpg",
		"ユニークローカル":   "http://[fd00::1]/a.jpg",
		"CGNAT":      "http://100.64.0.1/a.jpg",
		"許可されないポート":  "http://example.com:8080/a.jpg",
		"ホストなし":      "http:///a.jpg",
	}

	for name, u := range tests {
		t.Run(name, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", u)
			}
		})
	}
}

func TestValidateURL_CustomPorts(t *testing.T) {
	guard := NewSSRFGuard(80, 443, 8080)

	if err := guard.ValidateURL("http://example.com:8080/a.jpg"); err != nil {
		t.Errorf("port 8080 should be allowed: %v", err)
	}
	if err := guard.ValidateURL("http://example.com:9090/a.jpg"); err == nil {
		t.Error("port 9090 should be rejected")
	}
}
