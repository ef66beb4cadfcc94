package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSetupMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordFeedImport(ResultOK)
	h := SetupMetricsRoute(reg)

	tests := []struct {
		name       string
		method     string
		path       string
		accept     string
		wantStatus int
		wantType   string
		wantBody   []string
	}{
		{
			name:       "テキスト形式",
			method:     http.MethodGet,
			path:       "/metrics",
			wantStatus: http.StatusOK,
			wantType:   "text/plain",
			wantBody:   []string{`autoblog_feed_import_total{result="ok"} 1`},
		},
		{
			name:       "OpenMetrics形式",
			method:     http.MethodGet,
			path:       "/metrics",
			accept:     "application/openmetrics-text; version=1.0.0",
			wantStatus: http.StatusOK,
			wantType:   "application/openmetrics-text",
			wantBody:   []string{"autoblog_feed_import_total", "# EOF"},
		},
		{
			name:       "healthz",
			method:     http.MethodGet,
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
		{
			name:       "未定義のパス",
			method:     http.MethodGet,
			path:       "/dashboard",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "GET以外",
			method:     http.MethodPost,
			path:       "/metrics",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); tt.wantType != "" && !strings.HasPrefix(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want prefix %q", ct, tt.wantType)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(w.Body.String(), want) {
					t.Errorf("body should contain %q:\n%s", want, w.Body.String())
				}
			}
		})
	}
}
