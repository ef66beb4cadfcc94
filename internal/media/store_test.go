package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/autoblog/internal/featureimage"
	"github.com/hitoshi/autoblog/internal/model"
)

// --- モック ---

type mockAttachmentRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Attachment
	err    error
}

func newMockAttachmentRepo() *mockAttachmentRepo {
	return &mockAttachmentRepo{byID: make(map[int64]*model.Attachment)}
}

func (m *mockAttachmentRepo) Create(_ context.Context, a *model.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *mockAttachmentRepo) FindByID(_ context.Context, id int64) (*model.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	cp.Data = nil
	return &cp, nil
}

func (m *mockAttachmentRepo) FindByGUID(_ context.Context, guid string) (*model.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.GUID == guid {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

type mockSSRFGuard struct {
	blockAll bool
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}

func newTestStore(repo *mockAttachmentRepo, guard SSRFValidator, maxSize int64) *Store {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewStore(repo, guard, Options{
		BaseURL:      "https://blog.example.com/",
		FetchTimeout: 5 * time.Second,
		MaxSize:      maxSize,
	}, logger)
}

var pngData = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img/photo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngData)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html></html>"))
		case "/big.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(bytes.Repeat([]byte{0xFF}, 64))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// --- テスト ---

func TestStore_ImplementsResolverInterfaces(t *testing.T) {
	var _ featureimage.MediaStore = (*Store)(nil)
	var _ featureimage.AttachmentLookup = (*Store)(nil)
}

func TestStore_FetchAndStore_Success(t *testing.T) {
	server := imageServer(t)
	repo := newMockAttachmentRepo()
	store := newTestStore(repo, &mockSSRFGuard{}, 1024)

	id, err := store.FetchAndStore(context.Background(), server.URL+"/img/photo.png", 10)
	if err != nil {
		t.Fatalf("FetchAndStore returned error: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d, want > 0", id)
	}

	a := repo.byID[id]
	if a.PostID != 10 {
		t.Errorf("PostID = %d, want 10", a.PostID)
	}
	if a.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", a.MimeType)
	}
	if a.FileName != "photo.png" {
		t.Errorf("FileName = %q, want photo.png", a.FileName)
	}
	if !bytes.Equal(a.Data, pngData) {
		t.Error("stored data does not match response body")
	}
	if a.Size != int64(len(pngData)) {
		t.Errorf("Size = %d, want %d", a.Size, len(pngData))
	}
	if _, err := uuid.Parse(a.GUID); err != nil {
		t.Errorf("GUID %q is not a UUID: %v", a.GUID, err)
	}
}

func TestStore_FetchAndStore_Failures(t *testing.T) {
	server := imageServer(t)

	tests := []struct {
		name    string
		path    string
		maxSize int64
		wantErr error
	}{
		{name: "404", path: "/missing.png", maxSize: 1024},
		{name: "画像以外", path: "/page.html", maxSize: 1024, wantErr: ErrNotImage},
		{name: "サイズ超過", path: "/big.jpg", maxSize: 16, wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockAttachmentRepo()
			store := newTestStore(repo, &mockSSRFGuard{}, tt.maxSize)

			id, err := store.FetchAndStore(context.Background(), server.URL+tt.path, 1)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if id != 0 {
				t.Errorf("id = %d, want 0", id)
			}
			if len(repo.byID) != 0 {
				t.Error("nothing should be stored on failure")
			}
		})
	}
}

func TestStore_FetchAndStore_SSRFBlocked(t *testing.T) {
	repo := newMockAttachmentRepo()
	store := newTestStore(repo, &mockSSRFGuard{blockAll: true}, 1024)

	_, err := store.FetchAndStore(context.Background(), "http://169.254.169.254/latest", 1)
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
}

func TestStore_FetchAndStore_RepoError(t *testing.T) {
	server := imageServer(t)
	repo := newMockAttachmentRepo()
	repo.err = errors.New("db down")
	store := newTestStore(repo, &mockSSRFGuard{}, 1024)

	if _, err := store.FetchAndStore(context.Background(), server.URL+"/img/photo.png", 1); err == nil {
		t.Fatal("expected error when repository fails")
	}
}

func TestStore_LookupAttachment(t *testing.T) {
	server := imageServer(t)
	repo := newMockAttachmentRepo()
	store := newTestStore(repo, &mockSSRFGuard{}, 1024)

	id, err := store.FetchAndStore(context.Background(), server.URL+"/img/photo.png", 0)
	if err != nil {
		t.Fatalf("FetchAndStore returned error: %v", err)
	}

	displayURL, ok, err := store.LookupAttachment(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("LookupAttachment = (%q, %v, %v), want exists", displayURL, ok, err)
	}
	want := "https://blog.example.com/media/" + repo.byID[id].GUID
	if displayURL != want {
		t.Errorf("displayURL = %q, want %q", displayURL, want)
	}

	for _, missing := range []int64{0, -1, id + 100} {
		if _, ok, err := store.LookupAttachment(context.Background(), missing); ok || err != nil {
			t.Errorf("LookupAttachment(%d) = (%v, %v), want (false, nil)", missing, ok, err)
		}
	}
}

func TestStore_Open(t *testing.T) {
	server := imageServer(t)
	repo := newMockAttachmentRepo()
	store := newTestStore(repo, &mockSSRFGuard{}, 1024)

	id, _ := store.FetchAndStore(context.Background(), server.URL+"/img/photo.png", 0)
	guid := repo.byID[id].GUID

	a, err := store.Open(context.Background(), guid)
	if err != nil || a == nil {
		t.Fatalf("Open = (%v, %v), want attachment", a, err)
	}
	if !bytes.Equal(a.Data, pngData) {
		t.Error("Open should return stored bytes")
	}

	a, err = store.Open(context.Background(), "not-a-uuid")
	if err != nil || a != nil {
		t.Errorf("Open(invalid) = (%v, %v), want (nil, nil)", a, err)
	}
}

func TestFileNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://example.com/a/b/photo.jpg":        "photo.jpg",
		"https://example.com/photo.jpg?size=large": "photo.jpg",
		"https://example.com/":                     "image",
		"https://example.com":                      "image",
	}
	for in, want := range tests {
		if got := fileNameFromURL(in); got != want {
			t.Errorf("fileNameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsImageMime(t *testing.T) {
	for _, m := range []string{"image/png", "image/jpeg", "image/webp"} {
		if !isImageMime(m) {
			t.Errorf("isImageMime(%q) = false, want true", m)
		}
	}
	for _, m := range []string{"", "image/", "text/html", "application/octet-stream"} {
		if isImageMime(m) {
			t.Errorf("isImageMime(%q) = true, want false", m)
		}
	}
	if got := extractMimeType("Image/PNG; charset=binary"); got != "image/png" {
		t.Errorf("extractMimeType = %q, want image/png", got)
	}
}
