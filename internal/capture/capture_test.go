package capture

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/marcote/comphawk/internal/browser"
)

// shotSession scripts per-call screenshot outcomes.
type shotSession struct {
	shots     []error
	calls     int
	reloads   int
	reloadErr error
}

func (s *shotSession) Navigate(url string) error { return nil }
func (s *shotSession) WaitVisible(selector string, timeout time.Duration) bool { return true }
func (s *shotSession) Tiles(q browser.TileQuery) ([]browser.Tile, error) { return nil, nil }
func (s *shotSession) Text(selector string) (string, bool) { return "", false }
func (s *shotSession) Attr(selector, attr string) (string, bool) { return "", false }
func (s *shotSession) Click(selector string) error { return nil }
func (s *shotSession) ScrollBy(pixels int) error { return nil }
func (s *shotSession) URL() string { return "" }
func (s *shotSession) Release() {}

func (s *shotSession) Reload() error {
	s.reloads++
	return s.reloadErr
}

func (s *shotSession) Screenshot(quality int) ([]byte, error) {
	i := s.calls
	s.calls++
	if i < len(s.shots) && s.shots[i] != nil {
		return nil, s.shots[i]
	}
	return []byte("jpeg"), nil
}

type memStore struct {
	uploads   int
	uploadErr error
}

func (m *memStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	m.uploads++
	return m.uploadErr
}
func (m *memStore) GetURL(key string) string { return "https://cdn.example.com/" + key }
func (m *memStore) Delete(ctx context.Context, key string) error { return nil }
func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func newTestCapturer(store *memStore) *Capturer {
	return NewCapturer(store, Config{JPEGQuality: 70, RetryDelay: time.Millisecond})
}

func TestCaptureWithRetry(t *testing.T) {
	tests := []struct {
		name        string
		sess        *shotSession
		wantData    bool
		wantReloads int
	}{
		{
			name:        "first attempt succeeds",
			sess:        &shotSession{},
			wantData:    true,
			wantReloads: 0,
		},
		{
			name:        "second attempt after reload succeeds",
			sess:        &shotSession{shots: []error{errors.New("capture failed")}},
			wantData:    true,
			wantReloads: 1,
		},
		{
			name:        "both attempts fail",
			sess:        &shotSession{shots: []error{errors.New("one"), errors.New("two")}},
			wantData:    false,
			wantReloads: 1,
		},
		{
			name:        "reload failure gives up",
			sess:        &shotSession{shots: []error{errors.New("capture failed")}, reloadErr: errors.New("reload failed")},
			wantData:    false,
			wantReloads: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCapturer(&memStore{})
			data := c.CaptureWithRetry(context.Background(), tt.sess)
			if (data != nil) != tt.wantData {
				t.Errorf("data present = %v, want %v", data != nil, tt.wantData)
			}
			if tt.sess.reloads != tt.wantReloads {
				t.Errorf("reloads = %d, want %d", tt.sess.reloads, tt.wantReloads)
			}
		})
	}
}

func TestUploadScreenshotDegrades(t *testing.T) {
	c := newTestCapturer(&memStore{uploadErr: errors.New("storage down")})
	if url := c.UploadScreenshot(context.Background(), "job-1", "search", []byte("jpeg")); url != "" {
		t.Errorf("failed upload should yield empty URL, got %q", url)
	}

	c = newTestCapturer(&memStore{})
	if url := c.UploadScreenshot(context.Background(), "job-1", "search", nil); url != "" {
		t.Errorf("empty buffer should yield empty URL, got %q", url)
	}

	store := &memStore{}
	c = newTestCapturer(store)
	url := c.UploadScreenshot(context.Background(), "job-1", "search", []byte("jpeg"))
	if url == "" {
		t.Fatal("successful upload returned empty URL")
	}
	if store.uploads != 1 {
		t.Errorf("uploads = %d, want 1", store.uploads)
	}
}
