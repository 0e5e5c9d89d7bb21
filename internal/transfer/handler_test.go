package transfer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	fsstorage "github.com/kgellert/hodatay-images/internal/storage/fs"
	"github.com/kgellert/hodatay-images/internal/token"
)

type env struct {
	codec *token.Codec
	store *fsstorage.Storage
	srv   *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()

	codec, err := token.NewCodec("test-secret-key")
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}

	store := fsstorage.New(fsstorage.Config{
		Root:    t.TempDir(),
		BaseURL: "http://localhost:8083",
	}, codec)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(codec, store, log)

	router := chi.NewRouter()
	router.Put("/images/upload/{token}", h.Upload())
	router.Get("/images/download/{token}", h.Download())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{codec: codec, store: store, srv: srv}
}

func (e *env) uploadToken(t *testing.T, key, mimeType string, maxSize int64) string {
	t.Helper()

	tok, err := e.codec.Create(token.UploadPayload{
		Operation: token.OpUpload,
		Key:       key,
		RoomID:    strings.SplitN(key, "/", 2)[0],
		UserID:    "u1",
		MimeType:  mimeType,
		MaxSize:   maxSize,
		ExpiresAt: time.Now().Add(5 * time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return tok
}

func (e *env) downloadToken(t *testing.T, key string) string {
	t.Helper()

	tok, err := e.codec.Create(token.DownloadPayload{
		Operation: token.OpDownload,
		Key:       key,
		RoomID:    strings.SplitN(key, "/", 2)[0],
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return tok
}

func (e *env) put(t *testing.T, tok, contentType string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPut, e.srv.URL+"/images/upload/"+tok, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *env) get(t *testing.T, tok string) *http.Response {
	t.Helper()

	resp, err := http.Get(e.srv.URL + "/images/download/" + tok)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	e := newEnv(t)

	const key = "r1/1700000000000_0123456789ab.png"
	content := bytes.Repeat([]byte{0xAB}, 1000)

	resp := e.put(t, e.uploadToken(t, key, "image/png", 1000), "image/png", content)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp = e.get(t, e.downloadToken(t, key))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("downloaded bytes differ from uploaded bytes")
	}

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != strconv.Itoa(len(content)) {
		t.Errorf("Content-Length = %q, want %d", cl, len(content))
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "immutable") || !strings.Contains(cc, "private") {
		t.Errorf("Cache-Control = %q, want private immutable caching", cc)
	}
}

func TestUploadContentTypeMismatch(t *testing.T) {
	e := newEnv(t)

	const key = "r1/1700000000000_0123456789ab.png"
	tok := e.uploadToken(t, key, "image/png", 1000)

	resp := e.put(t, tok, "image/jpeg", []byte("data"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	// The mismatch is rejected before any byte hits the disk.
	if _, err := e.store.ReadFile(context.Background(), key); err == nil {
		t.Error("object was written despite a content type mismatch")
	}
}

func TestUploadSizeEnforcement(t *testing.T) {
	e := newEnv(t)

	const key = "r1/1700000000000_0123456789ab.png"
	tok := e.uploadToken(t, key, "image/png", 1000)

	resp := e.put(t, tok, "image/png", bytes.Repeat([]byte{1}, 1001))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want %d", resp.StatusCode, http.StatusRequestEntityTooLarge)
	}

	resp = e.put(t, tok, "image/png", bytes.Repeat([]byte{1}, 1000))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("exact-size body status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestUploadTokenReplayRechecksConstraints(t *testing.T) {
	e := newEnv(t)

	const key = "r1/1700000000000_0123456789ab.png"
	tok := e.uploadToken(t, key, "image/png", 1000)

	first := bytes.Repeat([]byte{7}, 1000)
	if resp := e.put(t, tok, "image/png", first); resp.StatusCode != http.StatusOK {
		t.Fatalf("first redemption status = %d", resp.StatusCode)
	}

	// Replay within the TTL is allowed, but the declared constraints are
	// enforced again; the oversized retry must not touch the object.
	if resp := e.put(t, tok, "image/png", bytes.Repeat([]byte{9}, 1500)); resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("replayed oversized redemption status = %d, want %d", resp.StatusCode, http.StatusRequestEntityTooLarge)
	}

	got, err := e.store.ReadFile(context.Background(), key)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Error("stored object changed after a rejected replay")
	}
}

func TestRejectInvalidTokensUniformly(t *testing.T) {
	e := newEnv(t)

	const key = "r1/1700000000000_0123456789ab.png"

	expired, err := e.codec.Create(token.UploadPayload{
		Operation: token.OpUpload,
		Key:       key,
		RoomID:    "r1",
		UserID:    "u1",
		MimeType:  "image/png",
		MaxSize:   1000,
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	valid := e.uploadToken(t, key, "image/png", 1000)

	flip := byte('A')
	if valid[len(valid)/2] == 'A' {
		flip = 'B'
	}
	tampered := valid[:len(valid)/2] + string(flip) + valid[len(valid)/2+1:]

	tests := []struct {
		name string
		tok  string
	}{
		{"garbage", "not-a-token"},
		{"tampered", tampered},
		{"expired", expired},
		{"wrong operation", e.downloadToken(t, key)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.put(t, tt.tok, "image/png", []byte("data"))
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}

	t.Run("upload token on download endpoint", func(t *testing.T) {
		resp := e.get(t, valid)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})
}

func TestDownloadMissingObject(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, e.downloadToken(t, "r1/1700000000000_0123456789ab.png"))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestDownloadContentTypeFromExtension(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		key  string
		want string
	}{
		{"r1/1700000000000_0123456789ab.jpg", "image/jpeg"},
		{"r1/1700000000000_0123456789ac.jpeg", "image/jpeg"},
		{"r1/1700000000000_0123456789ad.png", "image/png"},
		{"r1/1700000000000_0123456789ae.gif", "image/gif"},
		{"r1/1700000000000_0123456789af.webp", "image/webp"},
		{"r1/1700000000000_0123456789b0.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := e.store.SaveFile(ctx, tt.key, []byte("data")); err != nil {
				t.Fatalf("SaveFile() error: %v", err)
			}

			resp := e.get(t, e.downloadToken(t, tt.key))
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			if ct := resp.Header.Get("Content-Type"); ct != tt.want {
				t.Errorf("Content-Type = %q, want %q", ct, tt.want)
			}
		})
	}
}
