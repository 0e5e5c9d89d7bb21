package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()

	c, err := NewCodec("test-secret-key")
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	return c
}

func futureUploadPayload() UploadPayload {
	return UploadPayload{
		Operation: OpUpload,
		Key:       "r1/1700000000000_0123456789ab.png",
		RoomID:    "r1",
		UserID:    "u1",
		MimeType:  "image/png",
		MaxSize:   1000,
		ExpiresAt: time.Now().Add(5 * time.Minute).Unix(),
	}
}

func TestNewCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Fatal("NewCodec(\"\") should fail")
	}
}

func TestRoundTripUpload(t *testing.T) {
	c := testCodec(t)
	want := futureUploadPayload()

	tok, err := c.Create(want)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, ok := Verify[UploadPayload](c, tok)
	if !ok {
		t.Fatal("Verify() rejected a valid token")
	}
	if got != want {
		t.Errorf("Verify() = %+v, want %+v", got, want)
	}
}

func TestRoundTripDownload(t *testing.T) {
	c := testCodec(t)
	want := DownloadPayload{
		Operation: OpDownload,
		Key:       "r1/1700000000000_0123456789ab.jpg",
		RoomID:    "r1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}

	tok, err := c.Create(want)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, ok := Verify[DownloadPayload](c, tok)
	if !ok {
		t.Fatal("Verify() rejected a valid token")
	}
	if got != want {
		t.Errorf("Verify() = %+v, want %+v", got, want)
	}
}

func TestCreateIsDeterministic(t *testing.T) {
	c := testCodec(t)
	p := futureUploadPayload()

	a, err := c.Create(p)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	b, err := c.Create(p)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if a != b {
		t.Errorf("Create() not deterministic: %q vs %q", a, b)
	}
}

func TestRejectWrongSecret(t *testing.T) {
	c := testCodec(t)
	other, err := NewCodec("a-different-secret")
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}

	tok, err := c.Create(futureUploadPayload())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, ok := Verify[UploadPayload](other, tok); ok {
		t.Error("Verify() accepted a token signed with another secret")
	}
}

func TestRejectTamperedToken(t *testing.T) {
	c := testCodec(t)

	tok, err := c.Create(futureUploadPayload())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	dot := strings.IndexByte(tok, '.')

	// Flip a character in the middle of each segment. The final base64url
	// character of a segment carries unused padding bits that the decoder
	// ignores, so tampering there would not change the decoded bytes.
	for _, pos := range []int{dot / 2, dot + 1 + (len(tok)-dot-1)/2} {
		b := tok[pos]
		if b == 'A' {
			b = 'B'
		} else {
			b = 'A'
		}
		tampered := tok[:pos] + string(b) + tok[pos+1:]

		if _, ok := Verify[UploadPayload](c, tampered); ok {
			t.Errorf("Verify() accepted token tampered at position %d", pos)
		}
	}
}

func TestRejectExpiredToken(t *testing.T) {
	c := testCodec(t)

	p := futureUploadPayload()
	p.ExpiresAt = time.Now().Add(-1 * time.Minute).Unix()

	tok, err := c.Create(p)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, ok := Verify[UploadPayload](c, tok); ok {
		t.Error("Verify() accepted an expired token")
	}
}

func TestExpiryBoundary(t *testing.T) {
	c := testCodec(t)
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	p := futureUploadPayload()

	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"one second left", 1_700_000_001, true},
		{"expires exactly now", 1_700_000_000, true},
		{"one second past", 1_699_999_999, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.ExpiresAt = tt.expiresAt

			tok, err := c.Create(p)
			if err != nil {
				t.Fatalf("Create() error: %v", err)
			}

			if _, ok := Verify[UploadPayload](c, tok); ok != tt.want {
				t.Errorf("Verify() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestRejectMalformedTokens(t *testing.T) {
	c := testCodec(t)

	valid, err := c.Create(futureUploadPayload())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	nonJSON := base64.RawURLEncoding.EncodeToString([]byte("not json at all"))
	nonUTF8 := base64.RawURLEncoding.EncodeToString([]byte{0xff, 0xfe, 0x00, 0x80})

	tests := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"no separator", "abcdef"},
		{"only separator", "."},
		{"three segments", valid + ".extra"},
		{"missing signature", strings.Split(valid, ".")[0] + "."},
		{"missing body", "." + strings.Split(valid, ".")[1]},
		{"body not base64 but signed", "!!!." + signFor(c, "!!!")},
		{"body not json", nonJSON + "." + signFor(c, nonJSON)},
		{"body not utf8", nonUTF8 + "." + signFor(c, nonUTF8)},
		{"payload is a bare number", signedBody(c, "42")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Verify[UploadPayload](c, tt.tok); ok {
				t.Errorf("Verify(%q) accepted a malformed token", tt.tok)
			}
		})
	}
}

func signFor(c *Codec, body string) string {
	return c.sign(body)
}

func signedBody(c *Codec, raw string) string {
	body := base64.RawURLEncoding.EncodeToString([]byte(raw))
	return body + "." + c.sign(body)
}
