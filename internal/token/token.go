// Package token implements the signed capability tokens that gate the
// image transfer endpoints. A token is the entire authorization artifact:
// base64url(JSON payload) + "." + base64url(HMAC-SHA256 over the encoded
// payload). Nothing about an issued token is recorded server-side.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Operation string

const (
	OpUpload   Operation = "upload"
	OpDownload Operation = "download"
)

// UploadPayload grants a single PUT of at most MaxSize bytes of MimeType
// content under Key, until ExpiresAt (unix seconds).
type UploadPayload struct {
	Operation Operation `json:"operation"`
	Key       string    `json:"key"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	MimeType  string    `json:"mimeType"`
	MaxSize   int64     `json:"maxSize"`
	ExpiresAt int64     `json:"expiresAt"`
}

// DownloadPayload grants GETs of the object under Key until ExpiresAt.
type DownloadPayload struct {
	Operation Operation `json:"operation"`
	Key       string    `json:"key"`
	RoomID    string    `json:"roomId"`
	ExpiresAt int64     `json:"expiresAt"`
}

var ErrEmptySecret = errors.New("signing secret is not set")

type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec refuses to construct a codec without a secret; the host is
// expected to call this at startup so a misconfigured process never serves.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// Create signs a payload. ExpiresAt must already be set by the caller;
// no validation happens here. The result is deterministic for a given
// payload and secret.
func (c *Codec) Create(payload any) (string, error) {
	const op = "token.Create"

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	body := base64.RawURLEncoding.EncodeToString(raw)

	return body + "." + c.sign(body), nil
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a token and decodes its payload into T. Every failure mode
// (malformed, tampered, expired, unparsable) reports the same false result,
// so callers on the unauthenticated side cannot be used as a verification
// oracle. The signature is checked before the payload is parsed.
//
// hmac.Equal rejects length mismatches before its constant-time loop; for a
// fixed algorithm the signature length is constant, so the short-circuit
// leaks nothing.
func Verify[T any](c *Codec, tok string) (T, bool) {
	var zero T

	body, sig, found := strings.Cut(tok, ".")
	if !found || strings.Contains(sig, ".") {
		return zero, false
	}

	if !hmac.Equal([]byte(sig), []byte(c.sign(body))) {
		return zero, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return zero, false
	}

	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return zero, false
	}

	var exp struct {
		ExpiresAt int64 `json:"expiresAt"`
	}
	if err := json.Unmarshal(raw, &exp); err != nil || exp.ExpiresAt <= 0 {
		return zero, false
	}
	if c.now().Unix() > exp.ExpiresAt {
		return zero, false
	}

	return payload, true
}
