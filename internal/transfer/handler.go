// Package transfer implements the token-gated transfer endpoints. They are
// reachable without a session on purpose: the capability token in the path
// is the whole credential, and every constraint it declares is re-checked
// here at redemption time.
package transfer

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	response "github.com/kgellert/hodatay-images/internal/lib"
	"github.com/kgellert/hodatay-images/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-images/internal/storage"
	"github.com/kgellert/hodatay-images/internal/token"
)

type Handler struct {
	codec *token.Codec
	blobs storage.BlobStore
	log   *slog.Logger
}

func New(codec *token.Codec, blobs storage.BlobStore, log *slog.Logger) *Handler {
	return &Handler{
		codec: codec,
		blobs: blobs,
		log:   log,
	}
}

type uploadResponse struct {
	Key string `json:"key"`
}

// Upload redeems an upload token: PUT /images/upload/{token}. Tokens are
// not single-use; a replay within the TTL re-runs the same checks and
// overwrites the same key.
func (h *Handler) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "transfer.Upload"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		payload, ok := token.Verify[token.UploadPayload](h.codec, chi.URLParam(r, "token"))
		if !ok || payload.Operation != token.OpUpload {
			writeInvalidToken(w, r)
			return
		}

		if r.Header.Get("Content-Type") != payload.MimeType {
			response.WriteError(w, r, http.StatusBadRequest, "content_type_mismatch", "content type mismatch")
			return
		}

		// One byte past MaxSize is enough to prove the body is over the
		// declared limit without buffering an unbounded request.
		body, err := io.ReadAll(io.LimitReader(r.Body, payload.MaxSize+1))
		if err != nil {
			log.Error("failed to read request body", sl.Err(err))
			response.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if int64(len(body)) > payload.MaxSize {
			response.WriteError(w, r, http.StatusRequestEntityTooLarge, "file_too_large", "file size exceeds declared size")
			return
		}

		if err := h.blobs.SaveFile(r.Context(), payload.Key, body); err != nil {
			log.Error("failed to store object", slog.String("key", payload.Key), sl.Err(err))
			response.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		log.Info("object stored",
			slog.String("key", payload.Key),
			slog.Int("size", len(body)),
		)

		render.JSON(w, r, uploadResponse{Key: payload.Key})
	}
}

// Download redeems a download token: GET /images/download/{token}.
func (h *Handler) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "transfer.Download"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		payload, ok := token.Verify[token.DownloadPayload](h.codec, chi.URLParam(r, "token"))
		if !ok || payload.Operation != token.OpDownload {
			writeInvalidToken(w, r)
			return
		}

		data, err := h.blobs.ReadFile(r.Context(), payload.Key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.WriteError(w, r, http.StatusNotFound, "not_found", "object not found")
			return
		}
		if err != nil {
			log.Error("failed to read object", slog.String("key", payload.Key), sl.Err(err))
			response.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		// Objects are immutable once written, so clients may cache hard.
		w.Header().Set("Content-Type", storage.MimeForKey(payload.Key))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write(data); err != nil {
			log.Warn("failed to write response", sl.Err(err))
		}
	}
}

// writeInvalidToken is the single response for every token failure mode.
// Malformed, tampered, expired and wrong-operation tokens are
// indistinguishable from outside so the endpoint cannot be probed as a
// verification oracle.
func writeInvalidToken(w http.ResponseWriter, r *http.Request) {
	response.WriteError(w, r, http.StatusBadRequest, "invalid_token", "invalid or expired token")
}
