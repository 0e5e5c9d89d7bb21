// Package handler exposes the authenticated issuer endpoints. Callers
// arrive with a session; the URLs they receive are redeemable without one.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/hodatay-images/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-images/internal/tempuser"
	"github.com/kgellert/hodatay-images/internal/transport/httpapi"
	uploadsdomain "github.com/kgellert/hodatay-images/internal/uploads/domain"
)

type UploadsHandler struct {
	service uploadsdomain.Service
	log     *slog.Logger
}

func New(service uploadsdomain.Service, log *slog.Logger) *UploadsHandler {
	return &UploadsHandler{
		service: service,
		log:     log,
	}
}

func (h *UploadsHandler) IssueUploadURL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.IssueUploadURL"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req uploadsdomain.UploadURLRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		userID := tempuser.UserID(r)

		resp, err := h.service.IssueUploadURL(r.Context(), userID, req)
		if err != nil {
			log.Warn("failed to issue upload url", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func (h *UploadsHandler) IssueDownloadURL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.IssueDownloadURL"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req uploadsdomain.DownloadURLRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		userID := tempuser.UserID(r)

		resp, err := h.service.IssueDownloadURL(r.Context(), userID, req.Key)
		if err != nil {
			log.Warn("failed to issue download url", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func (h *UploadsHandler) ConfirmUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.ConfirmUpload"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req uploadsdomain.ConfirmUploadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		userID := tempuser.UserID(r)

		if err := h.service.ConfirmUpload(r.Context(), userID, req.Key); err != nil {
			log.Warn("failed to confirm upload", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.NoContent(w, r)
	}
}

func (h *UploadsHandler) DeleteImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.DeleteImage"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req uploadsdomain.DeleteImageRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		userID := tempuser.UserID(r)

		if err := h.service.DeleteImage(r.Context(), userID, req.Key); err != nil {
			log.Warn("failed to delete image", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.NoContent(w, r)
	}
}
