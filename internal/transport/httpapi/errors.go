package httpapi

import (
	"errors"
	"net/http"

	"github.com/kgellert/hodatay-images/internal/storage"
	"github.com/kgellert/hodatay-images/internal/uploads"
)

// MapError translates service errors into the HTTP surface. Messages come
// from the matched sentinel, not from err.Error(), so wrapped operation
// prefixes never reach the caller. Anything not listed is an unexpected
// failure and stays opaque.
func MapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, uploads.ErrRoomIDRequired):
		return http.StatusBadRequest, "room_id_required", uploads.ErrRoomIDRequired.Error()

	case errors.Is(err, uploads.ErrContentTypeRequired):
		return http.StatusBadRequest, "content_type_required", uploads.ErrContentTypeRequired.Error()

	case errors.Is(err, uploads.ErrRoomForbidden):
		return http.StatusForbidden, "room_forbidden", uploads.ErrRoomForbidden.Error()

	case errors.Is(err, storage.ErrInvalidContentType):
		return http.StatusBadRequest, "invalid_content_type", storage.ErrInvalidContentType.Error()

	case errors.Is(err, storage.ErrFileTooLarge):
		return http.StatusBadRequest, "file_too_large", storage.ErrFileTooLarge.Error()

	case errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest, "invalid_key", storage.ErrInvalidKey.Error()

	case errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound, "not_found", storage.ErrObjectNotFound.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
