// Package uploadsdomain defines the issuer-side contracts for image
// attachments: request/response shapes, the metadata repo, and the room
// authorization seam.
package uploadsdomain

import (
	"context"
	"database/sql"
)

type UploadStatus string

const (
	StatusPresigned UploadStatus = "presigned"
	StatusReady     UploadStatus = "ready"
)

type Attachment struct {
	Key          string  `json:"key" db:"key"`
	RoomID       string  `json:"room_id" db:"room_id"`
	UploaderID   string  `json:"uploader_id" db:"uploader_id"`
	Filename     *string `json:"filename" db:"original_filename"`
	ContentType  string  `json:"content_type" db:"mime_type"`
	DeclaredSize int64   `json:"declared_size" db:"declared_size"`
	Size         int64   `json:"size" db:"size"`
	Width        *int    `json:"width" db:"width"`
	Height       *int    `json:"height" db:"height"`
	Status       string  `json:"status" db:"status"`
}

type AttachmentRow struct {
	Key          sql.NullString `db:"key"`
	RoomID       sql.NullString `db:"room_id"`
	UploaderID   sql.NullString `db:"uploader_id"`
	Filename     sql.NullString `db:"original_filename"`
	ContentType  sql.NullString `db:"mime_type"`
	DeclaredSize sql.NullInt64  `db:"declared_size"`
	Size         sql.NullInt64  `db:"size"`
	Width        sql.NullInt32  `db:"width"`
	Height       sql.NullInt32  `db:"height"`
	Status       sql.NullString `db:"status"`
}

func NewAttachmentFromRow(row AttachmentRow) Attachment {
	var width, height *int
	if row.Width.Valid {
		w := int(row.Width.Int32)
		width = &w
	}
	if row.Height.Valid {
		h := int(row.Height.Int32)
		height = &h
	}

	var filename *string
	if row.Filename.Valid {
		f := row.Filename.String
		filename = &f
	}

	return Attachment{
		Key:          row.Key.String,
		RoomID:       row.RoomID.String,
		UploaderID:   row.UploaderID.String,
		Filename:     filename,
		ContentType:  row.ContentType.String,
		DeclaredSize: row.DeclaredSize.Int64,
		Size:         row.Size.Int64,
		Width:        width,
		Height:       height,
		Status:       row.Status.String,
	}
}

type Repo interface {
	CreateUpload(ctx context.Context, key, roomID, userID string, filename *string, contentType string, declaredSize int64) error
	ConfirmUpload(ctx context.Context, key string, size int64, width, height *int) error
	DeleteUpload(ctx context.Context, key string) error
	GetByKey(ctx context.Context, key string) (Attachment, error)
}

// RoomAuthorizer answers whether a user may touch a room's attachments.
// Membership truth lives in the chat service; this is the seam it plugs
// into.
type RoomAuthorizer interface {
	CanAccessRoom(ctx context.Context, userID, roomID string) (bool, error)
}

type Service interface {
	IssueUploadURL(ctx context.Context, userID string, req UploadURLRequest) (UploadURLResponse, error)
	IssueDownloadURL(ctx context.Context, userID, key string) (DownloadURLResponse, error)
	ConfirmUpload(ctx context.Context, userID, key string) error
	DeleteImage(ctx context.Context, userID, key string) error
}

type UploadURLRequest struct {
	RoomID      string  `json:"room_id"`
	Filename    *string `json:"filename"`
	ContentType string  `json:"content_type"`
	Size        int64   `json:"size"`
}

type UploadURLResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
	ExpiresAt int64  `json:"expires_at"`
}

type DownloadURLRequest struct {
	Key string `json:"key"`
}

type DownloadURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

type ConfirmUploadRequest struct {
	Key string `json:"key"`
}

type DeleteImageRequest struct {
	Key string `json:"key"`
}
