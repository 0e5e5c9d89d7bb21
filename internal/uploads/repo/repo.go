// Package uploadsrepo persists attachment metadata rows in postgres.
// Object bytes never pass through here; the storage provider owns those.
package uploadsrepo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/kgellert/hodatay-images/internal/storage"
	uploadsdomain "github.com/kgellert/hodatay-images/internal/uploads/domain"
)

//go:embed schema.sql
var schema string

type Repo struct {
	db *sqlx.DB
}

func New(ctx context.Context, dsn string) (*Repo, error) {
	const op = "uploads.repo.New"

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: apply schema: %w", op, err)
	}

	return &Repo{db: db}, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) CreateUpload(ctx context.Context, key, roomID, userID string, filename *string, contentType string, declaredSize int64) error {
	const op = "uploads.repo.CreateUpload"

	_, err := r.db.ExecContext(
		ctx,
		`
		INSERT INTO attachments (key, room_id, uploader_id, original_filename, mime_type, declared_size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
		key, roomID, userID, filename, contentType, declaredSize, uploadsdomain.StatusPresigned,
	)
	if err != nil {
		return fmt.Errorf("%s: insert: %w", op, err)
	}

	return nil
}

func (r *Repo) ConfirmUpload(ctx context.Context, key string, size int64, width, height *int) error {
	const op = "uploads.repo.ConfirmUpload"

	_, err := r.db.ExecContext(
		ctx,
		`
		UPDATE attachments
		SET status = $2, size = $3, width = $4, height = $5
		WHERE key = $1
		`,
		key, uploadsdomain.StatusReady, size, width, height,
	)
	if err != nil {
		return fmt.Errorf("%s: update: %w", op, err)
	}

	return nil
}

func (r *Repo) DeleteUpload(ctx context.Context, key string) error {
	const op = "uploads.repo.DeleteUpload"

	_, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("%s: delete: %w", op, err)
	}

	return nil
}

func (r *Repo) GetByKey(ctx context.Context, key string) (uploadsdomain.Attachment, error) {
	const op = "uploads.repo.GetByKey"

	var row uploadsdomain.AttachmentRow
	err := r.db.GetContext(
		ctx,
		&row,
		`
		SELECT key, room_id, uploader_id, original_filename, mime_type, declared_size, size, width, height, status
		FROM attachments
		WHERE key = $1
		`,
		key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return uploadsdomain.Attachment{}, fmt.Errorf("%s: %w", op, storage.ErrObjectNotFound)
	}
	if err != nil {
		return uploadsdomain.Attachment{}, fmt.Errorf("%s: select: %w", op, err)
	}

	return uploadsdomain.NewAttachmentFromRow(row), nil
}
