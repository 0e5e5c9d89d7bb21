package uploadsservice

import (
	"bytes"
	"context"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/kgellert/hodatay-images/internal/storage"
	"github.com/kgellert/hodatay-images/internal/uploads"
	uploadsdomain "github.com/kgellert/hodatay-images/internal/uploads/domain"
)

// New wires the issuer service. blobs may be nil when the backend keeps
// its bytes elsewhere; dimension probing is skipped in that case.
func New(provider storage.Provider, blobs storage.BlobStore, repo uploadsdomain.Repo, rooms uploadsdomain.RoomAuthorizer) uploadsdomain.Service {
	return &service{provider: provider, blobs: blobs, repo: repo, rooms: rooms}
}

type service struct {
	provider storage.Provider
	blobs    storage.BlobStore
	repo     uploadsdomain.Repo
	rooms    uploadsdomain.RoomAuthorizer
}

func (s *service) IssueUploadURL(ctx context.Context, userID string, req uploadsdomain.UploadURLRequest) (uploadsdomain.UploadURLResponse, error) {
	const op = "uploads.service.IssueUploadURL"

	if req.RoomID == "" {
		return uploadsdomain.UploadURLResponse{}, uploads.ErrRoomIDRequired
	}
	if req.ContentType == "" {
		return uploadsdomain.UploadURLResponse{}, uploads.ErrContentTypeRequired
	}

	if err := s.authorize(ctx, userID, req.RoomID); err != nil {
		return uploadsdomain.UploadURLResponse{}, err
	}

	var filename string
	if req.Filename != nil {
		filename = *req.Filename
	}

	grant, err := s.provider.GenerateUploadURL(ctx, req.RoomID, userID, filename, req.ContentType, req.Size)
	if err != nil {
		return uploadsdomain.UploadURLResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.CreateUpload(ctx, grant.Key, req.RoomID, userID, req.Filename, req.ContentType, req.Size); err != nil {
		return uploadsdomain.UploadURLResponse{}, fmt.Errorf("%s: create upload row: %w", op, err)
	}

	return uploadsdomain.UploadURLResponse{
		Key:       grant.Key,
		UploadURL: grant.URL,
		ExpiresAt: grant.ExpiresAt.Unix(),
	}, nil
}

func (s *service) IssueDownloadURL(ctx context.Context, userID, key string) (uploadsdomain.DownloadURLResponse, error) {
	const op = "uploads.service.IssueDownloadURL"

	roomID, err := storage.RoomIDFromKey(key)
	if err != nil {
		return uploadsdomain.DownloadURLResponse{}, err
	}

	if err := s.authorize(ctx, userID, roomID); err != nil {
		return uploadsdomain.DownloadURLResponse{}, err
	}

	grant, err := s.provider.GenerateDownloadURL(ctx, key)
	if err != nil {
		return uploadsdomain.DownloadURLResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return uploadsdomain.DownloadURLResponse{
		URL:       grant.URL,
		ExpiresAt: grant.ExpiresAt.Unix(),
	}, nil
}

// ConfirmUpload marks a stored object's metadata row ready. When the
// backend exposes its bytes, the object is probed for image dimensions;
// undecodable content is confirmed without them.
func (s *service) ConfirmUpload(ctx context.Context, userID, key string) error {
	const op = "uploads.service.ConfirmUpload"

	roomID, err := storage.RoomIDFromKey(key)
	if err != nil {
		return err
	}

	if err := s.authorize(ctx, userID, roomID); err != nil {
		return err
	}

	exists, err := s.provider.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return storage.ErrObjectNotFound
	}

	var size int64
	var width, height *int

	if s.blobs != nil {
		data, err := s.blobs.ReadFile(ctx, key)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		size = int64(len(data))

		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = &cfg.Width, &cfg.Height
		}
	}

	if err := s.repo.ConfirmUpload(ctx, key, size, width, height); err != nil {
		return fmt.Errorf("%s: confirm upload row: %w", op, err)
	}

	return nil
}

func (s *service) DeleteImage(ctx context.Context, userID, key string) error {
	const op = "uploads.service.DeleteImage"

	roomID, err := storage.RoomIDFromKey(key)
	if err != nil {
		return err
	}

	if err := s.authorize(ctx, userID, roomID); err != nil {
		return err
	}

	if err := s.provider.DeleteImage(ctx, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.DeleteUpload(ctx, key); err != nil {
		return fmt.Errorf("%s: delete upload row: %w", op, err)
	}

	return nil
}

func (s *service) authorize(ctx context.Context, userID, roomID string) error {
	const op = "uploads.service.authorize"

	ok, err := s.rooms.CanAccessRoom(ctx, userID, roomID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return uploads.ErrRoomForbidden
	}
	return nil
}
