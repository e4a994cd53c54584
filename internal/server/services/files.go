package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/common"
	"github.com/dmitrijs2005/ingestor/internal/server/objectstore"
)

// FileService exposes per-user object operations on the upload bucket.
// Every key a user touches lives under their "<userID>/" prefix, which is
// both the namespace and the ownership check.
type FileService struct {
	store  objectstore.Store
	bucket string
	now    func() time.Time
}

func NewFileService(store objectstore.Store, uploadBucket string) *FileService {
	return &FileService{store: store, bucket: uploadBucket, now: time.Now}
}

// userPrefix is the key namespace owned by a single user.
func userPrefix(userID string) string { return userID + "/" }

// checkOwnership rejects keys outside the user's prefix, including
// traversal attempts smuggled in through the path.
func checkOwnership(userID, key string) error {
	cleaned := path.Clean(key)
	if cleaned != key || !strings.HasPrefix(key, userPrefix(userID)) {
		return common.ErrorForbidden
	}
	return nil
}

// Upload streams the content into the user's namespace and returns the
// generated key. Filenames are flattened so an upload can never escape the
// prefix.
func (s *FileService) Upload(ctx context.Context, userID, filename string, r io.Reader, size int64, contentType string) (string, error) {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "", common.ErrorValidation
	}
	key := fmt.Sprintf("%s%d-%s", userPrefix(userID), s.now().UnixNano(), base)
	if err := s.store.Put(ctx, s.bucket, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// List returns metadata for every object the user owns.
func (s *FileService) List(ctx context.Context, userID string) ([]objectstore.ObjectInfo, error) {
	infos, err := s.store.List(ctx, s.bucket, userPrefix(userID))
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []objectstore.ObjectInfo{}
	}
	return infos, nil
}

// Download returns the content stream for a key the user owns. Keys outside
// the user's prefix yield common.ErrorForbidden without touching storage.
func (s *FileService) Download(ctx context.Context, userID, key string) (io.ReadCloser, int64, error) {
	if err := checkOwnership(userID, key); err != nil {
		return nil, 0, err
	}
	return s.store.Get(ctx, s.bucket, key)
}

// Delete removes a key the user owns.
func (s *FileService) Delete(ctx context.Context, userID, key string) error {
	if err := checkOwnership(userID, key); err != nil {
		return err
	}
	// surface 404 for keys that are owned but absent
	if _, err := s.store.Head(ctx, s.bucket, key); err != nil {
		return err
	}
	return s.store.Delete(ctx, s.bucket, key)
}
