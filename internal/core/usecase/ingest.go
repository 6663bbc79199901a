package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/image-insight/internal/core/domain"
	"github.com/kirillkom/image-insight/internal/core/ports"
)

// IngestImageUseCase stores an uploaded image object and dispatches an
// analyze request for it.
type IngestImageUseCase struct {
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	bucket  string
	now     func() time.Time
}

func NewIngestImageUseCase(storage ports.ObjectStorage, queue ports.MessageQueue, bucket string) *IngestImageUseCase {
	return &IngestImageUseCase{
		storage: storage,
		queue:   queue,
		bucket:  bucket,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *IngestImageUseCase) Upload(
	ctx context.Context,
	filename, contentType, userID string,
	size int64,
	body io.Reader,
) (*domain.ImageDescriptor, error) {
	if strings.TrimSpace(userID) == "" {
		userID = "unknown"
	}
	now := uc.now()
	key := fmt.Sprintf("uploads/%s/%s_%s", userID, uuid.NewString(), sanitizeFilename(filename))

	if err := uc.storage.Save(ctx, key, contentType, size, body); err != nil {
		return nil, fmt.Errorf("save image object: %w", err)
	}

	descriptor := domain.ImageDescriptor{
		ImageID:    generateImageID(uc.bucket, key, now),
		Bucket:     uc.bucket,
		Key:        key,
		Size:       size,
		Format:     strings.ToLower(filepath.Ext(key)),
		UserID:     userID,
		UploadTime: now,
	}
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	if err := uc.queue.PublishAnalyzeRequested(ctx, descriptor); err != nil {
		return nil, fmt.Errorf("publish analyze request: %w", err)
	}

	return &descriptor, nil
}

// generateImageID derives a short stable id from the object reference and
// the ingest time.
func generateImageID(bucket, key string, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%s", bucket, key, now.Format(time.RFC3339Nano))))
	return hex.EncodeToString(sum[:])[:16]
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "image.bin"
	}
	return base
}
