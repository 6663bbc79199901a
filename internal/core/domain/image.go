package domain

import (
	"errors"
	"strings"
	"time"
)

// ImageDescriptor identifies an uploaded image object in durable storage.
// It is produced by the ingest path and consumed by reference only.
type ImageDescriptor struct {
	ImageID    string    `json:"image_id"`
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	Format     string    `json:"format"`
	UserID     string    `json:"user_id"`
	UploadTime time.Time `json:"upload_time"`
}

func (d ImageDescriptor) Validate() error {
	if strings.TrimSpace(d.Bucket) == "" {
		return WrapError(ErrInvalidInput, "validate descriptor", errors.New("bucket is required"))
	}
	if strings.TrimSpace(d.Key) == "" {
		return WrapError(ErrInvalidInput, "validate descriptor", errors.New("key is required"))
	}
	if strings.TrimSpace(d.ImageID) == "" {
		return WrapError(ErrInvalidInput, "validate descriptor", errors.New("image id is required"))
	}
	return nil
}
