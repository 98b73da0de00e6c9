package design

import (
	"context"

	"visionary-design-server/modules/common/storage"
	"visionary-design-server/modules/common/utils"
)

// Publisher turns generated image bytes into a URL a client can render.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, data []byte, mimeType string) (string, error)
}

// DataURLPublisher inlines the image as a data URL. Used when no object
// storage is configured.
type DataURLPublisher struct{}

func (DataURLPublisher) Publish(_ context.Context, _ string, data []byte, mimeType string) (string, error) {
	return utils.BuildDataURL(mimeType, utils.ConvertImageToBase64(data)), nil
}

// StoragePublisher - Supabase Storage에 WebP로 업로드 후 public URL 반환
type StoragePublisher struct {
	client *storage.Client
}

func NewStoragePublisher(client *storage.Client) *StoragePublisher {
	return &StoragePublisher{client: client}
}

func (p *StoragePublisher) Publish(ctx context.Context, sessionID string, data []byte, _ string) (string, error) {
	return p.client.UploadGeneratedImage(ctx, data, sessionID)
}
