package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"

	"visionary-design-server/modules/common/config"
	"visionary-design-server/modules/common/logger"
	"visionary-design-server/modules/common/utils"
)

type Client struct {
	supabase *supabase.Client
	cfg      *config.Config
}

// NewClient - Supabase Storage 클라이언트 생성
func NewClient(cfg *config.Config) (*Client, error) {
	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	logger.WithField("bucket", cfg.SupabaseStorageBucket).Info("✅ Supabase storage client initialized")
	return &Client{
		supabase: supabaseClient,
		cfg:      cfg,
	}, nil
}

// UploadGeneratedImage - 생성 이미지를 WebP로 변환 후 업로드, 공개 URL 반환
func (c *Client) UploadGeneratedImage(ctx context.Context, imageData []byte, sessionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	webpData, err := utils.ConvertToWebP(imageData, c.cfg.WebPQuality)
	if err != nil {
		return "", fmt.Errorf("failed to convert image to WebP: %w", err)
	}

	fileName := fmt.Sprintf("design_%d_%s.webp", time.Now().UnixMilli(), uuid.NewString()[:8])
	filePath := fmt.Sprintf("generated-designs/session-%s/%s", sessionID, fileName)

	contentType := "image/webp"
	upsert := false
	_, err = c.supabase.Storage.UploadFile(c.cfg.SupabaseStorageBucket, filePath, bytes.NewReader(webpData), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	publicURL := c.cfg.PublicStorageURL(filePath)
	logger.WithFields(map[string]interface{}{
		"path":  filePath,
		"bytes": len(webpData),
	}).Info("✅ WebP image uploaded successfully")
	return publicURL, nil
}
