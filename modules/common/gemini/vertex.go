package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"visionary-design-server/modules/common/config"
	"visionary-design-server/modules/common/logger"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewVertexAIClient - Vertex AI 백엔드 클라이언트 생성
// 1) VERTEXAI_CREDENTIALS_JSON 2) VERTEXAI_CREDENTIALS_PATH 3) ADC 순서
func NewVertexAIClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	opts := &credentials.DetectOptions{
		Scopes: []string{cloudPlatformScope},
	}

	switch {
	case cfg.VertexAICredentialsJSON != "":
		logger.Info("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		opts.CredentialsJSON = []byte(cfg.VertexAICredentialsJSON)
	case cfg.VertexAICredentialsPath != "":
		logger.WithField("path", cfg.VertexAICredentialsPath).Info("✅ [VertexAI] Using credentials from file")
		credsData, err := os.ReadFile(cfg.VertexAICredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		var creds map[string]interface{}
		if err := json.Unmarshal(credsData, &creds); err != nil {
			return nil, fmt.Errorf("invalid JSON credentials: %w", err)
		}
		opts.CredentialsJSON = credsData
	default:
		logger.Warn("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
	}

	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect Vertex AI credentials: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     cfg.VertexAIProject,
		Location:    cfg.VertexAILocation,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"project":  cfg.VertexAIProject,
		"location": cfg.VertexAILocation,
	}).Info("✅ [VertexAI] Client initialized")
	return client, nil
}
