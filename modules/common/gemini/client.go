package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"visionary-design-server/modules/common/config"
	"visionary-design-server/modules/common/logger"
)

// ContentGenerator - 모델 호출 추상화 (테스트에서 교체)
type ContentGenerator interface {
	GenerateContent(ctx context.Context, apiKey, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Pool keeps the server key's genai client. An empty key resolves to the
// server key, or to the Vertex AI client when no server key is configured.
// User keys get a fresh client per call and are never retained.
type Pool struct {
	mu         sync.Mutex
	clients    map[string]*genai.Client
	defaultKey string
	vertex     *genai.Client
}

// NewPool - 기본 클라이언트 초기화
func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	p := &Pool{
		clients:    make(map[string]*genai.Client),
		defaultKey: cfg.GeminiAPIKey,
	}

	if cfg.UseVertexAI() {
		vertexClient, err := NewVertexAIClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.vertex = vertexClient
		return p, nil
	}

	if _, err := p.clientFor(ctx, ""); err != nil {
		return nil, err
	}
	logger.Info("✅ [Gemini] Client pool initialized")
	return p, nil
}

func (p *Pool) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = p.defaultKey
	}
	if key == "" {
		if p.vertex != nil {
			return p.vertex, nil
		}
		return nil, fmt.Errorf("no API key available")
	}

	if key != p.defaultKey {
		return newAPIKeyClient(ctx, key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[key]; ok {
		return client, nil
	}

	client, err := newAPIKeyClient(ctx, key)
	if err != nil {
		return nil, err
	}
	p.clients[key] = client
	return client, nil
}

func newAPIKeyClient(ctx context.Context, key string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Genai client: %w", err)
	}
	return client, nil
}

// GenerateContent - 단일 요청 (재시도 없음)
func (p *Pool) GenerateContent(ctx context.Context, apiKey, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	client, err := p.clientFor(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return client.Models.GenerateContent(ctx, model, contents, config)
}

// Output - 응답에서 추출한 이미지와 설명 텍스트
type Output struct {
	Data     []byte
	MimeType string
	Text     string
}

// ErrNoImage is returned when the model answered without inline image data.
var ErrNoImage = errors.New("no image data in response")

// ExtractOutput - 후보들에서 첫 이미지와 텍스트 파트 수집
func ExtractOutput(result *genai.GenerateContentResponse) (*Output, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	out := &Output{}
	var text strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 && out.Data == nil {
				out.Data = part.InlineData.Data
				out.MimeType = part.InlineData.MIMEType
				continue
			}
			if part.Text != "" && !part.Thought {
				if text.Len() > 0 {
					text.WriteString(" ")
				}
				text.WriteString(strings.TrimSpace(part.Text))
			}
		}
	}

	if out.Data == nil {
		return nil, ErrNoImage
	}
	if out.MimeType == "" {
		out.MimeType = "image/png"
	}
	out.Text = strings.TrimSpace(text.String())
	return out, nil
}

// IsRateLimited - 429 Rate Limit 에러인지 확인
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "quota")
}
