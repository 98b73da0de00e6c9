package design

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/model"
)

type fakeGenerator struct {
	apiKey   string
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, apiKey, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.apiKey, f.model, f.contents, f.config = apiKey, model, contents, config
	return f.resp, f.err
}

func imageResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: []byte{1, 2, 3}, MIMEType: "image/png"}},
				{Text: text},
			}},
		}},
	}
}

type recordingPublisher struct {
	sessionID string
	data      []byte
}

func (p *recordingPublisher) Publish(_ context.Context, sessionID string, data []byte, _ string) (string, error) {
	p.sessionID, p.data = sessionID, data
	return "https://cdn.example.com/design.webp", nil
}

func TestGeminiServiceStandardTier(t *testing.T) {
	fake := &fakeGenerator{resp: imageResponse("clean mark")}
	svc := NewGeminiService(fake, nil, "flash-image", "pro-image")

	res, err := svc.Generate(context.Background(), ServiceRequest{
		SessionID:   "s1",
		Images:      []model.UploadedImage{{ID: "a", Base64: "AQID", MimeType: "image/png"}, {ID: "b", Base64: "AQID", MimeType: "image/jpeg"}},
		Instruction: "minimalist",
		DesignType:  model.DesignTypeLogo,
	})
	require.NoError(t, err)

	require.Equal(t, "flash-image", fake.model)
	require.Empty(t, fake.apiKey)
	require.Equal(t, "1:1", fake.config.ImageConfig.AspectRatio)
	require.Equal(t, []string{"TEXT", "IMAGE"}, fake.config.ResponseModalities)

	parts := fake.contents[0].Parts
	require.Len(t, parts, 3)
	require.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	require.Contains(t, parts[2].Text, "minimalist")
	require.Contains(t, parts[2].Text, string(model.DesignTypeLogo))

	require.Equal(t, "clean mark", res.Prompt)
	require.Equal(t, "data:image/png;base64,AQID", res.ImageURL)
	require.NotEmpty(t, res.ID)
	require.NotZero(t, res.Timestamp)
}

func TestGeminiServiceHighQualityUsesSessionKey(t *testing.T) {
	fake := &fakeGenerator{resp: imageResponse("")}
	pub := &recordingPublisher{}
	svc := NewGeminiService(fake, pub, "flash-image", "pro-image")

	res, err := svc.Generate(context.Background(), ServiceRequest{
		SessionID:   "s9",
		Images:      []model.UploadedImage{{ID: "a", Base64: "AQID", MimeType: "image/png"}},
		DesignType:  model.DesignTypeWebUI,
		HighQuality: true,
		APIKey:      "user-key",
	})
	require.NoError(t, err)
	require.Equal(t, "pro-image", fake.model)
	require.Equal(t, "user-key", fake.apiKey)
	require.Equal(t, "16:9", fake.config.ImageConfig.AspectRatio)
	require.Equal(t, "s9", pub.sessionID)
	require.Equal(t, []byte{1, 2, 3}, pub.data)
	require.Equal(t, "https://cdn.example.com/design.webp", res.ImageURL)
	require.Empty(t, res.Prompt)
}

func TestGeminiServiceErrors(t *testing.T) {
	req := ServiceRequest{Images: []model.UploadedImage{{ID: "a", Base64: "AQID", MimeType: "image/png"}}}

	t.Run("rate limited", func(t *testing.T) {
		svc := NewGeminiService(&fakeGenerator{err: errors.New("Error 429, RESOURCE_EXHAUSTED")}, nil, "m", "p")
		_, err := svc.Generate(context.Background(), req)
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeGenerationFailure))
		require.Equal(t, http.StatusTooManyRequests, apperrors.GetStatusCode(err))
	})

	t.Run("credential marker is preserved", func(t *testing.T) {
		svc := NewGeminiService(&fakeGenerator{err: errors.New("Requested entity was not found.")}, nil, "m", "p")
		_, err := svc.Generate(context.Background(), req)
		require.True(t, strings.Contains(err.Error(), CredentialErrorMarker))
		require.True(t, apperrors.IsType(classify(err), apperrors.ErrorTypeCredentialConfiguration))
	})

	t.Run("no image in response", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "I cannot do that"}}},
		}}}
		svc := NewGeminiService(&fakeGenerator{resp: resp}, nil, "m", "p")
		_, err := svc.Generate(context.Background(), req)
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeGenerationFailure))
	})

	t.Run("undecodable image", func(t *testing.T) {
		fake := &fakeGenerator{resp: imageResponse("")}
		svc := NewGeminiService(fake, nil, "m", "p")
		_, err := svc.Generate(context.Background(), ServiceRequest{Images: []model.UploadedImage{{ID: "bad", Base64: "%%%"}}})
		require.Error(t, err)
		require.Nil(t, fake.contents)
	})
}

func TestBuildPrompt(t *testing.T) {
	single := BuildPrompt(model.DesignTypeInterior, "  warm oak  ", 1)
	require.Contains(t, single, "Interior Concept")
	require.Contains(t, single, "attached reference image as")
	require.Contains(t, single, "warm oak\n")
	require.Contains(t, single, "16:9")

	multi := BuildPrompt("", "", 3)
	require.Contains(t, multi, string(model.DefaultDesignType))
	require.Contains(t, multi, "3 attached reference images")
	require.NotContains(t, multi, "Additional instructions")
}
