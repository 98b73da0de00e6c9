package design

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/gemini"
	"visionary-design-server/modules/common/logger"
	"visionary-design-server/modules/common/model"
	"visionary-design-server/modules/common/utils"
)

// GeminiService implements Service on top of the Gemini image models. The
// standard tier uses the server credential; the high quality tier uses the
// session's selected key when there is one.
type GeminiService struct {
	client        gemini.ContentGenerator
	publisher     Publisher
	standardModel string
	proModel      string
	now           func() time.Time
}

func NewGeminiService(client gemini.ContentGenerator, publisher Publisher, standardModel, proModel string) *GeminiService {
	if publisher == nil {
		publisher = DataURLPublisher{}
	}
	return &GeminiService{
		client:        client,
		publisher:     publisher,
		standardModel: standardModel,
		proModel:      proModel,
		now:           time.Now,
	}
}

// Model - 품질 티어별 모델명
func (s *GeminiService) Model(highQuality bool) string {
	if highQuality {
		return s.proModel
	}
	return s.standardModel
}

func (s *GeminiService) Generate(ctx context.Context, req ServiceRequest) (*ServiceResult, error) {
	designType := req.DesignType
	if !designType.IsValid() {
		designType = model.DefaultDesignType
	}
	option, _ := designType.Option()
	modelName := s.Model(req.HighQuality)

	log := logger.WithFields(logrus.Fields{
		"session_id":   req.SessionID,
		"model":        modelName,
		"aspect_ratio": option.AspectRatio,
	})

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		data, err := utils.DecodeBase64Image(img.Base64)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("image %s could not be decoded", img.ID), err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, img.MimeType))
	}
	prompt := BuildPrompt(designType, req.Instruction, len(req.Images))
	parts = append(parts, genai.NewPartFromText(prompt))

	contents := []*genai.Content{{Parts: parts}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: option.AspectRatio,
		},
	}

	log.Infof("📤 [Gemini] Sending request (%d images, prompt length: %d)", len(req.Images), len(prompt))
	resp, err := s.client.GenerateContent(ctx, req.APIKey, modelName, contents, config)
	if err != nil {
		failure := apperrors.NewGenerationFailure(err.Error(), err)
		if gemini.IsRateLimited(err) {
			log.Warn("⚠️  [Gemini] Rate limited")
			return nil, failure.WithStatus(http.StatusTooManyRequests)
		}
		return nil, failure
	}

	out, err := gemini.ExtractOutput(resp)
	if err != nil {
		return nil, apperrors.NewGenerationFailure("The model did not return an image. Please try a different instruction.", err)
	}
	log.Infof("✅ [Gemini] Received image: %d bytes (%s)", len(out.Data), out.MimeType)

	imageURL, err := s.publisher.Publish(ctx, req.SessionID, out.Data, out.MimeType)
	if err != nil {
		return nil, apperrors.NewGenerationFailure("Failed to store the generated design.", err)
	}

	return &ServiceResult{
		ID:        uuid.NewString(),
		ImageURL:  imageURL,
		Prompt:    out.Text,
		Timestamp: s.now().UnixMilli(),
	}, nil
}
