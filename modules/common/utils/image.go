package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"strings"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"visionary-design-server/modules/common/logger"
)

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환
func ConvertImageToBase64(imageData []byte) string {
	base64Str := base64.StdEncoding.EncodeToString(imageData)
	logger.WithField("chars", len(base64Str)).Debug("🔄 Image converted to base64")
	return base64Str
}

// BuildDataURL - data:<mime>;base64,<payload>
func BuildDataURL(mimeType, base64Payload string) string {
	return "data:" + mimeType + ";base64," + base64Payload
}

// StripDataURLPrefix - data URL이면 콤마 뒤 payload만 반환
func StripDataURLPrefix(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// DecodeBase64Image - prefix 유무와 관계없이 base64 payload 디코딩
func DecodeBase64Image(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(StripDataURLPrefix(strings.TrimSpace(s)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return data, nil
}

// IsWebP - RIFF....WEBP 헤더 확인
func IsWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// DecodeImage - WebP, PNG, JPEG 자동 감지 디코딩
func DecodeImage(data []byte) (image.Image, string, error) {
	if IsWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode WebP: %w", err)
		}
		return img, "webp", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// ConvertToWebP - PNG/JPEG/WebP 바이너리를 WebP로 변환
func ConvertToWebP(data []byte, quality float32) ([]byte, error) {
	img, format, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	logger.WithFields(map[string]interface{}{
		"from":    format,
		"quality": quality,
		"before":  len(data),
		"after":   len(webpData),
	}).Info("✅ Image converted to WebP")

	return webpData, nil
}
