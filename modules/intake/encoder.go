package intake

import (
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/model"
	"visionary-design-server/modules/common/utils"
)

// DefaultMaxBytes - 업로드 1장당 최대 크기 (10MB)
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// SupportedMimeTypes - PNG, JPG, WEBP
var SupportedMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// Blob is one file handed to intake.
type Blob struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Encoder turns raw blobs into transport-ready UploadedImage records.
type Encoder struct {
	maxBytes int64
	newID    func() string
}

// NewEncoder - maxBytes <= 0 이면 10MB
func NewEncoder(maxBytes int64) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Encoder{
		maxBytes: maxBytes,
		newID:    uuid.NewString,
	}
}

// MaxBytes - 허용 최대 크기
func (e *Encoder) MaxBytes() int64 {
	return e.maxBytes
}

// Encode reads, validates and base64-encodes one blob. Failures are intake
// errors scoped to this blob only.
func (e *Encoder) Encode(ctx context.Context, blob Blob) (model.UploadedImage, error) {
	if err := ctx.Err(); err != nil {
		return model.UploadedImage{}, apperrors.NewIntakeError(fmt.Sprintf("%s: upload cancelled", blob.Name), err)
	}
	if blob.Reader == nil {
		return model.UploadedImage{}, apperrors.NewIntakeError(fmt.Sprintf("%s: file could not be read", blob.Name), nil)
	}

	data, err := io.ReadAll(io.LimitReader(blob.Reader, e.maxBytes+1))
	if err != nil {
		return model.UploadedImage{}, apperrors.NewIntakeError(fmt.Sprintf("%s: file could not be read", blob.Name), err)
	}
	if len(data) == 0 {
		return model.UploadedImage{}, apperrors.NewIntakeError(fmt.Sprintf("%s: file is empty", blob.Name), nil)
	}
	if int64(len(data)) > e.maxBytes {
		return model.UploadedImage{}, apperrors.NewIntakeError(
			fmt.Sprintf("%s: file exceeds the %dMB limit", blob.Name, e.maxBytes/(1024*1024)), nil)
	}

	detected := mimetype.Detect(data).String()
	if !SupportedMimeTypes[detected] {
		return model.UploadedImage{}, apperrors.NewIntakeError(
			fmt.Sprintf("%s: unsupported file type %s (PNG, JPG or WEBP only)", blob.Name, detected), nil)
	}

	if _, _, err := utils.DecodeImage(data); err != nil {
		return model.UploadedImage{}, apperrors.NewIntakeError(fmt.Sprintf("%s: image is corrupt", blob.Name), err)
	}

	payload := utils.ConvertImageToBase64(data)
	return model.UploadedImage{
		ID:       e.newID(),
		URL:      utils.BuildDataURL(detected, payload),
		Base64:   payload,
		MimeType: detected,
	}, nil
}
