package intake

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"visionary-design-server/modules/common/logger"
	"visionary-design-server/modules/common/model"
)

// Outcome - 배치 내 파일 1개의 처리 결과
type Outcome struct {
	Name  string               `json:"name"`
	Image *model.UploadedImage `json:"image,omitempty"`
	Err   error                `json:"-"`
}

// Manager is the Image Intake Manager: it encodes blobs and keeps the
// bounded collection of accepted images.
type Manager struct {
	encoder  *Encoder
	images   *Collection
	onChange func([]model.UploadedImage)

	// 변경과 알림을 묶어 마지막 알림이 항상 최신 컬렉션이 되도록
	mu sync.Mutex
}

// NewManager - onChange는 컬렉션이 바뀔 때마다 호출 (nil 가능)
func NewManager(encoder *Encoder, images *Collection, onChange func([]model.UploadedImage)) *Manager {
	if images == nil {
		images = NewCollection(Capacity)
	}
	return &Manager{
		encoder:  encoder,
		images:   images,
		onChange: onChange,
	}
}

// Submit encodes one blob and appends it once encoding completes.
func (m *Manager) Submit(ctx context.Context, blob Blob) (model.UploadedImage, error) {
	img, err := m.encoder.Encode(ctx, blob)
	if err != nil {
		logger.WithError(err).WithField("file", blob.Name).Warn("⚠️  [Intake] File rejected")
		return model.UploadedImage{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.images.Add(img)
	logger.WithFields(map[string]interface{}{
		"file":      blob.Name,
		"image_id":  img.ID,
		"mime_type": img.MimeType,
		"count":     len(current),
	}).Info("📷 [Intake] Image accepted")

	m.notify(current)
	return img, nil
}

// SubmitBatch processes every blob independently. Each success is appended
// as soon as it finishes, so sibling order is not guaranteed.
func (m *Manager) SubmitBatch(ctx context.Context, blobs []Blob) []Outcome {
	outcomes := make([]Outcome, len(blobs))

	var g errgroup.Group
	g.SetLimit(4)
	for i, blob := range blobs {
		g.Go(func() error {
			img, err := m.Submit(ctx, blob)
			outcomes[i] = Outcome{Name: blob.Name, Err: err}
			if err == nil {
				outcomes[i].Image = &img
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Remove drops an image by id; unknown ids are ignored.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.images.Remove(id) {
		return
	}
	logger.WithField("image_id", id).Info("🗑️  [Intake] Image removed")
	m.notify(m.images.List())
}

// Images - 현재 컬렉션 복사본
func (m *Manager) Images() []model.UploadedImage {
	return m.images.List()
}

// MaxBytes - 업로드 허용 최대 크기
func (m *Manager) MaxBytes() int64 {
	return m.encoder.MaxBytes()
}

func (m *Manager) notify(images []model.UploadedImage) {
	if m.onChange != nil {
		m.onChange(images)
	}
}
