package intake

import (
	"sync"

	"visionary-design-server/modules/common/model"
)

// Capacity is the maximum number of reference images a session keeps.
const Capacity = 3

// Collection is an ordered sliding window of uploaded images. Appending past
// the capacity drops the oldest entries first.
type Collection struct {
	mu       sync.RWMutex
	items    []model.UploadedImage
	capacity int
}

// NewCollection - capacity <= 0 이면 기본값 3
func NewCollection(capacity int) *Collection {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Collection{capacity: capacity}
}

// Add appends img and keeps only the newest entries.
func (c *Collection) Add(img model.UploadedImage) []model.UploadedImage {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := append(c.items, img)
	if len(next) > c.capacity {
		next = next[len(next)-c.capacity:]
	}
	// 새 슬라이스로 복사해서 반환값과 내부 상태 분리
	c.items = append([]model.UploadedImage(nil), next...)
	return c.snapshotLocked()
}

// Remove drops the image with id. Unknown ids are a no-op.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0:0]
	removed := false
	for _, img := range c.items {
		if img.ID == id {
			removed = true
			continue
		}
		kept = append(kept, img)
	}
	c.items = kept
	return removed
}

// List returns a copy in insertion order.
func (c *Collection) List() []model.UploadedImage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Len - 현재 개수
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection) snapshotLocked() []model.UploadedImage {
	out := make([]model.UploadedImage, len(c.items))
	copy(out, c.items)
	return out
}
