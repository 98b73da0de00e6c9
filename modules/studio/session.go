package studio

import (
	"context"
	"sync"
	"time"

	"visionary-design-server/modules/common/model"
	"visionary-design-server/modules/credential"
	"visionary-design-server/modules/design"
	"visionary-design-server/modules/intake"
)

// Broadcaster delivers session events to connected clients.
type Broadcaster interface {
	Broadcast(sessionID string, event model.Event)
	HasListeners(sessionID string) bool
	CloseRoom(sessionID string)
}

// Session is the explicit state of one studio: its reference images, its
// orchestrator with the result log, and its credential binding.
type Session struct {
	ID string

	images       *intake.Manager
	orchestrator *design.Orchestrator
	credentials  *credential.Binding

	mu           sync.RWMutex
	createdAt    time.Time
	lastActivity time.Time
}

// SessionView - API 응답용 세션 스냅샷
type SessionView struct {
	ID            string                `json:"id"`
	Images        []model.UploadedImage `json:"images"`
	Results       []model.DesignResult  `json:"results"`
	Status        model.Status          `json:"status"`
	HasCredential bool                  `json:"hasCredential"`
	CreatedAt     time.Time             `json:"createdAt"`
	LastActivity  time.Time             `json:"lastActivity"`
}

// GenerateInput - 생성 트리거 파라미터 (이미지는 세션 컬렉션 사용)
type GenerateInput struct {
	Instruction string           `json:"instruction"`
	DesignType  model.DesignType `json:"designType"`
	HighQuality bool             `json:"highQuality"`
}

// SubmitImages encodes blobs into the session's collection. Each blob
// succeeds or fails on its own.
func (s *Session) SubmitImages(ctx context.Context, blobs []intake.Blob) []intake.Outcome {
	s.touch()
	return s.images.SubmitBatch(ctx, blobs)
}

// RemoveImage is a no-op for unknown ids.
func (s *Session) RemoveImage(id string) {
	s.touch()
	s.images.Remove(id)
}

// Images - 현재 참조 이미지 (삽입 순)
func (s *Session) Images() []model.UploadedImage {
	return s.images.Images()
}

// Generate runs one design request over the current image collection.
func (s *Session) Generate(ctx context.Context, in GenerateInput) (*model.DesignResult, error) {
	s.touch()
	defer s.touch()

	return s.orchestrator.Generate(ctx, model.DesignRequest{
		Images:      s.images.Images(),
		Instruction: in.Instruction,
		DesignType:  in.DesignType,
		HighQuality: in.HighQuality,
	})
}

// Results - 결과 로그 (최신순)
func (s *Session) Results() []model.DesignResult {
	return s.orchestrator.Results()
}

func (s *Session) Status() model.Status {
	return s.orchestrator.Status()
}

// Busy - 생성 또는 credential 선택 대기 중
func (s *Session) Busy() bool {
	return s.orchestrator.InFlight()
}

// Snapshot returns the full session state.
func (s *Session) Snapshot(ctx context.Context) SessionView {
	hasCredential, _ := s.credentials.HasSelection(ctx)

	s.mu.RLock()
	createdAt, lastActivity := s.createdAt, s.lastActivity
	s.mu.RUnlock()

	return SessionView{
		ID:            s.ID,
		Images:        s.images.Images(),
		Results:       s.orchestrator.Results(),
		Status:        s.orchestrator.Status(),
		HasCredential: hasCredential,
		CreatedAt:     createdAt,
		LastActivity:  lastActivity,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) age(now time.Time) (sinceCreated, sinceActive time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.createdAt), now.Sub(s.lastActivity)
}
