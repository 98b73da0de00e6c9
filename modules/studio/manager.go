package studio

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/logger"
	"visionary-design-server/modules/common/model"
	"visionary-design-server/modules/credential"
	"visionary-design-server/modules/design"
	"visionary-design-server/modules/intake"
)

const (
	defaultSessionTTL  = 24 * time.Hour
	defaultInactiveTTL = 2 * time.Hour
)

// Dependencies - 세션 생성에 필요한 협력 객체와 설정
type Dependencies struct {
	Service           design.Service
	Credentials       *credential.Manager
	Broadcaster       Broadcaster
	MaxImageBytes     int64
	ProgressInterval  time.Duration
	GenerationTimeout time.Duration
	SessionTTL        time.Duration
	InactiveTTL       time.Duration
}

// Manager is the registry of live studio sessions.
type Manager struct {
	deps     Dependencies
	sessions map[string]*Session
	mutex    sync.RWMutex
	total    int
}

func NewManager(deps Dependencies) *Manager {
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = defaultSessionTTL
	}
	if deps.InactiveTTL <= 0 {
		deps.InactiveTTL = defaultInactiveTTL
	}
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new empty session.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	now := time.Now()

	s := &Session{
		ID:           id,
		credentials:  m.deps.Credentials.Bind(id),
		createdAt:    now,
		lastActivity: now,
	}
	s.images = intake.NewManager(intake.NewEncoder(m.deps.MaxImageBytes), intake.NewCollection(intake.Capacity), func(images []model.UploadedImage) {
		m.publish(id, model.Event{Type: model.EventImages, Images: images})
	})
	s.orchestrator = design.NewOrchestrator(m.deps.Service, s.credentials, func(event model.Event) {
		m.publish(id, event)
	}, design.Options{
		SessionID:        id,
		ProgressInterval: m.deps.ProgressInterval,
		Timeout:          m.deps.GenerationTimeout,
	})

	m.mutex.Lock()
	m.sessions[id] = s
	m.total++
	active := len(m.sessions)
	m.mutex.Unlock()

	logger.WithFields(logrus.Fields{"session_id": id, "active": active}).Info("✅ [Studio] Session created")
	return s
}

// Get returns the session or a NotFound error.
func (m *Manager) Get(id string) (*Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Session not found", nil)
	}
	return s, nil
}

// Exists - WebSocket 연결 허용 여부 확인용
func (m *Manager) Exists(id string) bool {
	_, err := m.Get(id)
	return err == nil
}

// Delete ends a session, forgetting its credential and disconnecting clients.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mutex.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mutex.Unlock()

	if !ok {
		return apperrors.NewNotFoundError("Session not found", nil)
	}
	m.release(ctx, id)
	logger.WithField("session_id", id).Info("🗑️  [Studio] Session deleted")
	return nil
}

// List returns snapshots of all sessions, oldest first.
func (m *Manager) List(ctx context.Context) []SessionView {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.Snapshot(ctx))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views
}

// Count - 활성 세션 수, 누적 생성 수
func (m *Manager) Count() (active, total int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions), m.total
}

// CleanupExpired removes sessions older than SessionTTL, or idle for
// InactiveTTL with nobody connected. Sessions mid-generation are kept.
func (m *Manager) CleanupExpired(ctx context.Context, now time.Time) int {
	m.mutex.Lock()
	var expired []string
	for id, s := range m.sessions {
		if s.Busy() {
			continue
		}
		age, idle := s.age(now)
		isExpired := age > m.deps.SessionTTL
		isInactive := idle > m.deps.InactiveTTL && !m.hasListeners(id)
		if isExpired || isInactive {
			delete(m.sessions, id)
			expired = append(expired, id)

			reason := "expired"
			if !isExpired {
				reason = "inactive"
			}
			logger.WithFields(logrus.Fields{
				"session_id": id,
				"age":        age.String(),
				"inactive":   idle.String(),
			}).Infof("⏰ [Studio] Cleaned up %s session", reason)
		}
	}
	active := len(m.sessions)
	m.mutex.Unlock()

	for _, id := range expired {
		m.release(ctx, id)
	}
	if len(expired) > 0 {
		logger.WithFields(logrus.Fields{"cleaned": len(expired), "active": active}).Info("🧼 [Studio] Cleaned up sessions")
	}
	return len(expired)
}

// StartCleanupRoutine - 주기적 만료 세션 정리, ctx 종료 시 중단
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.CleanupExpired(ctx, now)
			}
		}
	}()

	logger.WithField("interval", interval.String()).Info("🔄 [Studio] Started session cleanup routine")
}

func (m *Manager) hasListeners(id string) bool {
	return m.deps.Broadcaster != nil && m.deps.Broadcaster.HasListeners(id)
}

func (m *Manager) publish(id string, event model.Event) {
	if m.deps.Broadcaster != nil {
		m.deps.Broadcaster.Broadcast(id, event)
	}
}

func (m *Manager) release(ctx context.Context, id string) {
	if err := m.deps.Credentials.Reset(ctx, id); err != nil {
		logger.WithError(err).WithField("session_id", id).Warn("⚠️  [Studio] Failed to reset credential")
	}
	if m.deps.Broadcaster != nil {
		m.deps.Broadcaster.CloseRoom(id)
	}
}
