package credential

import (
	"context"
	"strings"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/logger"
)

// Manager ties the store and the selector together for the HTTP and
// WebSocket layers.
type Manager struct {
	store    Store
	selector *Selector
}

func NewManager(store Store, selector *Selector) *Manager {
	return &Manager{store: store, selector: selector}
}

// Select stores apiKey for the session and completes any open selector.
func (m *Manager) Select(ctx context.Context, sessionID, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return apperrors.NewValidationError("apiKey is required", nil)
	}
	if err := m.store.Set(ctx, sessionID, apiKey); err != nil {
		return apperrors.NewInternalError("Failed to store credential", err)
	}
	m.selector.Selected(sessionID)
	logger.WithField("session_id", sessionID).Info("🔑 [Credential] Key selected")
	return nil
}

// Reset forgets the session's credential.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	if err := m.store.Clear(ctx, sessionID); err != nil {
		return apperrors.NewInternalError("Failed to reset credential", err)
	}
	logger.WithField("session_id", sessionID).Info("🧹 [Credential] Key reset")
	return nil
}

// Bind returns the per-session view the orchestrator uses.
func (m *Manager) Bind(sessionID string) *Binding {
	return &Binding{manager: m, sessionID: sessionID}
}

// Binding is the credential collaborator for one session.
type Binding struct {
	manager   *Manager
	sessionID string
}

// HasSelection - 선택된 키 존재 여부 (부수효과 없음)
func (b *Binding) HasSelection(ctx context.Context) (bool, error) {
	key, err := b.manager.store.Get(ctx, b.sessionID)
	if err != nil {
		return false, err
	}
	return key != "", nil
}

// OpenSelector - 선택 플로우 실행, 시도 여부 반환
func (b *Binding) OpenSelector(ctx context.Context) (bool, error) {
	return b.manager.selector.OpenSelector(ctx, b.sessionID)
}

// Current - 현재 선택된 키 (없으면 빈 문자열)
func (b *Binding) Current(ctx context.Context) (string, error) {
	return b.manager.store.Get(ctx, b.sessionID)
}
