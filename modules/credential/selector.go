package credential

import (
	"context"
	"sync"
	"time"

	"visionary-design-server/modules/common/logger"
	"visionary-design-server/modules/common/model"
)

// Notifier delivers events to the clients connected to a session.
type Notifier interface {
	HasListeners(sessionID string) bool
	Broadcast(sessionID string, event model.Event)
}

// Selector runs the credential selection flow: it asks connected clients to
// pick a key and waits, bounded by timeout, for Selected to be signalled.
// The outcome is not verified; the generative service stays the authority.
type Selector struct {
	notifier Notifier
	timeout  time.Duration

	mu      sync.Mutex
	waiters map[string][]chan struct{}
}

func NewSelector(notifier Notifier, timeout time.Duration) *Selector {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Selector{
		notifier: notifier,
		timeout:  timeout,
		waiters:  make(map[string][]chan struct{}),
	}
}

// OpenSelector reports whether remediation was attempted, i.e. whether a
// client was there to be prompted.
func (s *Selector) OpenSelector(ctx context.Context, sessionID string) (bool, error) {
	if s.notifier == nil || !s.notifier.HasListeners(sessionID) {
		logger.WithField("session_id", sessionID).Warn("⚠️  [Credential] No client connected, selector not opened")
		return false, nil
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.waiters[sessionID] = append(s.waiters[sessionID], done)
	s.mu.Unlock()

	s.notifier.Broadcast(sessionID, model.Event{Type: model.EventCredentialSetup})
	logger.WithField("session_id", sessionID).Info("🔑 [Credential] Selector opened, waiting for selection")

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-done:
		logger.WithField("session_id", sessionID).Info("✅ [Credential] Selection received")
		return true, nil
	case <-timer.C:
		s.drop(sessionID, done)
		logger.WithField("session_id", sessionID).Warn("⏰ [Credential] Selector timed out, proceeding")
		return true, nil
	case <-ctx.Done():
		s.drop(sessionID, done)
		return true, ctx.Err()
	}
}

// Selected releases everyone waiting on sessionID.
func (s *Selector) Selected(sessionID string) {
	s.mu.Lock()
	waiting := s.waiters[sessionID]
	delete(s.waiters, sessionID)
	s.mu.Unlock()

	for _, ch := range waiting {
		close(ch)
	}
}

// Pending - 세션에서 대기 중인 selector 수
func (s *Selector) Pending(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters[sessionID])
}

// Waiting - 전체 대기 중인 selector 수 (/metrics)
func (s *Selector) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, list := range s.waiters {
		n += len(list)
	}
	return n
}

func (s *Selector) drop(sessionID string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.waiters[sessionID]
	for i, ch := range list {
		if ch == done {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.waiters, sessionID)
	} else {
		s.waiters[sessionID] = list
	}
}
