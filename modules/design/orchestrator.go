package design

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/logger"
	"visionary-design-server/modules/common/model"
	"visionary-design-server/modules/intake"
)

// Service is the generative design backend. One call is one atomic
// request/response; implementations must not retry or stream.
type Service interface {
	Generate(ctx context.Context, req ServiceRequest) (*ServiceResult, error)
}

// ServiceRequest - 외부 서비스 입력
type ServiceRequest struct {
	SessionID   string
	Images      []model.UploadedImage
	Instruction string
	DesignType  model.DesignType
	HighQuality bool
	APIKey      string // HQ 전용, 비어 있으면 서버 기본 키
}

// ServiceResult - 외부 서비스 출력. ID/Timestamp는 비어 있을 수 있음
type ServiceResult struct {
	ID        string
	ImageURL  string
	Prompt    string
	Timestamp int64
}

// Credentials is the per-session credential collaborator used for the
// high quality tier.
type Credentials interface {
	HasSelection(ctx context.Context) (bool, error)
	OpenSelector(ctx context.Context) (bool, error)
	Current(ctx context.Context) (string, error)
}

// Observer receives every state change of the orchestrator.
type Observer func(model.Event)

// Options - Orchestrator 설정
type Options struct {
	SessionID        string
	ProgressInterval time.Duration
	Timeout          time.Duration // 서비스 호출 타임아웃 (0이면 없음)
	Now              func() time.Time
	NewID            func() string
}

// Orchestrator runs design requests for one session and owns its status and
// newest-first result log. At most one generation is in flight at a time.
type Orchestrator struct {
	service     Service
	credentials Credentials
	observer    Observer

	sessionID string
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	busy    bool
	status  model.Status
	results []model.DesignResult
}

func NewOrchestrator(service Service, credentials Credentials, observer Observer, opts Options) *Orchestrator {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Orchestrator{
		service:     service,
		credentials: credentials,
		observer:    observer,
		sessionID:   opts.SessionID,
		interval:    opts.ProgressInterval,
		timeout:     opts.Timeout,
		now:         opts.Now,
		newID:       opts.NewID,
	}
}

// Generate validates req, resolves credentials for the high quality tier,
// calls the service once and records the outcome. Every returned error is an
// *apperrors.AppError whose Message is also stored in Status().Error.
func (o *Orchestrator) Generate(ctx context.Context, req model.DesignRequest) (*model.DesignResult, error) {
	log := logger.WithFields(logrus.Fields{
		"session_id":   o.sessionID,
		"design_type":  req.DesignType,
		"high_quality": req.HighQuality,
		"images":       len(req.Images),
	})

	designType, err := validate(req)
	if err != nil {
		log.WithError(err).Warn("⚠️  [Design] Request rejected")
		o.reject(err)
		return nil, err
	}

	if err := o.acquire(); err != nil {
		log.Warn("⏳ [Design] Generation already in flight")
		return nil, err
	}
	defer o.release()

	apiKey := ""
	if req.HighQuality && o.credentials != nil {
		apiKey = o.resolveCredential(ctx, log)
	}

	log.Info("🎨 [Design] Generation started")
	progress := startProgress(o.interval, o.setLoading)

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	res, callErr := o.service.Generate(callCtx, ServiceRequest{
		SessionID:   o.sessionID,
		Images:      req.Images,
		Instruction: req.Instruction,
		DesignType:  designType,
		HighQuality: req.HighQuality,
		APIKey:      apiKey,
	})

	progress.Stop()

	if callErr == nil && res == nil {
		callErr = apperrors.NewGenerationFailure(MsgGenerationFallback, nil)
	}

	if callErr != nil {
		appErr := classify(callErr)
		log.WithError(callErr).Error("❌ [Design] Generation failed")
		o.surface(appErr)

		// 표준 티어는 서버 키를 쓰므로 재선택 대상 아님
		if appErr.Type == apperrors.ErrorTypeCredentialConfiguration && req.HighQuality && o.credentials != nil {
			log.Info("🔑 [Design] Re-opening credential selector")
			if _, err := o.credentials.OpenSelector(ctx); err != nil {
				log.WithError(err).Warn("⚠️  [Design] Credential selector interrupted")
			}
		}
		return nil, appErr
	}

	result := o.record(res, designType)
	log.WithField("result_id", result.ID).Info("✅ [Design] Generation completed")
	return &result, nil
}

// Results returns the result log, newest first.
func (o *Orchestrator) Results() []model.DesignResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.DesignResult, len(o.results))
	copy(out, o.results)
	return out
}

// InFlight reports whether a generation holds the session, including the
// credential selection waits before and after the service call.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Status - 현재 진행 상태 스냅샷
func (o *Orchestrator) Status() model.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func validate(req model.DesignRequest) (model.DesignType, error) {
	if len(req.Images) == 0 {
		return "", apperrors.NewValidationError(MsgNoImages, nil)
	}
	if len(req.Images) > intake.Capacity {
		return "", apperrors.NewValidationError(MsgTooManyImages, nil)
	}

	designType := req.DesignType
	if designType == "" {
		designType = model.DefaultDesignType
	}
	if !designType.IsValid() {
		return "", apperrors.NewValidationError(MsgUnknownDesignType, nil)
	}
	return designType, nil
}

// classify maps a service error onto the user-visible error kinds.
func classify(err error) *apperrors.AppError {
	if strings.Contains(err.Error(), CredentialErrorMarker) {
		return apperrors.NewCredentialConfigurationError(MsgCredentialConfiguration, err)
	}

	if appErr, ok := apperrors.As(err); ok && appErr.Type == apperrors.ErrorTypeGenerationFailure {
		if strings.TrimSpace(appErr.Message) == "" {
			cp := *appErr
			cp.Message = MsgGenerationFallback
			return &cp
		}
		return appErr
	}

	msg := strings.TrimSpace(apperrors.UserMessage(err, ""))
	if msg == "" {
		msg = MsgGenerationFallback
	}
	return apperrors.NewGenerationFailure(msg, err)
}

// resolveCredential runs the best-effort remediation and returns whatever key
// is selected afterwards. Failures never block the generation.
func (o *Orchestrator) resolveCredential(ctx context.Context, log *logrus.Entry) string {
	has, err := o.credentials.HasSelection(ctx)
	if err != nil {
		log.WithError(err).Warn("⚠️  [Design] Credential check failed, treating as unselected")
	}

	if !has {
		attempted, err := o.credentials.OpenSelector(ctx)
		if err != nil {
			log.WithError(err).Warn("⚠️  [Design] Credential selector interrupted")
		}
		log.WithField("attempted", attempted).Info("🔑 [Design] Credential remediation finished, proceeding")
	}

	key, err := o.credentials.Current(ctx)
	if err != nil {
		log.WithError(err).Warn("⚠️  [Design] Could not read selected credential")
		return ""
	}
	return key
}

func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return apperrors.NewBusyError(MsgBusy)
	}
	o.busy = true
	o.status = model.Status{}
	status := o.status
	o.mu.Unlock()

	o.emit(model.Event{Type: model.EventStatus, Status: &status})
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

func (o *Orchestrator) setLoading(message string) {
	o.mu.Lock()
	o.status.Generating = true
	o.status.LoadingMessage = message
	status := o.status
	o.mu.Unlock()

	o.emit(model.Event{Type: model.EventProgress, Status: &status})
}

// reject surfaces a validation error unless another call owns the status.
func (o *Orchestrator) reject(err error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return
	}
	status := o.failLocked(err)
	o.mu.Unlock()

	o.emit(model.Event{Type: model.EventStatus, Status: &status})
}

func (o *Orchestrator) surface(err error) {
	o.mu.Lock()
	status := o.failLocked(err)
	o.mu.Unlock()

	o.emit(model.Event{Type: model.EventStatus, Status: &status})
}

// o.mu 보유 상태에서 호출
func (o *Orchestrator) failLocked(err error) model.Status {
	o.status.Generating = false
	o.status.LoadingMessage = ""
	o.status.Error = apperrors.UserMessage(err, MsgGenerationFallback)
	o.status.ErrorCode = ""
	if appErr, ok := apperrors.As(err); ok {
		o.status.ErrorCode = string(appErr.Type)
	}
	return o.status
}

func (o *Orchestrator) record(res *ServiceResult, designType model.DesignType) model.DesignResult {
	result := model.DesignResult{
		ID:        res.ID,
		ImageURL:  res.ImageURL,
		Prompt:    res.Prompt,
		Timestamp: res.Timestamp,
		Type:      designType,
		Caption:   model.ResultCaption(res.Prompt),
	}
	if result.ID == "" {
		result.ID = o.newID()
	}
	if result.Timestamp == 0 {
		result.Timestamp = o.now().UnixMilli()
	}

	o.mu.Lock()
	o.results = append([]model.DesignResult{result}, o.results...)
	o.status = model.Status{}
	status := o.status
	o.mu.Unlock()

	o.emit(model.Event{Type: model.EventResult, Result: &result})
	o.emit(model.Event{Type: model.EventStatus, Status: &status})
	return result
}

func (o *Orchestrator) emit(event model.Event) {
	if o.observer != nil {
		o.observer(event)
	}
}
