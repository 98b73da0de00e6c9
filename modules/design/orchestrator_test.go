package design

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/model"
	"visionary-design-server/modules/intake"
)

type spyService struct {
	mu     sync.Mutex
	calls  int
	reqs   []ServiceRequest
	result *ServiceResult
	err    error
	during func()
	block  chan struct{}
}

func (s *spyService) Generate(ctx context.Context, req ServiceRequest) (*ServiceResult, error) {
	s.mu.Lock()
	s.calls++
	s.reqs = append(s.reqs, req)
	during, block := s.during, s.block
	s.mu.Unlock()

	if during != nil {
		during()
	}
	if block != nil {
		<-block
	}
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	return &res, nil
}

func (s *spyService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type spyCredentials struct {
	mu           sync.Mutex
	selected     bool
	key          string
	hasCalls     int
	openCalls    int
	currentCalls int
	onOpen       func()
}

func (c *spyCredentials) HasSelection(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasCalls++
	return c.selected, nil
}

func (c *spyCredentials) OpenSelector(context.Context) (bool, error) {
	c.mu.Lock()
	c.openCalls++
	onOpen := c.onOpen
	c.mu.Unlock()

	if onOpen != nil {
		onOpen()
	}
	return true, nil
}

func (c *spyCredentials) Current(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCalls++
	return c.key, nil
}

func (c *spyCredentials) opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openCalls
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) observe(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) progress() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == model.EventProgress {
			out = append(out, e.Status.LoadingMessage)
		}
	}
	return out
}

func oneImage() []model.UploadedImage {
	return []model.UploadedImage{{ID: "img-1", Base64: "AAAA", MimeType: "image/png"}}
}

func okService() *spyService {
	return &spyService{result: &ServiceResult{ImageURL: "x", Prompt: "clean mark"}}
}

func newTestOrchestrator(svc Service, creds Credentials, rec *recorder) *Orchestrator {
	var observer Observer
	if rec != nil {
		observer = rec.observe
	}
	return NewOrchestrator(svc, creds, observer, Options{
		SessionID:        "s1",
		ProgressInterval: time.Hour,
		Now:              func() time.Time { return time.UnixMilli(1700000000000) },
		NewID:            func() string { return "result-1" },
	})
}

func TestGenerateWithoutImagesFailsWithoutCalls(t *testing.T) {
	svc := okService()
	creds := &spyCredentials{}
	o := newTestOrchestrator(svc, creds, nil)

	for _, hq := range []bool{false, true} {
		_, err := o.Generate(context.Background(), model.DesignRequest{HighQuality: hq})
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	}

	require.Zero(t, svc.callCount())
	require.Zero(t, creds.hasCalls)
	require.Zero(t, creds.opens())
	require.Equal(t, MsgNoImages, o.Status().Error)
	require.False(t, o.Status().Generating)
}

func TestGenerateRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  model.DesignRequest
		msg  string
	}{
		{"too many images", model.DesignRequest{Images: make([]model.UploadedImage, 4)}, MsgTooManyImages},
		{"unknown type", model.DesignRequest{Images: oneImage(), DesignType: "Poster"}, MsgUnknownDesignType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := okService()
			o := newTestOrchestrator(svc, nil, nil)
			_, err := o.Generate(context.Background(), tt.req)
			require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
			require.Equal(t, tt.msg, o.Status().Error)
			require.Zero(t, svc.callCount())
		})
	}
}

func TestStandardTierNeverTouchesCredentials(t *testing.T) {
	svc := okService()
	creds := &spyCredentials{}
	o := newTestOrchestrator(svc, creds, nil)

	_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage()})
	require.NoError(t, err)

	require.Zero(t, creds.hasCalls)
	require.Zero(t, creds.openCalls)
	require.Zero(t, creds.currentCalls)
	require.Empty(t, svc.reqs[0].APIKey)
}

func TestHighQualityOpensSelectorOnceBeforeCall(t *testing.T) {
	svc := okService()
	creds := &spyCredentials{key: "user-key"}
	opensAtCall := -1
	svc.during = func() { opensAtCall = creds.opens() }
	o := newTestOrchestrator(svc, creds, nil)

	_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage(), HighQuality: true})
	require.NoError(t, err)

	require.Equal(t, 1, opensAtCall)
	require.Equal(t, 1, creds.opens())
	require.Equal(t, "user-key", svc.reqs[0].APIKey)
	require.True(t, svc.reqs[0].HighQuality)
}

func TestHighQualityWithSelectionSkipsSelector(t *testing.T) {
	svc := okService()
	creds := &spyCredentials{selected: true, key: "user-key"}
	o := newTestOrchestrator(svc, creds, nil)

	_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage(), HighQuality: true})
	require.NoError(t, err)
	require.Equal(t, 1, creds.hasCalls)
	require.Zero(t, creds.opens())
}

func TestSuccessPrependsResults(t *testing.T) {
	svc := okService()
	o := newTestOrchestrator(svc, nil, nil)

	_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage(), DesignType: model.DesignTypeInterior})
	require.NoError(t, err)

	svc.result = &ServiceResult{ID: "svc-2", ImageURL: "y", Timestamp: 42}
	second, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage(), DesignType: model.DesignTypeSocialPost})
	require.NoError(t, err)

	results := o.Results()
	require.Len(t, results, 2)
	require.Equal(t, *second, results[0])
	require.Equal(t, "svc-2", results[0].ID)
	require.Equal(t, int64(42), results[0].Timestamp)
	require.Equal(t, model.DesignTypeSocialPost, results[0].Type)
	require.Empty(t, results[0].Prompt)
	require.Equal(t, model.DefaultResultCaption, results[0].Caption)

	require.Equal(t, "result-1", results[1].ID)
	require.Equal(t, int64(1700000000000), results[1].Timestamp)
	require.Equal(t, model.DesignTypeInterior, results[1].Type)
}

func TestEmptyDesignTypeDefaultsToWebUI(t *testing.T) {
	svc := okService()
	o := newTestOrchestrator(svc, nil, nil)

	result, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage()})
	require.NoError(t, err)
	require.Equal(t, model.DesignTypeWebUI, result.Type)
	require.Equal(t, model.DesignTypeWebUI, svc.reqs[0].DesignType)
}

func TestCredentialFailureReopensSelector(t *testing.T) {
	svc := &spyService{err: errors.New("rpc error: Requested entity was not found.")}
	creds := &spyCredentials{selected: true, key: "stale"}
	o := newTestOrchestrator(svc, creds, nil)

	_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage(), HighQuality: true})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeCredentialConfiguration))
	require.Equal(t, MsgCredentialConfiguration, o.Status().Error)
	require.Equal(t, 1, creds.opens())
	require.Empty(t, o.Results())
}

func TestOtherFailuresSurfaceServiceMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"raw message", errors.New("model overloaded"), "model overloaded"},
		{"empty message", errors.New(""), MsgGenerationFallback},
		{"app error", apperrors.NewGenerationFailure("quota exceeded", nil).WithStatus(429), "quota exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &spyService{err: tt.err}
			creds := &spyCredentials{selected: true}
			o := newTestOrchestrator(svc, creds, nil)

			_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage(), HighQuality: true})
			require.True(t, apperrors.IsType(err, apperrors.ErrorTypeGenerationFailure))
			require.Equal(t, tt.want, o.Status().Error)
			require.Zero(t, creds.opens())
		})
	}
}

func TestGeneratingFlagResetsOnEveryPath(t *testing.T) {
	for _, failing := range []bool{false, true} {
		svc := okService()
		if failing {
			svc.err = errors.New("boom")
		}
		o := newTestOrchestrator(svc, nil, nil)

		var during model.Status
		svc.during = func() { during = o.Status() }

		_, _ = o.Generate(context.Background(), model.DesignRequest{Images: oneImage()})

		require.True(t, during.Generating)
		require.Equal(t, initialProgressMessage, during.LoadingMessage)
		require.False(t, o.Status().Generating)
		require.Empty(t, o.Status().LoadingMessage)
	}
}

func TestSuccessClearsPreviousError(t *testing.T) {
	o := newTestOrchestrator(okService(), nil, nil)

	_, err := o.Generate(context.Background(), model.DesignRequest{})
	require.Error(t, err)
	require.NotEmpty(t, o.Status().Error)

	_, err = o.Generate(context.Background(), model.DesignRequest{Images: oneImage()})
	require.NoError(t, err)
	require.Empty(t, o.Status().Error)
}

func TestConcurrentGenerateIsRejected(t *testing.T) {
	svc := okService()
	svc.block = make(chan struct{})
	started := make(chan struct{})
	svc.during = func() { close(started) }
	o := newTestOrchestrator(svc, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage()})
		done <- err
	}()
	<-started

	_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage()})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeBusy))
	require.True(t, o.Status().Generating)

	close(svc.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, svc.callCount())
	require.Len(t, o.Results(), 1)
}

func TestInvalidRequestDuringGenerationKeepsStatus(t *testing.T) {
	svc := okService()
	svc.block = make(chan struct{})
	started := make(chan struct{})
	svc.during = func() { close(started) }
	rec := &recorder{}
	o := newTestOrchestrator(svc, nil, rec)

	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage()})
		done <- err
	}()
	<-started
	rec.mu.Lock()
	before := len(rec.events)
	rec.mu.Unlock()

	_, err := o.Generate(context.Background(), model.DesignRequest{})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	st := o.Status()
	require.True(t, st.Generating)
	require.Equal(t, initialProgressMessage, st.LoadingMessage)
	require.Empty(t, st.Error)
	require.True(t, o.InFlight())
	rec.mu.Lock()
	require.Len(t, rec.events, before)
	rec.mu.Unlock()

	close(svc.block)
	require.NoError(t, <-done)
	require.Empty(t, o.Status().Error)
	require.False(t, o.InFlight())
}

func TestInFlightCoversCredentialSelection(t *testing.T) {
	svc := &spyService{err: errors.New("Requested entity was not found.")}
	creds := &spyCredentials{}
	var o *Orchestrator
	var seen []bool
	creds.onOpen = func() {
		seen = append(seen, o.InFlight())
		require.False(t, o.Status().Generating)
	}
	o = newTestOrchestrator(svc, creds, nil)

	_, err := o.Generate(context.Background(), model.DesignRequest{Images: oneImage(), HighQuality: true})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeCredentialConfiguration))

	// 호출 전 선택 + 실패 후 재선택
	require.Equal(t, []bool{true, true}, seen)
	require.False(t, o.InFlight())
}

func TestProgressMessagesRotateAndStop(t *testing.T) {
	rec := &recorder{}
	svc := okService()
	svc.block = make(chan struct{})
	o := NewOrchestrator(svc, nil, rec.observe, Options{ProgressInterval: 5 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.Generate(context.Background(), model.DesignRequest{Images: oneImage()})
	}()

	require.Eventually(t, func() bool {
		return len(rec.progress()) >= len(progressMessages)+2
	}, 2*time.Second, 5*time.Millisecond)
	close(svc.block)
	<-done

	got := rec.progress()
	require.Equal(t, initialProgressMessage, got[0])
	for i, msg := range got[1:] {
		require.Equal(t, progressMessages[i%len(progressMessages)], msg)
	}

	time.Sleep(30 * time.Millisecond)
	require.Len(t, rec.progress(), len(got))
}

func TestLogoScenarioEndToEnd(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	images := intake.NewManager(intake.NewEncoder(0), nil, nil)
	_, err := images.Submit(context.Background(), intake.Blob{Name: "logo.png", Reader: &buf})
	require.NoError(t, err)

	svc := okService()
	o := newTestOrchestrator(svc, nil, nil)
	_, err = o.Generate(context.Background(), model.DesignRequest{
		Images:      images.Images(),
		Instruction: "minimalist",
		DesignType:  model.DesignTypeLogo,
		HighQuality: false,
	})
	require.NoError(t, err)

	require.Equal(t, []model.DesignResult{{
		ID:        "result-1",
		ImageURL:  "x",
		Prompt:    "clean mark",
		Timestamp: 1700000000000,
		Type:      model.DesignTypeLogo,
		Caption:   "clean mark",
	}}, o.Results())
	require.Equal(t, "minimalist", svc.reqs[0].Instruction)
	require.Len(t, svc.reqs[0].Images, 1)
}
