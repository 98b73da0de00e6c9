package studio

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/logger"
	"visionary-design-server/modules/common/model"
	"visionary-design-server/modules/credential"
	"visionary-design-server/modules/design"
	"visionary-design-server/modules/intake"
)

// multipart 파싱 시 메모리 한도 (초과분은 임시 파일)
const maxMultipartMemory = 32 << 20

// Response - 공통 응답 포맷
type Response struct {
	Success      bool                  `json:"success"`
	Session      *SessionView          `json:"session,omitempty"`
	Sessions     []SessionView         `json:"sessions,omitempty"`
	Result       *model.DesignResult   `json:"result,omitempty"`
	Images       []model.UploadedImage `json:"images,omitempty"`
	Uploads      []UploadOutcome       `json:"uploads,omitempty"`
	DesignTypes  []model.DesignOption  `json:"designTypes,omitempty"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
	ErrorCode    string                `json:"errorCode,omitempty"`
}

// UploadOutcome - 파일별 업로드 결과
type UploadOutcome struct {
	Name         string               `json:"name"`
	Success      bool                 `json:"success"`
	Image        *model.UploadedImage `json:"image,omitempty"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
}

// CredentialRequest - PUT /credential body
type CredentialRequest struct {
	APIKey string `json:"apiKey"`
}

type Handler struct {
	sessions    *Manager
	credentials *credential.Manager
}

func NewHandler(sessions *Manager, credentials *credential.Manager) *Handler {
	return &Handler{sessions: sessions, credentials: credentials}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/design-types", h.HandleDesignTypes).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/sessions", h.HandleCreateSession).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions", h.HandleListSessions).Methods("GET")
	r.HandleFunc("/api/sessions/{sessionId}", h.HandleGetSession).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}", h.HandleDeleteSession).Methods("DELETE")
	r.HandleFunc("/api/sessions/{sessionId}/images", h.HandleUploadImages).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}/images/{imageId}", h.HandleRemoveImage).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}/generate", h.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}/credential", h.HandleSelectCredential).Methods("PUT", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}/credential", h.HandleResetCredential).Methods("DELETE")
	logger.Info("✅ Studio routes registered")
}

// HandleDesignTypes - GET /api/design-types
func (h *Handler) HandleDesignTypes(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, DesignTypes: model.DesignOptions})
}

// HandleCreateSession - POST /api/sessions
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	s := h.sessions.Create()
	view := s.Snapshot(r.Context())
	writeJSON(w, http.StatusCreated, Response{Success: true, Session: &view})
}

// HandleListSessions - GET /api/sessions
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Sessions: h.sessions.List(r.Context())})
}

// HandleGetSession - GET /api/sessions/{sessionId}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	s, err := h.sessions.Get(mux.Vars(r)["sessionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	view := s.Snapshot(r.Context())
	writeJSON(w, http.StatusOK, Response{Success: true, Session: &view})
}

// HandleDeleteSession - DELETE /api/sessions/{sessionId}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), mux.Vars(r)["sessionId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

// HandleUploadImages - POST /api/sessions/{sessionId}/images (multipart "files")
// 파일별로 독립 처리, 일부 실패해도 200과 파일별 결과 반환
func (h *Handler) HandleUploadImages(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	s, err := h.sessions.Get(mux.Vars(r)["sessionId"])
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, apperrors.NewValidationError("Invalid multipart form", err))
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, apperrors.NewValidationError("No files uploaded", nil))
		return
	}

	blobs := make([]intake.Blob, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			// Reader nil이면 Encoder가 IntakeError로 처리
			logger.WithError(err).WithField("file", fh.Filename).Warn("⚠️  [Studio] Failed to open upload")
			blobs = append(blobs, intake.Blob{Name: fh.Filename})
			continue
		}
		defer f.Close()
		blobs = append(blobs, intake.Blob{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Reader: f})
	}

	outcomes := s.SubmitImages(r.Context(), blobs)
	uploads := make([]UploadOutcome, len(outcomes))
	accepted := 0
	for i, o := range outcomes {
		uploads[i] = UploadOutcome{Name: o.Name, Success: o.Err == nil, Image: o.Image}
		if o.Err != nil {
			uploads[i].ErrorMessage = apperrors.UserMessage(o.Err, "File could not be processed")
			continue
		}
		accepted++
	}

	logger.WithFields(logrus.Fields{
		"session_id": s.ID,
		"files":      len(blobs),
		"accepted":   accepted,
	}).Info("📥 [Studio] Images submitted")

	writeJSON(w, http.StatusOK, Response{Success: accepted > 0, Uploads: uploads, Images: s.Images()})
}

// HandleRemoveImage - DELETE /api/sessions/{sessionId}/images/{imageId}
func (h *Handler) HandleRemoveImage(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	vars := mux.Vars(r)
	s, err := h.sessions.Get(vars["sessionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	s.RemoveImage(vars["imageId"])
	writeJSON(w, http.StatusOK, Response{Success: true, Images: s.Images()})
}

// HandleGenerate - POST /api/sessions/{sessionId}/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	s, err := h.sessions.Get(mux.Vars(r)["sessionId"])
	if err != nil {
		writeError(w, err)
		return
	}

	var in GenerateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperrors.NewValidationError("Invalid request format", err))
		return
	}

	result, err := s.Generate(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: result})
}

// HandleSelectCredential - PUT /api/sessions/{sessionId}/credential
func (h *Handler) HandleSelectCredential(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	s, err := h.sessions.Get(mux.Vars(r)["sessionId"])
	if err != nil {
		writeError(w, err)
		return
	}

	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.NewValidationError("Invalid request format", err))
		return
	}
	if err := h.credentials.Select(r.Context(), s.ID, req.APIKey); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

// HandleResetCredential - DELETE /api/sessions/{sessionId}/credential
func (h *Handler) HandleResetCredential(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(mux.Vars(r)["sessionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.credentials.Reset(r.Context(), s.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

// preflight - OPTIONS 요청 처리
func preflight(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodOptions {
		return false
	}
	w.WriteHeader(http.StatusOK)
	return true
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.WithError(err).Error("❌ [Studio] Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := string(apperrors.ErrorTypeInternal)
	if appErr, ok := apperrors.As(err); ok {
		code = string(appErr.Type)
	}
	status := apperrors.GetStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("❌ [Studio] Request failed")
	}
	writeJSON(w, status, Response{
		Success:      false,
		ErrorMessage: apperrors.UserMessage(err, design.MsgGenerationFallback),
		ErrorCode:    code,
	})
}
