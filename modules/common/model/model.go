package model

// DesignType - 생성 카테고리 (고정 enum)
type DesignType string

const (
	DesignTypeLogo       DesignType = "Logo Design"
	DesignTypeWebUI      DesignType = "Web UI Mockup"
	DesignTypeSocialPost DesignType = "Social Media Post"
	DesignTypeInterior   DesignType = "Interior Concept"
	DesignTypeArtistic   DesignType = "Artistic Re-imagining"
)

// DefaultDesignType is used when a request leaves the category empty.
const DefaultDesignType = DesignTypeWebUI

// DefaultResultCaption is shown for results whose prompt is empty.
const DefaultResultCaption = "Generated masterpiece based on source visuals."

// DesignOption - 카테고리 메타데이터
type DesignOption struct {
	Type        DesignType `json:"type"`
	Description string     `json:"description"`
	AspectRatio string     `json:"aspectRatio"`
}

// DesignOptions - 선택 가능한 카테고리 (표시 순서 유지)
var DesignOptions = []DesignOption{
	{Type: DesignTypeLogo, Description: "Brand identities and logos", AspectRatio: "1:1"},
	{Type: DesignTypeWebUI, Description: "User interfaces and web mockups", AspectRatio: "16:9"},
	{Type: DesignTypeSocialPost, Description: "Creative social media content", AspectRatio: "1:1"},
	{Type: DesignTypeInterior, Description: "Space and architectural concepts", AspectRatio: "16:9"},
	{Type: DesignTypeArtistic, Description: "Creative re-interpretations", AspectRatio: "1:1"},
}

// Option returns the metadata for t.
func (t DesignType) Option() (DesignOption, bool) {
	for _, opt := range DesignOptions {
		if opt.Type == t {
			return opt, true
		}
	}
	return DesignOption{}, false
}

// IsValid - 카테고리 유효성 검사
func (t DesignType) IsValid() bool {
	_, ok := t.Option()
	return ok
}

// UploadedImage - 사용자가 올린 참조 이미지 1장
type UploadedImage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`    // data URL (preview)
	Base64   string `json:"base64"` // data URL prefix 제거된 payload
	MimeType string `json:"mimeType"`
}

// DesignRequest - Orchestrator 입력
type DesignRequest struct {
	Images      []UploadedImage `json:"images"`
	Instruction string          `json:"instruction"`
	DesignType  DesignType      `json:"designType"`
	HighQuality bool            `json:"highQuality"`
}

// DesignResult - 성공한 생성 결과 (생성 후 불변)
type DesignResult struct {
	ID        string     `json:"id"`
	ImageURL  string     `json:"imageUrl"`
	Prompt    string     `json:"prompt"`
	Timestamp int64      `json:"timestamp"` // epoch milliseconds
	Type      DesignType `json:"type"`
	Caption   string     `json:"caption"` // 표시용, 빈 prompt는 기본 문구
}

// ResultCaption returns the prompt, or the default caption when it is empty.
func ResultCaption(prompt string) string {
	if prompt == "" {
		return DefaultResultCaption
	}
	return prompt
}

// Status - 세션의 생성 진행 상태
type Status struct {
	Generating     bool   `json:"generating"`
	LoadingMessage string `json:"loadingMessage,omitempty"`
	Error          string `json:"error,omitempty"`
	ErrorCode      string `json:"errorCode,omitempty"`
}

// Event types published to session observers.
const (
	EventStatus          = "status"
	EventProgress        = "progress"
	EventResult          = "result"
	EventImages          = "images"
	EventCredentialSetup = "credential_select_required"
)

// Event - 세션 상태 변경 알림
type Event struct {
	Type   string          `json:"type"`
	Status *Status         `json:"status,omitempty"`
	Result *DesignResult   `json:"result,omitempty"`
	Images []UploadedImage `json:"images,omitempty"`
}
