package design

// User-facing messages surfaced through Status.Error.
const (
	MsgNoImages                = "Please upload at least one image to start designing."
	MsgTooManyImages           = "A design request accepts at most 3 reference images."
	MsgUnknownDesignType       = "Unknown design type."
	MsgBusy                    = "A design is already being generated for this session."
	MsgCredentialConfiguration = "API Key configuration error. Please try resetting your key."
	MsgGenerationFallback      = "An unexpected error occurred during design generation."
)

// CredentialErrorMarker appears in service errors caused by a stale or
// invalid credential.
const CredentialErrorMarker = "Requested entity was not found"

// Loading messages shown while a generation is in flight.
const initialProgressMessage = "Initializing creative engine..."

var progressMessages = []string{
	"Deconstructing visual elements...",
	"Synthesizing new design concepts...",
	"Applying professional color theory...",
	"Polishing high-fidelity details...",
	"Finalizing your masterpiece...",
}
