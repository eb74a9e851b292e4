package messaging

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrorCode classifies a webhook processing failure
type ErrorCode string

const (
	// CodeSellerNotFound: no tenant claims the business account; absorbed as success
	CodeSellerNotFound ErrorCode = "SELLER_NOT_FOUND"
	// CodeDuplicateMessage: dedup key already stored; absorbed as success
	CodeDuplicateMessage ErrorCode = "DUPLICATE_MESSAGE"
	// CodeInvalidPayload: malformed sender payload; fails the whole batch
	CodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
	// CodeMessageStorageFailed: storage collaborator failed after retries
	CodeMessageStorageFailed ErrorCode = "MESSAGE_STORAGE_FAILED"
	// CodeAIAnalysisFailed: analysis hook failed; storage is unaffected
	CodeAIAnalysisFailed ErrorCode = "AI_ANALYSIS_FAILED"
	// CodeDatabaseError: database-level failure outside the storage call
	CodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// CodeUnknownError: anything unclassified; treated retryable, conservative
	CodeUnknownError ErrorCode = "UNKNOWN_ERROR"
)

// Retryable reports the default retryability of a code
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeSellerNotFound, CodeDuplicateMessage, CodeInvalidPayload:
		return false
	default:
		return true
	}
}

// ---------------------------------------------------------------------------
// Per-attempt results
// ---------------------------------------------------------------------------

// ProcessingError captures one message's failure inside a webhook batch.
// Ephemeral: it rides inside the result or the logs, never its own table.
type ProcessingError struct {
	MessageID         string         `json:"message_id,omitempty"`
	PlatformMessageID string         `json:"platform_message_id,omitempty"`
	Code              ErrorCode      `json:"code"`
	Message           string         `json:"message"`
	Retryable         bool           `json:"retryable"`
	Context           map[string]any `json:"context,omitempty"`
}

// WebhookResult aggregates per-message outcomes for one inbound webhook call.
// Success is false only when at least one non-retryable error occurred:
// retryable failures leave the delivery safe for the sender to drop, which is
// what Success communicates to the HTTP boundary.
type WebhookResult struct {
	Success           bool              `json:"success"`
	MessagesProcessed int               `json:"messages_processed"`
	MessagesStored    int               `json:"messages_stored"`
	OrdersDetected    int               `json:"orders_detected"`
	Errors            []ProcessingError `json:"errors,omitempty"`
}

// EmptyWebhookResult is the all-zero success returned for empty batches and
// acknowledged-but-dropped deliveries.
func EmptyWebhookResult() *WebhookResult {
	return &WebhookResult{Success: true, Errors: []ProcessingError{}}
}

// AddError appends a processing error and downgrades Success when the error
// is non-retryable.
func (r *WebhookResult) AddError(e ProcessingError) {
	r.Errors = append(r.Errors, e)
	if !e.Retryable {
		r.Success = false
	}
}
