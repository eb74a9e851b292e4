package messaging

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/chatwire/backend/internal/domain/messaging"
)

// databaseSignatures are message substrings identifying database-level
// failures regardless of the driver that produced them.
var databaseSignatures = []string{
	"deadlock",
	"lock wait timeout",
	"connection reset",
	"connection refused",
	"too many connections",
	"sqlstate",
	"database",
}

// ClassifyError maps an arbitrary failure into the processing error taxonomy.
// Unclassified errors land on UNKNOWN_ERROR, which stays retryable: the
// conservative default for a condition we cannot prove permanent.
func ClassifyError(err error) messaging.ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, messaging.ErrDuplicateMessage):
		return messaging.CodeDuplicateMessage
	case errors.Is(err, messaging.ErrConnectionNotFound):
		return messaging.CodeSellerNotFound
	case errors.Is(err, messaging.ErrMessageMissingID),
		errors.Is(err, messaging.ErrMessageMissingSender),
		errors.Is(err, messaging.ErrInvalidPlatform),
		errors.Is(err, messaging.ErrPayloadMissingAccount),
		errors.Is(err, messaging.ErrPlatformInvalidResponse):
		return messaging.CodeInvalidPayload
	case errors.Is(err, gorm.ErrInvalidDB),
		errors.Is(err, gorm.ErrInvalidTransaction),
		errors.Is(err, context.DeadlineExceeded):
		return messaging.CodeDatabaseError
	}

	lower := strings.ToLower(err.Error())
	for _, signature := range databaseSignatures {
		if strings.Contains(lower, signature) {
			return messaging.CodeDatabaseError
		}
	}
	return messaging.CodeUnknownError
}

// NewProcessingError builds a taxonomy entry for one message's failure
func NewProcessingError(platformMessageID string, err error) messaging.ProcessingError {
	code := ClassifyError(err)
	return messaging.ProcessingError{
		PlatformMessageID: platformMessageID,
		Code:              code,
		Message:           err.Error(),
		Retryable:         code.Retryable(),
	}
}
