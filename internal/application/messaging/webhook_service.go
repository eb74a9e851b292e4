package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/infrastructure/retry"
)

// WebhookProcessingService orchestrates one inbound webhook delivery: parse,
// resolve the tenant, deduplicate, store, and run the analysis hook, with
// per-message isolation. One malformed or conflicting message never blocks
// sibling messages in the same delivery, because platforms batch multiple
// users' events into one HTTP call.
type WebhookProcessingService struct {
	lookup   SellerLookup
	store    messaging.MessageStore
	analyzer messaging.MessageAnalyzer
	executor *retry.Executor
	logger   *zap.Logger
}

// NewWebhookProcessingService creates the orchestrator. The analyzer is
// optional; without one, order detection simply stays at zero.
func NewWebhookProcessingService(
	lookup SellerLookup,
	store messaging.MessageStore,
	analyzer messaging.MessageAnalyzer,
	logger *zap.Logger,
	opts ...ServiceOption,
) *WebhookProcessingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookProcessingService{
		lookup:   lookup,
		store:    store,
		analyzer: analyzer,
		executor: retry.New(storagePolicy(opts), logger),
		logger:   logger,
	}
}

// ProcessWebhook runs the ingestion pipeline over one raw delivery. The
// adapter supplies the platform-specific parsing; it does not need to be
// initialized because parsing and account extraction are purely structural.
//
// The result is always non-nil. Success is false only when a non-retryable
// error occurred; retryable failures leave the delivery safe for the sender
// to drop.
func (s *WebhookProcessingService) ProcessWebhook(ctx context.Context, adapter messaging.ChannelIntegration, rawPayload []byte) *messaging.WebhookResult {
	platform := adapter.Platform()

	parsed, err := adapter.ParseWebhook(rawPayload)
	if err != nil {
		result := messaging.EmptyWebhookResult()
		result.AddError(messaging.ProcessingError{
			Code:      messaging.CodeInvalidPayload,
			Message:   fmt.Sprintf("failed to parse webhook payload: %v", err),
			Retryable: false,
		})
		return result
	}

	// empty batches and pure status webhooks short-circuit before any lookup
	if len(parsed) == 0 {
		return messaging.EmptyWebhookResult()
	}

	businessAccountID, err := adapter.ExtractBusinessAccount(rawPayload)
	if err != nil {
		result := messaging.EmptyWebhookResult()
		result.AddError(messaging.ProcessingError{
			Code:      messaging.CodeInvalidPayload,
			Message:   "payload carries no business account identifier",
			Retryable: false,
		})
		return result
	}

	conn, err := s.lookup.ResolveTenant(ctx, platform, businessAccountID)
	if err != nil {
		result := messaging.EmptyWebhookResult()
		result.AddError(messaging.ProcessingError{
			Code:      messaging.CodeDatabaseError,
			Message:   fmt.Sprintf("tenant lookup failed: %v", err),
			Retryable: true,
		})
		return result
	}
	if conn == nil {
		// acknowledge-but-drop: the delivery succeeds so the sender stops
		// retrying, but nothing is processed
		s.logger.Info("webhook for unclaimed business account dropped",
			zap.String("platform", platform.String()),
			zap.String("business_account_id", businessAccountID),
			zap.Int("messages", len(parsed)))
		return messaging.EmptyWebhookResult()
	}

	result := messaging.EmptyWebhookResult()
	for i := range parsed {
		s.processMessage(ctx, conn, &parsed[i], result)
	}

	s.logger.Info("webhook processed",
		zap.String("platform", platform.String()),
		zap.String("tenant_id", conn.TenantID.String()),
		zap.Int("processed", result.MessagesProcessed),
		zap.Int("stored", result.MessagesStored),
		zap.Int("orders_detected", result.OrdersDetected),
		zap.Int("errors", len(result.Errors)))
	return result
}

// processMessage handles one message in isolation, recovering from panics so
// a single bad event cannot abort the loop.
func (s *WebhookProcessingService) processMessage(ctx context.Context, conn *messaging.IntegrationConnection, msg *messaging.UnifiedMessage, result *messaging.WebhookResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing message",
				zap.String("platform_message_id", msg.PlatformMessageID),
				zap.Any("panic", r))
			result.AddError(messaging.ProcessingError{
				PlatformMessageID: msg.PlatformMessageID,
				Code:              messaging.CodeUnknownError,
				Message:           fmt.Sprintf("panic: %v", r),
				Retryable:         true,
			})
		}
	}()

	result.MessagesProcessed++

	if err := msg.Validate(); err != nil {
		result.AddError(messaging.ProcessingError{
			PlatformMessageID: msg.PlatformMessageID,
			Code:              messaging.CodeInvalidPayload,
			Message:           err.Error(),
			Retryable:         false,
		})
		return
	}

	// fast-path dedup; the storage uniqueness constraint remains the real
	// guarantee for concurrent at-least-once deliveries
	exists, err := s.store.Exists(ctx, msg.Platform, msg.PlatformMessageID)
	if err != nil {
		result.AddError(NewProcessingError(msg.PlatformMessageID, err))
		return
	}
	if exists {
		s.logger.Debug("duplicate message skipped",
			zap.String("platform_message_id", msg.PlatformMessageID))
		return
	}

	record := messaging.NewMessageRecord(conn.TenantID, msg)

	// the analysis hook runs before storage so its signal persists with the
	// row; its failure never blocks storage
	analysisFailed := s.analyze(ctx, record, msg, result)

	outcome, err := s.storeWithRetry(ctx, record)
	if err != nil {
		result.AddError(messaging.ProcessingError{
			PlatformMessageID: msg.PlatformMessageID,
			Code:              messaging.CodeMessageStorageFailed,
			Message:           err.Error(),
			Retryable:         true,
		})
		return
	}
	if !outcome.Stored {
		// a concurrent delivery won the insert race; not an error
		return
	}

	result.MessagesStored++
	if outcome.OrderIntent && !analysisFailed {
		result.OrdersDetected++
	}
}

// analyze runs the optional AI hook, attaching its signal to the record.
// Returns true when the hook failed.
func (s *WebhookProcessingService) analyze(ctx context.Context, record *messaging.MessageRecord, msg *messaging.UnifiedMessage, result *messaging.WebhookResult) bool {
	if s.analyzer == nil {
		return false
	}

	analysis, err := s.analyzer.Analyze(ctx, record.TenantID, msg)
	if err != nil {
		s.logger.Warn("message analysis failed",
			zap.String("platform_message_id", msg.PlatformMessageID),
			zap.Error(err))
		result.AddError(messaging.ProcessingError{
			PlatformMessageID: msg.PlatformMessageID,
			Code:              messaging.CodeAIAnalysisFailed,
			Message:           err.Error(),
			Retryable:         true,
		})
		return true
	}
	if analysis != nil {
		record.OrderIntent = analysis.OrderIntent
	}
	return false
}

// storeWithRetry hands the record to the store under the database-oriented
// retry policy.
func (s *WebhookProcessingService) storeWithRetry(ctx context.Context, record *messaging.MessageRecord) (*messaging.StoreOutcome, error) {
	data, err := s.executor.ExecuteOrError(ctx, func(ctx context.Context) (any, error) {
		return s.store.Store(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	return data.(*messaging.StoreOutcome), nil
}
