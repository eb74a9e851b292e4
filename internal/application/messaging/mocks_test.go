package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/chatwire/backend/internal/domain/messaging"
)

// MockConnectionRepository is a mock implementation of ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) FindByTenantAndPlatform(ctx context.Context, tenantID uuid.UUID, platform messaging.Platform) (*messaging.IntegrationConnection, error) {
	args := m.Called(ctx, tenantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionRepository) FindByBusinessAccount(ctx context.Context, platform messaging.Platform, businessAccountID string) (*messaging.IntegrationConnection, error) {
	args := m.Called(ctx, platform, businessAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]messaging.IntegrationConnection, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]messaging.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionRepository) FindAutoSyncDue(ctx context.Context, now time.Time) ([]messaging.IntegrationConnection, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]messaging.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionRepository) Save(ctx context.Context, conn *messaging.IntegrationConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

// MockMessageStore is a mock implementation of MessageStore
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Exists(ctx context.Context, platform messaging.Platform, platformMessageID string) (bool, error) {
	args := m.Called(ctx, platform, platformMessageID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageStore) Store(ctx context.Context, record *messaging.MessageRecord) (*messaging.StoreOutcome, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.StoreOutcome), args.Error(1)
}

// MockMessageAnalyzer is a mock implementation of MessageAnalyzer
type MockMessageAnalyzer struct {
	mock.Mock
}

func (m *MockMessageAnalyzer) Analyze(ctx context.Context, tenantID uuid.UUID, msg *messaging.UnifiedMessage) (*messaging.AnalysisResult, error) {
	args := m.Called(ctx, tenantID, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.AnalysisResult), args.Error(1)
}

// MockIntegrationFactory is a mock implementation of IntegrationFactory
type MockIntegrationFactory struct {
	mock.Mock
}

func (m *MockIntegrationFactory) Build(ctx context.Context, conn *messaging.IntegrationConnection) (messaging.ChannelIntegration, error) {
	args := m.Called(ctx, conn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(messaging.ChannelIntegration), args.Error(1)
}

// MockChannelIntegration is a mock implementation of the adapter port
type MockChannelIntegration struct {
	mock.Mock
	platform messaging.Platform
}

func NewMockChannelIntegration(platform messaging.Platform) *MockChannelIntegration {
	return &MockChannelIntegration{platform: platform}
}

func (m *MockChannelIntegration) Platform() messaging.Platform { return m.platform }

func (m *MockChannelIntegration) Initialize(ctx context.Context, cfg *messaging.IntegrationConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockChannelIntegration) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockChannelIntegration) State() messaging.ConnectionStatus {
	args := m.Called()
	return args.Get(0).(messaging.ConnectionStatus)
}

func (m *MockChannelIntegration) VerifySubscription(mode, token, challenge string) (string, error) {
	args := m.Called(mode, token, challenge)
	return args.String(0), args.Error(1)
}

func (m *MockChannelIntegration) VerifyWebhook(signatureHeader string, body []byte) error {
	args := m.Called(signatureHeader, body)
	return args.Error(0)
}

func (m *MockChannelIntegration) ExtractBusinessAccount(body []byte) (string, error) {
	args := m.Called(body)
	return args.String(0), args.Error(1)
}

func (m *MockChannelIntegration) ParseWebhook(body []byte) ([]messaging.UnifiedMessage, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]messaging.UnifiedMessage), args.Error(1)
}

func (m *MockChannelIntegration) SendMessage(ctx context.Context, msg *messaging.UnifiedMessage) (*messaging.SendResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.SendResult), args.Error(1)
}

func (m *MockChannelIntegration) SyncMessages(ctx context.Context, req *messaging.SyncRequest) (*messaging.SyncOutcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.SyncOutcome), args.Error(1)
}

func (m *MockChannelIntegration) HealthCheck(ctx context.Context) (*messaging.HealthStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.HealthStatus), args.Error(1)
}

func (m *MockChannelIntegration) RefreshToken(ctx context.Context) (string, time.Time, error) {
	args := m.Called(ctx)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockChannelIntegration) RateLimit() messaging.RateLimitInfo {
	args := m.Called()
	return args.Get(0).(messaging.RateLimitInfo)
}

func (m *MockChannelIntegration) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
