// Package scheduler runs the background jobs: periodic message sync for
// auto-sync connections and proactive token refresh.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appmessaging "github.com/chatwire/backend/internal/application/messaging"
	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/infrastructure/config"
)

// SyncScheduler periodically syncs due connections. Due-ness is decided by
// the repository query (auto-sync enabled, interval elapsed); the scheduler
// only paces the work and isolates per-connection failures.
type SyncScheduler struct {
	cron        *cron.Cron
	manager     *appmessaging.IntegrationManager
	connections messaging.ConnectionRepository
	cfg         config.SyncConfig
	logger      *zap.Logger
}

// NewSyncScheduler creates a SyncScheduler
func NewSyncScheduler(
	manager *appmessaging.IntegrationManager,
	connections messaging.ConnectionRepository,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		cron:        cron.New(),
		manager:     manager,
		connections: connections,
		cfg:         cfg,
		logger:      logger.With(zap.String("component", "sync_scheduler")),
	}
}

// Start registers the cron job and begins scheduling
func (s *SyncScheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("background sync disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.RunOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("background sync started", zap.String("schedule", s.cfg.CronSchedule))
	return nil
}

// Stop halts scheduling and waits for a running job to finish
func (s *SyncScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("background sync stopped")
}

// RunOnce executes one scheduling pass. Exported so operators can trigger a
// pass manually.
func (s *SyncScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	due, err := s.connections.FindAutoSyncDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to list due connections", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	if s.cfg.BatchLimit > 0 && len(due) > s.cfg.BatchLimit {
		due = due[:s.cfg.BatchLimit]
	}

	s.logger.Info("sync pass starting", zap.Int("connections", len(due)))
	for i := range due {
		if ctx.Err() != nil {
			s.logger.Warn("sync pass deadline reached", zap.Int("remaining", len(due)-i))
			return
		}
		s.syncOne(ctx, &due[i])
	}
}

// syncOne refreshes an expiring token and syncs one connection. Failures are
// logged and recorded on the row by the manager, never propagated.
func (s *SyncScheduler) syncOne(ctx context.Context, conn *messaging.IntegrationConnection) {
	logger := s.logger.With(
		zap.String("tenant_id", conn.TenantID.String()),
		zap.String("platform", conn.Platform.String()))

	if s.cfg.TokenRefreshWindow > 0 && conn.TokenExpiringWithin(s.cfg.TokenRefreshWindow) {
		outcomes, err := s.manager.RefreshTokens(ctx, conn.TenantID, s.cfg.TokenRefreshWindow)
		if err != nil {
			logger.Warn("token refresh pass failed", zap.Error(err))
		} else {
			for _, outcome := range outcomes {
				if outcome.Error != "" {
					logger.Warn("token refresh failed",
						zap.String("platform", outcome.Platform),
						zap.String("error", outcome.Error))
				}
			}
		}
	}

	report, err := s.manager.SyncMessages(ctx, conn.TenantID, conn.Platform, nil)
	if err != nil {
		logger.Warn("scheduled sync failed", zap.Error(err))
		return
	}
	logger.Info("scheduled sync completed",
		zap.Int("messages", report.MessagesCount),
		zap.Int("stored", report.MessagesStored),
		zap.Bool("has_more", report.HasMore))
}
