// Package syncer mirrors a user's remote notebooks, notes and tags
// into the local store. Notes are deduplicated globally by remote GUID
// with per-user access grants, so content shared between accounts is
// stored exactly once.
package syncer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/notemirror/backend/internal/auth"
	"github.com/notemirror/backend/internal/backoff"
	"github.com/notemirror/backend/internal/remote"
)

const (
	defaultPageSize     = 50
	defaultPageInterval = 250 * time.Millisecond
	maxErrorTextBytes   = 2000
)

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies of the sync service.
type ServiceConfig struct {
	Database   *gorm.DB
	Auth       *auth.Provider
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger

	// PageSize bounds each remote metadata listing. Zero means 50.
	PageSize int
	// PageInterval paces successive listing calls against the remote
	// service's rate limits. Zero means 250ms.
	PageInterval time.Duration
	// ListBackoff retries transient listing failures. Zero value means
	// backoff.DefaultPolicy.
	ListBackoff backoff.Policy
}

// Service drives sync passes. One pass per user is strictly sequential;
// passes for different users may run concurrently against the same
// database, which is why every note insert and access grant is
// conflict-safe rather than lock-guarded.
type Service struct {
	db           *gorm.DB
	authProvider *auth.Provider
	clock        func() time.Time
	ids          IDProvider
	logger       *zap.Logger
	pageSize     int
	pager        *rate.Limiter
	listBackoff  backoff.Policy
}

// NewService constructs the sync service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Auth == nil {
		return nil, newServiceError(opServiceNew, "missing_auth_provider", errMissingAuthProvider)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	interval := cfg.PageInterval
	if interval <= 0 {
		interval = defaultPageInterval
	}
	policy := cfg.ListBackoff
	if policy.MaxAttempts == 0 {
		policy = backoff.DefaultPolicy
	}

	return &Service{
		db:           cfg.Database,
		authProvider: cfg.Auth,
		clock:        clock,
		ids:          cfg.IDProvider,
		logger:       logger,
		pageSize:     pageSize,
		pager:        rate.NewLimiter(rate.Every(interval), 1),
		listBackoff:  policy,
	}, nil
}

// Summary reports one completed pass.
type Summary struct {
	Notebooks int `json:"notebooks"`
	Own       int `json:"own"`
	Shared    int `json:"shared"`
	Notes     int `json:"notes"`
}

// SyncUser runs a full pass for one user: own notebooks, then linked
// notebooks, then every resulting notebook's notes. The pass is bounded
// by a STARTED sync-log row and exactly one terminal SUCCESS or FAILED
// row update. Invalid remote auth fails before any log row is written.
func (s *Service) SyncUser(ctx context.Context, userID int64) (Summary, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Summary{}, newServiceError(opSyncUser, "user_not_found", ErrUserNotFound)
		}
		return Summary{}, newServiceError(opSyncUser, "user_select_failed", err)
	}

	client, err := s.authProvider.ClientFor(user.RemoteToken, user.RemoteShard, user.TokenExpiresAt)
	if err != nil {
		return Summary{}, newServiceError(opSyncUser, "remote_auth_invalid", err)
	}

	passID, err := s.ids.NewID()
	if err != nil {
		return Summary{}, newServiceError(opSyncUser, "id_generation_failed", err)
	}

	log := SyncLog{
		PassID:    passID,
		UserID:    user.ID,
		SyncType:  SyncTypeFull,
		Status:    SyncStatusStarted,
		StartedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return Summary{}, newServiceError(opSyncUser, "log_create_failed", err)
	}

	passLogger := s.logger.With(
		zap.String("pass_id", passID),
		zap.Int64("user_id", user.ID))
	passLogger.Info("sync pass started")

	summary, err := s.runPass(ctx, client, &user)
	if err != nil {
		s.finishLog(ctx, log.ID, SyncStatusFailed, 0, 0, err.Error())
		passLogger.Error("sync pass failed", zap.Error(err))
		return Summary{}, err
	}

	s.finishLog(ctx, log.ID, SyncStatusSuccess, summary.Notebooks, summary.Notes, "")
	passLogger.Info("sync pass finished",
		zap.Int("notebooks", summary.Notebooks),
		zap.Int("notes", summary.Notes))
	return summary, nil
}

func (s *Service) runPass(ctx context.Context, client remote.ContentClient, user *User) (Summary, error) {
	own, err := s.syncOwnNotebooks(ctx, client, user)
	if err != nil {
		return Summary{}, err
	}
	linked, err := s.syncLinkedNotebooks(ctx, client, user)
	if err != nil {
		return Summary{}, err
	}

	totalNotes := 0
	targets := append(append([]Target{}, own...), linked...)
	for _, target := range targets {
		stats, err := s.syncNotebookNotes(ctx, user, target)
		if err != nil {
			return Summary{}, err
		}
		totalNotes += stats.Synced()
	}

	now := s.clock().UTC()
	if err := s.db.WithContext(ctx).Model(user).Update("last_sync_at", now).Error; err != nil {
		return Summary{}, newServiceError(opSyncUser, "user_stamp_failed", err)
	}

	return Summary{
		Notebooks: len(targets),
		Own:       len(own),
		Shared:    len(linked),
		Notes:     totalNotes,
	}, nil
}

// finishLog writes the terminal state in a single update so the status,
// counts and finish time land atomically. The log row is never touched
// again afterwards.
func (s *Service) finishLog(ctx context.Context, logID int64, status string, notebooks, notes int, errorText string) {
	finished := s.clock().UTC()
	updates := map[string]interface{}{
		"status":           status,
		"notebooks_synced": notebooks,
		"notes_synced":     notes,
		"finished_at":      finished,
		"error_message":    truncateError(errorText),
	}
	if err := s.db.WithContext(ctx).Model(&SyncLog{}).Where("id = ?", logID).Updates(updates).Error; err != nil {
		s.logger.Error("sync log finalize failed",
			zap.Int64("log_id", logID),
			zap.String("status", status),
			zap.Error(err))
	}
}

func truncateError(text string) string {
	if len(text) <= maxErrorTextBytes {
		return text
	}
	return text[:maxErrorTextBytes]
}
