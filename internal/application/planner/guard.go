package planner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
	"github.com/mealforge/v1/pkg/errors"
	"go.uber.org/zap"
)

// quotaRunTypes are the run types counted against the rolling-hour cap.
var quotaRunTypes = []mealplan.RunType{mealplan.RunTypeGenerate, mealplan.RunTypeRegenerate}

// guard enforces the per-user rate limit and the single-writer lock before a
// generation run starts. The ledger is durable, so the lock holds across
// processes.
type guard struct {
	runs   outbound.RunRepository
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func newGuard(runs outbound.RunRepository, cfg Config, logger *zap.Logger) *guard {
	return &guard{runs: runs, cfg: cfg, logger: logger.Named("guard"), now: time.Now}
}

// admit runs the three pre-flight checks: stale-lock reclamation, quota
// count, lock exclusion. Infrastructure failures on the first two fail open:
// quota and lock data loss must not block legitimate use. The lock check
// itself fails open too, but a found holder fails closed with CONFLICT.
func (g *guard) admit(ctx context.Context, userID string, planID *uuid.UUID, currentRun uuid.UUID) error {
	cutoff := g.now().Add(-g.cfg.LockStaleAfter)
	if reclaimed, err := g.runs.ReclaimStale(ctx, userID, cutoff); err != nil {
		g.logger.Warn("Stale lock reclamation failed, proceeding",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	} else if reclaimed > 0 {
		g.logger.Info("Reclaimed stale generation locks",
			zap.String("user_id", userID),
			zap.Int("count", reclaimed),
		)
	}

	since := g.now().Add(-time.Hour)
	count, err := g.runs.CountCompletedSince(ctx, userID, since, quotaRunTypes)
	if err != nil {
		g.logger.Warn("Quota count failed, proceeding",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	} else if count >= g.cfg.RateLimitPerHour {
		return errors.NewRateLimitError(g.cfg.RateLimitPerHour)
	}

	holder, err := g.runs.FindRunning(ctx, userID, planID, currentRun)
	if err != nil {
		g.logger.Warn("Lock lookup failed, proceeding",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	if holder != nil {
		return errors.NewConflictError(userID).WithMetadata("holder_run_id", holder.ID.String())
	}
	return nil
}
