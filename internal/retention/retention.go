package retention

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Pruner periodically deletes sensor rows older than the retention cutoff.
// It takes no lock against live traffic: only strictly old rows are touched.
type Pruner struct {
	db       *sqlx.DB
	logger   *zap.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewPruner(db *sqlx.DB, logger *zap.Logger, interval, maxAge time.Duration) *Pruner {
	return &Pruner{db: db, logger: logger, interval: interval, maxAge: maxAge}
}

// Run blocks until ctx is cancelled, pruning on every tick. Call it from its
// own goroutine.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PruneOnce(ctx); err != nil {
				p.logger.Error("sensor data prune failed", zap.Error(err))
			}
		}
	}
}

// PruneOnce deletes accelerometer rows whose timestamp is older than the
// cutoff. Timestamps are stored as epoch milliseconds.
func (p *Pruner) PruneOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-p.maxAge).UnixMilli()
	res, err := p.db.ExecContext(ctx, `DELETE FROM accelerometer_data WHERE ts < $1`, cutoff)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil {
		p.logger.Info("pruned sensor data", zap.Int64("rows", rows), zap.Int64("cutoff", cutoff))
	}
	return nil
}
