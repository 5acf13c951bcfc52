package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/database"
)

// importRunRetention is how long finished import runs stay queryable
// before the maintenance job prunes them.
const importRunRetention = 30 * 24 * time.Hour

// MaintenanceJob keeps the database healthy: integrity check, WAL
// checkpoint and pruning of old import runs.
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance pass
func (j *MaintenanceJob) Run() error {
	started := time.Now()

	if err := j.checkIntegrity(); err != nil {
		// Corruption cannot be auto-recovered; surface it loudly.
		return err
	}

	j.checkpointWAL()
	j.pruneImportRuns()

	j.log.Info().Dur("elapsed", time.Since(started)).Msg("Maintenance finished")
	return nil
}

func (j *MaintenanceJob) checkIntegrity() error {
	var result string
	if err := j.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}
	j.log.Debug().Msg("Database integrity OK")
	return nil
}

func (j *MaintenanceJob) checkpointWAL() {
	var mode, busy, walFrames, checkpointed int
	err := j.db.QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&mode, &busy, &walFrames, &checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		return
	}

	if walFrames > 1000 {
		j.log.Warn().
			Int("wal_frames", walFrames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large")
	} else {
		j.log.Debug().Int("wal_frames", walFrames).Msg("WAL checkpoint OK")
	}
}

func (j *MaintenanceJob) pruneImportRuns() {
	cutoff := time.Now().UTC().Add(-importRunRetention).Format(time.RFC3339)
	res, err := j.db.Exec(
		"DELETE FROM import_runs WHERE finished_at IS NOT NULL AND finished_at < ?",
		cutoff,
	)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to prune old import runs")
		return
	}

	if pruned, err := res.RowsAffected(); err == nil && pruned > 0 {
		j.log.Info().Int64("pruned", pruned).Msg("Pruned old import runs")
	}
}
