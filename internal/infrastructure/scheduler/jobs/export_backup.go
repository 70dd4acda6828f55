package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildxp/guildxp/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT BACKUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotStore persists serialized export snapshots.
type SnapshotStore interface {
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
}

// ExportBackupJob takes a periodic export snapshot of all records and parks
// it in the snapshot store. Snapshots are checksummed so a later import can
// detect corruption.
type ExportBackupJob struct {
	exporter *query.ExportRecordsHandler
	store    SnapshotStore
	logger   *slog.Logger
	config   ExportBackupConfig
}

// ExportBackupConfig contains configuration for the backup job.
type ExportBackupConfig struct {
	// KeyPrefix is prepended to each snapshot key.
	KeyPrefix string

	// Retention is how long snapshots stay in the store.
	Retention time.Duration
}

// DefaultExportBackupConfig returns sensible defaults.
func DefaultExportBackupConfig() ExportBackupConfig {
	return ExportBackupConfig{
		KeyPrefix: "snapshot:",
		Retention: 7 * 24 * time.Hour,
	}
}

// NewExportBackupJob creates the periodic backup job.
func NewExportBackupJob(
	exporter *query.ExportRecordsHandler,
	store SnapshotStore,
	logger *slog.Logger,
	config ExportBackupConfig,
) *ExportBackupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "snapshot:"
	}
	if config.Retention <= 0 {
		config.Retention = 7 * 24 * time.Hour
	}

	return &ExportBackupJob{
		exporter: exporter,
		store:    store,
		logger:   logger,
		config:   config,
	}
}

// Name implements scheduler.Job.
func (j *ExportBackupJob) Name() string {
	return "export_backup"
}

// Description implements scheduler.Job.
func (j *ExportBackupJob) Description() string {
	return "Takes a checksummed export snapshot of all records"
}

// Run implements scheduler.Job.
func (j *ExportBackupJob) Run(ctx context.Context) error {
	snapshot, err := j.exporter.Handle(ctx, query.ExportRecordsQuery{})
	if err != nil {
		return fmt.Errorf("failed to export records: %w", err)
	}

	data, err := snapshot.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := j.config.KeyPrefix + snapshot.CreatedAt.UTC().Format("2006-01-02T15-04-05")
	if err := j.store.SetString(ctx, key, string(data), j.config.Retention); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	j.logger.Info("export snapshot stored",
		"key", key,
		"records", len(snapshot.Records),
		"checksum", snapshot.Checksum,
		"bytes", len(data),
	)
	return nil
}
