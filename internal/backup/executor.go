package backup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"logdb-backup/internal/config"
	"logdb-backup/internal/engine"
	opserrors "logdb-backup/internal/errors"
	"logdb-backup/internal/logging"
)

// Executor creates one artifact per invocation: dump, compress,
// optionally encrypt, write the manifest, optionally copy offsite,
// then enforce retention for the tier that was just used.
type Executor struct {
	cfg         *config.Config
	eng         engine.Engine
	store       *Store
	compression *CompressionManager
	encryption  *EncryptionManager
	enforcer    *RetentionEnforcer
	uploader    OffsiteUploader
	logger      *logging.Logger
	toolVersion string
	now         func() time.Time
}

// Result reports a completed backup run.
type Result struct {
	ArtifactPath string           `json:"artifact_path"`
	Manifest     *Manifest        `json:"manifest"`
	Retention    *RetentionResult `json:"retention"`
	Duration     time.Duration    `json:"duration"`
}

// NewExecutor wires a backup executor from the resolved configuration.
// uploader may be nil when no offsite target is configured.
func NewExecutor(cfg *config.Config, eng engine.Engine, store *Store, uploader OffsiteUploader, logger *logging.Logger, toolVersion string) *Executor {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Executor{
		cfg:         cfg,
		eng:         eng,
		store:       store,
		compression: NewCompressionManager(),
		encryption:  NewEncryptionManager(cfg.Backup.Encryption.PassphraseEnv),
		enforcer:    NewRetentionEnforcer(store, cfg.Backup.Retention, logger),
		uploader:    uploader,
		logger:      logger,
		toolVersion: toolVersion,
		now:         time.Now,
	}
}

// Run performs a backup for the tier. A failed dump never leaves a
// partial or zero-byte artifact: every stage writes to a temp file
// that is renamed into place only after the whole pipeline succeeded.
func (x *Executor) Run(ctx context.Context, tier Tier) (*Result, error) {
	start := x.now()

	tierDir, err := x.store.TierDir(tier)
	if err != nil {
		return nil, err
	}

	encrypted := x.cfg.Backup.Encryption.Enabled
	compression := x.cfg.Backup.Compression
	finalName := ArtifactName(x.eng.Kind(), tier, start, compression, encrypted)
	finalPath := filepath.Join(tierDir, finalName)

	rawPath := filepath.Join(tierDir, "."+finalName+".raw")
	stagePath := filepath.Join(tierDir, "."+finalName+".stage")
	defer os.Remove(rawPath)
	defer os.Remove(stagePath)

	x.logger.Infof("Starting %s backup of %s", tier, x.eng.DatabaseName())
	if err := x.eng.Dump(ctx, rawPath); err != nil {
		return nil, err
	}

	rowCount := x.currentRowCount(ctx)

	if err := x.compression.CompressFile(compression, rawPath, stagePath); err != nil {
		return nil, err
	}

	if encrypted {
		encPath := stagePath + ".enc"
		defer os.Remove(encPath)
		if err := x.encryption.EncryptFile(stagePath, encPath); err != nil {
			return nil, err
		}
		stagePath = encPath
	}

	if err := os.Rename(stagePath, finalPath); err != nil {
		return nil, opserrors.NewStorageError("failed to move artifact into place", err)
	}

	checksum, err := ChecksumFile(finalPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, opserrors.NewStorageError("failed to stat artifact", err)
	}

	manifest := &Manifest{
		ID:          uuid.NewString(),
		Kind:        x.eng.Kind(),
		Tier:        tier,
		CreatedAt:   start,
		Database:    x.eng.DatabaseName(),
		Table:       x.cfg.Table,
		RowCount:    rowCount,
		Compression: compression,
		Encrypted:   encrypted,
		SizeBytes:   info.Size(),
		Checksum:    checksum,
		ToolVersion: x.toolVersion,
	}
	if err := x.store.WriteManifest(finalPath, manifest); err != nil {
		return nil, err
	}

	x.logger.LogArtifactWritten(finalPath, string(tier), info.Size(), x.now().Sub(start))

	// The local artifact is authoritative; a failed offsite copy is a
	// warning, not a backup failure.
	if x.uploader != nil {
		if err := x.uploader.Upload(ctx, finalPath, manifest); err != nil {
			x.logger.Warnf("Offsite upload failed for %s: %v", finalName, err)
		}
	}

	retention, err := x.enforcer.Enforce(tier, finalPath, false)
	if err != nil {
		return nil, err
	}

	return &Result{
		ArtifactPath: finalPath,
		Manifest:     manifest,
		Retention:    retention,
		Duration:     x.now().Sub(start),
	}, nil
}

// currentRowCount records the primary-table row count for the
// manifest. A missing table is not fatal at backup time; the manifest
// records -1 and restore skips the count comparison.
func (x *Executor) currentRowCount(ctx context.Context) int64 {
	db, err := x.eng.Open()
	if err != nil {
		x.logger.Warnf("Cannot open database for row count: %v", err)
		return -1
	}
	defer db.Close()

	count, err := x.eng.RowCount(ctx, db, x.cfg.Table)
	if err != nil {
		x.logger.Warnf("Cannot count rows in %s: %v", x.cfg.Table, err)
		return -1
	}
	return count
}
