// Package restore replays a backup artifact into the live database.
// The workflow is a linear state machine with no branching back:
//
//	START → CONFIRM → STOP_SERVICE → BACKUP_CURRENT → REPLACE_TARGET →
//	REPLAY_ARTIFACT → VERIFY → START_SERVICE → DONE
//
// Any step failing before VERIFY aborts the run. A VERIFY failure is
// the most severe outcome: the destructive replacement already
// happened and only the BACKUP_CURRENT safety-net copy remains, which
// is never restored automatically.
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"logdb-backup/internal/backup"
	"logdb-backup/internal/config"
	"logdb-backup/internal/confirm"
	"logdb-backup/internal/engine"
	opserrors "logdb-backup/internal/errors"
	"logdb-backup/internal/logging"
	"logdb-backup/internal/service"
)

// Step names a state machine position, recorded in logs and results.
type Step string

const (
	StepStart         Step = "START"
	StepConfirm       Step = "CONFIRM"
	StepStopService   Step = "STOP_SERVICE"
	StepBackupCurrent Step = "BACKUP_CURRENT"
	StepReplaceTarget Step = "REPLACE_TARGET"
	StepReplay        Step = "REPLAY_ARTIFACT"
	StepVerify        Step = "VERIFY"
	StepStartService  Step = "START_SERVICE"
	StepDone          Step = "DONE"
	StepCancelled     Step = "CANCELLED"
)

// Result reports a finished (or cancelled) restore.
type Result struct {
	Artifact     string        `json:"artifact"`
	FinalStep    Step          `json:"final_step"`
	Cancelled    bool          `json:"cancelled"`
	SafetyCopy   string        `json:"safety_copy,omitempty"`
	RowCount     int64         `json:"row_count"`
	ExpectedRows int64         `json:"expected_rows"`
	Duration     time.Duration `json:"duration"`
}

// Executor drives the restore state machine.
type Executor struct {
	cfg       *config.Config
	eng       engine.Engine
	store     *backup.Store
	svc       service.Controller
	confirmer confirm.Confirmer
	logger    *logging.Logger
	now       func() time.Time
}

// NewExecutor wires a restore executor.
func NewExecutor(cfg *config.Config, eng engine.Engine, store *backup.Store, svc service.Controller, confirmer confirm.Confirmer, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Executor{
		cfg:       cfg,
		eng:       eng,
		store:     store,
		svc:       svc,
		confirmer: confirmer,
		logger:    logger,
		now:       time.Now,
	}
}

// Run restores the artifact at path. All pre-flight validation runs
// before any side effect: a missing artifact or a kind mismatch exits
// with zero filesystem mutation and no service stop attempted.
func (x *Executor) Run(ctx context.Context, path string) (*Result, error) {
	start := x.now()
	result := &Result{Artifact: path, FinalStep: StepStart, ExpectedRows: -1}

	// Pre-flight: resolve the artifact, preferring its manifest over
	// file name parsing.
	artifact, err := x.store.Resolve(path)
	if err != nil {
		return result, err
	}
	if err := backup.VerifyKind(artifact, x.eng.Kind()); err != nil {
		return result, err
	}

	compression := "none"
	encrypted := false
	if artifact.Manifest != nil {
		compression = artifact.Manifest.Compression
		encrypted = artifact.Manifest.Encrypted
		result.ExpectedRows = artifact.Manifest.RowCount
	} else if parsed, err := backup.ParseArtifactName(path); err == nil {
		compression = parsed.Compression
		encrypted = parsed.Encrypted
	}

	// CONFIRM: anything but an explicit yes halts with no side effects.
	result.FinalStep = StepConfirm
	approved, err := x.confirmer.Confirm(fmt.Sprintf(
		"Restore %s into %s? This DESTROYS the current database", artifact.Name, x.eng.DatabaseName()))
	if err != nil {
		return result, err
	}
	if !approved {
		result.FinalStep = StepCancelled
		result.Cancelled = true
		x.logger.Info("Restore cancelled by operator, nothing was changed")
		return result, nil
	}

	// STOP_SERVICE: best effort.
	result.FinalStep = StepStopService
	_ = x.svc.Stop(ctx)
	x.logger.LogRestoreStep(string(StepStopService), nil)

	// BACKUP_CURRENT: the single safety net against a bad restore.
	result.FinalStep = StepBackupCurrent
	if err := x.backupCurrent(ctx, result); err != nil {
		x.logger.LogRestoreStep(string(StepBackupCurrent), err)
		return result, err
	}
	x.logger.LogRestoreStep(string(StepBackupCurrent), nil)

	// REPLACE_TARGET: destructive from here on.
	result.FinalStep = StepReplaceTarget
	if err := x.eng.ReplaceTarget(ctx); err != nil {
		x.logger.LogRestoreStep(string(StepReplaceTarget), err)
		return result, err
	}
	x.logger.LogRestoreStep(string(StepReplaceTarget), nil)

	// REPLAY_ARTIFACT: decrypt/decompress, then engine-native load.
	result.FinalStep = StepReplay
	if err := x.replay(ctx, path, compression, encrypted); err != nil {
		x.logger.LogRestoreStep(string(StepReplay), err)
		return result, err
	}
	x.logger.LogRestoreStep(string(StepReplay), nil)

	// VERIFY: failure here is fatal even though replay already
	// happened — detectable but not reversible, so it must be loud.
	result.FinalStep = StepVerify
	if err := x.verify(ctx, result); err != nil {
		x.logger.LogRestoreStep(string(StepVerify), err)
		x.logger.Errorf("RESTORE VERIFICATION FAILED. The database was replaced but did not verify. Safety-net copy: %s", result.SafetyCopy)
		return result, err
	}
	x.logger.LogRestoreStep(string(StepVerify), nil)

	// START_SERVICE: best effort.
	result.FinalStep = StepStartService
	_ = x.svc.Start(ctx)
	x.logger.LogRestoreStep(string(StepStartService), nil)

	result.FinalStep = StepDone
	result.Duration = x.now().Sub(start)
	x.logger.Infof("Restore of %s completed in %s", artifact.Name, result.Duration.Round(time.Millisecond))
	return result, nil
}

func (x *Executor) backupCurrent(ctx context.Context, result *Result) error {
	exists, err := x.eng.LiveExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		x.logger.Info("No live database found, skipping safety copy")
		return nil
	}

	stamp := x.now().Format("20060102_150405")
	var asidePath string
	if x.eng.Kind() == config.EngineSQLite {
		asidePath = x.cfg.SQLite.Path + ".pre-restore." + stamp
	} else {
		dir, err := x.store.TierDir(backup.TierDaily)
		if err != nil {
			return err
		}
		asidePath = filepath.Join(filepath.Dir(dir), fmt.Sprintf("pre-restore_%s.dump", stamp))
	}
	if err := x.eng.BackupCurrent(ctx, asidePath); err != nil {
		return err
	}
	result.SafetyCopy = asidePath
	x.logger.Infof("Safety-net copy written to %s (never auto-restored)", asidePath)
	return nil
}

func (x *Executor) replay(ctx context.Context, path, compression string, encrypted bool) error {
	workPath := path

	if encrypted {
		decrypted := filepath.Join(os.TempDir(), filepath.Base(path)+".dec")
		defer os.Remove(decrypted)
		em := backup.NewEncryptionManager(x.cfg.Backup.Encryption.PassphraseEnv)
		if err := em.DecryptFile(workPath, decrypted); err != nil {
			return err
		}
		workPath = decrypted
	}

	if compression != "none" {
		raw := filepath.Join(os.TempDir(), filepath.Base(path)+".raw")
		defer os.Remove(raw)
		cm := backup.NewCompressionManager()
		if err := cm.DecompressFile(compression, workPath, raw); err != nil {
			return err
		}
		workPath = raw
	}

	return x.eng.Load(ctx, workPath)
}

func (x *Executor) verify(ctx context.Context, result *Result) error {
	db, err := x.eng.Open()
	if err != nil {
		return opserrors.NewVerificationError("cannot open restored database", err)
	}
	defer db.Close()

	if err := x.eng.CheckIntegrity(ctx, db); err != nil {
		return err
	}

	count, err := x.eng.RowCount(ctx, db, x.cfg.Table)
	if err != nil {
		return opserrors.NewVerificationError("row count after restore failed", err)
	}
	result.RowCount = count

	if result.ExpectedRows >= 0 && count != result.ExpectedRows {
		return opserrors.NewVerificationError(fmt.Sprintf(
			"row count mismatch after restore: manifest recorded %d rows, restored table has %d",
			result.ExpectedRows, count), nil)
	}
	x.logger.Infof("Verified restored database: %d rows in %s", count, x.cfg.Table)
	return nil
}
