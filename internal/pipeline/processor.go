package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rl-tracker/internal/config"
	"rl-tracker/internal/repository"
	"rl-tracker/internal/service"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Status is the coarse user-visible state of an uploaded file.
type Status string

const (
	// StatusPending: raw file present, no sidecar yet.
	StatusPending Status = "pending"
	// StatusProcessed: sidecar present.
	StatusProcessed Status = "processed"
	// StatusError: neither present, the file failed and was cleaned up.
	StatusError Status = "error"
)

// FileResult reports one file's outcome within a batch.
type FileResult struct {
	OK    bool
	Error string
}

// Processor is the debounced batch processor for uploaded replay files.
// Every enqueue restarts the countdown; when it fires the whole accumulated
// queue drains as one batch under the batch lock, with one commit.
type Processor struct {
	db        *sql.DB
	converter Converter
	ingest    *service.IngestService
	delay     time.Duration
	logger    zerolog.Logger

	mu    sync.Mutex // guards queue and timer
	queue []string
	timer *time.Timer

	batchMu sync.Mutex // serializes convert+ingest+commit across callers
}

func NewProcessor(
	sqlDB *sql.DB,
	converter Converter,
	ingest *service.IngestService,
	cfg *config.Config,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		db:        sqlDB,
		converter: converter,
		ingest:    ingest,
		delay:     cfg.UploadDebounce,
		logger:    logger,
	}
}

// SidecarPath is where a replay's converted telemetry lands on disk.
func SidecarPath(replayPath string) string {
	return replayPath + ".json"
}

// Enqueue adds an uploaded file to the pending queue and restarts the
// debounce countdown, coalescing upload bursts into one batch.
func (p *Processor) Enqueue(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = append(p.queue, path)
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, p.flush)
}

func (p *Processor) flush() {
	p.mu.Lock()
	files := p.queue
	p.queue = nil
	p.timer = nil
	p.mu.Unlock()

	if len(files) == 0 {
		return
	}
	if _, err := p.ProcessBatch(context.Background(), files); err != nil {
		p.logger.Error().Err(err).Int("files", len(files)).Msg("batch processing failed")
	}
}

// ProcessBatch converts and ingests files in enqueue order under the batch
// lock and commits once at the end. Per-file failures clean up their own
// artifacts and never abort the batch; a storage invariant violation does.
func (p *Processor) ProcessBatch(ctx context.Context, files []string) (map[string]FileResult, error) {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	batchID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch id: %w", err)
	}
	logger := p.logger.With().Str("batch_id", batchID).Logger()
	logger.Info().Int("files", len(files)).Msg("processing replay batch")

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	results := make(map[string]FileResult, len(files))
	for _, path := range files {
		name := filepath.Base(path)
		if err := p.processFile(ctx, tx, path, logger); err != nil {
			if errors.Is(err, repository.ErrMatchRowMissing) {
				// The store no longer holds what was just written; nothing
				// in this batch can be trusted.
				return nil, err
			}
			results[name] = FileResult{Error: err.Error()}
			continue
		}
		results[name] = FileResult{OK: true}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	logger.Info().Int("files", len(files)).Msg("batch committed")
	return results, nil
}

func (p *Processor) processFile(ctx context.Context, tx *sql.Tx, path string, logger zerolog.Logger) error {
	name := filepath.Base(path)

	data, err := p.converter.Convert(ctx, path)
	if err != nil {
		logger.Warn().Err(err).Str("file", name).Msg("conversion failed, removing upload")
		removeIfExists(path)
		return err
	}

	sidecar := SidecarPath(path)
	if err := os.WriteFile(sidecar, data, 0o644); err != nil {
		removeIfExists(path)
		return fmt.Errorf("failed to write sidecar for %s: %w", name, err)
	}

	if err := p.ingest.IngestTelemetry(ctx, tx, data); err != nil {
		if errors.Is(err, repository.ErrMatchRowMissing) {
			return err
		}
		logger.Warn().Err(err).Str("file", name).Msg("ingest failed, removing artifacts")
		removeIfExists(path)
		removeIfExists(sidecar)
		return fmt.Errorf("ingest failed: %w", err)
	}

	logger.Info().Str("file", name).Msg("replay processed")
	return nil
}

// Bootstrap drains leftover work in the replay directory: raw replays with
// no sidecar are converted and ingested, then every sidecar on disk is
// re-ingested so the database reflects the files present.
func (p *Processor) Bootstrap(ctx context.Context, replayDir string) error {
	replays, err := filepath.Glob(filepath.Join(replayDir, "*.replay"))
	if err != nil {
		return fmt.Errorf("failed to scan replay dir: %w", err)
	}

	var unprocessed []string
	for _, path := range replays {
		if !fileExists(SidecarPath(path)) {
			unprocessed = append(unprocessed, path)
		}
	}
	if len(unprocessed) > 0 {
		p.logger.Info().Int("files", len(unprocessed)).Msg("processing unconverted replays at startup")
		if _, err := p.ProcessBatch(ctx, unprocessed); err != nil {
			return err
		}
	}

	sidecars, err := filepath.Glob(filepath.Join(replayDir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to scan replay dir: %w", err)
	}
	if len(sidecars) == 0 {
		return nil
	}

	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bootstrap transaction: %w", err)
	}
	defer tx.Rollback()

	p.logger.Info().Int("files", len(sidecars)).Msg("ingesting replay telemetry at startup")
	for _, path := range sidecars {
		data, err := os.ReadFile(path)
		if err != nil {
			p.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("failed to read sidecar, skipping")
			continue
		}
		if err := p.ingest.IngestTelemetry(ctx, tx, data); err != nil {
			if errors.Is(err, repository.ErrMatchRowMissing) {
				return err
			}
			p.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("failed to ingest sidecar, skipping")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bootstrap batch: %w", err)
	}
	return nil
}

// Status reports the coarse state of an uploaded file by what survives on
// disk. Detailed error text stays in the logs.
func (p *Processor) Status(path string) Status {
	if fileExists(SidecarPath(path)) {
		return StatusProcessed
	}
	if fileExists(path) {
		return StatusPending
	}
	return StatusError
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// removeIfExists is best effort; the status query treats leftovers as pending.
func removeIfExists(path string) {
	_ = os.Remove(path)
}
