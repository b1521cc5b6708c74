package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"rl-tracker/internal/config"

	"github.com/rs/zerolog"
)

// Converter turns a raw replay file into telemetry JSON.
type Converter interface {
	Convert(ctx context.Context, replayPath string) ([]byte, error)
}

// ExecConverter shells out to the replay parser binary. A hung parse is
// bounded by the configured timeout, after which the file counts as corrupt.
type ExecConverter struct {
	bin     string
	timeout time.Duration
	logger  zerolog.Logger
}

func NewExecConverter(cfg *config.Config, logger zerolog.Logger) *ExecConverter {
	return &ExecConverter{
		bin:     cfg.ConverterBin,
		timeout: cfg.ConvertTimeout,
		logger:  logger,
	}
}

func (c *ExecConverter) Convert(ctx context.Context, replayPath string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.bin, replayPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	c.logger.Debug().
		Str("bin", c.bin).
		Str("replay", replayPath).
		Dur("took", time.Since(start)).
		Msg("converter finished")

	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s timed out after %s", c.bin, c.timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		diag := strings.TrimSpace(stderr.String())
		return nil, fmt.Errorf("%s failed (exit %d): %s", c.bin, exitErr.ExitCode(), diag)
	}
	return nil, fmt.Errorf("%s failed to launch: %w", c.bin, err)
}
