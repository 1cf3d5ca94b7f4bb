package clip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"bookscribe/internal/services"
)

// Extract copies the first seconds of source into a temporary mp3 clip using
// ffmpeg stream copy. It returns the clip path and a cleanup function that
// removes the clip; cleanup is safe to call more than once. On failure the
// temporary file is removed before the error is returned.
func Extract(ctx context.Context, binary, source string, seconds int) (string, func(), error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return "", nil, services.Wrap(services.ErrValidation, "clip", "extract", "empty source path", nil)
	}
	if seconds < 1 {
		return "", nil, services.Wrap(services.ErrValidation, "clip", "extract", fmt.Sprintf("clip length %d must be at least 1 second", seconds), nil)
	}

	tmp, err := os.CreateTemp("", "bookscribe-clip-*.mp3")
	if err != nil {
		return "", nil, fmt.Errorf("create clip file: %w", err)
	}
	path := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("close clip file: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-v", "error",
		"-i", source,
		"-t", strconv.Itoa(seconds),
		"-acodec", "copy",
		path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(path)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", nil, services.Wrap(services.ErrTimeout, "clip", "extract", "ffmpeg timed out", err)
		}
		return "", nil, services.Wrap(services.ErrExternalTool, "clip", "extract", strings.TrimSpace(string(output)), err)
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		os.Remove(path)
		return "", nil, services.Wrap(services.ErrExternalTool, "clip", "extract", "ffmpeg produced an empty clip", err)
	}

	cleanup := func() { os.Remove(path) }
	return path, cleanup, nil
}
