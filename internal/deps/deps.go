package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"bookscribe/internal/config"
)

// Requirement defines an external dependency bookscribe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements returns the external binaries the server needs.
func Requirements(cfg *config.Config) []Requirement {
	whisper := "whisper"
	ffmpeg := "ffmpeg"
	ffprobe := "ffprobe"
	if cfg != nil {
		whisper = cfg.WhisperBinary()
		ffmpeg = cfg.FFmpegBinary()
		ffprobe = cfg.FFprobeBinary()
	}
	return []Requirement{
		{
			Name:        "Whisper",
			Command:     whisper,
			Description: "Required for transcription",
		},
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Required for speed-test clip extraction",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe,
			Description: "Improves duration reporting; size-based estimate used when absent",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
