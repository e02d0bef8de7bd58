// Package deps reports the availability of external binaries the dubbing
// pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"overdub/internal/config"
	"overdub/internal/recognition"
)

// Requirement defines an external dependency overdub relies on.
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

// Requirements lists the binaries a pipeline run needs, resolved from
// configuration.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "ffmpeg",
			Command:     cfg.Media.FFmpegBinary,
			Description: "audio extraction and muxing",
		},
		{
			Name:        "ffprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "source media inspection",
		},
		{
			Name:        "uvx",
			Command:     recognitionBinary(cfg),
			Description: "runs the speech recognition model",
		},
	}
}

func recognitionBinary(cfg *config.Config) string {
	if binary := strings.TrimSpace(cfg.Recognition.Binary); binary != "" {
		return binary
	}
	return recognition.UVXCommand
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
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
