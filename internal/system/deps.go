package system

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement is an external binary or file the pipeline may call.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// IsFile checks for a file on disk instead of a binary on PATH.
	IsFile bool
}

type Status struct {
	Requirement
	Available bool
	Detail    string
}

// CheckRequirements reports which requirements are present.
func CheckRequirements(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		switch {
		case req.Command == "":
			status.Detail = "not configured"
		case req.IsFile:
			if _, err := os.Stat(req.Command); err != nil {
				status.Detail = fmt.Sprintf("file %q not found", req.Command)
			} else {
				status.Available = true
			}
		default:
			if path, err := exec.LookPath(req.Command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			} else {
				status.Available = true
				status.Detail = path
			}
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional requirements.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Optional && !s.Available {
			missing = append(missing, s.Name)
		}
	}
	return missing
}
