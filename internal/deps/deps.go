// Package deps reports whether the external tools lingocast drives are
// installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names one external binary and how it is looked up.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional tools are reported but never block a run.
	Optional bool
}

// Status is the lookup outcome for one Requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Path is the resolved executable when Available is true.
	Path   string
	Detail string
}

// CheckBinaries resolves every requirement on PATH, in order.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		out[i] = check(req)
	}
	return out
}

func check(req Requirement) Status {
	s := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if s.Command == "" {
		s.Detail = "command not configured"
		return s
	}
	path, err := exec.LookPath(s.Command)
	if err != nil {
		s.Detail = fmt.Sprintf("binary %q not found", s.Command)
		return s
	}
	s.Available, s.Path = true, path
	return s
}

// Missing filters statuses down to required tools that were not found.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.Available || s.Optional {
			continue
		}
		out = append(out, s)
	}
	return out
}
