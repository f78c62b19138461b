package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary the dubbing pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement on PATH.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Check resolves req. Blank commands are reported as not configured rather
// than looked up.
func Check(req Requirement) Status {
	st := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(st.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		return st
	}
	st.Path = path
	st.Available = true
	return st
}

// CheckBinaries resolves each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		out[i] = Check(req)
	}
	return out
}

// MissingRequired returns the names of unavailable, non-optional binaries.
func MissingRequired(statuses []Status) []string {
	var names []string
	for _, st := range statuses {
		if !st.Optional && !st.Available {
			names = append(names, st.Name)
		}
	}
	return names
}
