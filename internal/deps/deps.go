package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement defines an external binary callqa relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency. Path is the resolved
// executable when Available.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Check resolves one requirement.
func Check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := locate(status.Command)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// CheckBinaries evaluates the provided requirements in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}

// locate resolves cmd to an executable. A command containing a path
// separator must name an executable file; a bare name is looked up in PATH.
func locate(cmd string) (string, error) {
	if strings.ContainsRune(cmd, os.PathSeparator) {
		info, err := os.Stat(cmd)
		if err != nil || !isExecutable(info) {
			return "", fmt.Errorf("%q is not an executable file", cmd)
		}
		return cmd, nil
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		return "", fmt.Errorf("binary %q not found", cmd)
	}
	return resolved, nil
}
