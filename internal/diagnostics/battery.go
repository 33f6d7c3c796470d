package diagnostics

import (
	"fmt"

	"github.com/google/shlex"
)

// Check is one read-only diagnostic command.
type Check struct {
	Name    string
	Command string
	Argv    []string
}

var defaultBattery = []struct {
	name    string
	command string
}{
	{"git_status", "git status --short"},
	{"git_branch", "git branch --show-current"},
	{"git_last_commit", "git log -1 --oneline"},
	{"kubectl_context", "kubectl config current-context"},
	{"kubectl_pods_all", "kubectl get pods -A"},
	{"helm_list_all", "helm list -A"},
}

// NewCheck splits command with shell quoting rules. No shell is involved
// when the check runs.
func NewCheck(name, command string) (Check, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return Check{}, fmt.Errorf("split command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return Check{}, fmt.Errorf("check %s has an empty command", name)
	}
	return Check{Name: name, Command: command, Argv: argv}, nil
}

// DefaultBattery returns the fixed, ordered diagnostics battery.
func DefaultBattery() []Check {
	checks := make([]Check, 0, len(defaultBattery))
	for _, entry := range defaultBattery {
		check, err := NewCheck(entry.name, entry.command)
		if err != nil {
			panic(err)
		}
		checks = append(checks, check)
	}
	return checks
}
