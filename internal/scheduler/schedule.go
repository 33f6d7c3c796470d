package scheduler

import (
	"fmt"
	"strings"

	"github.com/harunnryd/opsgate/internal/config"
	opsErrors "github.com/harunnryd/opsgate/internal/errors"
	"github.com/harunnryd/opsgate/internal/orchestrator"
	"github.com/harunnryd/opsgate/internal/policy"

	"github.com/robfig/cron/v3"
)

// Schedule is a validated recurring job definition.
type Schedule struct {
	Name    string
	Spec    string
	Request orchestrator.JobRequest

	cron cron.Schedule
}

// ParseSchedules validates configured schedules. Names must be unique.
func ParseSchedules(items []config.ScheduleConfig) ([]Schedule, error) {
	schedules := make([]Schedule, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, opsErrors.Configuration(fmt.Sprintf("schedules[%d]: name is required", i))
		}
		if _, dup := seen[name]; dup {
			return nil, opsErrors.Configuration(fmt.Sprintf("schedules[%d]: duplicate name %q", i, name))
		}
		seen[name] = struct{}{}

		parsed, err := cron.ParseStandard(strings.TrimSpace(item.Spec))
		if err != nil {
			return nil, opsErrors.Configuration(fmt.Sprintf("schedule %q: invalid cron spec %q: %v", name, item.Spec, err))
		}
		if strings.TrimSpace(item.Goal) == "" {
			return nil, opsErrors.Configuration(fmt.Sprintf("schedule %q: goal is required", name))
		}

		req := orchestrator.JobRequest{
			Goal:           item.Goal,
			RunDiagnostics: !item.SkipDiagnostics,
		}
		if env := strings.TrimSpace(item.Environment); env != "" {
			req.Environment, err = policy.ParseEnvironment(env)
			if err != nil {
				return nil, opsErrors.Configuration(fmt.Sprintf("schedule %q: %v", name, err))
			}
		}
		if level := strings.TrimSpace(item.Risk); level != "" {
			r, err := policy.ParseRisk(level)
			if err != nil {
				return nil, opsErrors.Configuration(fmt.Sprintf("schedule %q: %v", name, err))
			}
			req.Risk = &r
		}

		schedules = append(schedules, Schedule{
			Name:    name,
			Spec:    item.Spec,
			Request: req,
			cron:    parsed,
		})
	}

	return schedules, nil
}
