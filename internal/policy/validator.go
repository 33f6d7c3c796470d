package policy

import (
	"fmt"
	"strings"
)

// Validate checks a decoded document for values the decoder cannot reject on its own.
func (d *Document) Validate() error {
	if d == nil {
		return nil
	}

	for env, control := range d.EnvironmentControls {
		if !env.Valid() {
			return fmt.Errorf("environment_controls: unknown environment %q", env)
		}
		if control.MaxAutoRisk != nil && !control.MaxAutoRisk.Valid() {
			return fmt.Errorf("environment_controls.%s: invalid max_auto_risk", env)
		}
	}

	for i, rule := range d.ApprovalRules {
		label := ruleLabel(i, rule)
		if rule.RequiredApprovals < 0 {
			return fmt.Errorf("%s: required_approvals cannot be negative", label)
		}
		if rule.When.Environment != nil && !rule.When.Environment.Valid() {
			return fmt.Errorf("%s: unknown environment %q", label, *rule.When.Environment)
		}
		if !rule.When.MinRisk.Valid() {
			return fmt.Errorf("%s: invalid min_risk", label)
		}
	}

	for _, name := range d.ToolControls.Allowlist {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("tool_controls.allowlist: tool name cannot be empty")
		}
	}
	for _, name := range d.ToolControls.Denylist {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("tool_controls.denylist: tool name cannot be empty")
		}
	}

	return nil
}

func ruleLabel(index int, rule ApprovalRule) string {
	if rule.Name != "" {
		return fmt.Sprintf("approval_rules[%d] (%s)", index, rule.Name)
	}
	return fmt.Sprintf("approval_rules[%d]", index)
}
