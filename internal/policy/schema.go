package policy

import (
	"fmt"
	"strings"
)

// Risk is an ordered risk tier. R0 is the least severe.
type Risk int

const (
	R0 Risk = iota
	R1
	R2
	R3
)

var riskNames = [...]string{"R0", "R1", "R2", "R3"}

// Risks lists every tier in ascending severity.
var Risks = []Risk{R0, R1, R2, R3}

func (r Risk) String() string {
	if r < R0 || r > R3 {
		return fmt.Sprintf("Risk(%d)", int(r))
	}
	return riskNames[r]
}

func (r Risk) Valid() bool {
	return r >= R0 && r <= R3
}

func (r Risk) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid risk level: %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Risk) UnmarshalText(text []byte) error {
	parsed, err := ParseRisk(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRisk accepts R0..R3, case-insensitive.
func ParseRisk(value string) (Risk, error) {
	candidate := strings.ToUpper(strings.TrimSpace(value))
	for i, name := range riskNames {
		if candidate == name {
			return Risk(i), nil
		}
	}
	return R0, fmt.Errorf("invalid risk level: %q", value)
}

type Environment string

const (
	Dev   Environment = "dev"
	Stage Environment = "stage"
	Prod  Environment = "prod"
)

// Environments lists every known environment in promotion order.
var Environments = []Environment{Dev, Stage, Prod}

func (e Environment) Valid() bool {
	switch e {
	case Dev, Stage, Prod:
		return true
	}
	return false
}

func (e Environment) String() string {
	return string(e)
}

func (e *Environment) UnmarshalText(text []byte) error {
	parsed, err := ParseEnvironment(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

func ParseEnvironment(value string) (Environment, error) {
	env := Environment(strings.ToLower(strings.TrimSpace(value)))
	if !env.Valid() {
		return "", fmt.Errorf("invalid environment: %q", value)
	}
	return env, nil
}

// Document is the on-disk policy shape.
type Document struct {
	EnvironmentControls map[Environment]EnvironmentControl `yaml:"environment_controls"`
	ApprovalRules       []ApprovalRule                     `yaml:"approval_rules"`
	ToolControls        ToolControls                       `yaml:"tool_controls"`
}

type EnvironmentControl struct {
	MaxAutoRisk *Risk `yaml:"max_auto_risk"`
}

type ApprovalRule struct {
	Name              string   `yaml:"name"`
	When              RuleWhen `yaml:"when"`
	RequiredApprovals int      `yaml:"required_approvals"`
}

// RuleWhen filters a rule. A nil Environment matches every environment.
type RuleWhen struct {
	Environment *Environment `yaml:"environment"`
	MinRisk     Risk         `yaml:"min_risk"`
}

type ToolControls struct {
	Allowlist []string `yaml:"allowlist"`
	Denylist  []string `yaml:"denylist"`
}

// MatrixRow is the approval requirement for one (environment, risk) pair.
type MatrixRow struct {
	Environment       Environment `json:"environment"`
	Risk              Risk        `json:"risk_level"`
	MaxAutoRisk       Risk        `json:"max_auto_risk"`
	RequiredApprovals int         `json:"required_approvals"`
}
