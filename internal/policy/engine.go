package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	opsErrors "github.com/harunnryd/opsgate/internal/errors"

	"gopkg.in/yaml.v3"
)

// Engine answers approval questions against a validated policy document.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	doc       Document
	allowlist map[string]struct{}
	denylist  map[string]struct{}
}

// Load reads and parses the policy file at path.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, opsErrors.Configuration(fmt.Sprintf("policy file not found: %s", path))
		}
		return nil, opsErrors.WrapWithCategory(err, "read policy file", opsErrors.ErrConfiguration)
	}
	return Parse(data)
}

// Parse decodes a policy document strictly. Unknown fields are rejected.
func Parse(data []byte) (*Engine, error) {
	var doc Document

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, opsErrors.WrapWithCategory(err, "parse policy", opsErrors.ErrConfiguration)
	}

	return New(doc)
}

func New(doc Document) (*Engine, error) {
	if err := doc.Validate(); err != nil {
		return nil, opsErrors.WrapWithCategory(err, "invalid policy", opsErrors.ErrConfiguration)
	}

	e := &Engine{
		doc:       doc,
		allowlist: toolSet(doc.ToolControls.Allowlist),
		denylist:  toolSet(doc.ToolControls.Denylist),
	}
	return e, nil
}

func toolSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[normalizeToolName(name)] = struct{}{}
	}
	return set
}

func normalizeToolName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MaxAutoRisk is the highest risk that runs without approval in env. Defaults to R0.
func (e *Engine) MaxAutoRisk(env Environment) Risk {
	control, ok := e.doc.EnvironmentControls[env]
	if !ok || control.MaxAutoRisk == nil {
		return R0
	}
	return *control.MaxAutoRisk
}

// RequiredApprovals returns the maximum required_approvals over all matching
// rules. Exceeding the environment's auto-approval ceiling demands at least one.
func (e *Engine) RequiredApprovals(risk Risk, env Environment) int {
	required := 0
	for _, rule := range e.doc.ApprovalRules {
		if !ruleMatches(rule, risk, env) {
			continue
		}
		required = max(required, rule.RequiredApprovals)
	}

	if risk > e.MaxAutoRisk(env) {
		required = max(required, 1)
	}
	return required
}

func (e *Engine) RequiresApproval(risk Risk, env Environment) bool {
	return e.RequiredApprovals(risk, env) > 0
}

func ruleMatches(rule ApprovalRule, risk Risk, env Environment) bool {
	if rule.When.Environment != nil && *rule.When.Environment != env {
		return false
	}
	return risk >= rule.When.MinRisk
}

// ToolAllowed reports whether a diagnostic tool may run. The denylist wins;
// a non-empty allowlist admits only its members.
func (e *Engine) ToolAllowed(name string) bool {
	key := normalizeToolName(name)
	if _, denied := e.denylist[key]; denied {
		return false
	}
	if len(e.allowlist) == 0 {
		return true
	}
	_, ok := e.allowlist[key]
	return ok
}

// Matrix evaluates every (environment, risk) pair.
func (e *Engine) Matrix() []MatrixRow {
	rows := make([]MatrixRow, 0, len(Environments)*len(Risks))
	for _, env := range Environments {
		ceiling := e.MaxAutoRisk(env)
		for _, risk := range Risks {
			rows = append(rows, MatrixRow{
				Environment:       env,
				Risk:              risk,
				MaxAutoRisk:       ceiling,
				RequiredApprovals: e.RequiredApprovals(risk, env),
			})
		}
	}
	return rows
}

// Rules returns a copy of the configured approval rules.
func (e *Engine) Rules() []ApprovalRule {
	rules := make([]ApprovalRule, len(e.doc.ApprovalRules))
	copy(rules, e.doc.ApprovalRules)
	return rules
}
