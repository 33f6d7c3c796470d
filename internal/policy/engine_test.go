package policy

import (
	"os"
	"path/filepath"
	"testing"

	opsErrors "github.com/harunnryd/opsgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePolicy = `
environment_controls:
  dev:
    max_auto_risk: R1
  stage:
    max_auto_risk: R0
  prod:
    max_auto_risk: R0
approval_rules:
  - name: prod-high
    when:
      environment: prod
      min_risk: R2
    required_approvals: 2
  - name: any-destructive
    when:
      min_risk: R3
    required_approvals: 1
tool_controls:
  denylist:
    - helm_list_all
`

func mustParse(t *testing.T, doc string) *Engine {
	t.Helper()
	engine, err := Parse([]byte(doc))
	require.NoError(t, err)
	return engine
}

func TestRequiredApprovals(t *testing.T) {
	engine := mustParse(t, samplePolicy)

	tests := []struct {
		name string
		risk Risk
		env  Environment
		want int
	}{
		{"dev low risk auto", R0, Dev, 0},
		{"dev within ceiling", R1, Dev, 0},
		{"dev above ceiling", R2, Dev, 1},
		{"dev destructive", R3, Dev, 1},
		{"stage implicit rule", R1, Stage, 1},
		{"prod R0", R0, Prod, 0},
		{"prod R2 rule", R2, Prod, 2},
		{"prod R3 takes max", R3, Prod, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.RequiredApprovals(tt.risk, tt.env))
			assert.Equal(t, tt.want > 0, engine.RequiresApproval(tt.risk, tt.env))
		})
	}
}

func TestRequiredApprovalsMonotonicInRisk(t *testing.T) {
	engine := mustParse(t, samplePolicy)

	for _, env := range Environments {
		prev := -1
		for _, risk := range Risks {
			got := engine.RequiredApprovals(risk, env)
			assert.GreaterOrEqualf(t, got, prev, "env=%s risk=%s", env, risk)
			prev = got
		}
	}
}

func TestEmptyPolicyDefaults(t *testing.T) {
	engine := mustParse(t, "")

	assert.Equal(t, R0, engine.MaxAutoRisk(Prod))
	assert.Equal(t, 0, engine.RequiredApprovals(R0, Prod))
	assert.Equal(t, 1, engine.RequiredApprovals(R1, Dev))
	assert.True(t, engine.ToolAllowed("git_status"))
}

func TestMaxAutoRiskDefaultsToR0(t *testing.T) {
	engine := mustParse(t, `
environment_controls:
  dev:
    max_auto_risk: R2
`)
	assert.Equal(t, R2, engine.MaxAutoRisk(Dev))
	assert.Equal(t, R0, engine.MaxAutoRisk(Stage))
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"unknown field":        "approval_rule: []\n",
		"unknown risk":         "approval_rules:\n  - when:\n      min_risk: R9\n    required_approvals: 1\n",
		"unknown env key":      "environment_controls:\n  qa:\n    max_auto_risk: R1\n",
		"unknown rule env":     "approval_rules:\n  - when:\n      environment: qa\n    required_approvals: 1\n",
		"negative approvals":   "approval_rules:\n  - when:\n      min_risk: R1\n    required_approvals: -1\n",
		"malformed yaml":       "approval_rules: [\n",
		"empty tool allowlist": "tool_controls:\n  allowlist: [\"\"]\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, opsErrors.ErrConfiguration)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicy), 0644))

	engine, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, R1, engine.MaxAutoRisk(Dev))
	assert.Len(t, engine.Rules(), 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, opsErrors.ErrConfiguration)
}

func TestToolAllowed(t *testing.T) {
	engine := mustParse(t, samplePolicy)
	assert.True(t, engine.ToolAllowed("git_status"))
	assert.False(t, engine.ToolAllowed("helm_list_all"))

	restricted := mustParse(t, `
tool_controls:
  allowlist: [git_status, helm_list_all]
  denylist: [HELM_LIST_ALL]
`)
	assert.True(t, restricted.ToolAllowed("git_status"))
	assert.False(t, restricted.ToolAllowed("kubectl_context"))
	assert.False(t, restricted.ToolAllowed("helm_list_all"))
}

func TestMatrix(t *testing.T) {
	engine := mustParse(t, samplePolicy)
	rows := engine.Matrix()
	require.Len(t, rows, len(Environments)*len(Risks))

	for _, row := range rows {
		assert.Equal(t, engine.RequiredApprovals(row.Risk, row.Environment), row.RequiredApprovals)
		assert.Equal(t, engine.MaxAutoRisk(row.Environment), row.MaxAutoRisk)
	}
}

func TestParseRiskAndEnvironment(t *testing.T) {
	r, err := ParseRisk(" r2 ")
	require.NoError(t, err)
	assert.Equal(t, R2, r)
	assert.Equal(t, "R2", r.String())

	_, err = ParseRisk("R4")
	assert.Error(t, err)

	env, err := ParseEnvironment("PROD")
	require.NoError(t, err)
	assert.Equal(t, Prod, env)

	_, err = ParseEnvironment("qa")
	assert.Error(t, err)
}
