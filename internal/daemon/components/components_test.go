package components

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/orchestrator"
	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicy = `
environment_controls:
  dev:
    max_auto_risk: R1
  prod:
    max_auto_risk: R0
approval_rules:
  - name: prod-high
    when:
      environment: prod
      min_risk: R2
    required_approvals: 2
`

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, modelURL string) *config.Config {
	t.Helper()
	root := t.TempDir()
	policyPath := filepath.Join(root, "policy.yaml")
	require.NoError(t, os.WriteFile(policyPath, []byte(testPolicy), 0o600))

	return &config.Config{
		Server: config.ServerConfig{Port: 0},
		Policy: config.PolicyConfig{Path: policyPath},
		Diagnostics: config.DiagnosticsConfig{
			Workdir:        root,
			CommandTimeout: "2s",
		},
		Models: config.ModelsConfig{
			Default: "test-model",
			Registry: []config.ModelRegistry{
				{Name: "test-model", Provider: "ollama", BaseURL: modelURL, RequestTimeout: "5s"},
			},
		},
		Reports: config.ReportsConfig{Dir: filepath.Join(root, "reports")},
		Daemon: config.DaemonConfig{
			StateDir:    filepath.Join(root, "state"),
			LockTimeout: "200ms",
			LockRetry:   "10ms",
		},
	}
}

type stack struct {
	policy   *PolicyComponent
	store    *StoreComponent
	model    *ModelComponent
	diag     *DiagnosticsComponent
	notifier *NotifierComponent
	orch     *OrchestratorComponent
	sched    *SchedulerComponent
}

func buildStack(cfg *config.Config) *stack {
	s := &stack{
		policy:   NewPolicyComponent(&cfg.Policy),
		store:    NewStoreComponent(cfg.Daemon.StateDir, &cfg.Daemon),
		model:    NewModelComponent(&cfg.Models),
		notifier: NewNotifierComponent(&cfg.Notify, &cfg.Reports),
	}
	s.diag = NewDiagnosticsComponent(&cfg.Diagnostics, s.policy)
	s.orch = NewOrchestratorComponent(cfg, s.policy, s.store, s.model, s.diag, s.notifier)
	s.sched = NewSchedulerComponent(cfg, cfg.Daemon.StateDir, s.orch)
	return s
}

func (s *stack) initAll(t *testing.T, ctx context.Context) {
	t.Helper()
	for _, init := range []func(context.Context) error{
		s.policy.Init, s.store.Init, s.model.Init, s.diag.Init, s.notifier.Init, s.orch.Init, s.sched.Init,
	} {
		require.NoError(t, init(ctx))
	}
	t.Cleanup(func() { _ = s.store.Stop(context.Background()) })
}

func TestComponentsRunJobEndToEnd(t *testing.T) {
	ctx := context.Background()
	srv := chatServer(t, "all clear")
	cfg := testConfig(t, srv.URL)
	s := buildStack(cfg)
	s.initAll(t, ctx)

	orch := s.orch.Orchestrator()
	require.NotNil(t, orch)

	job, err := orch.CreateJob(ctx, orchestrator.JobRequest{Goal: "check pod status", Environment: policy.Dev})
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, job.Status)

	report, err := orch.GetJobReport(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "all clear", report.Summary)

	require.NoError(t, s.orch.Start(ctx))
	require.NoError(t, s.orch.Stop(ctx))
	_, err = os.Stat(s.notifier.Sink().Path(job.ID))
	assert.NoError(t, err)
}

func TestComponentsGateProductionJob(t *testing.T) {
	ctx := context.Background()
	srv := chatServer(t, "rolled out")
	cfg := testConfig(t, srv.URL)
	s := buildStack(cfg)
	s.initAll(t, ctx)

	job, err := s.orch.Orchestrator().CreateJob(ctx, orchestrator.JobRequest{Goal: "production deploy of api", Environment: policy.Prod})
	require.NoError(t, err)
	assert.Equal(t, store.StatusAwaitingApproval, job.Status)
	assert.Equal(t, 2, job.RequiredApprovals)
}

func TestOrchestratorComponentRequiresDependencies(t *testing.T) {
	comp := NewOrchestratorComponent(&config.Config{}, nil, nil, nil, nil, nil)
	assert.Error(t, comp.Init(context.Background()))
	assert.Equal(t, []string{"Policy", "Store", "Model", "Diagnostics", "Notifier"}, comp.Dependencies())
}

func TestStoreComponentHoldsInstanceLock(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "http://127.0.0.1:1")

	first := NewStoreComponent(cfg.Daemon.StateDir, &cfg.Daemon)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.Start(ctx))

	health, err := first.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)

	second := NewStoreComponent(cfg.Daemon.StateDir, &cfg.Daemon)
	assert.Error(t, second.Init(ctx))

	require.NoError(t, first.Stop(ctx))
	require.NoError(t, second.Init(ctx))
	require.NoError(t, second.Stop(ctx))
}

func TestLifecycleHealth(t *testing.T) {
	comp := NewModelComponent(&config.ModelsConfig{})
	health, err := comp.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, health.Healthy)
	assert.Error(t, comp.Start(context.Background()))
}

func TestHTTPServerComponentServesAPI(t *testing.T) {
	ctx := context.Background()
	srv := chatServer(t, "ok")
	cfg := testConfig(t, srv.URL)
	s := buildStack(cfg)
	s.initAll(t, ctx)

	comp := NewHTTPServerComponent(&cfg.Server, s.orch, nil)
	assert.Equal(t, []string{"Orchestrator", "Scheduler"}, comp.Dependencies())
	require.NoError(t, comp.Init(ctx))
	require.NoError(t, comp.Start(ctx))

	health, err := comp.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)

	require.NoError(t, comp.Stop(ctx))
	health, err = comp.Health(ctx)
	require.NoError(t, err)
	assert.False(t, health.Healthy)
}
