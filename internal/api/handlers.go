package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	opsErrors "github.com/harunnryd/opsgate/internal/errors"
	"github.com/harunnryd/opsgate/internal/orchestrator"
	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"

	"github.com/go-chi/chi/v5"
)

type sessionCreateRequest struct {
	UserID   string         `json:"user_id"`
	Metadata map[string]any `json:"metadata"`
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	CreatedAt time.Time      `json:"created_at"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

type messageRequest struct {
	Message       string  `json:"message"`
	Environment   string  `json:"environment"`
	RequestedRisk *string `json:"requested_risk"`
}

type jobCreateRequest struct {
	Goal           string  `json:"goal"`
	Environment    string  `json:"environment"`
	SessionID      string  `json:"session_id"`
	RequestedRisk  *string `json:"requested_risk"`
	RunDiagnostics *bool   `json:"run_diagnostics"`
}

type approveRequest struct {
	Approver string `json:"approver"`
	Comment  string `json:"comment"`
}

type jobResponse struct {
	JobID             string             `json:"job_id"`
	Status            store.JobStatus    `json:"status"`
	Risk              policy.Risk        `json:"risk_level"`
	RequiredApprovals int                `json:"required_approvals"`
	Approvals         int                `json:"approvals"`
	Environment       policy.Environment `json:"environment"`
	Goal              string             `json:"goal"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func toJobResponse(job store.Job) jobResponse {
	return jobResponse{
		JobID:             job.ID,
		Status:            job.Status,
		Risk:              job.Risk,
		RequiredApprovals: job.RequiredApprovals,
		Approvals:         len(job.Approvals),
		Environment:       job.Environment,
		Goal:              job.Goal,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := decode(w, r, &req); err != nil {
		Fail(w, err)
		return
	}

	session := h.svc.CreateSession(req.UserID, req.Metadata)
	JSON(w, http.StatusOK, sessionResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
		UserID:    session.UserID,
		Metadata:  session.Metadata,
	})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decode(w, r, &req); err != nil {
		Fail(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Fail(w, opsErrors.InvalidInput("message is required"))
		return
	}
	env, level, err := parseTokens(req.Environment, req.RequestedRisk)
	if err != nil {
		Fail(w, err)
		return
	}

	resp, err := h.svc.HandleMessage(r.Context(), chi.URLParam(r, "sessionID"), orchestrator.MessageRequest{
		Message:     req.Message,
		Environment: env,
		Risk:        level,
	})
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if err := decode(w, r, &req); err != nil {
		Fail(w, err)
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		Fail(w, opsErrors.InvalidInput("goal is required"))
		return
	}
	env, level, err := parseTokens(req.Environment, req.RequestedRisk)
	if err != nil {
		Fail(w, err)
		return
	}
	runDiagnostics := true
	if req.RunDiagnostics != nil {
		runDiagnostics = *req.RunDiagnostics
	}

	job, err := h.svc.CreateJob(r.Context(), orchestrator.JobRequest{
		Goal:           req.Goal,
		Environment:    env,
		Risk:           level,
		SessionID:      req.SessionID,
		RunDiagnostics: runDiagnostics,
	})
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, toJobResponse(job))
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r)
	if err != nil {
		Fail(w, err)
		return
	}

	jobs := h.svc.ListJobs(filter)
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobResponse(job))
	}
	JSON(w, http.StatusOK, out)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, toJobResponse(job))
}

func (h *Handler) ApproveJob(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decode(w, r, &req); err != nil {
		Fail(w, err)
		return
	}
	if strings.TrimSpace(req.Approver) == "" {
		Fail(w, opsErrors.InvalidInput("approver is required"))
		return
	}

	job, err := h.svc.ApproveJob(r.Context(), chi.URLParam(r, "jobID"), req.Approver, req.Comment)
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, toJobResponse(job))
}

func (h *Handler) GetJobEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.GetJobEvents(chi.URLParam(r, "jobID"))
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, events)
}

func (h *Handler) GetJobReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetJobReport(chi.URLParam(r, "jobID"))
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, report)
}

// parseTokens resolves the optional environment and risk tokens of a
// request. An empty environment means dev.
func parseTokens(environment string, requested *string) (policy.Environment, *policy.Risk, error) {
	env := policy.Dev
	if strings.TrimSpace(environment) != "" {
		parsed, err := policy.ParseEnvironment(environment)
		if err != nil {
			return "", nil, opsErrors.InvalidInput(err.Error())
		}
		env = parsed
	}

	if requested == nil {
		return env, nil, nil
	}
	level, err := policy.ParseRisk(*requested)
	if err != nil {
		return "", nil, opsErrors.InvalidInput(err.Error())
	}
	return env, &level, nil
}

func parseJobFilter(r *http.Request) (store.JobFilter, error) {
	query := r.URL.Query()
	var filter store.JobFilter

	if raw := query.Get("status"); raw != "" {
		status := store.JobStatus(strings.ToLower(raw))
		if !status.Valid() {
			return filter, opsErrors.InvalidInput("invalid status: " + raw)
		}
		filter.Status = status
	}
	if raw := query.Get("environment"); raw != "" {
		env, err := policy.ParseEnvironment(raw)
		if err != nil {
			return filter, opsErrors.InvalidInput(err.Error())
		}
		filter.Environment = env
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, opsErrors.InvalidInput("invalid limit: " + raw)
		}
		filter.Limit = limit
	}
	return filter, nil
}
