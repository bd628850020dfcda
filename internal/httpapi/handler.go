// Package httpapi serves the vendor sample-list surface consumed by the
// pipetting robot and the operator-facing run control endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/roadmap-automation/lh-manager-sub000/internal/lhinterface"
	"github.com/roadmap-automation/lh-manager-sub000/internal/scheduler"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
)

// Handler exposes the workstation over HTTP: the /LH endpoints speak the
// vendor robot protocol, the /GUI endpoints drive the scheduler and sample
// container.
type Handler struct {
	Interface *lhinterface.Interface
	Scheduler *scheduler.Scheduler
	Container *samples.SampleContainer
	Layout    *bedlayout.LHBedLayout
	Logger    *slog.Logger
}

// NewHandler constructs the workstation HTTP handler.
func NewHandler(iface *lhinterface.Interface, sched *scheduler.Scheduler, container *samples.SampleContainer, layout *bedlayout.LHBedLayout, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Interface: iface,
		Scheduler: sched,
		Container: container,
		Layout:    layout,
		Logger:    logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "/LH/GetListofSampleLists":
		h.handleListSampleLists(w)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/LH/GetSampleList/"):
		h.handleGetSampleList(w, strings.TrimPrefix(path, "/LH/GetSampleList/"))
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/LH/PutSampleListValidation/"):
		h.handlePutValidation(w, r, strings.TrimPrefix(path, "/LH/PutSampleListValidation/"))
	case r.Method == http.MethodPost && path == "/LH/PutSampleData":
		h.handlePutSampleData(w, r)
	case r.Method == http.MethodGet && path == "/GUI/GetSamples":
		h.handleGetSamples(w)
	case r.Method == http.MethodGet && path == "/GUI/GetLayout":
		h.handleGetLayout(w)
	case r.Method == http.MethodGet && path == "/GUI/GetStatus":
		h.handleGetStatus(w)
	case r.Method == http.MethodPost && path == "/GUI/AddSample":
		h.handleAddSample(w, r)
	case r.Method == http.MethodPost && path == "/GUI/RunSample":
		h.handleRunSample(w, r)
	case r.Method == http.MethodPost && path == "/GUI/StopStage":
		h.handleStopStage(w, r)
	case r.Method == http.MethodPost && path == "/GUI/CancelTasks":
		h.handleCancelTasks(w, r)
	case r.Method == http.MethodPost && path == "/GUI/DryRun":
		h.handleDryRun(w)
	case r.Method == http.MethodPost && path == "/GUI/ResubmitActiveJob":
		h.handleResubmitActiveJob(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleListSampleLists(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"sampleLists": h.Interface.SampleLists()})
}

func (h *Handler) handleGetSampleList(w http.ResponseWriter, rawID string) {
	lhID, err := strconv.Atoi(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid LH id")
		return
	}
	list, err := h.Interface.SampleList(lhID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sampleList": list})
}

type validationRequest struct {
	Validation lhinterface.Validation `json:"validation"`
}

func (h *Handler) handlePutValidation(w http.ResponseWriter, r *http.Request, rawID string) {
	lhID, err := strconv.Atoi(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid LH id")
		return
	}
	var req validationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid validation payload")
		return
	}
	job, err := h.activeJobFor(lhID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Interface.UpdateJobValidation(r.Context(), job.ID, req.Validation); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"validation": string(req.Validation.ValidationType)})
}

type sampleDataRequest struct {
	SampleData struct {
		RunData []struct {
			SampleListID int    `json:"sampleListID"`
			Iteration    int    `json:"iteration"`
			MethodName   string `json:"methodName"`
		} `json:"runData"`
		ResultNotifications struct {
			Notifications map[string]string `json:"notifications"`
		} `json:"resultNotifications"`
	} `json:"sampleData"`
}

func (h *Handler) handlePutSampleData(w http.ResponseWriter, r *http.Request) {
	var req sampleDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sample data payload")
		return
	}
	if len(req.SampleData.RunData) == 0 {
		writeError(w, http.StatusBadRequest, "sample data carries no run data")
		return
	}
	run := req.SampleData.RunData[0]
	job, err := h.activeJobFor(run.SampleListID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report := lhinterface.ResultReport{
		MethodNumber:  run.Iteration,
		MethodName:    run.MethodName,
		Notifications: req.SampleData.ResultNotifications.Notifications,
	}
	if err := h.Interface.UpdateJobResult(r.Context(), job.ID, report); err != nil {
		h.Logger.Error("applying robot result", "job_id", job.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": string(job.ResultStatus())})
}

// activeJobFor resolves the active job and checks the robot's LH id against
// it.
func (h *Handler) activeJobFor(lhID int) (*lhinterface.LHJob, error) {
	job := h.Interface.ActiveJob()
	if job == nil {
		return nil, lhinterface.ErrNoActiveJob
	}
	if job.LHID == nil || *job.LHID != lhID {
		return nil, lhinterface.ErrJobMismatch
	}
	return job, nil
}

func (h *Handler) handleGetSamples(w http.ResponseWriter) {
	lock := h.Scheduler.StateLock()
	lock.Lock()
	data, err := json.Marshal(h.Container)
	lock.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": json.RawMessage(data)})
}

func (h *Handler) handleGetLayout(w http.ResponseWriter) {
	lock := h.Scheduler.StateLock()
	lock.Lock()
	data, err := json.Marshal(h.Layout)
	lock.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"layout": json.RawMessage(data)})
}

func (h *Handler) handleGetStatus(w http.ResponseWriter) {
	pending, active := h.Scheduler.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"interface_state": string(h.Interface.State()),
		"pending_tasks":   pending,
		"active_tasks":    active,
	})
}

func (h *Handler) handleAddSample(w http.ResponseWriter, r *http.Request) {
	var sample samples.Sample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sample payload")
		return
	}
	if sample.ID == "" {
		sample.GenerateNewID()
	}
	lock := h.Scheduler.StateLock()
	lock.Lock()
	err := h.Container.AddSample(&sample)
	lock.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": sample.ID})
}

type runSampleRequest struct {
	SampleID   string `json:"sample_id"`
	SampleName string `json:"sample_name"`
	Stage      string `json:"stage"`
}

func (h *Handler) handleRunSample(w http.ResponseWriter, r *http.Request) {
	var req runSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid run request payload")
		return
	}
	if req.Stage == "" {
		writeError(w, http.StatusBadRequest, "stage is required")
		return
	}
	stage := samples.StageName(req.Stage)

	var err error
	switch {
	case req.SampleID != "":
		err = h.Scheduler.RunSample(req.SampleID, stage)
	case req.SampleName != "":
		err = h.Scheduler.RunSampleByName(req.SampleName, stage)
	default:
		writeError(w, http.StatusBadRequest, "sample_id or sample_name is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"stage": req.Stage})
}

type stopStageRequest struct {
	SampleID string `json:"sample_id"`
	Stage    string `json:"stage"`
}

func (h *Handler) handleStopStage(w http.ResponseWriter, r *http.Request) {
	var req stopStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid stop request payload")
		return
	}
	if err := h.Scheduler.StopStage(req.SampleID, samples.StageName(req.Stage)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopped": req.Stage})
}

type cancelTasksRequest struct {
	TaskIDs            []string `json:"task_ids"`
	IncludeActiveQueue bool     `json:"include_active_queue"`
	DropMaterial       bool     `json:"drop_material"`
}

func (h *Handler) handleCancelTasks(w http.ResponseWriter, r *http.Request) {
	var req cancelTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid cancel payload")
		return
	}
	if err := h.Scheduler.CancelTasks(r.Context(), req.TaskIDs, req.IncludeActiveQueue, req.DropMaterial); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": len(req.TaskIDs)})
}

func (h *Handler) handleDryRun(w http.ResponseWriter) {
	lock := h.Scheduler.StateLock()
	lock.Lock()
	dryRunErrors := h.Container.DryRun(h.Layout)
	lock.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"errors": dryRunErrors})
}

func (h *Handler) handleResubmitActiveJob(w http.ResponseWriter, r *http.Request) {
	if err := h.Interface.ResubmitActiveJob(r.Context()); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, lhinterface.ErrNoActiveJob) {
			code = http.StatusConflict
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resubmitted": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
