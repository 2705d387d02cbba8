package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/api/shared"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// TaskService is the part of the task engine the HTTP layer drives.
type TaskService interface {
	Submit(ctx context.Context, req task.SubmitRequest) (*domain.Task, error)
	Interrupt(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	Delete(ctx context.Context, taskID uuid.UUID) error
}

// TaskReader reads task records for the status endpoints.
type TaskReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*domain.Task, error)
}

var (
	_ TaskService = (*task.Engine)(nil)
	_ TaskReader  = (store.TaskStore)(nil)
)

// TaskHandler handles task HTTP requests.
type TaskHandler struct {
	service TaskService
	tasks   TaskReader
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service TaskService, tasks TaskReader, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		service: service,
		tasks:   tasks,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// Routes mounts the task endpoints on r.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Route("/projects/{projectID}/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/", h.ListTasks)
	})
	r.Route("/tasks/{taskID}", func(r chi.Router) {
		r.Get("/", h.GetTask)
		r.Post("/interrupt", h.InterruptTask)
		r.Delete("/", h.DeleteTask)
	})
}

// CreateTask handles POST /projects/{projectID}/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Project ID is required")
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	submit, err := buildSubmitRequest(projectID, req)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.service.Submit(r.Context(), submit)
	if err != nil {
		message := ""
		if MapErrorToStatusCode(err) == http.StatusInternalServerError {
			message = "Failed to start task"
		}
		HandleAPIError(w, r, err, message)
		return
	}

	log.Info("task submitted",
		slog.String("task_id", t.ID.String()),
		slog.String("project_id", projectID),
		slog.String("task_type", string(t.Type)),
		slog.String("subject", subjectOf(r)))
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(t))
}

// ListTasks handles GET /projects/{projectID}/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Project ID is required")
		return
	}
	limit, offset, err := getPage(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	list, err := h.tasks.ListByProject(r.Context(), projectID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(list)), Limit: limit, Offset: offset}
	for _, t := range list {
		resp.Tasks = append(resp.Tasks, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetTask handles GET /tasks/{taskID}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "taskID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	t, err := h.tasks.Get(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// InterruptTask handles POST /tasks/{taskID}/interrupt.
func (h *TaskHandler) InterruptTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, err := getPathUUID(r, "taskID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	t, err := h.service.Interrupt(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("task interrupted",
		slog.String("task_id", taskID.String()),
		slog.String("subject", subjectOf(r)))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// DeleteTask handles DELETE /tasks/{taskID}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "taskID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.service.Delete(r.Context(), taskID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// buildSubmitRequest checks everything a task needs before a record is
// created, so a bad request never leaves a FAILED task behind.
func buildSubmitRequest(projectID string, req CreateTaskRequest) (task.SubmitRequest, error) {
	taskType, err := domain.ParseTaskType(req.TaskType)
	if err != nil {
		return task.SubmitRequest{}, err
	}

	raw, err := json.Marshal(req.ModelInfo)
	if err != nil {
		return task.SubmitRequest{}, err
	}
	if _, err := domain.ParseModelInfo(string(raw)); err != nil {
		return task.SubmitRequest{}, err
	}

	switch taskType {
	case domain.TaskTypeDataDistillation:
		_, err = domain.ParseDistillationConfig(req.Config)
	case domain.TaskTypeModelEvaluation:
		_, err = domain.ParseModelEvaluationConfig(req.Config)
	}
	if err != nil {
		return task.SubmitRequest{}, err
	}

	language := req.Language
	if language == "" {
		language = "en"
	}
	return task.SubmitRequest{
		ProjectID: projectID,
		Type:      taskType,
		ModelInfo: string(raw),
		Language:  language,
		Config:    req.Config,
	}, nil
}

func subjectOf(r *http.Request) string {
	subject, ok := shared.GetSubject(r.Context())
	if !ok {
		return ""
	}
	return subject
}

