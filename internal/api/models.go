package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/dataset-forge/internal/domain"
)

// CreateTaskRequest is the payload of POST /api/projects/{projectID}/tasks.
type CreateTaskRequest struct {
	TaskType  string           `json:"task_type"  validate:"required"`
	ModelInfo domain.ModelInfo `json:"model_info"`
	Language  string           `json:"language"   validate:"omitempty,max=16"`
	Config    json.RawMessage  `json:"config,omitempty"`
}

// TaskResponse is the public view of a task. Model credentials are never
// included.
type TaskResponse struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	TaskType       string          `json:"task_type"`
	Status         string          `json:"status"`
	StatusCode     int             `json:"status_code"`
	TotalCount     int             `json:"total_count"`
	CompletedCount int             `json:"completed_count"`
	Progress       float64         `json:"progress"`
	Detail         string          `json:"detail,omitempty"`
	Note           string          `json:"note,omitempty"`
	Model          string          `json:"model,omitempty"`
	Language       string          `json:"language,omitempty"`
	Config         json.RawMessage `json:"config,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TaskListResponse is a page of a project's tasks, newest first.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:             t.ID.String(),
		ProjectID:      t.ProjectID,
		TaskType:       string(t.Type),
		Status:         t.Status.String(),
		StatusCode:     int(t.Status),
		TotalCount:     t.TotalCount,
		CompletedCount: t.CompletedCount,
		Detail:         t.Detail,
		Note:           t.Note,
		Language:       t.Language,
		Config:         t.Config,
		StartTime:      t.StartTime,
		EndTime:        t.EndTime,
		CreatedAt:      t.CreatedAt,
	}
	if t.TotalCount > 0 {
		resp.Progress = min(1, float64(t.CompletedCount)/float64(t.TotalCount))
	}
	if mi, err := domain.ParseModelInfo(t.ModelInfo); err == nil {
		resp.Model = mi.Provider + "/" + mi.Model
	}
	return resp
}
