package httpx

import (
	"net/http"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
)

// Projects and tasks are not persisted yet. The handlers validate input and
// echo it back so clients can integrate against the final shapes.

type projectRequest struct {
	Name   string `json:"name" validate:"required,min=3"`
	TeamID int64  `json:"teamId" validate:"gt=0"`
}

func (p *projectRequest) normalize() error {
	p.Name = normalizeText(p.Name)
	return validateStruct(p)
}

type taskRequest struct {
	Title       string   `json:"title" validate:"required,min=3"`
	Description string   `json:"description" validate:"required,min=3"`
	Status      string   `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority    string   `json:"priority" validate:"omitempty,oneof=low medium high"`
	ProjectID   int64    `json:"projectId" validate:"gt=0"`
	AssignedTo  int64    `json:"assignedTo" validate:"gt=0"`
	Attachments []string `json:"attachments"`
}

func (p *taskRequest) normalize() (domain.Task, error) {
	p.Title = normalizeText(p.Title)
	p.Description = normalizeText(p.Description)
	p.Status = normalizeText(p.Status)
	p.Priority = normalizeText(p.Priority)
	if err := validateStruct(p); err != nil {
		return domain.Task{}, err
	}
	status := domain.TaskStatus(p.Status)
	if status == "" {
		status = domain.TaskPending
	}
	priority := domain.TaskPriority(p.Priority)
	if priority == "" {
		priority = domain.PriorityMedium
	}
	return domain.Task{
		Title:       p.Title,
		Description: p.Description,
		Status:      status,
		Priority:    priority,
		ProjectID:   p.ProjectID,
		AssignedTo:  p.AssignedTo,
		Attachments: p.Attachments,
	}, nil
}

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	userID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		raw := req.URL.Query().Get("teamId")
		if raw != "" {
			if _, ok := parsePositiveID(raw); !ok {
				writeError(w, http.StatusBadRequest, "invalid team ID")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []domain.Project{}})
	case http.MethodPost:
		var payload projectRequest
		if !decodeJSON(w, req, &payload) {
			return
		}
		if err := payload.normalize(); err != nil {
			writeValidationError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"data": domain.Project{
			ID:        1,
			Name:      payload.Name,
			TeamID:    payload.TeamID,
			CreatedBy: userID,
			CreatedAt: r.now().UTC(),
		}})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTasks(w http.ResponseWriter, req *http.Request) {
	userID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		query := req.URL.Query()
		var errs validationErrors
		if _, ok := parsePositiveID(query.Get("projectId")); !ok {
			errs = append(errs, validationError{Field: "projectId", Message: "must be a positive integer"})
		}
		if !domain.TaskStatus(normalizeText(query.Get("status"))).Valid() {
			errs = append(errs, validationError{Field: "status", Message: "must be one of pending, in-progress, completed"})
		}
		if len(errs) > 0 {
			writeValidationError(w, errs)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []domain.Task{}})
	case http.MethodPost:
		var payload taskRequest
		if !decodeJSON(w, req, &payload) {
			return
		}
		task, err := payload.normalize()
		if err != nil {
			writeValidationError(w, err)
			return
		}
		task.ID = 1
		task.CreatedBy = userID
		task.CreatedAt = r.now().UTC()
		writeJSON(w, http.StatusCreated, map[string]any{"data": task})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTask(w http.ResponseWriter, req *http.Request) {
	userID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	taskID, ok := parsePositiveID(req.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}
	switch req.Method {
	case http.MethodPut:
		var payload taskRequest
		if !decodeJSON(w, req, &payload) {
			return
		}
		task, err := payload.normalize()
		if err != nil {
			writeValidationError(w, err)
			return
		}
		task.ID = taskID
		task.CreatedBy = userID
		task.CreatedAt = r.now().UTC()
		writeJSON(w, http.StatusAccepted, map[string]any{"data": task})
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		r.methodNotAllowed(w)
	}
}
