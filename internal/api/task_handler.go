package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robbitt07/taskqueue/internal/mq"
)

// maxBodyBytes — предельный размер тела запроса.
const maxBodyBytes = 1 << 20

// CreateTask публикует задачу.
// POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Task == "" {
		BadRequest(w, "task is required")
		return
	}
	if req.Queue == "" {
		req.Queue = mq.DefaultQueue
	}

	err := h.publisher.PublishTask(r.Context(), req.Queue, req.Task, req.Params)
	if HandlePublishError(w, h.logger, err) {
		return
	}

	Accepted(w, TaskAcceptedResponse{Task: req.Task, Queue: req.Queue})
}

// DeclareQueue объявляет долговечную очередь. Повторный вызов безопасен.
// PUT /api/v1/queues/{name}
func (h *Handler) DeclareQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := h.publisher.QueueDeclare(r.Context(), name)
	if HandlePublishError(w, h.logger, err) {
		return
	}

	NoContent(w)
}
