package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/phrazzld/taskcore/internal/api/shared"
	"github.com/phrazzld/taskcore/internal/events"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/task"
)

// TaskHandler serves the task queues of a single namespace.
type TaskHandler struct {
	namespace *task.TaskNamespace
	emitter   events.EventEmitter
	logger    *slog.Logger
}

// NewTaskHandler creates a handler for ns. A nil emitter disables events.
func NewTaskHandler(ns *task.TaskNamespace, emitter events.EventEmitter, logger *slog.Logger) *TaskHandler {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		namespace: ns,
		emitter:   emitter,
		logger:    logger.With("component", "task_handler"),
	}
}

// ListQueues handles GET /api/queues.
func (h *TaskHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues := h.namespace.TaskQueues()
	resp := make([]QueueResponse, 0, len(queues))
	for _, q := range queues {
		names := q.TaskNames()
		sort.Strings(names)
		resp = append(resp, QueueResponse{
			Namespace: q.Namespace(),
			Name:      q.Name(),
			TaskNames: names,
		})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Name < resp[j].Name })

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// EnqueueTask handles POST /api/queues/{queue}/tasks.
func (h *TaskHandler) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	q, err := h.queueFromPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req EnqueueTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Validation error: task_name is required", err)
		return
	}

	ec := task.ExecutionContext{}
	if len(req.Args) > 0 {
		ec.Args = req.Args
	}
	if len(req.Kwargs) > 0 {
		ec.Kwargs = req.Kwargs
	}

	queued, err := q.NewTask(req.TaskName, ec)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := q.Queue(r.Context(), queued); err != nil {
		h.respondError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info("task enqueued", queued.LogAttrs()...)
	h.emitQueued(r.Context(), log, queued)

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueTaskResponse{
		ID:       queued.ID().String(),
		State:    queued.State().String(),
		QueuedAt: queued.QueuedAt(),
	})
}

// GetTask handles GET /api/queues/{queue}/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	q, err := h.queueFromPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	id, err := ulid.ParseStrict(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, errors.Join(ErrInvalidTaskID, err))
		return
	}

	found, err := q.Find(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if found == nil {
		h.respondError(w, r, ErrTaskNotFound)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(found))
}

func (h *TaskHandler) queueFromPath(r *http.Request) (*task.TaskQueue, error) {
	q, ok := h.namespace.TaskQueue(chi.URLParam(r, "queue"))
	if !ok {
		return nil, ErrUnknownQueue
	}
	return q, nil
}

func (h *TaskHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

// emitQueued never fails the request: the task is already stored.
func (h *TaskHandler) emitQueued(ctx context.Context, log *slog.Logger, t *task.QueuedTask) {
	event, err := events.NewTaskEvent(events.TypeTaskQueued, t.Serializable())
	if err == nil {
		err = h.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		log.Error("failed to emit task event",
			append(t.LogAttrs(), "event_type", events.TypeTaskQueued, "error", err)...)
	}
}
