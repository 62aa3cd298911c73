package controller

import (
	"net/http"

	"github.com/rbarroso/clearway/internal/infrastructure/redis"
)

// QueueController exposes job queue depth introspection.
type QueueController struct {
	queue *redis.Queue
	group string
}

// NewQueueController creates a new QueueController. group is the consumer
// group whose pending entries count as active.
func NewQueueController(queue *redis.Queue, group string) *QueueController {
	return &QueueController{queue: queue, group: group}
}

// GetQueues handles GET /api/v1/queues
func (h *QueueController) GetQueues(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.QueueStats(r.Context(), h.group)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromQueueStats(stats))
}
