package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/workbridge/api/internal/service"
	"github.com/workbridge/api/internal/websocket"
)

// NotifyWorker fans notification events out to the realtime hub. Events are
// best-effort: a failed broadcast retries via asynq but never touches the
// write that produced it.
type NotifyWorker struct {
	hub *websocket.Hub
}

func NewNotifyWorker(hub *websocket.Hub) *NotifyWorker {
	return &NotifyWorker{hub: hub}
}

// ProcessTask handles notify:event tasks
func (w *NotifyWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal notify payload: %w", err)
	}

	w.hub.BroadcastEvent(payload.JobID, payload.Event, payload.Data)
	log.Printf("Broadcast %s event for job %s", payload.Event, payload.JobID)
	return nil
}
