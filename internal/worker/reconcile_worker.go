package worker

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/workbridge/api/internal/service"
)

// ReconcileWorker repairs drifted bid counters on a schedule. The counter is
// maintained transactionally, so repairs should be rare; a nonzero count here
// points at a write path that bypassed the store.
type ReconcileWorker struct {
	jobs *service.JobService
}

func NewReconcileWorker(jobs *service.JobService) *ReconcileWorker {
	return &ReconcileWorker{jobs: jobs}
}

// ProcessTask handles jobs:reconcile tasks
func (w *ReconcileWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	repaired, err := w.jobs.Reconcile(ctx)
	if err != nil {
		return err
	}
	if repaired > 0 {
		log.Printf("Reconciled bid counters on %d jobs", repaired)
	}
	return nil
}
