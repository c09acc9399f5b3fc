// workers/recompute_worker.go
package workers

import (
	"context"
	"log"

	"gorm.io/gorm"

	"poker-league-system/services"
)

// RecomputeWorker executes queued season score recomputations in the
// background. A failed run is logged and dropped; the season configuration
// that triggered it stays saved (partial-success policy).
type RecomputeWorker struct {
	db   *gorm.DB
	jobs chan string
}

func NewRecomputeWorker(db *gorm.DB) *RecomputeWorker {
	return &RecomputeWorker{
		db:   db,
		jobs: make(chan string, 64),
	}
}

// Enqueue queues a season for recomputation. Non-blocking: if the queue is
// full the job is dropped and logged, the caller's save is not affected.
func (w *RecomputeWorker) Enqueue(seasonID string) {
	select {
	case w.jobs <- seasonID:
	default:
		log.Printf("[RecomputeWorker] queue full, dropping recompute for season %s", seasonID)
	}
}

func (w *RecomputeWorker) Start(ctx context.Context) {
	log.Println("[RecomputeWorker] started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[RecomputeWorker] stopping")
			return
		case seasonID := <-w.jobs:
			updated, err := services.RecomputeSeasonScores(w.db, seasonID)
			if err != nil {
				log.Printf("[RecomputeWorker] season %s failed after %d updates: %v", seasonID, updated, err)
				continue
			}
			log.Printf("[RecomputeWorker] season %s done, %d rows updated", seasonID, updated)
		}
	}
}
