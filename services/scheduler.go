// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"poker-league-system/models"
)

// StartLevelSyncScheduler keeps the persisted current_level column of running
// tournaments in step with the effective level derived from the timer. The
// stored value is only a snapshot for list views; correctness never depends
// on this job.
func (s *TournamentService) StartLevelSyncScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(30*time.Second),
		gocron.NewTask(func() {
			var tournaments []models.Tournament
			err := s.DB.Preload("BlindLevels").
				Where("status = ?", models.TournamentStatusInProgress).
				Find(&tournaments).Error
			if err != nil {
				log.Printf("[LevelSync] DB error: %v", err)
				return
			}

			now := time.Now()
			for _, t := range tournaments {
				clock := EffectiveClock(&t, t.BlindLevels, now)
				if clock.Level == t.CurrentLevel {
					continue
				}
				err := s.DB.Model(&models.Tournament{}).
					Where("id = ?", t.ID).
					Update("current_level", clock.Level).Error
				if err != nil {
					log.Printf("[LevelSync] Failed to sync tournament %s: %v", t.ID, err)
				} else {
					log.Printf("[LevelSync] Tournament %s now at level %d", t.ID, clock.Level)
				}
			}
		}),
	)
}
