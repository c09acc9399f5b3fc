package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"poker-league-system/models"
)

// TimerService owns the tournament clock transitions. The read path is the
// pure clock model in clock.go; every transition here is persisted with a
// conditional update mirroring the timer fields that were read, so two racing
// directors cannot double-apply a transition.
type TimerService struct {
	DB     *gorm.DB
	Events Broadcaster
}

func NewTimerService(db *gorm.DB, events Broadcaster) *TimerService {
	return &TimerService{DB: db, Events: events}
}

func (s *TimerService) loadTournament(c *fiber.Ctx) (*models.Tournament, error) {
	var t models.Tournament
	err := s.DB.Preload("BlindLevels").First(&t, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetClock returns the derived clock state. Safe for concurrent polling, no
// writes happen on this path.
func (s *TimerService) GetClock(c *fiber.Ctx) error {
	t, err := s.loadTournament(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(EffectiveClock(t, t.BlindLevels, time.Now()))
}

func (s *TimerService) StartTimer(c *fiber.Ctx) error {
	return s.transition(c, "start", func(t *models.Tournament, now time.Time) error {
		return StartTimer(t, now)
	})
}

func (s *TimerService) PauseTimer(c *fiber.Ctx) error {
	return s.transition(c, "pause", func(t *models.Tournament, now time.Time) error {
		return PauseTimer(t, now)
	})
}

func (s *TimerService) ResumeTimer(c *fiber.Ctx) error {
	return s.transition(c, "resume", func(t *models.Tournament, now time.Time) error {
		return ResumeTimer(t, now)
	})
}

func (s *TimerService) ResetTimer(c *fiber.Ctx) error {
	return s.transition(c, "reset", func(t *models.Tournament, now time.Time) error {
		ResetTimer(t)
		return nil
	})
}

func (s *TimerService) transition(c *fiber.Ctx, kind string, apply func(*models.Tournament, time.Time) error) error {
	t, err := s.loadTournament(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := requireDirector(c, s.DB, t); err != nil {
		return respondError(c, err)
	}
	if t.Status != models.TournamentStatusInProgress {
		return respondError(c, ErrTournamentNotInProgress)
	}

	prevStarted, prevPaused, prevElapsed := t.TimerStartedAt, t.TimerPausedAt, t.TimerElapsedSeconds
	now := time.Now()
	if err := apply(t, now); err != nil {
		return respondError(c, err)
	}

	// Guard on the exact state we read; a concurrent transition makes this a
	// zero-row update, which we report as the same invalid-state error.
	result := s.DB.Model(&models.Tournament{}).
		Where("id = ?", t.ID).
		Where(timerGuard(prevStarted, prevPaused, prevElapsed)).
		Updates(map[string]interface{}{
			"timer_started_at":      t.TimerStartedAt,
			"timer_paused_at":       t.TimerPausedAt,
			"timer_elapsed_seconds": t.TimerElapsedSeconds,
		})
	if result.Error != nil {
		return respondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return respondError(c, ErrTimerInvalidState)
	}

	s.Events.Publish(DomainEvent{
		Name:         EventTimerChanged,
		TournamentID: t.ID,
		Kind:         kind,
		At:           now,
	})
	log.Printf("[Timer] Tournament %s: %s (elapsed=%ds)", t.ID, kind, t.TimerElapsedSeconds)
	return c.JSON(EffectiveClock(t, t.BlindLevels, now))
}

func timerGuard(startedAt, pausedAt *time.Time, elapsed int64) map[string]interface{} {
	return map[string]interface{}{
		"timer_started_at":      startedAt,
		"timer_paused_at":       pausedAt,
		"timer_elapsed_seconds": elapsed,
	}
}

// autoResumeTimer is the deferred best-effort resume scheduled after a bust
// rebuy. Conditional on the timer still being paused; losing that race is
// fine.
func autoResumeTimer(db *gorm.DB, events Broadcaster, tournamentID string) {
	now := time.Now()
	result := db.Model(&models.Tournament{}).
		Where("id = ? AND status = ? AND timer_paused_at IS NOT NULL",
			tournamentID, models.TournamentStatusInProgress).
		Updates(map[string]interface{}{
			"timer_started_at": now,
			"timer_paused_at":  nil,
		})
	if result.Error != nil {
		log.Printf("[Timer] auto-resume for %s failed: %v", tournamentID, result.Error)
		return
	}
	if result.RowsAffected > 0 {
		events.Publish(DomainEvent{
			Name:         EventTimerChanged,
			TournamentID: tournamentID,
			Kind:         "resume",
			At:           now,
		})
		log.Printf("[Timer] Tournament %s auto-resumed after rebuy", tournamentID)
	}
}
