package services

import (
	"sort"
	"time"

	"poker-league-system/models"
)

// ClockState is the read-side projection of a tournament timer. It is derived
// from the persisted timer fields on every read; nothing ticks in-process.
type ClockState struct {
	Level            int   `json:"level"`
	SecondsIntoLevel int64 `json:"seconds_into_level"`
	RemainingSeconds int64 `json:"remaining_seconds"`
	IsRunning        bool  `json:"is_running"`
	IsPaused         bool  `json:"is_paused"`
}

// TimerElapsed returns total elapsed playing seconds at now: the banked
// elapsed plus the current running interval, if any.
func TimerElapsed(t *models.Tournament, now time.Time) int64 {
	elapsed := t.TimerElapsedSeconds
	if t.TimerStartedAt != nil && t.TimerPausedAt == nil {
		elapsed += int64(now.Sub(*t.TimerStartedAt) / time.Second)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// EffectiveClock walks the blind levels in order, subtracting each duration
// from the elapsed seconds. Past the end of the structure the clock stays on
// the last level with remaining floored at 0.
func EffectiveClock(t *models.Tournament, levels []models.BlindLevel, now time.Time) ClockState {
	state := ClockState{
		IsRunning: t.TimerStartedAt != nil && t.TimerPausedAt == nil,
		IsPaused:  t.TimerPausedAt != nil,
	}

	sorted := sortedLevels(levels)
	if len(sorted) == 0 {
		state.Level = t.CurrentLevel
		return state
	}

	elapsed := TimerElapsed(t, now)
	for i, bl := range sorted {
		duration := int64(bl.DurationSeconds)
		if elapsed < duration || i == len(sorted)-1 {
			state.Level = bl.Level
			state.SecondsIntoLevel = elapsed
			state.RemainingSeconds = duration - elapsed
			if state.RemainingSeconds < 0 {
				state.SecondsIntoLevel = duration
				state.RemainingSeconds = 0
			}
			return state
		}
		elapsed -= duration
	}
	return state
}

// IsBreakAfterRebuyEnd reports whether effectiveLevel is the break that
// immediately follows the rebuy cutoff. That break is the single window in
// which rebuys are still accepted past the nominal cutoff.
func IsBreakAfterRebuyEnd(rebuyEndLevel, effectiveLevel int, levels []models.BlindLevel) bool {
	if rebuyEndLevel <= 0 {
		return false
	}
	sorted := sortedLevels(levels)
	for i, bl := range sorted {
		if bl.Level != rebuyEndLevel {
			continue
		}
		if i+1 >= len(sorted) {
			return false
		}
		next := sorted[i+1]
		return next.IsBreak && next.Level == effectiveLevel
	}
	return false
}

// RebuyWindowOpen is true while the effective level is at or before the
// cutoff, or during the one-time break window right after it.
func RebuyWindowOpen(t *models.Tournament, levels []models.BlindLevel, now time.Time) bool {
	clock := EffectiveClock(t, levels, now)
	if clock.Level <= t.RebuyEndLevel {
		return true
	}
	return IsBreakAfterRebuyEnd(t.RebuyEndLevel, clock.Level, levels)
}

// StartTimer, PauseTimer, ResumeTimer and ResetTimer mutate the timer fields
// in place. Callers persist the result with a conditional update mirroring the
// state they read.

func StartTimer(t *models.Tournament, now time.Time) error {
	if t.TimerStartedAt != nil {
		return ErrTimerInvalidState
	}
	t.TimerStartedAt = &now
	t.TimerPausedAt = nil
	return nil
}

func PauseTimer(t *models.Tournament, now time.Time) error {
	if t.TimerStartedAt == nil || t.TimerPausedAt != nil {
		return ErrTimerInvalidState
	}
	t.TimerElapsedSeconds += int64(now.Sub(*t.TimerStartedAt) / time.Second)
	t.TimerPausedAt = &now
	return nil
}

func ResumeTimer(t *models.Tournament, now time.Time) error {
	if t.TimerPausedAt == nil {
		return ErrTimerInvalidState
	}
	// Elapsed was banked at pause time; only the interval start moves.
	t.TimerStartedAt = &now
	t.TimerPausedAt = nil
	return nil
}

func ResetTimer(t *models.Tournament) {
	t.TimerStartedAt = nil
	t.TimerPausedAt = nil
	t.TimerElapsedSeconds = 0
}

func sortedLevels(levels []models.BlindLevel) []models.BlindLevel {
	sorted := make([]models.BlindLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return sorted
}
