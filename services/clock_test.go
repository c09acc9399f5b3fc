package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poker-league-system/models"
)

func testLevels() []models.BlindLevel {
	return []models.BlindLevel{
		{Level: 1, SmallBlind: 25, BigBlind: 50, DurationSeconds: 600},
		{Level: 2, SmallBlind: 50, BigBlind: 100, DurationSeconds: 600},
		{Level: 3, SmallBlind: 75, BigBlind: 150, DurationSeconds: 600},
		{Level: 4, SmallBlind: 100, BigBlind: 200, DurationSeconds: 300, IsBreak: true},
		{Level: 5, SmallBlind: 150, BigBlind: 300, DurationSeconds: 600},
	}
}

func runningTournament(startedAgo time.Duration, now time.Time) *models.Tournament {
	startedAt := now.Add(-startedAgo)
	return &models.Tournament{
		Status:         models.TournamentStatusInProgress,
		TimerStartedAt: &startedAt,
	}
}

func Test_EffectiveClock_LevelWalk(t *testing.T) {
	now := time.Now()
	levels := testLevels()

	tests := []struct {
		name      string
		elapsed   time.Duration
		level     int
		into      int64
		remaining int64
	}{
		{name: "start of level 1", elapsed: 0, level: 1, into: 0, remaining: 600},
		{name: "inside level 1", elapsed: 90 * time.Second, level: 1, into: 90, remaining: 510},
		{name: "boundary into level 2", elapsed: 600 * time.Second, level: 2, into: 0, remaining: 600},
		{name: "inside level 3", elapsed: 1500 * time.Second, level: 3, into: 300, remaining: 300},
		{name: "inside the break", elapsed: 1900 * time.Second, level: 4, into: 100, remaining: 200},
		{name: "last level", elapsed: 2200 * time.Second, level: 5, into: 100, remaining: 500},
		{name: "past the end", elapsed: 5000 * time.Second, level: 5, into: 600, remaining: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := EffectiveClock(runningTournament(tt.elapsed, now), levels, now)
			assert.Equal(t, tt.level, clock.Level)
			assert.Equal(t, tt.into, clock.SecondsIntoLevel)
			assert.Equal(t, tt.remaining, clock.RemainingSeconds)
			assert.True(t, clock.IsRunning)
			assert.False(t, clock.IsPaused)
		})
	}
}

func Test_EffectiveClock_Monotonic(t *testing.T) {
	now := time.Now()
	levels := testLevels()

	prevLevel := 0
	for elapsed := 0; elapsed <= 3600; elapsed += 7 {
		clock := EffectiveClock(runningTournament(time.Duration(elapsed)*time.Second, now), levels, now)
		require.GreaterOrEqual(t, clock.Level, prevLevel, "level regressed at elapsed=%d", elapsed)
		require.GreaterOrEqual(t, clock.RemainingSeconds, int64(0))
		if clock.Level < 5 {
			require.Less(t, clock.SecondsIntoLevel, int64(600))
		}
		prevLevel = clock.Level
	}
}

func Test_EffectiveClock_PausedAndIdle(t *testing.T) {
	now := time.Now()
	levels := testLevels()

	// Never started: not running, not paused, level 1.
	idle := &models.Tournament{CurrentLevel: 1}
	clock := EffectiveClock(idle, levels, now)
	assert.False(t, clock.IsRunning)
	assert.False(t, clock.IsPaused)
	assert.Equal(t, 1, clock.Level)

	// Paused: elapsed comes from the banked counter only, regardless of how
	// long ago the interval started.
	startedAt := now.Add(-2 * time.Hour)
	pausedAt := now.Add(-time.Hour)
	paused := &models.Tournament{
		TimerStartedAt:      &startedAt,
		TimerPausedAt:       &pausedAt,
		TimerElapsedSeconds: 650,
	}
	clock = EffectiveClock(paused, levels, now)
	assert.True(t, clock.IsPaused)
	assert.False(t, clock.IsRunning)
	assert.Equal(t, 2, clock.Level)
	assert.Equal(t, int64(50), clock.SecondsIntoLevel)
}

func Test_IsBreakAfterRebuyEnd(t *testing.T) {
	levels := testLevels()

	// Level 4 is the break right after rebuy-end level 3.
	assert.True(t, IsBreakAfterRebuyEnd(3, 4, levels))
	assert.False(t, IsBreakAfterRebuyEnd(3, 5, levels))
	assert.False(t, IsBreakAfterRebuyEnd(3, 3, levels))
	// Level after rebuy-end 2 is a regular level.
	assert.False(t, IsBreakAfterRebuyEnd(2, 3, levels))
	// Rebuy-end at the last level has no following break.
	assert.False(t, IsBreakAfterRebuyEnd(5, 5, levels))
	assert.False(t, IsBreakAfterRebuyEnd(0, 1, levels))
}

func Test_RebuyWindowOpen(t *testing.T) {
	now := time.Now()
	levels := testLevels()

	tr := runningTournament(100*time.Second, now) // level 1
	tr.RebuyEndLevel = 3
	assert.True(t, RebuyWindowOpen(tr, levels, now))

	tr = runningTournament(1900*time.Second, now) // inside the break after cutoff
	tr.RebuyEndLevel = 3
	assert.True(t, RebuyWindowOpen(tr, levels, now))

	tr = runningTournament(2500*time.Second, now) // level 5
	tr.RebuyEndLevel = 3
	assert.False(t, RebuyWindowOpen(tr, levels, now))
}

func Test_Timer_PauseResumeRoundTrip(t *testing.T) {
	tr := &models.Tournament{}
	t0 := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	require.NoError(t, StartTimer(tr, t0))
	assert.True(t, tr.TimerStartedAt.Equal(t0))
	assert.Nil(t, tr.TimerPausedAt)

	// Run 90s, pause.
	t1 := t0.Add(90 * time.Second)
	require.NoError(t, PauseTimer(tr, t1))
	assert.Equal(t, int64(90), tr.TimerElapsedSeconds)
	require.NotNil(t, tr.TimerPausedAt)

	// Resume much later: the gap must not count.
	t2 := t1.Add(45 * time.Minute)
	require.NoError(t, ResumeTimer(tr, t2))
	assert.Nil(t, tr.TimerPausedAt)

	// Run 30s more, pause again: total is the sum of the running intervals.
	t3 := t2.Add(30 * time.Second)
	require.NoError(t, PauseTimer(tr, t3))
	assert.Equal(t, int64(120), tr.TimerElapsedSeconds)
}

func Test_Timer_InvalidTransitions(t *testing.T) {
	now := time.Now()

	tr := &models.Tournament{}
	assert.ErrorIs(t, PauseTimer(tr, now), ErrTimerInvalidState) // pause when never started
	assert.ErrorIs(t, ResumeTimer(tr, now), ErrTimerInvalidState)

	require.NoError(t, StartTimer(tr, now))
	assert.ErrorIs(t, StartTimer(tr, now), ErrTimerInvalidState)  // double start
	assert.ErrorIs(t, ResumeTimer(tr, now), ErrTimerInvalidState) // resume while running

	require.NoError(t, PauseTimer(tr, now.Add(time.Second)))
	assert.ErrorIs(t, PauseTimer(tr, now.Add(2*time.Second)), ErrTimerInvalidState) // double pause

	ResetTimer(tr)
	assert.Nil(t, tr.TimerStartedAt)
	assert.Nil(t, tr.TimerPausedAt)
	assert.Equal(t, int64(0), tr.TimerElapsedSeconds)
}
