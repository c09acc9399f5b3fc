package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"poker-league-system/models"
)

func Test_ValidateRebuyWindow(t *testing.T) {
	now := time.Now()
	levels := testLevels() // rebuyable through level 3, break at level 4

	// Level 3, cutoff at 6: window open.
	tr := runningTournament(1500*time.Second, now)
	tr.RebuyEndLevel = 6
	assert.NoError(t, validateRebuyWindow(tr, levels, now))

	// Effective level 5 past cutoff 3, no break active: rebuy period ended,
	// role is irrelevant at this layer.
	tr = runningTournament(2500*time.Second, now)
	tr.RebuyEndLevel = 3
	assert.ErrorIs(t, validateRebuyWindow(tr, levels, now), ErrRebuyPeriodEnded)

	// Break right after the cutoff keeps the window open.
	tr = runningTournament(1900*time.Second, now)
	tr.RebuyEndLevel = 3
	assert.NoError(t, validateRebuyWindow(tr, levels, now))

	// Not in progress beats everything else.
	tr = runningTournament(100*time.Second, now)
	tr.RebuyEndLevel = 6
	tr.Status = models.TournamentStatusRegistration
	assert.ErrorIs(t, validateRebuyWindow(tr, levels, now), ErrTournamentNotInProgress)
}

func Test_ValidateStandardRebuy(t *testing.T) {
	maxThree := 3
	tr := &models.Tournament{MaxRebuysPerPlayer: &maxThree}

	assert.NoError(t, validateStandardRebuy(tr, &models.TournamentPlayer{RebuysCount: 2}))
	assert.ErrorIs(t, validateStandardRebuy(tr, &models.TournamentPlayer{RebuysCount: 3}), ErrMaxRebuysReached)

	rank := 7
	assert.ErrorIs(t,
		validateStandardRebuy(tr, &models.TournamentPlayer{FinalRank: &rank}),
		ErrPlayerEliminated)

	// nil cap means unlimited.
	unlimited := &models.Tournament{}
	assert.NoError(t, validateStandardRebuy(unlimited, &models.TournamentPlayer{RebuysCount: 40}))
}

func Test_ValidateLightRebuy(t *testing.T) {
	assert.NoError(t, validateLightRebuy(&models.TournamentPlayer{}))
	assert.ErrorIs(t,
		validateLightRebuy(&models.TournamentPlayer{LightRebuyUsed: true}),
		ErrLightRebuyUsed)

	rank := 4
	assert.ErrorIs(t,
		validateLightRebuy(&models.TournamentPlayer{FinalRank: &rank}),
		ErrPlayerEliminated)
}

func Test_ClassifyVoluntaryRebuy(t *testing.T) {
	const startingChips = 20000

	tests := []struct {
		name  string
		stack int
		want  string
	}{
		{name: "healthy stack takes the light top-up", stack: 15000, want: RebuyLight},
		{name: "exactly at half", stack: 10000, want: RebuyLight},
		{name: "short stack refills in full", stack: 9999, want: RebuyStandard},
		{name: "felted", stack: 0, want: RebuyStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyVoluntaryRebuy(tt.stack, startingChips))
		})
	}
}
