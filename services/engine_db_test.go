package services

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"poker-league-system/models"
)

func newEngineDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "league.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Season{},
		&models.SeasonPenaltyTier{},
		&models.Tournament{},
		&models.BlindLevel{},
		&models.TournamentDirector{},
		&models.TournamentPlayer{},
		&models.Elimination{},
	))
	return db
}

// seedRunningTournament persists a season plus an IN_PROGRESS tournament at
// level 1 with the rebuy window open, and enrolls the given players.
func seedRunningTournament(t *testing.T, db *gorm.DB, playerIDs ...string) (*models.Tournament, *models.Season) {
	t.Helper()
	season := scoringSeason()
	season.ID = uuid.NewString()
	season.Name = "Test Season"
	require.NoError(t, db.Omit("PenaltyTiers").Create(season).Error)

	startedAt := time.Now().Add(-time.Minute)
	tr := &models.Tournament{
		ID:             uuid.NewString(),
		SeasonID:       season.ID,
		Name:           "Test Night",
		Status:         models.TournamentStatusInProgress,
		CurrentLevel:   1,
		RebuyEndLevel:  6,
		StartingChips:  20000,
		TimerStartedAt: &startedAt,
	}
	require.NoError(t, db.Omit("BlindLevels").Create(tr).Error)
	tr.BlindLevels = testLevels()

	for _, pid := range playerIDs {
		require.NoError(t, db.Create(&models.TournamentPlayer{
			ID:           uuid.NewString(),
			TournamentID: tr.ID,
			PlayerID:     pid,
			Nickname:     pid,
		}).Error)
	}
	return tr, season
}

func loadTournamentPlayers(t *testing.T, db *gorm.DB, tournamentID string) []models.TournamentPlayer {
	t.Helper()
	var players []models.TournamentPlayer
	require.NoError(t, db.Where("tournament_id = ?", tournamentID).Order("player_id ASC").Find(&players).Error)
	return players
}

// Two requests that both read the player before either wrote: the conditional
// update lets exactly one through, the other maps to the business error.
func Test_LightRebuy_SimultaneousRequestsResolveToOneSuccess(t *testing.T) {
	db := newEngineDB(t)
	tr, season := seedRunningTournament(t, db, "p1")
	svc := NewPlayService(db, NewLogBroadcaster())

	var first models.TournamentPlayer
	require.NoError(t, db.Where("tournament_id = ? AND player_id = ?", tr.ID, "p1").First(&first).Error)
	second := first // same stale read, light_rebuy_used still false

	err1 := db.Transaction(func(tx *gorm.DB) error { return svc.applyLightRebuy(tx, season, &first, nil) })
	err2 := db.Transaction(func(tx *gorm.DB) error { return svc.applyLightRebuy(tx, season, &second, nil) })
	require.NoError(t, err1)
	require.ErrorIs(t, err2, ErrLightRebuyUsed)

	var fresh models.TournamentPlayer
	require.NoError(t, db.Where("id = ?", first.ID).First(&fresh).Error)
	assert.True(t, fresh.LightRebuyUsed)
	assert.Equal(t, 0, fresh.RebuysCount)
}

// A finish that lands between the handler's pre-check and the engine commit
// must be seen by the in-transaction re-read.
func Test_ApplyRebuy_RejectsTournamentFinishedAfterLoad(t *testing.T) {
	db := newEngineDB(t)
	tr, season := seedRunningTournament(t, db, "p1")
	svc := NewPlayService(db, NewLogBroadcaster())

	require.NoError(t, db.Model(&models.Tournament{}).
		Where("id = ?", tr.ID).
		Update("status", models.TournamentStatusFinished).Error)

	// tr still says IN_PROGRESS; the transaction must trust the row, not us.
	_, err := svc.applyRebuy(tr, season, "p1", RebuyStandard, time.Now())
	require.ErrorIs(t, err, ErrTournamentNotInProgress)

	players := loadTournamentPlayers(t, db, tr.ID)
	require.Len(t, players, 1)
	assert.Equal(t, 0, players[0].RebuysCount)
}

// Playing a four-handed tournament down to a winner must yield ranks 4..1
// with no duplicates, so the finish validation can pass.
func Test_ApplyElimination_RanksStayDistinctDownToWinner(t *testing.T) {
	db := newEngineDB(t)
	tr, season := seedRunningTournament(t, db, "p1", "p2", "p3", "p4")
	svc := NewPlayService(db, NewLogBroadcaster())
	now := time.Now()

	for _, busted := range []string{"p4", "p3", "p2"} {
		bust, err := svc.applyElimination(tr, season, eliminationInput{
			eliminatedID: busted,
			eliminatorID: "p1",
		}, now)
		require.NoError(t, err)
		assert.Equal(t, busted, bust.EliminatedID)
	}

	players := loadTournamentPlayers(t, db, tr.ID)
	require.Len(t, players, 4)
	require.NoError(t, ValidateFinishedLeaderboard(players))

	ranks := make(map[string]int)
	for _, p := range players {
		require.NotNil(t, p.FinalRank, "player %s unranked", p.PlayerID)
		ranks[p.PlayerID] = *p.FinalRank
	}
	assert.Equal(t, map[string]int{"p1": 1, "p2": 2, "p3": 3, "p4": 4}, ranks)

	// The winner's KOs were credited along the way.
	var winner models.TournamentPlayer
	require.NoError(t, db.Where("tournament_id = ? AND player_id = ?", tr.ID, "p1").First(&winner).Error)
	assert.Equal(t, 3, winner.EliminationsCount)
	assert.Equal(t, winner.RankPoints+winner.EliminationPoints+winner.BonusPoints+winner.PenaltyPoints, winner.TotalPoints)
}

// A recave keeps the player in: no rank, counter bumped, stack refilled.
func Test_ApplyElimination_RecaveKeepsPlayerActive(t *testing.T) {
	db := newEngineDB(t)
	tr, season := seedRunningTournament(t, db, "p1", "p2", "p3")
	svc := NewPlayService(db, NewLogBroadcaster())

	bust, err := svc.applyElimination(tr, season, eliminationInput{
		eliminatedID: "p2",
		eliminatorID: "p1",
		recave:       true,
	}, time.Now())
	require.NoError(t, err)
	assert.True(t, bust.RecaveApplied)
	assert.Equal(t, 0, bust.Rank)

	var p2 models.TournamentPlayer
	require.NoError(t, db.Where("tournament_id = ? AND player_id = ?", tr.ID, "p2").First(&p2).Error)
	assert.Nil(t, p2.FinalRank)
	assert.Equal(t, 1, p2.RebuysCount)
	require.NotNil(t, p2.CurrentStack)
	assert.Equal(t, tr.StartingChips, *p2.CurrentStack)
}

// Duplicate ranks block finishing with no way out through the engine's
// one-way writes; the admin correction endpoint is the repair path.
func Test_CorrectFinalRank_RepairsDuplicateRanks(t *testing.T) {
	db := newEngineDB(t)
	tr, _ := seedRunningTournament(t, db, "p1", "p2")
	svc := NewPlayService(db, NewLogBroadcaster())

	require.NoError(t, db.Model(&models.TournamentPlayer{}).
		Where("tournament_id = ?", tr.ID).
		Update("final_rank", 2).Error)
	require.ErrorIs(t, ValidateFinishedLeaderboard(loadTournamentPlayers(t, db, tr.ID)), ErrLeaderboardInconsistent)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "root")
		c.Locals("user_roles", []string{RoleAdmin})
		return c.Next()
	})
	app.Put("/tournaments/:id/players/:player_id/final-rank", svc.CorrectFinalRank)

	req := httptest.NewRequest(fiber.MethodPut,
		"/tournaments/"+tr.ID+"/players/p1/final-rank",
		strings.NewReader(`{"final_rank": 1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	players := loadTournamentPlayers(t, db, tr.ID)
	require.NoError(t, ValidateFinishedLeaderboard(players))
	require.NotNil(t, players[0].FinalRank)
	assert.Equal(t, 1, *players[0].FinalRank)
	assert.Equal(t, 100, players[0].RankPoints)
}

// The correction endpoint overrides rank assignment, so directors must not
// reach it.
func Test_CorrectFinalRank_AdminOnly(t *testing.T) {
	db := newEngineDB(t)
	tr, _ := seedRunningTournament(t, db, "p1")
	svc := NewPlayService(db, NewLogBroadcaster())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "some-director")
		c.Locals("user_roles", []string{})
		return c.Next()
	})
	app.Put("/tournaments/:id/players/:player_id/final-rank", svc.CorrectFinalRank)

	req := httptest.NewRequest(fiber.MethodPut,
		"/tournaments/"+tr.ID+"/players/p1/final-rank",
		strings.NewReader(`{"final_rank": 1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
