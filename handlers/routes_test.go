package handlers

import (
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"poker-league-system/models"
	"poker-league-system/services"
)

type noopRecomputer struct{}

func (noopRecomputer) Enqueue(string) {}

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	events := services.NewLogBroadcaster()
	tournamentService := services.NewTournamentService(db, events)
	playService := services.NewPlayService(db, events)
	timerService := services.NewTimerService(db, events)
	seasonService := services.NewSeasonService(db, noopRecomputer{})

	// Same registration order as main.
	app := fiber.New()
	SetupTournamentRoutes(app, tournamentService, playService, timerService)
	SetupSeasonRoutes(app, seasonService)
	return app, db
}

func seedSeasonAndTournament(t *testing.T, db *gorm.DB) (*models.Season, *models.Tournament) {
	t.Helper()
	season := &models.Season{ID: "s1", Name: "Season One"}
	require.NoError(t, db.Create(season).Error)
	tr := &models.Tournament{
		ID:           "t1",
		SeasonID:     season.ID,
		Name:         "Night One",
		Status:       models.TournamentStatusPlanned,
		CurrentLevel: 1,
		CreatedByID:  "creator",
	}
	require.NoError(t, db.Omit("BlindLevels").Create(tr).Error)
	return season, tr
}

// The public views must answer without any gateway user context, no matter
// which route file registered first.
func Test_PublicRoutes_NoUserContextRequired(t *testing.T) {
	app, db := newTestApp(t)
	seedSeasonAndTournament(t, db)

	for _, path := range []string{
		"/seasons/s1/standings",
		"/tournaments/t1/clock",
		"/tournaments/t1/leaderboard",
		"/tournaments/t1/eliminations",
	} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
		require.NoError(t, err, path)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
	}
}

func Test_SecuredRoutes_RejectMissingUserContext(t *testing.T) {
	app, db := newTestApp(t)
	seedSeasonAndTournament(t, db)

	for _, route := range []struct {
		method string
		path   string
	}{
		{fiber.MethodGet, "/tournaments"},
		{fiber.MethodGet, "/tournaments/t1"},
		{fiber.MethodPost, "/seasons"},
		{fiber.MethodGet, "/seasons/s1"},
	} {
		resp, err := app.Test(httptest.NewRequest(route.method, route.path, nil))
		require.NoError(t, err, route.path)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, route.path)
	}
}

// Assigned directors run the engine but must not manage the director list;
// that stays with the creator and ADMINs.
func Test_DirectorAssignment_CreatorOrAdminOnly(t *testing.T) {
	app, db := newTestApp(t)
	_, tr := seedSeasonAndTournament(t, db)
	require.NoError(t, db.Create(&models.TournamentDirector{
		ID:           "d1",
		TournamentID: tr.ID,
		UserID:       "dir1",
		AssignedByID: "creator",
	}).Error)

	body := `{"user_id": "dir2"}`

	req := httptest.NewRequest(fiber.MethodPost, "/tournaments/t1/directors", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "dir1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "CREATOR_OR_ADMIN_REQUIRED")

	req = httptest.NewRequest(fiber.MethodPost, "/tournaments/t1/directors", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "creator")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodDelete, "/tournaments/t1/directors/dir2", nil)
	req.Header.Set("X-User-ID", "dir1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

// Authorization failures carry the same JSON error shape as every other
// business error.
func Test_AuthorizationErrors_AreJSON(t *testing.T) {
	app, db := newTestApp(t)
	seedSeasonAndTournament(t, db)

	req := httptest.NewRequest(fiber.MethodPost, "/seasons", strings.NewReader(`{"name": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "mortal")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"code":"ADMIN_REQUIRED"`)
}
