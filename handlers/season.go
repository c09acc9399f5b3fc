package handlers

import (
	"github.com/gofiber/fiber/v2"

	"poker-league-system/middleware"
	"poker-league-system/services"
)

func SetupSeasonRoutes(app *fiber.App, seasonService *services.SeasonService) {
	// Public season leaderboard, registered before the secured group.
	app.Get("/seasons/:id/standings", seasonService.GetStandings)

	secured := app.Group("/seasons", middleware.UserContextMiddleware())
	secured.Post("/", seasonService.CreateSeason)
	secured.Get("/:id", seasonService.GetSeason)
	secured.Put("/:id/penalty-rules", seasonService.UpdatePenaltyRules)
}
