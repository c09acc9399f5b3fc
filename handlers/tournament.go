package handlers

import (
	"github.com/gofiber/fiber/v2"

	"poker-league-system/middleware"
	"poker-league-system/services"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService, playService *services.PlayService, timerService *services.TimerService) {
	// Public read-only views: clients poll these for the live clock and board.
	// Registered before the secured group so its middleware never sees them.
	app.Get("/tournaments/:id/clock", timerService.GetClock)
	app.Get("/tournaments/:id/leaderboard", tournamentService.GetLeaderboard)
	app.Get("/tournaments/:id/eliminations", tournamentService.GetEliminations)

	// The group is scoped to its own prefix so the auth middleware cannot
	// leak onto routes owned by other route files.
	secured := app.Group("/tournaments", middleware.UserContextMiddleware())

	// Tournament lifecycle
	secured.Post("/", tournamentService.CreateTournament)
	secured.Get("/", tournamentService.GetAllTournaments)
	secured.Get("/:id", tournamentService.GetTournamentByID)
	secured.Patch("/:id/status", tournamentService.UpdateTournamentStatus)

	// Enrollment
	secured.Post("/:id/players", tournamentService.RegisterPlayer)
	secured.Get("/:id/players", tournamentService.GetPlayers)

	// Directors
	secured.Post("/:id/directors", tournamentService.AssignDirector)
	secured.Delete("/:id/directors/:user_id", tournamentService.RemoveDirector)

	// Timer
	secured.Post("/:id/timer/start", timerService.StartTimer)
	secured.Post("/:id/timer/pause", timerService.PauseTimer)
	secured.Post("/:id/timer/resume", timerService.ResumeTimer)
	secured.Post("/:id/timer/reset", timerService.ResetTimer)

	// Play engine
	secured.Post("/:id/eliminations", playService.RecordElimination)
	secured.Post("/:id/players/:player_id/rebuys", playService.RecordRebuy)
	secured.Post("/:id/players/:player_id/voluntary-rebuy", playService.VoluntaryRebuy)
	secured.Put("/:id/players/:player_id/final-rank", playService.CorrectFinalRank)
}
