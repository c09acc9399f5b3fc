package services

import (
	"errors"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
)

// BusinessError is a rule violation the caller can act on. Code is stable and
// machine-distinguishable; Status follows the API contract (precondition
// failures are all 400).
type BusinessError struct {
	Status  int
	Code    string
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

func newBusinessError(status int, code, message string) *BusinessError {
	return &BusinessError{Status: status, Code: code, Message: message}
}

var (
	ErrMissingAuthContext   = newBusinessError(401, "AUTH_CONTEXT_MISSING", "missing auth context")
	ErrDirectorRequired     = newBusinessError(403, "DIRECTOR_REQUIRED", "tournament director or admin role required")
	ErrAdminRequired        = newBusinessError(403, "ADMIN_REQUIRED", "admin role required")
	ErrCreatorOrAdminNeeded = newBusinessError(403, "CREATOR_OR_ADMIN_REQUIRED", "tournament creator or admin role required")

	ErrTournamentNotFound = newBusinessError(404, "TOURNAMENT_NOT_FOUND", "tournament not found")
	ErrPlayerNotFound     = newBusinessError(404, "PLAYER_NOT_FOUND", "player not enrolled in tournament")
	ErrSeasonNotFound     = newBusinessError(404, "SEASON_NOT_FOUND", "season not found")

	ErrTournamentNotInProgress = newBusinessError(400, "TOURNAMENT_NOT_IN_PROGRESS", "tournament is not in progress")
	ErrInvalidStatusTransition = newBusinessError(400, "INVALID_STATUS_TRANSITION", "tournament status does not allow this transition")
	ErrRebuyPeriodEnded        = newBusinessError(400, "REBUY_PERIOD_ENDED", "rebuy period ended")
	ErrPlayerEliminated        = newBusinessError(400, "PLAYER_ALREADY_ELIMINATED", "player has already been eliminated")
	ErrMaxRebuysReached        = newBusinessError(400, "MAX_REBUYS_REACHED", "maximum number of rebuys reached")
	ErrLightRebuyUsed          = newBusinessError(400, "LIGHT_REBUY_ALREADY_USED", "light rebuy has already been used")
	ErrVoluntaryRebuyUsed      = newBusinessError(400, "VOLUNTARY_REBUY_ALREADY_USED", "voluntary rebuy already used during this break")
	ErrTimerInvalidState       = newBusinessError(400, "TIMER_INVALID_STATE", "timer is not in a state allowing this transition")
	ErrLeaderboardInconsistent = newBusinessError(400, "LEADERBOARD_INCONSISTENT", "finished tournament has missing or duplicate final ranks")
)

// respondError translates an engine error to an HTTP response. Unexpected
// errors become an opaque 500; details only leak in development mode.
func respondError(c *fiber.Ctx, err error) error {
	var be *BusinessError
	if errors.As(err, &be) {
		return c.Status(be.Status).JSON(fiber.Map{"error": be.Message, "code": be.Code})
	}
	log.Printf("ERROR %s %s: %v", c.Method(), c.Path(), err)
	if os.Getenv("APP_ENV") == "development" {
		return c.Status(500).JSON(fiber.Map{"error": "internal error", "details": err.Error()})
	}
	return c.Status(500).JSON(fiber.Map{"error": "internal error"})
}
