package services

import (
	"github.com/gofiber/fiber/v2"
	"github.com/thoas/go-funk"
	"gorm.io/gorm"

	"poker-league-system/models"
)

const RoleAdmin = "ADMIN"

// currentUser pulls the gateway-provided identity off the request context.
func currentUser(c *fiber.Ctx) (string, []string) {
	userID, _ := c.Locals("user_id").(string)
	roles, _ := c.Locals("user_roles").([]string)
	return userID, roles
}

// requireDirector allows ADMINs, the tournament creator, and explicitly
// assigned directors to drive the engine.
func requireDirector(c *fiber.Ctx, db *gorm.DB, t *models.Tournament) error {
	userID, roles := currentUser(c)
	if userID == "" {
		return ErrMissingAuthContext
	}
	if funk.ContainsString(roles, RoleAdmin) {
		return nil
	}
	if t.CreatedByID == userID {
		return nil
	}
	var count int64
	err := db.Model(&models.TournamentDirector{}).
		Where("tournament_id = ? AND user_id = ?", t.ID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return ErrDirectorRequired
}

// requireCreatorOrAdmin guards director management: assigned directors may
// drive the engine but may not appoint or remove other directors.
func requireCreatorOrAdmin(c *fiber.Ctx, t *models.Tournament) error {
	userID, roles := currentUser(c)
	if userID == "" {
		return ErrMissingAuthContext
	}
	if funk.ContainsString(roles, RoleAdmin) || t.CreatedByID == userID {
		return nil
	}
	return ErrCreatorOrAdminNeeded
}

// requireAdmin guards season-level configuration endpoints.
func requireAdmin(c *fiber.Ctx) error {
	userID, roles := currentUser(c)
	if userID == "" {
		return ErrMissingAuthContext
	}
	if !funk.ContainsString(roles, RoleAdmin) {
		return ErrAdminRequired
	}
	return nil
}
