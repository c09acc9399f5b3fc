package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"poker-league-system/models"
)

// Recomputer queues a season score recomputation run.
type Recomputer interface {
	Enqueue(seasonID string)
}

type SeasonService struct {
	DB         *gorm.DB
	Recomputer Recomputer
}

func NewSeasonService(db *gorm.DB, recomputer Recomputer) *SeasonService {
	return &SeasonService{DB: db, Recomputer: recomputer}
}

func (s *SeasonService) CreateSeason(c *fiber.Ctx) error {
	if err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	type TierReq struct {
		FromRecaves float64 `json:"from_recaves"`
		Points      int     `json:"points"`
	}
	type Req struct {
		Name                  string    `json:"name"`
		TotalTournamentsCount int       `json:"total_tournaments_count"`
		BestTournamentsCount  *int      `json:"best_tournaments_count"`
		EliminationPoints     int       `json:"elimination_points"`
		LeaderKillerBonus     int       `json:"leader_killer_bonus"`
		FreeRebuysCount       int       `json:"free_rebuys_count"`
		RebuyPenaltyTier1     int       `json:"rebuy_penalty_tier1"`
		RebuyPenaltyTier2     int       `json:"rebuy_penalty_tier2"`
		RebuyPenaltyTier3     int       `json:"rebuy_penalty_tier3"`
		PlacementPoints       []int     `json:"placement_points"` // up to 16, 1st first
		PenaltyTiers          []TierReq `json:"penalty_tiers"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}
	if len(req.PlacementPoints) > 16 {
		return c.Status(400).JSON(fiber.Map{"error": "placement_points supports at most 16 ranks"})
	}
	for _, tier := range req.PenaltyTiers {
		if tier.Points > 0 {
			return c.Status(400).JSON(fiber.Map{"error": "penalty tier points must be non-positive"})
		}
	}

	season := &models.Season{
		ID:                    uuid.NewString(),
		Name:                  req.Name,
		Slug:                  slug.Make(req.Name),
		TotalTournamentsCount: req.TotalTournamentsCount,
		BestTournamentsCount:  req.BestTournamentsCount,
		EliminationPoints:     req.EliminationPoints,
		LeaderKillerBonus:     req.LeaderKillerBonus,
		FreeRebuysCount:       req.FreeRebuysCount,
		RebuyPenaltyTier1:     req.RebuyPenaltyTier1,
		RebuyPenaltyTier2:     req.RebuyPenaltyTier2,
		RebuyPenaltyTier3:     req.RebuyPenaltyTier3,
	}
	assignPlacementPoints(season, req.PlacementPoints)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("PenaltyTiers").Create(season).Error; err != nil {
			return err
		}
		for _, tier := range req.PenaltyTiers {
			row := models.SeasonPenaltyTier{
				ID:          uuid.NewString(),
				SeasonID:    season.ID,
				FromRecaves: tier.FromRecaves,
				Points:      tier.Points,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			season.PenaltyTiers = append(season.PenaltyTiers, row)
		}
		return nil
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(season)
}

func (s *SeasonService) GetSeason(c *fiber.Ctx) error {
	var season models.Season
	err := s.DB.Preload("PenaltyTiers").First(&season, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, ErrSeasonNotFound)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(season)
}

// UpdatePenaltyRules replaces the season penalty configuration and enqueues a
// recomputation pass over the season's finished tournaments. The saved
// configuration is never rolled back if recomputation later fails; failures
// are logged by the worker (explicit partial-success policy).
func (s *SeasonService) UpdatePenaltyRules(c *fiber.Ctx) error {
	if err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	type TierReq struct {
		FromRecaves float64 `json:"from_recaves"`
		Points      int     `json:"points"`
	}
	type Req struct {
		FreeRebuysCount   int       `json:"free_rebuys_count"`
		RebuyPenaltyTier1 int       `json:"rebuy_penalty_tier1"`
		RebuyPenaltyTier2 int       `json:"rebuy_penalty_tier2"`
		RebuyPenaltyTier3 int       `json:"rebuy_penalty_tier3"`
		PenaltyTiers      []TierReq `json:"penalty_tiers"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	for _, tier := range req.PenaltyTiers {
		if tier.Points > 0 {
			return c.Status(400).JSON(fiber.Map{"error": "penalty tier points must be non-positive"})
		}
	}

	var season models.Season
	if err := s.DB.First(&season, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, ErrSeasonNotFound)
		}
		return respondError(c, err)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&season).Updates(map[string]interface{}{
			"free_rebuys_count":   req.FreeRebuysCount,
			"rebuy_penalty_tier1": req.RebuyPenaltyTier1,
			"rebuy_penalty_tier2": req.RebuyPenaltyTier2,
			"rebuy_penalty_tier3": req.RebuyPenaltyTier3,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("season_id = ?", season.ID).Delete(&models.SeasonPenaltyTier{}).Error; err != nil {
			return err
		}
		for _, tier := range req.PenaltyTiers {
			row := models.SeasonPenaltyTier{
				ID:          uuid.NewString(),
				SeasonID:    season.ID,
				FromRecaves: tier.FromRecaves,
				Points:      tier.Points,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return respondError(c, err)
	}

	s.Recomputer.Enqueue(season.ID)
	log.Printf("[Season] Penalty rules updated for season %s, recomputation queued", season.ID)

	if err := s.DB.Preload("PenaltyTiers").First(&season, "id = ?", season.ID).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(season)
}

// GetStandings aggregates every finished-tournament performance of the season
// under the best-N rule.
func (s *SeasonService) GetStandings(c *fiber.Ctx) error {
	var season models.Season
	err := s.DB.First(&season, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, ErrSeasonNotFound)
	}
	if err != nil {
		return respondError(c, err)
	}

	// Stable input order: tournament creation, then player registration.
	var players []models.TournamentPlayer
	err = s.DB.
		Joins("JOIN tournaments ON tournaments.id = tournament_players.tournament_id").
		Where("tournaments.season_id = ? AND tournaments.status = ?", season.ID, models.TournamentStatusFinished).
		Order("tournaments.created_at ASC, tournament_players.created_at ASC").
		Find(&players).Error
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"season_id": season.ID,
		"best_n":    season.BestTournamentsCount,
		"standings": ComputeStandings(players, season.BestTournamentsCount),
	})
}

func assignPlacementPoints(season *models.Season, points []int) {
	fields := []*int{
		&season.PointsFirst, &season.PointsSecond, &season.PointsThird, &season.PointsFourth,
		&season.PointsFifth, &season.PointsSixth, &season.PointsSeventh, &season.PointsEighth,
		&season.PointsNinth, &season.PointsTenth, &season.PointsEleventh, &season.PointsTwelfth,
		&season.PointsThirteenth, &season.PointsFourteenth, &season.PointsFifteenth, &season.PointsSixteenth,
	}
	for i, p := range points {
		if i >= len(fields) {
			break
		}
		*fields[i] = p
	}
}
