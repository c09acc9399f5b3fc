package services

import (
	"errors"
	"fmt"
	"log"

	"poker-league-system/models"

	"gorm.io/gorm"
)

// Score is the four-component breakdown of a player's tournament result.
type Score struct {
	RankPoints        int `json:"rank_points"`
	EliminationPoints int `json:"elimination_points"`
	BonusPoints       int `json:"bonus_points"`
	PenaltyPoints     int `json:"penalty_points"`
	TotalPoints       int `json:"total_points"`
}

// ComputeScore derives a player's full score from the season configuration.
// Used identically at write time and at recomputation time.
func ComputeScore(season *models.Season, p *models.TournamentPlayer) Score {
	rules := ResolvePenaltyRules(season)
	return computeScore(season, rules, p)
}

func computeScore(season *models.Season, rules PenaltyRules, p *models.TournamentPlayer) Score {
	s := Score{
		EliminationPoints: p.EliminationsCount * season.EliminationPoints,
		BonusPoints:       p.LeaderKills * season.LeaderKillerBonus,
		PenaltyPoints:     PenaltyFor(rules, EffectiveRebuyCount(p.RebuysCount, p.LightRebuyUsed)),
	}
	if p.FinalRank != nil {
		s.RankPoints = season.PlacementPoints(*p.FinalRank)
	}
	s.TotalPoints = s.RankPoints + s.EliminationPoints + s.BonusPoints + s.PenaltyPoints
	return s
}

// EffectivePenaltyPoints reconciles historical rows whose penalty was folded
// into total_points without updating the dedicated column: when the stored
// penalty is zero but the components do not sum, the implied difference is
// reported instead. Stored rows are never rewritten here.
func EffectivePenaltyPoints(p *models.TournamentPlayer) int {
	if p.PenaltyPoints != 0 {
		return p.PenaltyPoints
	}
	return p.TotalPoints - p.RankPoints - p.EliminationPoints - p.BonusPoints
}

// RecomputeSeasonScores reapplies the season's penalty rules to every player
// of every FINISHED tournament in the season. Only rows whose penalty or
// total actually changed are written, which keeps a rerun with unchanged
// rules a no-op.
func RecomputeSeasonScores(db *gorm.DB, seasonID string) (int, error) {
	var season models.Season
	if err := db.Preload("PenaltyTiers").First(&season, "id = ?", seasonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrSeasonNotFound
		}
		return 0, err
	}
	rules := ResolvePenaltyRules(&season)

	var tournaments []models.Tournament
	if err := db.Where("season_id = ? AND status = ?", seasonID, models.TournamentStatusFinished).
		Find(&tournaments).Error; err != nil {
		return 0, err
	}

	updated := 0
	for _, t := range tournaments {
		var players []models.TournamentPlayer
		if err := db.Where("tournament_id = ?", t.ID).Find(&players).Error; err != nil {
			return updated, fmt.Errorf("loading players of tournament %s: %w", t.ID, err)
		}
		for i := range players {
			p := &players[i]
			score := computeScore(&season, rules, p)
			if score.PenaltyPoints == p.PenaltyPoints && score.TotalPoints == p.TotalPoints {
				continue
			}
			err := db.Model(&models.TournamentPlayer{}).
				Where("id = ?", p.ID).
				Updates(map[string]interface{}{
					"penalty_points": score.PenaltyPoints,
					"total_points":   score.TotalPoints,
				}).Error
			if err != nil {
				return updated, fmt.Errorf("updating player %s: %w", p.ID, err)
			}
			updated++
		}
	}
	if updated > 0 {
		log.Printf("[Recompute] Season %s: %d player rows updated", seasonID, updated)
	}
	return updated, nil
}
